//go:build !linux && !darwin

package procspawn

import "syscall"

func ttySysProcAttr() *syscall.SysProcAttr {
	return nil
}
