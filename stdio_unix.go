//go:build linux || darwin

package procspawn

import "syscall"

// ttySysProcAttr makes the child a session leader with the PTY slave (which
// attachPTY has already assigned to fd 0) as its controlling terminal, the
// same Setsid/Setctty pairing the teacher's Relay.Run uses.
func ttySysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}
}
