//go:build !linux && !darwin

package stdio

import "errors"

// ErrUnsupported is returned by Open on platforms without a pty adapter.
var ErrUnsupported = errors.New("stdio: PTY allocation not supported on this platform")

func Open() (*PTY, error) {
	return nil, ErrUnsupported
}

func GetWinsize(fd uintptr) (*Winsize, error) {
	return nil, ErrUnsupported
}

func SetWinsize(fd uintptr, ws *Winsize) error {
	return ErrUnsupported
}
