//go:build darwin

package stdio

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Open allocates a new pseudo-terminal pair via /dev/ptmx, mirroring the
// teacher's grantpt/unlockpt/ptsname sequence for Darwin's BSD-derived pty
// driver. Darwin's pty ioctls have no typed x/sys/unix wrapper, so the raw
// syscall is issued directly, the same as the teacher's openPTY.
func Open() (*PTY, error) {
	m, err := os.OpenFile("/dev/ptmx", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("stdio: open /dev/ptmx: %w", err)
	}

	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, m.Fd(), unix.TIOCPTYGRANT, 0); errno != 0 {
		m.Close()
		return nil, fmt.Errorf("stdio: grantpt: %w", errno)
	}
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, m.Fd(), unix.TIOCPTYUNLK, 0); errno != 0 {
		m.Close()
		return nil, fmt.Errorf("stdio: unlockpt: %w", errno)
	}

	var n [128]byte
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, m.Fd(), unix.TIOCPTYGNAME, uintptr(unsafe.Pointer(&n[0]))); errno != 0 {
		m.Close()
		return nil, fmt.Errorf("stdio: ptsname: %w", errno)
	}

	slaveName := string(n[:clen(n[:])])
	s, err := os.OpenFile(slaveName, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("stdio: open slave %s: %w", slaveName, err)
	}

	return &PTY{Master: m, Slave: s}, nil
}

func clen(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

// GetWinsize reads the terminal size of fd.
func GetWinsize(fd uintptr) (*Winsize, error) {
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil {
		return nil, err
	}
	return &Winsize{Row: ws.Row, Col: ws.Col, Xpixel: ws.Xpixel, Ypixel: ws.Ypixel}, nil
}

// SetWinsize applies ws to the terminal at fd.
func SetWinsize(fd uintptr, ws *Winsize) error {
	return unix.IoctlSetWinsize(int(fd), unix.TIOCSWINSZ, &unix.Winsize{
		Row: ws.Row, Col: ws.Col, Xpixel: ws.Xpixel, Ypixel: ws.Ypixel,
	})
}
