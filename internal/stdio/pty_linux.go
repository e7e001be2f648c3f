//go:build linux

package stdio

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Open allocates a new pseudo-terminal pair via /dev/ptmx, the Linux
// multiplexer device the teacher's openPTY also targets.
func Open() (*PTY, error) {
	m, err := os.OpenFile("/dev/ptmx", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("stdio: open /dev/ptmx: %w", err)
	}

	if err := unix.IoctlSetPointerInt(int(m.Fd()), unix.TIOCSPTLCK, 0); err != nil {
		m.Close()
		return nil, fmt.Errorf("stdio: unlockpt: %w", err)
	}

	ptyno, err := unix.IoctlGetInt(int(m.Fd()), unix.TIOCGPTN)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("stdio: ptsname: %w", err)
	}

	slaveName := "/dev/pts/" + strconv.Itoa(ptyno)
	s, err := os.OpenFile(slaveName, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("stdio: open slave %s: %w", slaveName, err)
	}

	return &PTY{Master: m, Slave: s}, nil
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
