// Package stdio backs the StdioPTY option, adapted from the teacher's
// interactive pty_linux.go/pty_darwin.go/relay.go, which opened /dev/ptmx
// and drove window sizing and raw mode directly through syscall.Syscall.
// Here the same allocate/grant/unlock/ptsname sequence is expressed through
// golang.org/x/sys/unix's typed ioctl wrappers on Linux, since this pack's
// domain stack already depends on x/sys; Darwin's three pty ioctls have no
// typed wrapper and still go through a raw syscall.Syscall.
package stdio

import "os"

// PTY is one allocated pseudo-terminal pair: Master stays with the parent,
// Slave is handed to the child as its controlling terminal.
type PTY struct {
	Master *os.File
	Slave  *os.File
}

// Winsize mirrors the kernel's struct winsize.
type Winsize struct {
	Row    uint16
	Col    uint16
	Xpixel uint16
	Ypixel uint16
}
