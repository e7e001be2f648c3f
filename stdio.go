package procspawn

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/go-procspawn/procspawn/internal/plog"
	"github.com/go-procspawn/procspawn/internal/stdio"
)

type stdioStream int

const (
	stdioStreamIn stdioStream = iota
	stdioStreamOut
	stdioStreamErr
)

// capturedStdio holds the in-memory buffers StdioPiped writes into, and the
// PTY master end when StdioPTY is used for any of the three streams. A
// JoinHandle exposes the buffers' final contents after the child exits.
type capturedStdio struct {
	mu         sync.Mutex
	stdout     bytes.Buffer
	stderr     bytes.Buffer
	pty        *stdio.PTY
	pipeDone   chan struct{}
}

// applyStdioMode wires one of cmd's three standard streams according to
// mode. StdioPTY is handled once for all three streams together, since a
// single pseudo-terminal backs stdin/stdout/stderr at once — startChild
// calls attachPTY once per child.
func applyStdioMode(cmd *exec.Cmd, mode StdioMode, stream stdioStream) {
	switch mode {
	case StdioInherit:
		switch stream {
		case stdioStreamIn:
			cmd.Stdin = os.Stdin
		case stdioStreamOut:
			cmd.Stdout = os.Stdout
		case stdioStreamErr:
			cmd.Stderr = os.Stderr
		}
	case StdioNull:
		devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			plog.Printf("opening %s: %v", os.DevNull, err)
			return
		}
		switch stream {
		case stdioStreamIn:
			cmd.Stdin = devNull
		case stdioStreamOut:
			cmd.Stdout = devNull
		case stdioStreamErr:
			cmd.Stderr = devNull
		}
	case StdioPiped:
		// Buffers are attached later, once the childProc exists, by
		// attachPipedBuffers; cmd.Std{out,err} default (nil) until then.
	case StdioPTY:
		// Attached later by attachPTY, once per childProc regardless of
		// how many of the three streams requested it.
	}
}

// attachPipedBuffers wires cmd.Stdout/Stderr to the capture buffers for any
// stream configured as StdioPiped. Must run before cmd.Start.
func attachPipedBuffers(cmd *exec.Cmd, cfg Config, sc *capturedStdio) {
	if cfg.Stdout == StdioPiped {
		cmd.Stdout = &sc.stdout
	}
	if cfg.Stderr == StdioPiped {
		cmd.Stderr = &sc.stderr
	}
}

// attachPTY allocates a pseudo-terminal and wires it as the child's
// controlling terminal when any stream requests StdioPTY, adapted from the
// teacher's Relay.Run, which put the PTY slave on all three of the child's
// standard streams and kept the master for itself.
func attachPTY(cmd *exec.Cmd, cfg Config, sc *capturedStdio) error {
	if cfg.Stdin != StdioPTY && cfg.Stdout != StdioPTY && cfg.Stderr != StdioPTY {
		return nil
	}
	pty, err := stdio.Open()
	if err != nil {
		return err
	}
	sc.pty = pty
	cmd.Stdin = pty.Slave
	cmd.Stdout = pty.Slave
	cmd.Stderr = pty.Slave
	cmd.SysProcAttr = ttySysProcAttr()
	return nil
}

// relayPTY copies between the PTY master and the parent's own stdio once
// the child has started, the same master-to-stdout/stdin-to-master pump
// the teacher's Relay.Run runs, minus the WebSocket and job-control pieces
// that have no place in a library.
func (sc *capturedStdio) relayPTY() {
	if sc.pty == nil {
		return
	}
	sc.pipeDone = make(chan struct{})
	go func() {
		defer close(sc.pipeDone)
		io.Copy(os.Stdout, sc.pty.Master)
	}()
	go io.Copy(sc.pty.Master, os.Stdin)
}

// close releases the PTY master once the child has exited and the relay
// goroutine has drained whatever output remains.
func (sc *capturedStdio) close() {
	if sc.pty == nil {
		return
	}
	sc.pty.Master.Close()
	if sc.pipeDone != nil {
		<-sc.pipeDone
	}
}

// Stdout returns the captured standard output, populated only when the
// corresponding StdioMode was StdioPiped; it is safe to call only after
// Join has returned.
func (sc *capturedStdio) Stdout() []byte {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.stdout.Bytes()
}

// Stderr returns the captured standard error, populated only when the
// corresponding StdioMode was StdioPiped.
func (sc *capturedStdio) Stderr() []byte {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.stderr.Bytes()
}
