package procspawn

import (
	"os"

	"github.com/go-procspawn/procspawn/internal/plog"
	"github.com/go-procspawn/procspawn/internal/transport"
)

// markerEnv is set by Spawn/Pool on the child's environment before exec and
// erased from os.Environ before user code ever runs, so that a grandchild
// launched by that user code never mistakenly re-enters worker mode — the
// same "strip our own vars before handing control to the child" discipline
// the teacher's relay.go applies to its own GREENLIGHT_ prefix.
const markerEnv = "PROCSPAWN_WORKER"

const (
	markerSingle = "single"
	markerPool   = "pool"
)

// callReadFD and resultWriteFD are the fixed descriptor indices a worker
// inherits via exec.Cmd.ExtraFiles: index 0 lands at fd 3 (after the three
// standard streams), index 1 at fd 4.
const (
	callReadFD    = 3
	resultWriteFD = 4
)

// Init must be called at the very top of main, before any flag parsing or
// other startup work, in every program that calls Spawn or builds a Pool.
// In a normal run (the marker variable unset) it returns immediately and
// main proceeds as usual. In a re-exec'd worker, it erases the marker,
// attaches the inherited pipe, dispatches exactly the calls it is asked to
// (one for a bare Spawn, a loop of them for a Pool worker), and then calls
// os.Exit — it never returns to the caller's main in that case.
func Init() {
	mode, ok := os.LookupEnv(markerEnv)
	if !ok {
		return
	}
	os.Unsetenv(markerEnv)

	callR := os.NewFile(callReadFD, "procspawn-call")
	resultW := os.NewFile(resultWriteFD, "procspawn-result")
	defer callR.Close()
	defer resultW.Close()

	switch mode {
	case markerSingle:
		runSingleShot(callR, resultW)
	case markerPool:
		runWorkerLoop(callR, resultW)
	default:
		plog.Printf("unknown worker mode %q, exiting", mode)
		os.Exit(1)
	}
	os.Exit(0)
}

// runSingleShot services exactly one call, then returns so Init can exit
// the process. This is the mode a bare top-level Spawn uses.
func runSingleShot(callR, resultW *os.File) {
	env, closed, err := recvCall(callR)
	if closed {
		return
	}
	if err != nil {
		plog.Printf("reading call envelope: %v", err)
		os.Exit(1)
	}

	result := dispatchCall(env)
	if err := sendResult(resultW, result); err != nil {
		plog.Printf("sending result envelope: %v", err)
		os.Exit(1)
	}
}

// runWorkerLoop services calls until the parent sends a close frame or the
// pipe itself breaks, the mode a long-lived Pool worker runs in.
func runWorkerLoop(callR, resultW *os.File) {
	for {
		env, closed, err := recvCall(callR)
		if closed {
			return
		}
		if err != nil {
			if !transport.IsBenignCloseError(err) {
				plog.Printf("worker loop: reading call envelope: %v", err)
			}
			return
		}

		result := dispatchCall(env)
		if err := sendResult(resultW, result); err != nil {
			if !transport.IsBenignCloseError(err) {
				plog.Printf("worker loop: sending result envelope: %v", err)
			}
			return
		}
	}
}
