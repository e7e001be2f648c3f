package procspawn

import (
	"fmt"
	"runtime"
	"strings"
)

// capturePanic builds a ResultEnvelope from a recovered panic value. It is
// called from the single dispatch-frame recover() boundary in dispatch.go's
// dispatchCall, which serves both single-shot and pool-worker children,
// mirroring the recover-then-structure-an-error
// pattern in other_examples' wingthing gRPC interceptors
// (recoveryUnary/recoveryStream): never let the panic escape past this
// frame as a process-terminating signal.
func capturePanic(recovered any, captureBacktrace bool, resolution BacktraceResolution) ResultEnvelope {
	msg := fmt.Sprint(recovered)

	// Skip runtime.Callers, capturePanic itself and its caller's deferred
	// func, then any runtime frames (gopanic and runtime panic helpers),
	// landing on the frame that panicked.
	var loc Location
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	callerFrames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := callerFrames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			loc = Location{File: f.File, Line: f.Line}
			break
		}
		if !more {
			break
		}
	}

	env := ResultEnvelope{
		Kind:          outcomePanic,
		PanicMessage:  msg,
		PanicLocation: loc,
	}

	if captureBacktrace {
		env.PanicBacktrace = captureBacktraceFrames(resolution)
	}
	return env
}

// captureBacktraceFrames records a backtrace at the panic site. By default
// it keeps raw {pc, file, line} triples (BacktraceRaw); the
// BacktraceSymbolicated option additionally records each frame's function
// name as reported by runtime.CallersFrames. Full symbolication across the rebuilt call chain is
// the "backtrace capture/symbolication library" spec.md §1 treats as an
// external collaborator, so this goes only as far as the stdlib runtime
// package allows.
func captureBacktraceFrames(resolution BacktraceResolution) []Frame {
	const maxFrames = 64
	pcs := make([]uintptr, maxFrames)
	// Skip runtime.Callers, captureBacktraceFrames, and capturePanic.
	n := runtime.Callers(3, pcs)
	pcs = pcs[:n]

	frames := make([]Frame, 0, n)
	callerFrames := runtime.CallersFrames(pcs)
	for {
		f, more := callerFrames.Next()
		frame := Frame{PC: f.PC, File: f.File, Line: f.Line}
		if resolution == BacktraceSymbolicated {
			frame.Symbol = f.Function
		}
		frames = append(frames, frame)
		if !more {
			break
		}
	}
	return frames
}

// reconstructRemotePanic turns a Panic ResultEnvelope back into a parent-
// side error, per spec.md §8 property 2 ("panic faithfulness").
func reconstructRemotePanic(env ResultEnvelope) error {
	return &RemotePanicError{
		Message:   env.PanicMessage,
		Location:  env.PanicLocation,
		Backtrace: env.PanicBacktrace,
	}
}
