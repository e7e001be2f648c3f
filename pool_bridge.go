package procspawn

import (
	"time"

	"github.com/go-procspawn/procspawn/internal/plog"
)

// This file is the seam between the root package's unexported dispatch
// machinery and the pool subpackage: a small set of exported primitives a
// long-lived worker pool needs and an ordinary one-shot Spawn does not,
// kept separate from the main API so godoc's overview stays about Spawn
// and JoinHandle. The shape mirrors database/sql's driver package: a
// narrow low-level surface one specific caller builds pooling on top of,
// rather than exporting the envelope/codec internals wholesale.

// WorkerProcess is a long-lived re-exec'd child ready to service an
// indefinite stream of calls over its inherited pipes, the primitive
// pool.Pool is built on.
type WorkerProcess struct {
	proc *childProc
}

// StartWorkerProcess launches a child in pool-worker mode: it will run
// runWorkerLoop until it receives a close frame or its pipe breaks.
func StartWorkerProcess(cfg Config) (*WorkerProcess, error) {
	proc, err := startChild(markerPool, cfg)
	if err != nil {
		return nil, err
	}
	return &WorkerProcess{proc: proc}, nil
}

// Pid returns the worker's process id.
func (w *WorkerProcess) Pid() int {
	if w.proc.cmd.Process == nil {
		return 0
	}
	return w.proc.cmd.Process.Pid
}

// SendCall forwards one call envelope to the worker.
func (w *WorkerProcess) SendCall(env CallEnvelope) error { return sendCall(w.proc.callW, env) }

// RecvResult blocks for the worker's next result envelope.
func (w *WorkerProcess) RecvResult() (ResultEnvelope, error) { return recvResult(w.proc.resultR) }

// SendClose sends the graceful shutdown frame.
func (w *WorkerProcess) SendClose() error { return sendClose(w.proc.callW) }

// Kill forcibly terminates the worker.
func (w *WorkerProcess) Kill() { w.proc.kill() }

// Wait blocks until the worker process has exited and released its
// resources. Must be called exactly once per WorkerProcess.
func (w *WorkerProcess) Wait() error { return w.proc.cmd.Wait() }

// WaitBounded reaps the worker, forcibly killing it if it has not exited on
// its own within grace (the worker Config's KillGracePeriod) — used on the
// pool's graceful-shutdown path,
// where a worker that ignores the close frame must not hang Shutdown.
func (w *WorkerProcess) WaitBounded(grace time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- w.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		plog.Printf("worker pid %d did not exit within grace period, killing", w.Pid())
		w.Kill()
		return <-done
	}
}

// TokenizeFunc resolves a registered function to its wire token. Exported
// for pool.Spawn, which needs to do this outside the root package.
func TokenizeFunc(fn any, enumerateLibraries bool) (FuncToken, error) {
	return tokenize(fn, enumerateLibraries)
}

// EncodeArg encodes a call argument the same way Spawn does.
func EncodeArg[A any](v A) (data []byte, isJSON bool, err error) { return encodeValue(v) }

// DecodeResult decodes a result the same way JoinHandle.Join does.
func DecodeResult[R any](data []byte, isJSON bool) (R, error) { return decodeValue[R](data, isJSON) }

// ArgFingerprint returns A's wire type fingerprint.
func ArgFingerprint[A any]() string { return typeFingerprint[A]() }

// ResultFingerprint returns R's wire type fingerprint.
func ResultFingerprint[R any]() string { return typeFingerprint[R]() }

// EnvelopeError converts a non-OK ResultEnvelope into the error a caller
// should observe, the same mapping dispatch.go's resultToError performs
// for the one-shot path.
func EnvelopeError(env ResultEnvelope) error { return resultToError(env) }

// EnvelopeIsOK reports whether env carries a successful result.
func EnvelopeIsOK(env ResultEnvelope) bool { return env.Kind == outcomeOK }

// BuildConfig applies opts over the default Config, the same construction
// Spawn itself uses, exported so callers building their own worker
// supervisor (such as package pool) configure workers identically.
func BuildConfig(opts []Option) Config { return buildConfig(opts) }
