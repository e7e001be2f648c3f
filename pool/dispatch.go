package pool

import (
	"sync"
	"time"

	"github.com/go-procspawn/procspawn"
)

// Task is a pending call dispatched to a pool, analogous to a
// procspawn.JoinHandle but backed by a reused worker process instead of a
// one-shot child. Go does not allow a method to introduce its own type
// parameters, so Task's typed decode step is carried here rather than on a
// generic method of Pool; Spawn is the generic entry point instead.
type Task[R any] struct {
	raw rawTask

	once   sync.Once
	mu     sync.Mutex
	cached *rawResult
}

// Spawn submits fn(arg) to p, returning a Task that will eventually carry
// fn's result. fn must already have been registered with procspawn.Register
// in this binary. Spawn itself never blocks the caller on fn's execution,
// only (depending on the pool's backpressure policy) on finding room in the
// queue.
func Spawn[A, R any](p *Pool, arg A, fn func(A) R, opts ...procspawn.Option) (*Task[R], error) {
	cfg := procspawn.BuildConfig(opts)

	tok, err := procspawn.TokenizeFunc(fn, cfg.EnumerateLibraries)
	if err != nil {
		return nil, err
	}
	argBytes, argIsJSON, err := procspawn.EncodeArg(arg)
	if err != nil {
		return nil, err
	}

	env := procspawn.CallEnvelope{
		Token:               tok,
		ArgumentBytes:       argBytes,
		ArgumentFingerprint: procspawn.ArgFingerprint[A](),
		ArgumentIsJSON:      argIsJSON,
		CaptureBacktraces:   cfg.CaptureBacktraces,
		BacktraceResolution: cfg.BacktraceResolution,
	}

	raw, err := p.enqueue(env)
	if err != nil {
		return nil, err
	}
	return &Task[R]{raw: raw}, nil
}

// Join blocks until the task's result is available, decoding it into R.
// Calling Join more than once, or concurrently with JoinTimeout, returns
// the same cached outcome every time — the same single-result-delivery
// guarantee procspawn.JoinHandle.Join makes, since t.raw.resultCh is a
// single-send, buffered-1 channel filled exactly once by the pool's
// dispatcher.
func (t *Task[R]) Join() (R, error) {
	t.mu.Lock()
	if t.cached != nil {
		c := *t.cached
		t.mu.Unlock()
		return decodeOutcome[R](c)
	}
	t.mu.Unlock()

	outcome := <-t.raw.resultCh
	t.store(outcome)
	return decodeOutcome[R](outcome)
}

// JoinTimeout blocks for at most d before returning procspawn.ErrTimedOut.
// The task is not cancelled by a timeout; a later Join still observes its
// eventual outcome.
func (t *Task[R]) JoinTimeout(d time.Duration) (R, error) {
	t.mu.Lock()
	if t.cached != nil {
		c := *t.cached
		t.mu.Unlock()
		return decodeOutcome[R](c)
	}
	t.mu.Unlock()

	select {
	case outcome := <-t.raw.resultCh:
		t.store(outcome)
		return decodeOutcome[R](outcome)
	case <-time.After(d):
		var zero R
		return zero, procspawn.ErrTimedOut
	}
}

// store caches outcome so every later Join/JoinTimeout call returns it
// without touching the channel again, then republishes it so a second
// concurrent waiter that raced past the cached check above still has
// something to receive — the same pattern procspawn.JoinHandle.store uses.
func (t *Task[R]) store(outcome rawResult) {
	t.once.Do(func() {
		t.mu.Lock()
		t.cached = &outcome
		t.mu.Unlock()
	})
	select {
	case t.raw.resultCh <- outcome:
	default:
	}
}

// Kill forcibly terminates whichever worker process is currently running
// this task, and blocks until that task's outcome has been decided —
// mirroring procspawn.JoinHandle.Kill's "send a termination signal, reap,
// then return" contract (spec.md's JoinHandle surface applies identically
// to a Pool Task). Safe to call multiple times, and safe to call after the
// task has already completed: a task that finished before Kill was called
// is left alone entirely, since by then its worker may already be serving
// a different caller's task. A subsequent Join reports ErrKilled, unless
// the task had already completed successfully before Kill was requested.
func (t *Task[R]) Kill() error {
	t.mu.Lock()
	if t.cached != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if wp := t.raw.state.requestKill(); wp != nil {
		wp.Kill()
	}

	_, _ = t.Join()
	return nil
}

// Pid returns the process id of the worker currently running this task, or
// 0 if no worker has started serving it yet (it may still be queued) or it
// has already completed. Unlike procspawn.JoinHandle.Pid, which is
// populated the instant Spawn returns, a Task's pid is only meaningful
// once the pool's dispatcher has actually picked it up.
func (t *Task[R]) Pid() int {
	t.raw.state.mu.Lock()
	wp := t.raw.state.assigned
	t.raw.state.mu.Unlock()
	if wp == nil {
		return 0
	}
	return wp.Pid()
}

func decodeOutcome[R any](outcome rawResult) (R, error) {
	var zero R
	if outcome.err != nil {
		return zero, outcome.err
	}
	if !procspawn.EnvelopeIsOK(outcome.env) {
		return zero, procspawn.EnvelopeError(outcome.env)
	}
	if outcome.env.ResultFingerprint != procspawn.ResultFingerprint[R]() {
		return zero, procspawn.ErrTypeMismatch
	}
	return procspawn.DecodeResult[R](outcome.env.ResultBytes, outcome.env.ResultIsJSON)
}
