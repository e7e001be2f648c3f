package procspawn

import (
	"errors"
	"sync"
	"time"

	"github.com/go-procspawn/procspawn/internal/transport"
)

// JoinHandle represents a single outstanding call to a spawned child,
// analogous to the teacher's Relay plus its cmd.Wait() but parameterized
// over the child's typed result instead of an exit code (spec.md §2
// "JoinHandle", §8 property 4 "single result delivery").
type JoinHandle[R any] struct {
	proc *childProc
	cfg  Config

	once     sync.Once
	resultCh chan joinOutcome[R]

	mu       sync.Mutex
	cached   *joinOutcome[R]
}

type joinOutcome[R any] struct {
	value R
	err   error
}

func newJoinHandle[R any](proc *childProc, cfg Config) *JoinHandle[R] {
	h := &JoinHandle[R]{
		proc:     proc,
		cfg:      cfg,
		resultCh: make(chan joinOutcome[R], 1),
	}
	go h.receive()
	return h
}

// receive runs once per handle, reading the single result envelope (or
// detecting the child's silent exit) and reaping the process, then
// publishing the terminal outcome for every Join/JoinTimeout caller.
func (h *JoinHandle[R]) receive() {
	env, err := recvResult(h.proc.resultR)
	waitErr := h.proc.cmd.Wait()

	var outcome joinOutcome[R]
	switch {
	case h.proc.wasKilled():
		outcome.err = ErrKilled
	case err != nil:
		if transport.IsBenignCloseError(err) && waitErr == nil {
			outcome.err = ErrRemoteClose
		} else if transport.IsBenignCloseError(err) {
			outcome.err = errors.Join(ErrRemoteClose, waitErr)
		} else {
			outcome.err = errors.Join(ErrTransport, err)
		}
	case env.Kind == outcomeOK:
		if env.ResultFingerprint != typeFingerprint[R]() {
			outcome.err = ErrTypeMismatch
		} else {
			v, decErr := decodeValue[R](env.ResultBytes, env.ResultIsJSON)
			if decErr != nil {
				outcome.err = decErr
			} else {
				outcome.value = v
			}
		}
	default:
		outcome.err = resultToError(env)
	}

	h.proc.stdio.close()
	h.resultCh <- outcome
}

// Join blocks until the child's result is available, decoding it into R.
// Calling Join more than once, or concurrently with JoinTimeout, returns
// the same cached outcome every time (spec.md §8 property 4).
func (h *JoinHandle[R]) Join() (R, error) {
	h.mu.Lock()
	if h.cached != nil {
		c := *h.cached
		h.mu.Unlock()
		return c.value, c.err
	}
	h.mu.Unlock()

	outcome := <-h.resultCh
	h.store(outcome)
	return outcome.value, outcome.err
}

// JoinTimeout blocks for at most d before returning ErrTimedOut. The remote
// call is not cancelled; a later Join still observes its eventual outcome.
func (h *JoinHandle[R]) JoinTimeout(d time.Duration) (R, error) {
	h.mu.Lock()
	if h.cached != nil {
		c := *h.cached
		h.mu.Unlock()
		return c.value, c.err
	}
	h.mu.Unlock()

	select {
	case outcome := <-h.resultCh:
		h.store(outcome)
		return outcome.value, outcome.err
	case <-time.After(d):
		var zero R
		return zero, ErrTimedOut
	}
}

func (h *JoinHandle[R]) store(outcome joinOutcome[R]) {
	h.once.Do(func() {
		h.mu.Lock()
		h.cached = &outcome
		h.mu.Unlock()
	})
	// Re-publish so a second concurrent waiter that raced past the cached
	// check above still has something to receive.
	select {
	case h.resultCh <- outcome:
	default:
	}
}

// Kill forcibly terminates the child and blocks until it has been reaped:
// the signal alone isn't enough, since the actual cmd.Wait happens
// asynchronously inside receive. Safe to call multiple times, and safe to
// call after the child has already exited. A subsequent Join reports
// ErrKilled.
func (h *JoinHandle[R]) Kill() error {
	h.proc.kill()
	_, _ = h.Join()
	return nil
}

// Pid returns the child's process id, or 0 if the process has not started
// (which cannot happen for a handle obtained from Spawn, since Spawn only
// returns one after a successful cmd.Start).
func (h *JoinHandle[R]) Pid() int {
	if h.proc.cmd.Process == nil {
		return 0
	}
	return h.proc.cmd.Process.Pid
}

// Stdout returns the child's captured standard output. Only populated when
// Spawn was given WithStdout(StdioPiped); safe to call only after Join.
func (h *JoinHandle[R]) Stdout() []byte { return h.proc.stdio.Stdout() }

// Stderr returns the child's captured standard error. Only populated when
// Spawn was given WithStderr(StdioPiped); safe to call only after Join.
func (h *JoinHandle[R]) Stderr() []byte { return h.proc.stdio.Stderr() }
