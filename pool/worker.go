package pool

import (
	"time"

	"github.com/go-procspawn/procspawn"
	"github.com/go-procspawn/procspawn/internal/plog"
	"github.com/go-procspawn/procspawn/internal/transport"
)

// runWorker owns one slot in the pool for the pool's entire lifetime: it
// starts a child process, services tasks from the shared queue until the
// child dies or the queue closes, and restarts a fresh child after a crash
// — the same "losing a connection means losing a Worker, not the whole
// server" recovery the teacher's runDispatcher triggers by marking dead
// and letting the caller start over, generalized here to restart in place
// instead of surfacing the death to the caller.
func (p *Pool) runWorker(idx int) {
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		p.setState(idx, stateStarting)
		wp, err := procspawn.StartWorkerProcess(workerConfig(p.cfg))
		if err != nil {
			// Transient failure (e.g. fork temporarily refused); back off
			// briefly rather than spinning a hot loop.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if !p.serve(idx, wp) {
			return
		}
	}
}

// serve runs one child's service loop: pull a task, forward it, relay the
// result, repeat. Returns false when the pool itself is shutting down
// (caller should stop restarting); true when the child died mid-service
// and a replacement should be started.
func (p *Pool) serve(idx int, wp *procspawn.WorkerProcess) bool {
	grace := workerConfig(p.cfg).KillGracePeriod
	defer wp.WaitBounded(grace)

	p.setState(idx, stateIdle)

	for {
		select {
		case <-p.ctx.Done():
			wp.Kill()
			return false

		case task, ok := <-p.tasks:
			if !ok {
				wp.SendClose()
				return false
			}

			p.setState(idx, stateBusy)
			result, alive := p.forward(wp, task)
			task.state.clear()
			task.resultCh <- result
			if !alive {
				p.setState(idx, stateDead)
				wp.Kill()
				return true
			}
			p.setState(idx, stateIdle)
		}
	}
}

// forward sends one call to wp and waits for its result, reporting whether
// the worker is still usable afterward. When the pool is configured with a
// WorkerLivenessTimeout, a worker that has not answered within that bound
// is treated exactly like a dead worker: the in-flight task resolves to
// ErrTransport and the caller kills and replaces the worker
// (spec.md §4.7, SPEC_FULL.md's supplemented worker liveness timeout).
// When the pool is killed while the call is in flight, the task resolves
// to ErrKilled and the caller kills the worker.
//
// Before dispatching anything, forward checks whether Task.Kill already
// fired while this task was still sitting in the queue: if so wp is left
// untouched (it never ran this call) and the task resolves to ErrKilled
// directly. Once dispatch begins, task.state.assign publishes wp so a
// concurrent Kill can find and terminate it; a RecvResult failure that
// coincides with a kill request is reported as ErrKilled rather than the
// generic transport/close outcome a crash would get.
func (p *Pool) forward(wp *procspawn.WorkerProcess, task rawTask) (rawResult, bool) {
	if !task.state.assign(wp) {
		return rawResult{err: procspawn.ErrKilled}, true
	}

	if err := wp.SendCall(task.env); err != nil {
		return rawResult{err: procspawn.ErrTransport}, false
	}

	type recvOutcome struct {
		env procspawn.ResultEnvelope
		err error
	}
	done := make(chan recvOutcome, 1)
	go func() {
		env, err := wp.RecvResult()
		done <- recvOutcome{env: env, err: err}
	}()

	timeout := p.cfg.WorkerLivenessTimeout
	var timer <-chan time.Time
	if timeout > 0 {
		timer = time.After(timeout)
	}
	var out recvOutcome
	var timedOut bool
	select {
	case out = <-done:
	case <-timer:
		timedOut = true
	case <-p.ctx.Done():
		return rawResult{err: procspawn.ErrKilled}, false
	}

	if timedOut {
		plog.Printf("worker pid %d missed liveness timeout %s on task %s, killing", wp.Pid(), timeout, task.id)
		return rawResult{err: procspawn.ErrTransport}, false
	}
	if out.err != nil {
		if task.state.isKilled() {
			return rawResult{err: procspawn.ErrKilled}, false
		}
		return rawResult{err: recvErrToOutcome(out.err)}, false
	}
	return rawResult{env: out.env}, true
}

// recvErrToOutcome maps a RecvResult failure to RemoteClose when it looks
// like the ordinary "child exited without reporting" case (spec.md §7) and
// to a generic transport error otherwise, the same distinction
// JoinHandle.receive makes for the single-shot path.
func recvErrToOutcome(err error) error {
	if transport.IsBenignCloseError(err) {
		return procspawn.ErrRemoteClose
	}
	return procspawn.ErrTransport
}

// workerConfig applies the pool's WorkerOptions over the defaults, the same
// construction Spawn uses for a one-shot child; no option is stripped.
func workerConfig(cfg Config) procspawn.Config {
	return procspawn.BuildConfig(cfg.WorkerOptions)
}
