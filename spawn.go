package procspawn

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Spawn runs fn(arg) in a freshly forked child process and returns a handle
// for retrieving its result, per spec.md §2's central operation. fn must
// already have been passed to Register at package scope; arg is encoded in
// the parent and decoded in the child, never shared memory.
func Spawn[A, R any](arg A, fn func(A) R, opts ...Option) (*JoinHandle[R], error) {
	cfg := buildConfig(opts)

	tok, err := tokenize(fn, cfg.EnumerateLibraries)
	if err != nil {
		return nil, err
	}

	argBytes, argIsJSON, err := encodeValue(arg)
	if err != nil {
		return nil, err
	}

	proc, err := startChild(markerSingle, cfg)
	if err != nil {
		return nil, err
	}

	call := CallEnvelope{
		Token:               tok,
		ArgumentBytes:       argBytes,
		ArgumentFingerprint: typeFingerprint[A](),
		ArgumentIsJSON:      argIsJSON,
		CaptureBacktraces:   cfg.CaptureBacktraces,
		BacktraceResolution: cfg.BacktraceResolution,
	}

	if err := sendCall(proc.callW, call); err != nil {
		proc.kill()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	return newJoinHandle[R](proc, cfg), nil
}

// childProc bundles the OS process and the two pipe ends the parent keeps,
// closing its copy of the fds the child inherited the other half of. This
// mirrors the teacher's Relay, which likewise owns a *exec.Cmd plus the
// parent-side ends of the descriptors it handed the child.
type childProc struct {
	cmd     *exec.Cmd
	callW   *os.File // parent writes calls here
	resultR *os.File // parent reads results here
	stdio   *capturedStdio

	mu     sync.Mutex
	killed bool
}

// startChild launches a re-exec of the current binary in the given marker
// mode, wiring up the call/result pipes as fd 3/4 via ExtraFiles, the same
// "pass a descriptor by position, not by name" technique the teacher's
// relay.go uses for its PTY slave.
func startChild(mode string, cfg Config) (*childProc, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: resolving own executable: %v", ErrSpawnFailed, err)
	}

	callR, callW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	resultR, resultW, err := os.Pipe()
	if err != nil {
		callR.Close()
		callW.Close()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	args := cfg.Args
	if args == nil {
		args = os.Args[1:]
	}
	cmd := exec.Command(exePath, args...)
	cmd.Env = append(childEnv(cfg), markerEnv+"="+mode)
	cmd.ExtraFiles = []*os.File{callR, resultW}

	configureStdio(cmd, cfg)
	sc := &capturedStdio{}
	attachPipedBuffers(cmd, cfg, sc)
	if err := attachPTY(cmd, cfg, sc); err != nil {
		callR.Close()
		callW.Close()
		resultR.Close()
		resultW.Close()
		return nil, fmt.Errorf("%w: allocating pty: %v", ErrSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		callR.Close()
		callW.Close()
		resultR.Close()
		resultW.Close()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	// The child owns callR and resultW now; the parent's copies just hold
	// the fds open across exec and must be released immediately after.
	callR.Close()
	resultW.Close()
	if sc.pty != nil {
		sc.pty.Slave.Close()
		sc.relayPTY()
	}

	return &childProc{cmd: cmd, callW: callW, resultR: resultR, stdio: sc}, nil
}

// childEnv returns the child's base environment: cfg.Env if the caller
// supplied one, otherwise the parent's own environment with any stale
// marker variable stripped, so a child spawned from inside a worker never
// inherits worker mode by accident.
func childEnv(cfg Config) []string {
	if cfg.Env != nil {
		return append([]string{}, cfg.Env...)
	}
	env := os.Environ()
	out := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, markerEnv+"=") {
			out = append(out, e)
		}
	}
	return out
}

// configureStdio wires cmd's three standard streams according to cfg,
// supporting the inherit/null/piped modes directly and delegating PTY
// allocation to internal/stdio.
func configureStdio(cmd *exec.Cmd, cfg Config) {
	applyStdioMode(cmd, cfg.Stdin, stdioStreamIn)
	applyStdioMode(cmd, cfg.Stdout, stdioStreamOut)
	applyStdioMode(cmd, cfg.Stderr, stdioStreamErr)
}

func (p *childProc) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed {
		return
	}
	p.killed = true
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
}

func (p *childProc) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}
