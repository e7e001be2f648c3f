// Package plog provides the ambient, per-process file logger used
// throughout procspawn. Grounded on main.go's "log to a file, never
// stdout" discipline in the teacher (stdout/stderr may be a live PTY, a
// captured pipe, or the user function's own output, so the library must
// never write to it on its own behalf).
package plog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu      sync.Mutex
	current *log.Logger
)

// Logger returns the process-wide logger, initializing it on first use to
// write to a temp-dir file keyed by pid, the same naming scheme as
// main.go's greenlight-<pid>.log.
func Logger() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return current
	}
	current = log.New(io.Discard, "procspawn: ", log.LstdFlags|log.Lmicroseconds)
	if path := os.Getenv("PROCSPAWN_LOG"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			current.SetOutput(f)
			return current
		}
	}
	path := filepath.Join(os.TempDir(), fmt.Sprintf("procspawn-%d.log", os.Getpid()))
	if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		current.SetOutput(f)
	}
	return current
}

// Printf logs through the process-wide logger.
func Printf(format string, args ...any) {
	Logger().Printf(format, args...)
}
