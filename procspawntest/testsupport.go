// Package procspawntest wires procspawn into a package's test binary. Since
// Spawn always re-execs os.Executable(), under `go test` that executable is
// the compiled test binary itself — so the worker-mode interception has to
// happen before testing.M gets anywhere near its own flags, the same
// "resolve what this process actually is before doing anything else"
// concern the teacher's os_sandbox StartWorker applies to locating its own
// binary across a re-exec boundary.
package procspawntest

import (
	"os"
	"testing"

	"github.com/go-procspawn/procspawn"
)

// Main should be called from a package's TestMain:
//
//	func TestMain(m *testing.M) { procspawntest.Main(m) }
//
// In a normal `go test` invocation it runs the suite as usual. In a child
// re-exec'd by Spawn or a Pool it instead services calls and exits,
// exactly as procspawn.Init does for any other binary.
func Main(m *testing.M) {
	procspawn.Init()
	os.Exit(m.Run())
}
