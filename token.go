package procspawn

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-procspawn/procspawn/internal/objtable"
)

// FuncToken is the wire-transmissible identity of a function value: its
// runtime-assigned name (stable within one compiled binary, used for
// dispatch) plus its address relative to the base of the loaded object
// that contains it and that object's identity (used to validate, in the
// child, that the same object is mapped at the address the parent
// observed) — spec.md §3 "Function Token".
type FuncToken struct {
	Name     string
	Offset   uintptr
	Library  string // object identity; empty when MainOnly is set
	MainOnly bool   // simplified token: validation skipped, per §4.1(b)
}

var safeAsserted atomic.Bool

// AssertSpawnIsSafe must be called before the first Spawn when shared-
// library validation has been disabled via WithoutLibraryEnumeration, per
// spec.md §6. It is the caller's attestation that every spawned function
// lives in the main executable, never a shared library.
func AssertSpawnIsSafe() {
	safeAsserted.Store(true)
}

// closureSuffix matches the trailing ".funcN" (and nested ".funcN.M"...)
// segments the Go compiler appends to the names of function literals.
// A bare top-level function or a method expression has no such suffix.
// This is a heuristic, not a compiler guarantee — spec.md §4.1/§9 calls
// for rejecting captures "at construction time", and this is the
// reflection-only signal available to do it without cooperation from the
// compiler.
var closureSuffix = regexp.MustCompile(`\.func\d+(\.\d+)*$`)

// ---- registry: the Go-idiomatic realization of "rendezvous without
// shipping code" ----
//
// A raw (library_identity, offset) token is enough to prove, in the
// child, that the *same object* is mapped at the *same address* as in the
// parent — but Go offers no safe way to turn a bare program counter back
// into a callable value of a statically-known signature (no public
// runtime API constructs a func(A) R from a PC; the closest tool,
// reconstructing the runtime's internal funcval representation via
// unsafe.Pointer, depends on undocumented layout and was rejected as the
// dispatch mechanism here). Instead, spawn-safe functions are registered
// once, under their stable runtime name, via Register — the same
// name-keyed-registration idiom encoding/gob uses for types and net/rpc
// uses for methods (both present in this pack's reference material). The
// registration call runs during package initialization, which happens
// identically in the parent and in every re-exec'd child before Init ever
// looks at the marker variable, so the registry a child needs already
// exists by the time it starts dispatching. The address/offset in
// FuncToken is still carried; the child checks that the object named by
// the token is mapped (validateToken), but does not compare the offset
// against its own address for the function.
type invoker func(argBytes []byte, argIsJSON bool) (resultBytes []byte, resultIsJSON bool, err error)

type registryEntry struct {
	invoke            invoker
	resultFingerprint string
}

var registry sync.Map // name string -> *registryEntry

// Register makes fn callable by a child process. Call it once at package
// scope for every function you intend to pass to Spawn or pool.Spawn:
//
//	var _ = procspawn.Register(Sum)
//
//	func Sum(nums []int) int { ... }
//
// fn must be a non-capturing function pointer (a named top-level function
// or a method expression); registering a closure that captures local
// state panics, since such state could never be faithfully reconstructed
// in the child.
func Register[A, R any](fn func(A) R) bool {
	name, err := funcName(fn)
	if err != nil {
		panic(err)
	}
	registry.Store(name, &registryEntry{
		resultFingerprint: typeFingerprint[R](),
		invoke: func(argBytes []byte, argIsJSON bool) ([]byte, bool, error) {
			arg, err := decodeValue[A](argBytes, argIsJSON)
			if err != nil {
				return nil, false, err
			}
			result := fn(arg)
			resultBytes, resultIsJSON, err := encodeValue(result)
			if err != nil {
				return nil, false, err
			}
			return resultBytes, resultIsJSON, nil
		},
	})
	return true
}

func funcName(fn any) (string, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return "", ErrNotAFunction
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return "", ErrNotAFunction
	}
	if closureSuffix.MatchString(rf.Name()) {
		return "", fmt.Errorf("%w: %s appears to capture local state", ErrNotAFunction, rf.Name())
	}
	return rf.Name(), nil
}

// tokenize resolves fn to a FuncToken, requiring it to have already been
// passed to Register.
func tokenize(fn any, enumerate bool) (FuncToken, error) {
	name, err := funcName(fn)
	if err != nil {
		return FuncToken{}, err
	}
	if _, ok := registry.Load(name); !ok {
		return FuncToken{}, fmt.Errorf("%w: %s was never passed to procspawn.Register", ErrNotAFunction, name)
	}

	pc := reflect.ValueOf(fn).Pointer()

	if !enumerate {
		if !safeAsserted.Load() {
			return FuncToken{}, fmt.Errorf("procspawn: library enumeration disabled without AssertSpawnIsSafe")
		}
		mainBase, _ := objtable.EnumerateMain()
		return FuncToken{Name: name, Offset: pc - mainBase, MainOnly: true}, nil
	}

	identity, offset, err := objtable.Lookup(pc)
	if err != nil {
		return FuncToken{}, fmt.Errorf("procspawn: resolving function address: %w", err)
	}
	return FuncToken{Name: name, Offset: offset, Library: identity}, nil
}

// lookupInvoker returns the registered invoker for tok, validating its
// address against the current process's own object table first.
func lookupInvoker(tok FuncToken) (*registryEntry, error) {
	if err := validateToken(tok); err != nil {
		return nil, err
	}
	v, ok := registry.Load(tok.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not registered in this process", ErrLibraryMissing, tok.Name)
	}
	return v.(*registryEntry), nil
}

// validateToken confirms the function's containing object is mapped in
// this process. The token's offset is not checked against that object's
// base. MainOnly tokens skip validation entirely, per the caller's
// AssertSpawnIsSafe attestation.
func validateToken(tok FuncToken) error {
	if tok.MainOnly {
		return nil
	}
	base, err := objtable.Resolve(tok.Library)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLibraryMissing, tok.Library, err)
	}
	_ = base // the base is not used further; the registry lookup in
	// lookupInvoker is what actually dispatches the call.
	return nil
}
