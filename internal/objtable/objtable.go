// Package objtable enumerates the loaded objects (main executable plus
// shared libraries) mapped into the current process, so a function's
// absolute address can be translated to (object identity, offset) in the
// parent and back to an absolute address in the child.
//
// This is the one piece of spec.md's "shared-library enumeration library"
// external collaborator that this implementation provides directly,
// scoped to exactly what the Function Registry (C1) needs: a sorted list
// of mapped ranges with a stable identity per object. Full symbol
// resolution is out of scope.
package objtable

import "fmt"

// Object describes one mapped executable object.
type Object struct {
	Identity string // stable identity: the mapped file's path (main executable only, outside Linux)
	Base     uintptr
	Size     uintptr
}

// ErrNotFound is returned by Lookup/Resolve when no mapped object matches.
var ErrNotFound = fmt.Errorf("objtable: no mapped object found")

// Lookup finds the object containing addr and returns its identity and the
// offset of addr within it.
func Lookup(addr uintptr) (identity string, offset uintptr, err error) {
	objs, err := Enumerate()
	if err != nil {
		return "", 0, err
	}
	for _, o := range objs {
		if addr >= o.Base && addr < o.Base+o.Size {
			return o.Identity, addr - o.Base, nil
		}
	}
	return "", 0, ErrNotFound
}

// Resolve finds the base address of the object matching identity.
func Resolve(identity string) (base uintptr, err error) {
	objs, err := Enumerate()
	if err != nil {
		return 0, err
	}
	for _, o := range objs {
		if o.Identity == identity {
			return o.Base, nil
		}
	}
	return 0, ErrNotFound
}
