//go:build !linux

package objtable

import "os"

// Enumerate has no portable equivalent of /proc/self/maps outside Linux in
// this implementation (dyld/Mach-O image enumeration on Darwin is the
// external "shared-library enumeration library" spec.md §1 calls out of
// scope). It falls back to a single-entry table naming only the main
// executable, which is sufficient for the EnumerateLibraries=false /
// AssertSpawnIsSafe contract in spec.md §4.1(b).
func Enumerate() ([]Object, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return []Object{{Identity: exe, Base: 0, Size: ^uintptr(0)}}, nil
}

// EnumerateMain returns 0: without real image enumeration there is no way
// to learn the main executable's actual load base on this platform, so
// MainOnly tokens are only sound here when ASLR is disabled or ignored,
// matching the "mismatches are undefined behavior" caveat in spec.md §4.1.
func EnumerateMain() (uintptr, error) {
	return 0, nil
}
