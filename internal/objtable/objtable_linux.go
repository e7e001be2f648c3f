//go:build linux

package objtable

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Enumerate parses /proc/self/maps for executable mappings, the same
// source other_examples' gvisor/aistore/subtrace entries reach for when
// they need to reason about a process's own mapped objects. Each distinct
// backing file becomes one Object, keyed by its path (build-id would be
// more precise, but a path is sufficient identity within one machine image
// and is what spec.md §4.1 allows as "library identity").
func Enumerate() ([]Object, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bases := make(map[string]uintptr)
	ends := make(map[string]uintptr)
	order := make([]string, 0, 8)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		perms := fields[1]
		if !strings.Contains(perms, "x") {
			continue // only executable mappings carry function code
		}
		path := fields[5]
		if path == "" {
			continue
		}
		rng := strings.SplitN(fields[0], "-", 2)
		if len(rng) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(rng[0], 16, 64)
		end, err2 := strconv.ParseUint(rng[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if _, seen := bases[path]; !seen {
			bases[path] = uintptr(start)
			order = append(order, path)
		} else if uintptr(start) < bases[path] {
			bases[path] = uintptr(start)
		}
		if uintptr(end) > ends[path] {
			ends[path] = uintptr(end)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	objs := make([]Object, 0, len(order))
	for _, path := range order {
		objs = append(objs, Object{
			Identity: path,
			Base:     bases[path],
			Size:     ends[path] - bases[path],
		})
	}
	return objs, nil
}

// EnumerateMain returns the base address of the main executable's own
// mapping, used for the MainOnly/no-enumeration token variant.
func EnumerateMain() (uintptr, error) {
	exe, err := os.Readlink("/proc/self/exe")
	if err != nil {
		return 0, err
	}
	objs, err := Enumerate()
	if err != nil {
		return 0, err
	}
	for _, o := range objs {
		if o.Identity == exe {
			return o.Base, nil
		}
	}
	return 0, ErrNotFound
}
