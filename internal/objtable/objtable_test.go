package objtable

import (
	"os"
	"reflect"
	"runtime"
	"testing"
)

func TestEnumerateFindsTheRunningBinary(t *testing.T) {
	objs, err := Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(objs) == 0 {
		t.Fatal("expected at least one mapped object")
	}
	for _, o := range objs {
		if o.Identity == "" {
			t.Error("expected every object to carry a non-empty identity")
		}
		if o.Size == 0 {
			t.Errorf("object %q reported zero size", o.Identity)
		}
	}
}

func TestLookupOwnFunction(t *testing.T) {
	addr := reflect.ValueOf(TestLookupOwnFunction).Pointer()
	identity, offset, err := Lookup(addr)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if identity == "" {
		t.Fatal("expected a non-empty identity for the running test binary")
	}
	base, err := Resolve(identity)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if base+offset != addr {
		t.Fatalf("base+offset (%#x) does not reconstruct addr (%#x)", base+offset, addr)
	}
}

func TestLookupUnmappedAddressIsNotFound(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("the non-Linux fallback table covers every address by design")
	}
	if _, _, err := Lookup(0x1); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for an address near zero, got %v", err)
	}
}

func TestEnumerateMainMatchesOwnExecutable(t *testing.T) {
	base, err := EnumerateMain()
	if err != nil {
		t.Skipf("EnumerateMain unsupported on this platform: %v", err)
	}
	if runtime.GOOS != "linux" {
		// Without real image enumeration, non-Linux platforms report a
		// sentinel base of 0 rather than erroring.
		return
	}
	if base == 0 {
		t.Fatal("expected a non-zero base address for the main executable")
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
