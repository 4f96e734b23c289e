package vm

import (
	"bytes"
	"testing"
)

func TestHeapBoxDeref(t *testing.T) {
	h := NewHeap()

	a := h.Box([]byte{1, 2, 3})
	b := h.Box([]byte{4})
	if a == 0 || b == 0 || a == b {
		t.Fatalf("addresses = %d, %d; want distinct non-null handles", a, b)
	}
	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}

	block, ok := h.Deref(a)
	if !ok || !bytes.Equal(block, []byte{1, 2, 3}) {
		t.Errorf("Deref(a) = %v, %v", block, ok)
	}

	// Boxing copies: mutating the source afterward must not show
	// through.
	src := []byte{9, 9}
	addr := h.Box(src)
	src[0] = 0
	block, _ = h.Deref(addr)
	if block[0] != 9 {
		t.Error("boxed block aliases the source")
	}
}

func TestHeapDerefNull(t *testing.T) {
	h := NewHeap()
	h.Box([]byte{1})

	if _, ok := h.Deref(0); ok {
		t.Error("Deref(0) succeeded, want null failure")
	}
	if _, ok := h.Deref(99); ok {
		t.Error("Deref of unissued handle succeeded")
	}
}

func TestAddrEncoding(t *testing.T) {
	for _, a := range []Addr{0, 1, 0xDEADBEEF, 1 << 40} {
		if got := DecodeAddr(EncodeAddr(a)); got != a {
			t.Errorf("round trip of %d = %d", a, got)
		}
	}
	if got := DecodeAddr([]byte{1, 2}); got != 0 {
		t.Errorf("short decode = %d, want null", got)
	}
}

func TestLiteralPool(t *testing.T) {
	entries := map[uint32][]byte{
		3: {0xAA, 0xBB},
		1: {0x01},
	}
	pool := NewLiteralPool(entries)

	if pool.Len() != 2 {
		t.Errorf("Len = %d, want 2", pool.Len())
	}

	view, ok := pool.At(3)
	if !ok || !bytes.Equal(view.Bytes(), []byte{0xAA, 0xBB}) {
		t.Errorf("At(3) = %v, %v", view.Bytes(), ok)
	}
	if _, ok := pool.At(7); ok {
		t.Error("At(7) succeeded for undeclared index")
	}

	indices := pool.Indices()
	if len(indices) != 2 || indices[0] != 1 || indices[1] != 3 {
		t.Errorf("Indices = %v, want [1 3]", indices)
	}

	// The pool owns copies of the parsed entries.
	entries[3][0] = 0
	view, _ = pool.At(3)
	if view.Bytes()[0] != 0xAA {
		t.Error("pool entry aliases the parsed map")
	}
}
