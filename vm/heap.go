package vm

import (
	"encoding/binary"
	"sort"
)

// ConstDataPtr is a non-owning, read-only view of a raw byte block with a
// known length. The data manager uses it to move literal bytes into
// registers without aliasing the underlying storage to callers.
type ConstDataPtr struct {
	data []byte
}

// NewConstDataPtr wraps a byte block in a read-only view.
func NewConstDataPtr(data []byte) ConstDataPtr {
	return ConstDataPtr{data: data}
}

// Len returns the block length in bytes.
func (p ConstDataPtr) Len() int { return len(p.data) }

// Bytes returns a copy of the viewed bytes.
func (p ConstDataPtr) Bytes() []byte {
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out
}

// Addr is an opaque pointer value: a handle into a Heap arena. The zero
// address is the null pointer.
type Addr uint64

// EncodeAddr renders an address as a pointer-sized little-endian value.
func EncodeAddr(a Addr) []byte {
	buf := make([]byte, PointerSize)
	binary.LittleEndian.PutUint64(buf, uint64(a))
	return buf
}

// DecodeAddr reads a pointer value from register bytes. Blocks shorter
// than PointerSize decode as null.
func DecodeAddr(b []byte) Addr {
	if len(b) < PointerSize {
		return 0
	}
	return Addr(binary.LittleEndian.Uint64(b))
}

// Heap is the arena backing boxed pointer values. Blocks are addressed by
// opaque handles rather than machine addresses, so boxed values survive
// snapshots and the runtime needs no unsafe code. The heap is owned by
// the global environment; every boxed literal in the tree lives here.
type Heap struct {
	blocks [][]byte
}

// NewHeap creates an empty arena.
func NewHeap() *Heap {
	return &Heap{}
}

// Box copies src into a freshly allocated block and returns its address.
func (h *Heap) Box(src []byte) Addr {
	block := make([]byte, len(src))
	copy(block, src)
	h.blocks = append(h.blocks, block)
	return Addr(len(h.blocks)) // 1-based; 0 stays null
}

// Deref returns the block at addr. The second result is false for the
// null address or a handle the heap never issued.
func (h *Heap) Deref(a Addr) ([]byte, bool) {
	if a == 0 || int(a) > len(h.blocks) {
		return nil, false
	}
	return h.blocks[a-1], true
}

// Len returns the number of boxed blocks.
func (h *Heap) Len() int { return len(h.blocks) }

// LiteralPool is the read-only table of constant byte buffers declared in
// a program's data section, addressed by data index. It is fully
// materialized during compilation and never mutated afterward.
type LiteralPool struct {
	data map[uint32][]byte
}

// NewLiteralPool copies the parsed data-section map into a pool.
func NewLiteralPool(entries map[uint32][]byte) *LiteralPool {
	p := &LiteralPool{data: make(map[uint32][]byte, len(entries))}
	for idx, b := range entries {
		block := make([]byte, len(b))
		copy(block, b)
		p.data[idx] = block
	}
	return p
}

// At returns a read-only view of the literal at the given data index.
func (p *LiteralPool) At(index uint32) (ConstDataPtr, bool) {
	b, ok := p.data[index]
	if !ok {
		return ConstDataPtr{}, false
	}
	return ConstDataPtr{data: b}, true
}

// Len returns the number of literals in the pool.
func (p *LiteralPool) Len() int { return len(p.data) }

// Indices returns the declared data indices in ascending order.
func (p *LiteralPool) Indices() []uint32 {
	out := make([]uint32, 0, len(p.data))
	for idx := range p.data {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
