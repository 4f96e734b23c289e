package vm

import (
	"errors"
	"fmt"
)

// TypeIndex is an opaque handle into a TypeRegistry.
//
// Index zero is reserved for the pointer type: the pointer-sized slot used
// both for boxed pointer values and as the "unknown" tag of a dynamic
// register that has never been written.
type TypeIndex uint32

// TypePointer is the reserved pointer/unknown type index.
const TypePointer TypeIndex = 0

// PointerSize is the byte width of a boxed pointer value.
const PointerSize = 8

// TypeInfo holds the metadata recorded for a declared type.
type TypeInfo struct {
	Name string
	Size int
}

// Registry errors.
var (
	ErrDuplicateType = errors.New("vm: duplicate type name")
	ErrUnknownType   = errors.New("vm: unknown type index")
)

// TypeRegistry maps type names to indices and indices to type metadata.
//
// A registry is populated in two phases during program load: a type is
// declared by name (Insert), then its size is filled in (SetSize). Once
// every declaration has been seen the registry is frozen; after Freeze any
// mutation panics. Environments share a frozen registry by reference, so
// no locking is needed during execution.
type TypeRegistry struct {
	names  map[string]TypeIndex
	infos  []TypeInfo
	frozen bool
}

// NewTypeRegistry creates a registry seeded with the reserved pointer type
// at index zero.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		names: make(map[string]TypeIndex),
	}
	r.infos = append(r.infos, TypeInfo{Name: "pointer", Size: PointerSize})
	r.names["pointer"] = TypePointer
	return r
}

// Insert declares a new type and returns its index. The size recorded in
// info may be zero at this point and filled in later with SetSize.
func (r *TypeRegistry) Insert(name string, info TypeInfo) (TypeIndex, error) {
	if r.frozen {
		panic("vm: insert into frozen type registry")
	}
	if _, ok := r.names[name]; ok {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateType, name)
	}
	idx := TypeIndex(len(r.infos))
	info.Name = name
	r.infos = append(r.infos, info)
	r.names[name] = idx
	return idx, nil
}

// SetSize fills in the byte size of a previously declared type.
func (r *TypeRegistry) SetSize(idx TypeIndex, size int) error {
	if r.frozen {
		panic("vm: set size on frozen type registry")
	}
	if int(idx) >= len(r.infos) {
		return fmt.Errorf("%w: %d", ErrUnknownType, idx)
	}
	r.infos[idx].Size = size
	return nil
}

// Find returns the index for a declared type name.
func (r *TypeRegistry) Find(name string) (TypeIndex, bool) {
	idx, ok := r.names[name]
	return idx, ok
}

// At returns the metadata for a type index.
func (r *TypeRegistry) At(idx TypeIndex) (TypeInfo, error) {
	if int(idx) >= len(r.infos) {
		return TypeInfo{}, fmt.Errorf("%w: %d", ErrUnknownType, idx)
	}
	return r.infos[idx], nil
}

// SizeOf returns the byte size of a type index.
func (r *TypeRegistry) SizeOf(idx TypeIndex) (int, error) {
	info, err := r.At(idx)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// Len returns the number of declared types, including the reserved
// pointer type.
func (r *TypeRegistry) Len() int {
	return len(r.infos)
}

// Types returns a copy of the type table in index order.
func (r *TypeRegistry) Types() []TypeInfo {
	out := make([]TypeInfo, len(r.infos))
	copy(out, r.infos)
	return out
}

// Freeze marks the registry read-only. Environments may only be built
// against a frozen registry; the compiler freezes it after the last
// declaration has been processed.
func (r *TypeRegistry) Freeze() {
	r.frozen = true
}

// Frozen reports whether the registry has been frozen.
func (r *TypeRegistry) Frozen() bool {
	return r.frozen
}
