package vm

import (
	"errors"
	"testing"
)

func TestTypeRegistrySeedsPointerType(t *testing.T) {
	r := NewTypeRegistry()

	info, err := r.At(TypePointer)
	if err != nil {
		t.Fatalf("At(TypePointer) error: %v", err)
	}
	if info.Size != PointerSize {
		t.Errorf("pointer size = %d, want %d", info.Size, PointerSize)
	}
	if idx, ok := r.Find("pointer"); !ok || idx != TypePointer {
		t.Errorf("Find(pointer) = %d, %v; want %d, true", idx, ok, TypePointer)
	}
}

func TestTypeRegistryRoundTrip(t *testing.T) {
	r := NewTypeRegistry()

	declared := []struct {
		name string
		size int
	}{
		{"int8", 1},
		{"int32", 4},
		{"vec3", 12},
	}
	for _, d := range declared {
		if _, err := r.Insert(d.name, TypeInfo{Size: d.size}); err != nil {
			t.Fatalf("Insert(%s) error: %v", d.name, err)
		}
	}

	for _, d := range declared {
		idx, ok := r.Find(d.name)
		if !ok {
			t.Fatalf("Find(%s) not found", d.name)
		}
		info, err := r.At(idx)
		if err != nil {
			t.Fatalf("At(%d) error: %v", idx, err)
		}
		if info.Size != d.size {
			t.Errorf("%s size = %d, want %d", d.name, info.Size, d.size)
		}
		if info.Name != d.name {
			t.Errorf("%s name = %q", d.name, info.Name)
		}
	}
}

func TestTypeRegistryDuplicate(t *testing.T) {
	r := NewTypeRegistry()

	if _, err := r.Insert("int32", TypeInfo{Size: 4}); err != nil {
		t.Fatalf("first Insert error: %v", err)
	}
	if _, err := r.Insert("int32", TypeInfo{Size: 8}); !errors.Is(err, ErrDuplicateType) {
		t.Errorf("duplicate Insert error = %v, want ErrDuplicateType", err)
	}
}

func TestTypeRegistryUnknownIndex(t *testing.T) {
	r := NewTypeRegistry()

	if _, err := r.At(TypeIndex(99)); !errors.Is(err, ErrUnknownType) {
		t.Errorf("At(99) error = %v, want ErrUnknownType", err)
	}
	if err := r.SetSize(TypeIndex(99), 4); !errors.Is(err, ErrUnknownType) {
		t.Errorf("SetSize(99) error = %v, want ErrUnknownType", err)
	}
}

func TestTypeRegistryTwoPhaseSizing(t *testing.T) {
	r := NewTypeRegistry()

	idx, err := r.Insert("quat", TypeInfo{})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if size, _ := r.SizeOf(idx); size != 0 {
		t.Fatalf("size before SetSize = %d, want 0", size)
	}
	if err := r.SetSize(idx, 16); err != nil {
		t.Fatalf("SetSize error: %v", err)
	}
	if size, _ := r.SizeOf(idx); size != 16 {
		t.Errorf("size after SetSize = %d, want 16", size)
	}
}

func TestTypeRegistryFreeze(t *testing.T) {
	r := NewTypeRegistry()
	idx, _ := r.Insert("int32", TypeInfo{Size: 4})
	r.Freeze()

	if !r.Frozen() {
		t.Fatal("Frozen() = false after Freeze")
	}

	assertPanics := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s on frozen registry did not panic", name)
			}
		}()
		f()
	}
	assertPanics("Insert", func() { r.Insert("other", TypeInfo{Size: 1}) })
	assertPanics("SetSize", func() { r.SetSize(idx, 8) })
}
