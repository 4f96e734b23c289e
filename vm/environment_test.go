package vm

import (
	"errors"
	"testing"
)

// frozenRegistry builds a registry with a few fixed-size types, frozen
// and ready for environment construction.
func frozenRegistry(t *testing.T) *TypeRegistry {
	t.Helper()
	r := NewTypeRegistry()
	for _, d := range []struct {
		name string
		size int
	}{
		{"int8", 1},
		{"int32", 4},
		{"int64", 8},
	} {
		if _, err := r.Insert(d.name, TypeInfo{Size: d.size}); err != nil {
			t.Fatalf("Insert(%s) error: %v", d.name, err)
		}
	}
	r.Freeze()
	return r
}

func typeIndexOf(t *testing.T, r *TypeRegistry, name string) TypeIndex {
	t.Helper()
	idx, ok := r.Find(name)
	if !ok {
		t.Fatalf("type %q not registered", name)
	}
	return idx
}

func TestGlobalEnvironmentRequiresFrozenRegistry(t *testing.T) {
	r := NewTypeRegistry()
	if _, err := NewGlobalEnvironment(4, r, nil); !errors.Is(err, ErrRegistryNotFrozen) {
		t.Errorf("NewGlobalEnvironment error = %v, want ErrRegistryNotFrozen", err)
	}
	if _, err := NewLocalEnvironment(&Function{Name: "f"}, r); !errors.Is(err, ErrRegistryNotFrozen) {
		t.Errorf("NewLocalEnvironment error = %v, want ErrRegistryNotFrozen", err)
	}
}

func TestEnvironmentTree(t *testing.T) {
	reg := frozenRegistry(t)
	int32Type := typeIndexOf(t, reg, "int32")

	global, err := NewGlobalEnvironment(4, reg, nil)
	if err != nil {
		t.Fatalf("NewGlobalEnvironment error: %v", err)
	}
	thread := NewThreadEnvironment(2)
	if err := global.AddChild(thread); err != nil {
		t.Fatalf("AddChild(thread) error: %v", err)
	}

	fn := &Function{Name: "f", DynCount: 2, StaticTypes: []TypeIndex{int32Type}}
	local, err := NewLocalEnvironment(fn, reg)
	if err != nil {
		t.Fatalf("NewLocalEnvironment error: %v", err)
	}
	if err := thread.AddChild(local); err != nil {
		t.Fatalf("AddChild(local) error: %v", err)
	}

	if got := local.Kind(); got != KindLocal {
		t.Errorf("local kind = %v, want %v", got, KindLocal)
	}
	if local.Root() != global {
		t.Error("local.Root() is not the global environment")
	}
	if local.Parent() != thread {
		t.Error("local.Parent() is not the thread environment")
	}

	// The registry reference propagates on attachment; the thread was
	// built without one.
	if _, err := thread.TypeAt(int32Type); err != nil {
		t.Errorf("thread.TypeAt after attach error: %v", err)
	}

	// The heap is owned by the root and reachable from every node.
	if _, err := local.Heap(); err != nil {
		t.Errorf("local.Heap() error: %v", err)
	}

	// The local static file was sized from the declared type.
	sta, err := local.Registers().Static(0)
	if err != nil {
		t.Fatalf("Static(0) error: %v", err)
	}
	if len(sta.Data) != 4 {
		t.Errorf("static slot size = %d, want 4", len(sta.Data))
	}

	// Identities are distinct.
	if global.ID() == thread.ID() || thread.ID() == local.ID() {
		t.Error("environment IDs are not distinct")
	}
}

func TestAddChildSingleParenting(t *testing.T) {
	reg := frozenRegistry(t)
	global, err := NewGlobalEnvironment(2, reg, nil)
	if err != nil {
		t.Fatalf("NewGlobalEnvironment error: %v", err)
	}
	first := NewThreadEnvironment(1)
	second := NewThreadEnvironment(1)
	if err := global.AddChild(first); err != nil {
		t.Fatalf("AddChild(first) error: %v", err)
	}
	if err := global.AddChild(second); err != nil {
		t.Fatalf("AddChild(second) error: %v", err)
	}

	if err := second.AddChild(first); !errors.Is(err, ErrAlreadyParented) {
		t.Errorf("reparenting error = %v, want ErrAlreadyParented", err)
	}
	if first.Parent() != global {
		t.Error("first attachment was not left intact")
	}
	if n := len(second.Children()); n != 0 {
		t.Errorf("failed attach added a child: %d", n)
	}
}

func TestParentQualifierResolution(t *testing.T) {
	reg := frozenRegistry(t)
	int32Type := typeIndexOf(t, reg, "int32")

	global, err := NewGlobalEnvironment(2, reg, nil)
	if err != nil {
		t.Fatalf("NewGlobalEnvironment error: %v", err)
	}
	thread := NewThreadEnvironment(2)
	if err := global.AddChild(thread); err != nil {
		t.Fatalf("AddChild(thread) error: %v", err)
	}
	fn := &Function{Name: "f", DynCount: 1}
	local, err := NewLocalEnvironment(fn, reg)
	if err != nil {
		t.Fatalf("NewLocalEnvironment error: %v", err)
	}
	if err := thread.AddChild(local); err != nil {
		t.Fatalf("AddChild(local) error: %v", err)
	}

	// Writing through a %penv-qualified resolution must land in the
	// thread's own register file.
	dyn, err := local.DynamicRegister(0, EnvParent)
	if err != nil {
		t.Fatalf("DynamicRegister(0, EnvParent) error: %v", err)
	}
	dyn.Type = int32Type
	dyn.Data = []byte{1, 2, 3, 4}

	own, err := thread.DynamicRegister(0, EnvCurrent)
	if err != nil {
		t.Fatalf("thread DynamicRegister error: %v", err)
	}
	if own.Type != int32Type || len(own.Data) != 4 {
		t.Errorf("thread register = {%d, %v}, want {%d, 4 bytes}", own.Type, own.Data, int32Type)
	}
}

func TestQualifierErrors(t *testing.T) {
	reg := frozenRegistry(t)
	global, err := NewGlobalEnvironment(2, reg, nil)
	if err != nil {
		t.Fatalf("NewGlobalEnvironment error: %v", err)
	}

	if _, err := global.RegisterSetFor(EnvParent); !errors.Is(err, ErrNoParentEnv) {
		t.Errorf("root %%penv error = %v, want ErrNoParentEnv", err)
	}
	if _, err := global.RegisterSetFor(EnvTemp); !errors.Is(err, ErrNoTempEnv) {
		t.Errorf("%%tenv without temp error = %v, want ErrNoTempEnv", err)
	}

	scratch := NewThreadEnvironment(3)
	global.SetTemp(scratch)
	set, err := global.RegisterSetFor(EnvTemp)
	if err != nil {
		t.Fatalf("%%tenv with temp error: %v", err)
	}
	if set.DynamicCount() != 3 {
		t.Errorf("temp register count = %d, want 3", set.DynamicCount())
	}
}

func TestLocalEnvironmentRejectsUnsizedStaticType(t *testing.T) {
	r := NewTypeRegistry()
	idx, _ := r.Insert("opaque", TypeInfo{})
	r.Freeze()

	fn := &Function{Name: "f", StaticTypes: []TypeIndex{idx}}
	if _, err := NewLocalEnvironment(fn, r); err == nil {
		t.Error("NewLocalEnvironment with unsized static type did not fail")
	}
}

func TestRelease(t *testing.T) {
	reg := frozenRegistry(t)
	global, err := NewGlobalEnvironment(2, reg, nil)
	if err != nil {
		t.Fatalf("NewGlobalEnvironment error: %v", err)
	}
	thread := NewThreadEnvironment(1)
	if err := global.AddChild(thread); err != nil {
		t.Fatalf("AddChild error: %v", err)
	}
	fn := &Function{Name: "f", DynCount: 1, Insts: []Instruction{{Op: OpReturn}}}
	local, err := NewLocalEnvironment(fn, reg)
	if err != nil {
		t.Fatalf("NewLocalEnvironment error: %v", err)
	}
	if err := thread.AddChild(local); err != nil {
		t.Fatalf("AddChild error: %v", err)
	}

	global.Release()

	if len(global.Children()) != 0 {
		t.Error("children not detached after Release")
	}
	if global.Registers() != nil || thread.Registers() != nil || local.Registers() != nil {
		t.Error("register sets not released")
	}
	if local.Flow() != nil {
		t.Error("control flow not released")
	}
}
