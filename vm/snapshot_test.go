package vm

import (
	"bytes"
	"testing"
)

func snapshotTree(t *testing.T) (*Environment, TypeIndex) {
	t.Helper()
	reg := frozenRegistry(t)
	int32Type := typeIndexOf(t, reg, "int32")

	global, err := NewGlobalEnvironment(2, reg, nil)
	if err != nil {
		t.Fatalf("NewGlobalEnvironment error: %v", err)
	}
	fn := &Function{Name: "main", DynCount: 1, StaticTypes: []TypeIndex{int32Type}, Insts: []Instruction{{Op: OpReturn}}}
	local, err := NewLocalEnvironment(fn, reg)
	if err != nil {
		t.Fatalf("NewLocalEnvironment error: %v", err)
	}
	if err := global.AddChild(local); err != nil {
		t.Fatalf("AddChild error: %v", err)
	}

	dyn, _ := local.Registers().Dynamic(0)
	dyn.Type = int32Type
	dyn.Data = []byte{1, 2, 3, 4}

	heap, _ := global.Heap()
	heap.Box([]byte{0xAA, 0xBB})

	return global, int32Type
}

func TestCaptureSnapshot(t *testing.T) {
	global, int32Type := snapshotTree(t)
	snap := CaptureSnapshot(global)

	// pointer + int8 + int32 + int64
	if len(snap.Types) != 4 {
		t.Errorf("captured %d types, want 4", len(snap.Types))
	}
	if len(snap.Heap) != 1 || !bytes.Equal(snap.Heap[0], []byte{0xAA, 0xBB}) {
		t.Errorf("captured heap = %v", snap.Heap)
	}

	if snap.Root.Kind != "global" {
		t.Errorf("root kind = %q, want global", snap.Root.Kind)
	}
	if len(snap.Root.Children) != 1 {
		t.Fatalf("root has %d children, want 1", len(snap.Root.Children))
	}

	child := snap.Root.Children[0]
	if child.Kind != "local" || child.Function != "main" {
		t.Errorf("child = kind %q function %q", child.Kind, child.Function)
	}
	if len(child.Dynamic) != 1 {
		t.Fatalf("child has %d dynamic registers, want 1", len(child.Dynamic))
	}
	if child.Dynamic[0].Type != uint32(int32Type) || !bytes.Equal(child.Dynamic[0].Data, []byte{1, 2, 3, 4}) {
		t.Errorf("child register = %+v", child.Dynamic[0])
	}
	if len(child.Static) != 1 || len(child.Static[0]) != 4 {
		t.Errorf("child static registers = %v", child.Static)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	global, _ := snapshotTree(t)
	snap := CaptureSnapshot(global)

	data, err := snap.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	decoded, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot error: %v", err)
	}

	if len(decoded.Types) != len(snap.Types) {
		t.Errorf("decoded %d types, want %d", len(decoded.Types), len(snap.Types))
	}
	if decoded.Root.ID != snap.Root.ID {
		t.Errorf("decoded root ID = %q, want %q", decoded.Root.ID, snap.Root.ID)
	}
	if len(decoded.Root.Children) != 1 {
		t.Fatalf("decoded root has %d children", len(decoded.Root.Children))
	}
	if got, want := decoded.Root.Children[0].Dynamic[0].Data, snap.Root.Children[0].Dynamic[0].Data; !bytes.Equal(got, want) {
		t.Errorf("decoded register data = %v, want %v", got, want)
	}
}

func TestSnapshotDeterminism(t *testing.T) {
	global, _ := snapshotTree(t)
	snap := CaptureSnapshot(global)

	first, err := snap.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	second, err := snap.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical snapshots serialized to different bytes")
	}
}
