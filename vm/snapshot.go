package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode encodes snapshots in canonical mode so identical machine
// states serialize to identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// TypeSnapshot is one type-table entry in a snapshot.
type TypeSnapshot struct {
	Name string
	Size int
}

// RegisterSnapshot is the captured state of one dynamic register.
type RegisterSnapshot struct {
	Type uint32
	Data []byte
}

// EnvironmentSnapshot is the captured state of one environment and its
// subtree.
type EnvironmentSnapshot struct {
	ID       string
	Kind     string
	Result   RegisterSnapshot
	Dynamic  []RegisterSnapshot
	Static   [][]byte
	Function string `cbor:",omitempty"`
	PC       int    `cbor:",omitempty"`
	Children []EnvironmentSnapshot
}

// Snapshot is a self-contained capture of machine state: the type table,
// the pointer heap and the full environment tree. Because pointer values
// are heap handles rather than machine addresses, a snapshot can be
// inspected or diffed offline without the process that produced it.
type Snapshot struct {
	Types []TypeSnapshot
	Heap  [][]byte
	Root  EnvironmentSnapshot
}

// CaptureSnapshot captures the environment tree rooted at root. The
// caller must not execute instructions against the tree during capture.
func CaptureSnapshot(root *Environment) *Snapshot {
	s := &Snapshot{}
	if root.registry != nil {
		for _, info := range root.registry.Types() {
			s.Types = append(s.Types, TypeSnapshot{Name: info.Name, Size: info.Size})
		}
	}
	if heap := root.Root().heap; heap != nil {
		for _, block := range heap.blocks {
			s.Heap = append(s.Heap, append([]byte(nil), block...))
		}
	}
	s.Root = captureEnvironment(root)
	return s
}

func captureEnvironment(e *Environment) EnvironmentSnapshot {
	snap := EnvironmentSnapshot{
		ID:     e.id,
		Kind:   e.kind.String(),
		Result: captureRegister(&e.result),
	}
	if e.fn != nil {
		snap.Function = e.fn.Name
	}
	if e.flow != nil {
		snap.PC = e.flow.PC()
	}
	if e.regs != nil {
		for i := range e.regs.dynamic {
			snap.Dynamic = append(snap.Dynamic, captureRegister(&e.regs.dynamic[i]))
		}
		for i := range e.regs.static {
			snap.Static = append(snap.Static, append([]byte(nil), e.regs.static[i].Data...))
		}
	}
	for _, c := range e.children {
		snap.Children = append(snap.Children, captureEnvironment(c))
	}
	return snap
}

func captureRegister(reg *DataRegisterDynamic) RegisterSnapshot {
	return RegisterSnapshot{
		Type: uint32(reg.Type),
		Data: append([]byte(nil), reg.Data...),
	}
}

// Marshal serializes the snapshot to canonical CBOR bytes.
func (s *Snapshot) Marshal() ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
