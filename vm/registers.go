package vm

import (
	"errors"
	"fmt"
)

// ErrRegisterRange indicates a register index outside the file sized at
// environment construction. The compiler validates indices, so hitting
// this at run time means a malformed program reached execution.
var ErrRegisterRange = errors.New("vm: register index out of range")

// DataRegisterDynamic is a type-erased register slot. Every store replaces
// the owned data block and rewrites the type tag, so the tag always
// travels with the current value. A never-written slot has a nil block
// and the reserved pointer/unknown tag.
type DataRegisterDynamic struct {
	Type TypeIndex
	Data []byte
}

// DataRegisterStatic is a fixed-capacity register slot. Its block is sized
// once, from a declared type, when the register file is built; stores
// clear and overwrite the block in place and the declared type never
// changes.
type DataRegisterStatic struct {
	Data []byte
}

// RegisterSet is the per-environment register storage: one ordered file of
// dynamic registers and one of static registers. Both are sized at
// environment construction and never resized.
type RegisterSet struct {
	dynamic []DataRegisterDynamic
	static  []DataRegisterStatic
}

// NewRegisterSet builds a register set with dynCount null-typed dynamic
// slots and one static slot per entry of staticSizes, each allocated at
// its declared byte size.
func NewRegisterSet(dynCount int, staticSizes []int) *RegisterSet {
	s := &RegisterSet{
		dynamic: make([]DataRegisterDynamic, dynCount),
		static:  make([]DataRegisterStatic, len(staticSizes)),
	}
	for i, size := range staticSizes {
		s.static[i].Data = make([]byte, size)
	}
	return s
}

// Dynamic returns the dynamic register at index.
func (s *RegisterSet) Dynamic(index int) (*DataRegisterDynamic, error) {
	if index < 0 || index >= len(s.dynamic) {
		return nil, fmt.Errorf("%w: dynamic %d of %d", ErrRegisterRange, index, len(s.dynamic))
	}
	return &s.dynamic[index], nil
}

// Static returns the static register at index.
func (s *RegisterSet) Static(index int) (*DataRegisterStatic, error) {
	if index < 0 || index >= len(s.static) {
		return nil, fmt.Errorf("%w: static %d of %d", ErrRegisterRange, index, len(s.static))
	}
	return &s.static[index], nil
}

// DynamicCount returns the number of dynamic slots.
func (s *RegisterSet) DynamicCount() int { return len(s.dynamic) }

// StaticCount returns the number of static slots.
func (s *RegisterSet) StaticCount() int { return len(s.static) }

// RegKind identifies which storage a register operand addresses.
// The set is closed: resolution and the data manager switch over it
// exhaustively.
type RegKind uint8

const (
	// RegZero is the %0 register: a discard destination and an
	// all-zero, pointer-sized source.
	RegZero RegKind = iota

	// RegResult is the %res register: the per-environment result slot.
	RegResult

	// RegGlobal addresses a dynamic slot in the root environment,
	// regardless of where the instruction executes.
	RegGlobal

	// RegTemp addresses a dynamic slot in the requesting environment's
	// associated temp environment.
	RegTemp

	// RegDynamic addresses a slot in the dynamic register file.
	RegDynamic

	// RegStatic addresses a slot in the static register file.
	RegStatic
)

// EnvQualifier selects which environment, relative to the one executing
// the instruction, a register operand is resolved against.
type EnvQualifier uint8

const (
	EnvCurrent EnvQualifier = iota // %env
	EnvParent                      // %penv
	EnvTemp                        // %tenv
)

// String returns the assembly spelling of the qualifier.
func (q EnvQualifier) String() string {
	switch q {
	case EnvCurrent:
		return "%env"
	case EnvParent:
		return "%penv"
	case EnvTemp:
		return "%tenv"
	default:
		return fmt.Sprintf("EnvQualifier(%d)", uint8(q))
	}
}

// Register is a compiled register operand: a reference to a slot, not the
// slot itself. The environment qualifier is resolved at execution time
// against the requesting environment, which is what lets the same
// compiled instruction reach its own, its caller's, or a scratch scope's
// registers without absolute addresses.
type Register struct {
	Kind  RegKind
	Env   EnvQualifier
	Index uint16
}

// String returns an assembly-style rendering of the operand.
func (r Register) String() string {
	var base string
	switch r.Kind {
	case RegZero:
		return "%0"
	case RegResult:
		return "%res"
	case RegGlobal:
		base = fmt.Sprintf("%%g%d", r.Index)
	case RegTemp:
		base = fmt.Sprintf("%%t%d", r.Index)
	case RegDynamic:
		base = fmt.Sprintf("%%d%d", r.Index)
	case RegStatic:
		base = fmt.Sprintf("%%s%d", r.Index)
	default:
		base = fmt.Sprintf("%%?%d", r.Index)
	}
	if r.Env != EnvCurrent {
		base += "(" + r.Env.String() + ")"
	}
	return base
}
