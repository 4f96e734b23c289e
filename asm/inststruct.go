// Package asm parses Tarn textual assembly into the symbolic program
// representation consumed by the compiler: a function table with
// symbolic instructions, a populated (but not yet frozen) type registry,
// an entry-function name and the literal-data map.
//
// Symbolic operands are numeric where the source is numeric (register
// indices, data indices, immediates) but keep names where the source
// uses names (types); resolving those names is the compiler's job.
package asm

import "fmt"

// RegisterKind identifies the syntactic form of a register operand.
type RegisterKind uint8

const (
	// RegZero is %0.
	RegZero RegisterKind = iota

	// RegResult is %res.
	RegResult

	// RegGlobal is %gN.
	RegGlobal

	// RegTemp is %tN.
	RegTemp

	// RegNumbered is %N. Whether it lands in the dynamic or static
	// register file depends on the enclosing function's declared
	// dynamic-variable count; the compiler decides.
	RegNumbered
)

// EnvQualifier selects the environment a register is resolved against,
// relative to the executing one.
type EnvQualifier uint8

const (
	EnvCurrent EnvQualifier = iota // %env
	EnvParent                      // %penv
	EnvTemp                        // %tenv
)

// Register is a symbolic register operand.
type Register struct {
	Kind  RegisterKind
	Env   EnvQualifier
	Index uint16
}

// String returns the assembly spelling of the operand.
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
	case RegNumbered:
		base = fmt.Sprintf("%%%d", r.Index)
	default:
		base = fmt.Sprintf("%%?%d", r.Index)
	}
	switch r.Env {
	case EnvParent:
		base += "(%penv)"
	case EnvTemp:
		base += "(%tenv)"
	}
	return base
}

// DataIndex addresses a literal-pool entry (#N in source).
type DataIndex uint32

// Instruction is one symbolic instruction. The set of implementations is
// closed; the compiler lowers it with a single exhaustive type switch.
type Instruction interface {
	isInstruction()
}

// Move is "mov dst src".
type Move struct {
	Dst Register
	Src Register
}

// LoadImm is "load dst value type" with a numeric immediate.
type LoadImm struct {
	Dst      Register
	Value    uint64
	TypeName string
}

// LoadData is "load dst #index type" with a literal-pool reference.
type LoadData struct {
	Dst      Register
	Data     DataIndex
	TypeName string
}

// LoadPointer is "loadp dst #index": box the literal and store its
// address.
type LoadPointer struct {
	Dst  Register
	Data DataIndex
}

// Return is "ret".
type Return struct{}

// DebugOutputRegister is "db_opreg".
type DebugOutputRegister struct{}

func (Move) isInstruction()                {}
func (LoadImm) isInstruction()             {}
func (LoadData) isInstruction()            {}
func (LoadPointer) isInstruction()         {}
func (Return) isInstruction()              {}
func (DebugOutputRegister) isInstruction() {}

// Function is the symbolic form of one declared function.
type Function struct {
	Name            string
	DynCount        int
	StaticTypeNames []string
	Insts           []Instruction
}
