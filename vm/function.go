package vm

import "fmt"

// Opcode identifies a runtime instruction. The set is closed: the
// dispatch loop switches over it exhaustively and an unrecognized value
// is a compiler logic violation, not a recoverable condition.
type Opcode uint8

const (
	// OpMove copies a value between two register views.
	OpMove Opcode = iota

	// OpLoadImm loads an immediate value into a register coerced to a
	// declared type.
	OpLoadImm

	// OpLoadData loads literal-pool bytes into a register coerced to a
	// declared type.
	OpLoadData

	// OpLoadPointer boxes literal-pool bytes on the heap and stores the
	// resulting pointer value.
	OpLoadPointer

	// OpReturn finishes the current call frame.
	OpReturn

	// OpDebugOutputRegister prints the current environment's registers
	// as a hex diagnostic.
	OpDebugOutputRegister
)

// String returns the assembly mnemonic for the opcode.
func (op Opcode) String() string {
	switch op {
	case OpMove:
		return "mov"
	case OpLoadImm, OpLoadData:
		return "load"
	case OpLoadPointer:
		return "loadp"
	case OpReturn:
		return "ret"
	case OpDebugOutputRegister:
		return "db_opreg"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// Instruction is one compiled operation with every symbolic reference
// already resolved: operand registers are numeric, type names have
// become indices, and literal-data operands point directly into the
// loaded pool.
type Instruction struct {
	Op  Opcode
	Dst Register
	Src Register // OpMove

	// OpLoadImm, OpLoadData: destination coercion type.
	Type TypeIndex

	// OpLoadImm: original immediate, kept for disassembly.
	Imm uint64

	// OpLoadImm, OpLoadData, OpLoadPointer: resolved source bytes.
	Data ConstDataPtr
}

// Function is the runtime form of one compiled function: its instruction
// sequence in execution order plus the register-file layout. It is
// immutable after compilation; every activation gets its own freshly
// allocated register set, so many local environments may run the same
// Function concurrently.
type Function struct {
	Name        string
	Insts       []Instruction
	DynCount    int
	StaticTypes []TypeIndex
}
