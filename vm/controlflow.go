package vm

// ControlFlow is the instruction-position cursor for one call frame. It
// is created with its owning local environment, positioned at the
// function's first instruction, and torn down with the environment. The
// dispatch loop advances it; nothing in the data path touches it.
type ControlFlow struct {
	insts   []Instruction
	pc      int
	running bool
}

func newControlFlow(fn *Function) *ControlFlow {
	return &ControlFlow{
		insts:   fn.Insts,
		running: true,
	}
}

// Current returns the instruction at the cursor. The second result is
// false once the frame has returned or run past the last instruction.
func (cf *ControlFlow) Current() (Instruction, bool) {
	if !cf.running || cf.pc >= len(cf.insts) {
		return Instruction{}, false
	}
	return cf.insts[cf.pc], true
}

// Advance moves the cursor to the next instruction.
func (cf *ControlFlow) Advance() {
	cf.pc++
}

// PC returns the current instruction position.
func (cf *ControlFlow) PC() int { return cf.pc }

// Halt marks the frame finished. Current reports no instruction
// afterward.
func (cf *ControlFlow) Halt() {
	cf.running = false
}

// Running reports whether the frame still has an instruction to execute.
func (cf *ControlFlow) Running() bool {
	return cf.running && cf.pc < len(cf.insts)
}
