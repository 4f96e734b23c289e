package vm

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("tarn.vm")

// Program is the fully compiled runtime representation of one source
// program: every function lowered, the literal pool materialized, the
// registry frozen.
type Program struct {
	Registry  *TypeRegistry
	Pool      *LiteralPool
	Functions map[string]*Function
	Entry     string
}

// EntryFunction returns the program's entry function.
func (p *Program) EntryFunction() (*Function, error) {
	fn, ok := p.Functions[p.Entry]
	if !ok {
		return nil, fmt.Errorf("vm: entry function %q not found", p.Entry)
	}
	return fn, nil
}

// TraceRecord describes one executed instruction.
type TraceRecord struct {
	Step     int64
	Function string
	PC       int
	EnvID    string
	Text     string
}

// Tracer receives a record per executed instruction. The SQLite trace
// store implements it; tests supply in-memory tracers.
type Tracer interface {
	Trace(TraceRecord) error
}

// Machine is the instruction dispatch loop. It owns the global
// environment built for a compiled program and activates one local
// environment per function call. Dispatch is synchronous: one
// instruction at a time on the calling goroutine, with context
// cancellation checked between instructions.
type Machine struct {
	prog   *Program
	global *Environment
	out    io.Writer
	tracer Tracer
	steps  int64
}

// NewMachine builds a machine and its global environment with
// globalDynCount dynamic register slots.
func NewMachine(prog *Program, globalDynCount int) (*Machine, error) {
	global, err := NewGlobalEnvironment(globalDynCount, prog.Registry, prog.Pool)
	if err != nil {
		return nil, err
	}
	return &Machine{
		prog:   prog,
		global: global,
		out:    os.Stdout,
	}, nil
}

// GlobalEnvironment returns the root of the machine's environment tree.
func (m *Machine) GlobalEnvironment() *Environment { return m.global }

// SetOutput redirects debug-instruction output (default os.Stdout).
func (m *Machine) SetOutput(w io.Writer) { m.out = w }

// SetTracer installs a per-instruction tracer.
func (m *Machine) SetTracer(t Tracer) { m.tracer = t }

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() int64 { return m.steps }

// Activate builds a fresh local environment for one call of fn and
// attaches it under parent. Each activation has its own register file;
// the Function itself is shared and immutable.
func (m *Machine) Activate(parent *Environment, fn *Function) (*Environment, error) {
	env, err := NewLocalEnvironment(fn, m.prog.Registry)
	if err != nil {
		return nil, err
	}
	if err := parent.AddChild(env); err != nil {
		return nil, err
	}
	return env, nil
}

// Run executes the program's entry function to completion under the
// global environment. The local frame is released when the call ends.
func (m *Machine) Run(ctx context.Context) error {
	fn, err := m.prog.EntryFunction()
	if err != nil {
		return err
	}
	log.Infof("running entry function %q", fn.Name)
	env, err := m.Activate(m.global, fn)
	if err != nil {
		return err
	}
	defer env.Release()
	return m.RunFrame(ctx, env)
}

// RunFrame steps a local environment's control flow until the frame
// returns, runs out of instructions, or the context is cancelled.
func (m *Machine) RunFrame(ctx context.Context, env *Environment) error {
	flow := env.Flow()
	if flow == nil {
		return fmt.Errorf("vm: environment %s has no control flow", env.ID())
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		inst, ok := flow.Current()
		if !ok {
			return nil
		}
		text := FormatInstruction(inst, m.prog.Registry)
		log.Debugf("%s pc=%d: %s", env.Function().Name, flow.PC(), text)
		if m.tracer != nil {
			rec := TraceRecord{
				Step:     m.steps,
				Function: env.Function().Name,
				PC:       flow.PC(),
				EnvID:    env.ID(),
				Text:     text,
			}
			if err := m.tracer.Trace(rec); err != nil {
				return fmt.Errorf("vm: trace: %w", err)
			}
		}
		if err := m.step(env, inst); err != nil {
			return fmt.Errorf("vm: %s pc=%d: %w", env.Function().Name, flow.PC(), err)
		}
		m.steps++
		if flow.Running() {
			flow.Advance()
		}
	}
}

// step executes one instruction. The switch is exhaustive over the
// closed opcode set; an unrecognized opcode is a compiler logic
// violation and panics.
func (m *Machine) step(env *Environment, inst Instruction) error {
	switch inst.Op {
	case OpMove:
		dst, err := env.ResolveDst(inst.Dst)
		if err != nil {
			return err
		}
		src, err := env.ResolveSrc(inst.Src)
		if err != nil {
			return err
		}
		return MoveRegister(env, dst, src)
	case OpLoadImm, OpLoadData:
		dst, err := env.ResolveDst(inst.Dst)
		if err != nil {
			return err
		}
		return LoadData(env, dst, inst.Data, inst.Type, inst.Data.Len())
	case OpLoadPointer:
		dst, err := env.ResolveDst(inst.Dst)
		if err != nil {
			return err
		}
		return LoadDataPointer(env, dst, inst.Data, inst.Data.Len())
	case OpReturn:
		env.Flow().Halt()
		return nil
	case OpDebugOutputRegister:
		return m.debugOutputRegisters(env)
	default:
		panic(fmt.Sprintf("vm: invalid opcode %d", inst.Op))
	}
}

// debugOutputRegisters prints every register of the executing
// environment as a hex diagnostic.
func (m *Machine) debugOutputRegisters(env *Environment) error {
	fn := env.Function()
	fmt.Fprintf(m.out, "; registers of %s\n", fn.Name)

	res, err := FormatDynamicRegister(env, &env.result)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "%%res = %s\n", res)

	regs := env.Registers()
	for i := 0; i < regs.DynamicCount(); i++ {
		dyn, err := regs.Dynamic(i)
		if err != nil {
			return err
		}
		text, err := FormatDynamicRegister(env, dyn)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "%%%d = %s\n", i+1, text)
	}
	for i := 0; i < regs.StaticCount(); i++ {
		sta, err := regs.Static(i)
		if err != nil {
			return err
		}
		text, err := FormatStaticRegister(env, sta, fn.StaticTypes[i])
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "%%%d = %s\n", regs.DynamicCount()+i+1, text)
	}
	return nil
}
