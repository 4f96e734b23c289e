// Package compiler lowers the symbolic program representation produced
// by the asm parser into the runtime representation executed by the vm:
// type names become registry indices, literal-data indices become direct
// views into the materialized pool, numbered registers are split into
// dynamic and static files, and the type registry is frozen.
//
// Compilation is diagnostics-first: an unresolved reference is recorded
// with its location and lowering continues, so one run reports as many
// problems as possible. A program with any recorded error is never
// returned for execution.
package compiler

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/tarnlang/tarn/asm"
	"github.com/tarnlang/tarn/vm"
)

var log = commonlog.GetLogger("tarn.compiler")

// CompileError is one diagnostic with program-location context.
type CompileError struct {
	Function string
	Index    int // instruction index within the function, -1 if not tied to one
	Msg      string
}

func (e *CompileError) Error() string {
	switch {
	case e.Function == "":
		return e.Msg
	case e.Index < 0:
		return fmt.Sprintf("func %s: %s", e.Function, e.Msg)
	default:
		return fmt.Sprintf("func %s inst %d: %s", e.Function, e.Index, e.Msg)
	}
}

// ErrorList collects every diagnostic from one compilation.
type ErrorList []*CompileError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

type compiler struct {
	prog   *asm.Program
	pool   *vm.LiteralPool
	errors ErrorList
}

func (c *compiler) errorf(fn string, idx int, format string, args ...any) {
	c.errors = append(c.errors, &CompileError{Function: fn, Index: idx, Msg: fmt.Sprintf(format, args...)})
}

// CompileProgram lowers every function of the symbolic program,
// materializes the literal pool and freezes the type registry. The
// returned program is ready for vm.NewMachine.
func CompileProgram(p *asm.Program) (*vm.Program, error) {
	c := &compiler{
		prog: p,
		pool: vm.NewLiteralPool(p.Data),
	}

	// Every declared type must have a size before anything is lowered
	// against it: a zero-sized type would silently propagate
	// zero-length allocations through the register files.
	for _, info := range p.Registry.Types() {
		if info.Size == 0 {
			c.errorf("", -1, "type %q has no size", info.Name)
		}
	}

	functions := make(map[string]*vm.Function, len(p.Functions))
	for _, name := range sortedFunctionNames(p) {
		functions[name] = c.compileFunction(p.Functions[name])
	}

	if p.Entry == "" {
		c.errorf("", -1, "no entry function declared")
	} else if _, ok := functions[p.Entry]; !ok {
		c.errorf("", -1, "entry function %q not found", p.Entry)
	}

	if len(c.errors) > 0 {
		log.Errorf("compilation failed with %d errors", len(c.errors))
		return nil, c.errors
	}

	p.Registry.Freeze()
	log.Infof("compiled %d functions, %d literals", len(functions), c.pool.Len())
	return &vm.Program{
		Registry:  p.Registry,
		Pool:      c.pool,
		Functions: functions,
		Entry:     p.Entry,
	}, nil
}

func sortedFunctionNames(p *asm.Program) []string {
	names := make([]string, 0, len(p.Functions))
	for name := range p.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompileFunction lowers a single symbolic function against the given
// program's registry and data section.
func CompileFunction(fn *asm.Function, p *asm.Program) (*vm.Function, error) {
	c := &compiler{
		prog: p,
		pool: vm.NewLiteralPool(p.Data),
	}
	out := c.compileFunction(fn)
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return out, nil
}

// CompileInstruction lowers a single symbolic instruction in the context
// of its owning function.
func CompileInstruction(inst asm.Instruction, fn *asm.Function, p *asm.Program) (vm.Instruction, error) {
	c := &compiler{
		prog: p,
		pool: vm.NewLiteralPool(p.Data),
	}
	out, _ := c.compileInstruction(inst, fn, 0)
	if len(c.errors) > 0 {
		return vm.Instruction{}, c.errors
	}
	return out, nil
}

// compileFunction lowers instructions in declaration order; the order is
// the execution order. The dynamic-variable count and static-variable
// type list carry through unchanged apart from name resolution.
func (c *compiler) compileFunction(fn *asm.Function) *vm.Function {
	out := &vm.Function{
		Name:     fn.Name,
		DynCount: fn.DynCount,
	}
	for i, tname := range fn.StaticTypeNames {
		ti, ok := c.resolveType(tname, fn.Name, -1)
		if !ok {
			c.errorf(fn.Name, -1, "static variable %d: unresolved type %q", i, tname)
			continue
		}
		out.StaticTypes = append(out.StaticTypes, ti)
	}
	for i, inst := range fn.Insts {
		compiled, ok := c.compileInstruction(inst, fn, i)
		if ok {
			out.Insts = append(out.Insts, compiled)
		}
	}
	return out
}

// compileInstruction is the single exhaustive match over the closed
// symbolic instruction set.
func (c *compiler) compileInstruction(inst asm.Instruction, fn *asm.Function, idx int) (vm.Instruction, bool) {
	before := len(c.errors)
	var out vm.Instruction

	switch inst := inst.(type) {
	case asm.Move:
		out = vm.Instruction{
			Op:  vm.OpMove,
			Dst: c.compileRegister(inst.Dst, fn, idx),
			Src: c.compileRegister(inst.Src, fn, idx),
		}
	case asm.LoadImm:
		ti, ok := c.resolveType(inst.TypeName, fn.Name, idx)
		if !ok {
			return vm.Instruction{}, false
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(inst.Value))
		out = vm.Instruction{
			Op:   vm.OpLoadImm,
			Dst:  c.compileRegister(inst.Dst, fn, idx),
			Type: ti,
			Imm:  inst.Value,
			Data: vm.NewConstDataPtr(buf),
		}
	case asm.LoadData:
		ti, ok := c.resolveType(inst.TypeName, fn.Name, idx)
		if !ok {
			return vm.Instruction{}, false
		}
		data, ok := c.pool.At(uint32(inst.Data))
		if !ok {
			c.errorf(fn.Name, idx, "unresolved data index #%d", inst.Data)
			return vm.Instruction{}, false
		}
		out = vm.Instruction{
			Op:   vm.OpLoadData,
			Dst:  c.compileRegister(inst.Dst, fn, idx),
			Type: ti,
			Data: data,
		}
	case asm.LoadPointer:
		data, ok := c.pool.At(uint32(inst.Data))
		if !ok {
			c.errorf(fn.Name, idx, "unresolved data index #%d", inst.Data)
			return vm.Instruction{}, false
		}
		out = vm.Instruction{
			Op:   vm.OpLoadPointer,
			Dst:  c.compileRegister(inst.Dst, fn, idx),
			Data: data,
		}
	case asm.Return:
		out = vm.Instruction{Op: vm.OpReturn}
	case asm.DebugOutputRegister:
		out = vm.Instruction{Op: vm.OpDebugOutputRegister}
	default:
		c.errorf(fn.Name, idx, "unsupported instruction %T", inst)
		return vm.Instruction{}, false
	}

	return out, len(c.errors) == before
}

// compileRegister rewrites a symbolic register operand into runtime
// form. Numbered registers are split by the owning function's layout:
// indices 1..dyvarb address the dynamic file, the following indices the
// static file.
func (c *compiler) compileRegister(r asm.Register, fn *asm.Function, idx int) vm.Register {
	env := compileQualifier(r.Env)
	switch r.Kind {
	case asm.RegZero:
		return vm.Register{Kind: vm.RegZero, Env: env}
	case asm.RegResult:
		return vm.Register{Kind: vm.RegResult, Env: env}
	case asm.RegGlobal:
		return vm.Register{Kind: vm.RegGlobal, Env: env, Index: r.Index}
	case asm.RegTemp:
		return vm.Register{Kind: vm.RegTemp, Env: env, Index: r.Index}
	case asm.RegNumbered:
		n := int(r.Index)
		switch {
		case n == 0:
			return vm.Register{Kind: vm.RegZero, Env: env}
		case n <= fn.DynCount:
			return vm.Register{Kind: vm.RegDynamic, Env: env, Index: uint16(n - 1)}
		case n-1-fn.DynCount < len(fn.StaticTypeNames):
			return vm.Register{Kind: vm.RegStatic, Env: env, Index: uint16(n - 1 - fn.DynCount)}
		default:
			c.errorf(fn.Name, idx, "register %%%d out of range (dyvarb %d, stvarb %d)",
				n, fn.DynCount, len(fn.StaticTypeNames))
			return vm.Register{}
		}
	default:
		c.errorf(fn.Name, idx, "unrecognized register kind %d", r.Kind)
		return vm.Register{}
	}
}

func compileQualifier(q asm.EnvQualifier) vm.EnvQualifier {
	switch q {
	case asm.EnvCurrent:
		return vm.EnvCurrent
	case asm.EnvParent:
		return vm.EnvParent
	case asm.EnvTemp:
		return vm.EnvTemp
	default:
		panic(fmt.Sprintf("compiler: invalid environment qualifier %d", q))
	}
}

// resolveType resolves a type name against the program registry and
// rejects unsized types.
func (c *compiler) resolveType(name, fnName string, idx int) (vm.TypeIndex, bool) {
	ti, ok := c.prog.Registry.Find(name)
	if !ok {
		c.errorf(fnName, idx, "unresolved type %q", name)
		return 0, false
	}
	info, err := c.prog.Registry.At(ti)
	if err != nil {
		c.errorf(fnName, idx, "resolving type %q: %v", name, err)
		return 0, false
	}
	if info.Size == 0 {
		c.errorf(fnName, idx, "type %q has no size", name)
		return 0, false
	}
	return ti, true
}
