package vm

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Environment errors.
var (
	ErrAlreadyParented   = errors.New("vm: environment already has a parent")
	ErrNoParentEnv       = errors.New("vm: no parent environment")
	ErrNoTempEnv         = errors.New("vm: no temp environment")
	ErrRegistryNotFrozen = errors.New("vm: type registry must be frozen before environment creation")
	ErrNoHeap            = errors.New("vm: no heap reachable from environment")
)

// EnvironmentKind distinguishes the three scope variants.
type EnvironmentKind uint8

const (
	// KindGlobal is the root scope. It owns the type registry, the
	// literal pool and the pointer heap.
	KindGlobal EnvironmentKind = iota

	// KindThread is a register-only scope parented to the global
	// environment.
	KindThread

	// KindLocal is a per-activation scope. It owns the control-flow
	// cursor for one call frame of one function.
	KindLocal
)

// String returns the kind name.
func (k EnvironmentKind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindThread:
		return "thread"
	case KindLocal:
		return "local"
	default:
		return fmt.Sprintf("EnvironmentKind(%d)", uint8(k))
	}
}

// Environment is a node in the scope tree. It owns its register set and
// its child environments; the parent and temp references point the other
// way and never confer ownership. The type registry is owned by the root
// and shared by reference with every descendant.
type Environment struct {
	id       string
	kind     EnvironmentKind
	regs     *RegisterSet
	result   DataRegisterDynamic
	parent   *Environment
	temp     *Environment
	registry *TypeRegistry
	children []*Environment

	// Global environment only.
	heap *Heap
	pool *LiteralPool

	// Local environment only.
	fn   *Function
	flow *ControlFlow
}

func newEnvironment(kind EnvironmentKind, regs *RegisterSet) *Environment {
	return &Environment{
		id:   uuid.NewString(),
		kind: kind,
		regs: regs,
	}
}

// NewGlobalEnvironment builds the root environment with dynCount dynamic
// register slots, taking ownership of the type registry and literal pool.
// The registry must already be frozen.
func NewGlobalEnvironment(dynCount int, registry *TypeRegistry, pool *LiteralPool) (*Environment, error) {
	if !registry.Frozen() {
		return nil, ErrRegistryNotFrozen
	}
	if pool == nil {
		pool = NewLiteralPool(nil)
	}
	e := newEnvironment(KindGlobal, NewRegisterSet(dynCount, nil))
	e.registry = registry
	e.heap = NewHeap()
	e.pool = pool
	return e, nil
}

// NewThreadEnvironment builds a register-only scope with dynCount dynamic
// slots. It acquires its registry reference when attached to a parent.
func NewThreadEnvironment(dynCount int) *Environment {
	return newEnvironment(KindThread, NewRegisterSet(dynCount, nil))
}

// NewLocalEnvironment builds the activation scope for one call of fn: a
// dynamic register file of fn.DynCount null-typed slots, one static slot
// per declared static-variable type (sized here, once, from the
// registry), and a control-flow cursor positioned at the function's
// first instruction.
func NewLocalEnvironment(fn *Function, registry *TypeRegistry) (*Environment, error) {
	if !registry.Frozen() {
		return nil, ErrRegistryNotFrozen
	}
	sizes := make([]int, len(fn.StaticTypes))
	for i, ti := range fn.StaticTypes {
		info, err := registry.At(ti)
		if err != nil {
			return nil, fmt.Errorf("static variable %d of %s: %w", i, fn.Name, err)
		}
		if info.Size == 0 {
			return nil, fmt.Errorf("vm: static variable %d of %s: type %q has no size", i, fn.Name, info.Name)
		}
		sizes[i] = info.Size
	}
	e := newEnvironment(KindLocal, NewRegisterSet(fn.DynCount, sizes))
	e.registry = registry
	e.fn = fn
	e.flow = newControlFlow(fn)
	return e, nil
}

// ID returns the environment's identity, used in snapshots and traces.
func (e *Environment) ID() string { return e.id }

// Kind returns the scope variant.
func (e *Environment) Kind() EnvironmentKind { return e.kind }

// Registers returns the environment's own register set.
func (e *Environment) Registers() *RegisterSet { return e.regs }

// Parent returns the parent environment, or nil for the root.
func (e *Environment) Parent() *Environment { return e.parent }

// Temp returns the associated temp environment, or nil if unset.
func (e *Environment) Temp() *Environment { return e.temp }

// SetTemp associates a transient scratch scope with this environment.
// The reference is non-owning.
func (e *Environment) SetTemp(t *Environment) { e.temp = t }

// Function returns the function a local environment executes, or nil.
func (e *Environment) Function() *Function { return e.fn }

// Flow returns a local environment's control-flow cursor, or nil.
func (e *Environment) Flow() *ControlFlow { return e.flow }

// Pool returns the literal pool owned by the root environment.
func (e *Environment) Pool() *LiteralPool { return e.Root().pool }

// AddChild attaches child to this environment. The child's parent
// back-reference is set exactly once, here; attaching an environment
// that already has a parent fails and leaves the first attachment
// intact. Ownership of the child transfers to this environment, and the
// registry reference is propagated through the child's subtree.
func (e *Environment) AddChild(child *Environment) error {
	if child.parent != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyParented, child.id)
	}
	child.parent = e
	child.propagateRegistry(e.registry)
	e.children = append(e.children, child)
	return nil
}

func (e *Environment) propagateRegistry(registry *TypeRegistry) {
	e.registry = registry
	for _, c := range e.children {
		c.propagateRegistry(registry)
	}
}

// Children returns the owned child environments.
func (e *Environment) Children() []*Environment { return e.children }

// Root walks parent references to the tree root.
func (e *Environment) Root() *Environment {
	r := e
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Heap returns the pointer heap owned by the root environment.
func (e *Environment) Heap() (*Heap, error) {
	h := e.Root().heap
	if h == nil {
		return nil, ErrNoHeap
	}
	return h, nil
}

// TypeAt returns type metadata from the shared registry. Type
// information is global: the lookup is the same from every environment
// in the tree.
func (e *Environment) TypeAt(idx TypeIndex) (TypeInfo, error) {
	if e.registry == nil {
		return TypeInfo{}, fmt.Errorf("%w: environment %s has no registry", ErrUnknownType, e.id)
	}
	return e.registry.At(idx)
}

// RegisterSetFor resolves an environment qualifier relative to this
// environment and returns that environment's register set.
func (e *Environment) RegisterSetFor(q EnvQualifier) (*RegisterSet, error) {
	env, err := e.qualified(q)
	if err != nil {
		return nil, err
	}
	return env.regs, nil
}

func (e *Environment) qualified(q EnvQualifier) (*Environment, error) {
	switch q {
	case EnvCurrent:
		return e, nil
	case EnvParent:
		if e.parent == nil {
			return nil, fmt.Errorf("%w: resolving %%penv from %s environment %s", ErrNoParentEnv, e.kind, e.id)
		}
		return e.parent, nil
	case EnvTemp:
		if e.temp == nil {
			return nil, fmt.Errorf("%w: resolving %%tenv from %s environment %s", ErrNoTempEnv, e.kind, e.id)
		}
		return e.temp, nil
	default:
		panic(fmt.Sprintf("vm: invalid environment qualifier %d", q))
	}
}

// DynamicRegister resolves a dynamic register slot relative to this
// environment.
func (e *Environment) DynamicRegister(index int, q EnvQualifier) (*DataRegisterDynamic, error) {
	set, err := e.RegisterSetFor(q)
	if err != nil {
		return nil, err
	}
	return set.Dynamic(index)
}

// StaticRegister resolves a static register slot relative to this
// environment.
func (e *Environment) StaticRegister(index int, q EnvQualifier) (*DataRegisterStatic, error) {
	set, err := e.RegisterSetFor(q)
	if err != nil {
		return nil, err
	}
	return set.Static(index)
}

// Release tears down the environment subtree deterministically: children
// first, then this environment's own storage. After Release the
// environment must not be used.
func (e *Environment) Release() {
	for _, c := range e.children {
		c.Release()
	}
	e.children = nil
	if e.flow != nil {
		e.flow.Halt()
	}
	e.regs = nil
	e.temp = nil
	e.heap = nil
	e.pool = nil
	e.fn = nil
	e.flow = nil
}
