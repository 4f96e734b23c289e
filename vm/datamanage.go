package vm

import (
	"encoding/hex"
	"fmt"
)

// The data manager: type-aware primitive operations over register views.
// Every instruction that touches a register goes through these. Each
// operation is total over its documented inputs; malformed destination
// modes are compiler logic violations and panic rather than returning an
// error, because execution must not continue past them.

// DstMode identifies what kind of storage a destination view refers to.
// The enumeration is closed; every switch over it is exhaustive.
type DstMode uint8

const (
	// DstDiscard drops stored bytes. Writes to the zero register land
	// here.
	DstDiscard DstMode = iota

	// DstDynamic replaces a dynamic register's owned block and type tag.
	DstDynamic

	// DstStatic overwrites a static register's fixed block in place.
	DstStatic
)

// DstData is a resolved destination register view.
type DstData struct {
	Mode DstMode
	Dyn  *DataRegisterDynamic // DstDynamic
	Sta  *DataRegisterStatic  // DstStatic
}

// SrcData is a resolved source register view: the current bytes and the
// type tag they carry.
type SrcData struct {
	Data []byte
	Type TypeIndex
}

var zeroPointer [PointerSize]byte

// Alloc obtains an owned heap block of size bytes.
func Alloc(size int) []byte {
	return make([]byte, size)
}

// AllocClear obtains an owned, zero-initialized heap block of size bytes.
func AllocClear(size int) []byte {
	return make([]byte, size)
}

// CopyTo copies size bytes from src to dst. The caller guarantees size
// does not exceed either buffer; this is a precondition, not a checked
// error.
func CopyTo(dst, src []byte, size int) {
	copy(dst[:size], src[:size])
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ResolveDst resolves a register operand to a destination view, relative
// to the environment executing the instruction.
func (e *Environment) ResolveDst(r Register) (DstData, error) {
	switch r.Kind {
	case RegZero:
		return DstData{Mode: DstDiscard}, nil
	case RegResult:
		env, err := e.qualified(r.Env)
		if err != nil {
			return DstData{}, err
		}
		return DstData{Mode: DstDynamic, Dyn: &env.result}, nil
	case RegGlobal:
		dyn, err := e.Root().regs.Dynamic(int(r.Index))
		if err != nil {
			return DstData{}, err
		}
		return DstData{Mode: DstDynamic, Dyn: dyn}, nil
	case RegTemp:
		env, err := e.qualified(r.Env)
		if err != nil {
			return DstData{}, err
		}
		dyn, err := env.DynamicRegister(int(r.Index), EnvTemp)
		if err != nil {
			return DstData{}, err
		}
		return DstData{Mode: DstDynamic, Dyn: dyn}, nil
	case RegDynamic:
		dyn, err := e.DynamicRegister(int(r.Index), r.Env)
		if err != nil {
			return DstData{}, err
		}
		return DstData{Mode: DstDynamic, Dyn: dyn}, nil
	case RegStatic:
		sta, err := e.StaticRegister(int(r.Index), r.Env)
		if err != nil {
			return DstData{}, err
		}
		return DstData{Mode: DstStatic, Sta: sta}, nil
	default:
		panic(fmt.Sprintf("vm: invalid register kind %d", r.Kind))
	}
}

// ResolveSrc resolves a register operand to a source view, relative to
// the environment executing the instruction. A static source takes its
// type from the declared static-variable list of the function owning the
// resolved environment, since static registers carry no tag of their own.
func (e *Environment) ResolveSrc(r Register) (SrcData, error) {
	switch r.Kind {
	case RegZero:
		return SrcData{Data: zeroPointer[:], Type: TypePointer}, nil
	case RegResult:
		env, err := e.qualified(r.Env)
		if err != nil {
			return SrcData{}, err
		}
		return SrcData{Data: env.result.Data, Type: env.result.Type}, nil
	case RegGlobal:
		dyn, err := e.Root().regs.Dynamic(int(r.Index))
		if err != nil {
			return SrcData{}, err
		}
		return SrcData{Data: dyn.Data, Type: dyn.Type}, nil
	case RegTemp:
		env, err := e.qualified(r.Env)
		if err != nil {
			return SrcData{}, err
		}
		dyn, err := env.DynamicRegister(int(r.Index), EnvTemp)
		if err != nil {
			return SrcData{}, err
		}
		return SrcData{Data: dyn.Data, Type: dyn.Type}, nil
	case RegDynamic:
		dyn, err := e.DynamicRegister(int(r.Index), r.Env)
		if err != nil {
			return SrcData{}, err
		}
		return SrcData{Data: dyn.Data, Type: dyn.Type}, nil
	case RegStatic:
		env, err := e.qualified(r.Env)
		if err != nil {
			return SrcData{}, err
		}
		sta, err := env.regs.Static(int(r.Index))
		if err != nil {
			return SrcData{}, err
		}
		if env.fn == nil || int(r.Index) >= len(env.fn.StaticTypes) {
			return SrcData{}, fmt.Errorf("vm: static register %d has no declared type in %s environment %s", r.Index, env.kind, env.id)
		}
		return SrcData{Data: sta.Data, Type: env.fn.StaticTypes[r.Index]}, nil
	default:
		panic(fmt.Sprintf("vm: invalid register kind %d", r.Kind))
	}
}

// MoveRegister copies a value from one register view to another.
//
// A dynamic destination is replaced: its current owned block is dropped,
// a new block sized from the source's declared type takes its place, and
// the destination's tag becomes the source's type. A static destination
// is overwritten in place within its own fixed capacity; its declared
// type never changes. A discard destination drops the bytes.
func MoveRegister(env *Environment, dst DstData, src SrcData) error {
	switch dst.Mode {
	case DstDiscard:
		return nil
	case DstDynamic:
		size, err := env.registrySizeOf(src.Type)
		if err != nil {
			return err
		}
		block := AllocClear(size)
		CopyTo(block, src.Data, min(size, len(src.Data)))
		dst.Dyn.Data = block
		dst.Dyn.Type = src.Type
		return nil
	case DstStatic:
		size, err := env.registrySizeOf(src.Type)
		if err != nil {
			return err
		}
		clearBytes(dst.Sta.Data)
		n := min(min(size, len(dst.Sta.Data)), len(src.Data))
		CopyTo(dst.Sta.Data, src.Data, n)
		return nil
	default:
		panic(fmt.Sprintf("vm: invalid destination mode %d", dst.Mode))
	}
}

// LoadData loads raw literal bytes into a register coerced to dstType.
// The transferred byte count is min(sizeof(dstType), srcSize): an
// oversized literal is truncated, an undersized one zero-padded. This is
// defined semantics, not an error.
func LoadData(env *Environment, dst DstData, src ConstDataPtr, dstType TypeIndex, srcSize int) error {
	size, err := env.registrySizeOf(dstType)
	if err != nil {
		return err
	}
	n := min(min(size, srcSize), src.Len())
	switch dst.Mode {
	case DstDiscard:
		return nil
	case DstDynamic:
		block := AllocClear(size)
		CopyTo(block, src.data, n)
		dst.Dyn.Data = block
		dst.Dyn.Type = dstType
		return nil
	case DstStatic:
		clearBytes(dst.Sta.Data)
		CopyTo(dst.Sta.Data, src.data, min(n, len(dst.Sta.Data)))
		return nil
	default:
		panic(fmt.Sprintf("vm: invalid destination mode %d", dst.Mode))
	}
}

// LoadDataPointer boxes literal bytes as a pointer value: the bytes are
// copied into a heap block and the block's address, pointer-sized, is
// stored into the destination. Dynamic destinations are tagged with the
// reserved pointer type. This is the runtime's only source of
// indirection.
func LoadDataPointer(env *Environment, dst DstData, src ConstDataPtr, srcSize int) error {
	if dst.Mode == DstDiscard {
		return nil
	}
	heap, err := env.Heap()
	if err != nil {
		return err
	}
	n := min(srcSize, src.Len())
	addr := heap.Box(src.data[:n])
	ptr := EncodeAddr(addr)
	switch dst.Mode {
	case DstDynamic:
		block := AllocClear(PointerSize)
		CopyTo(block, ptr, PointerSize)
		dst.Dyn.Data = block
		dst.Dyn.Type = TypePointer
		return nil
	case DstStatic:
		clearBytes(dst.Sta.Data)
		CopyTo(dst.Sta.Data, ptr, min(PointerSize, len(dst.Sta.Data)))
		return nil
	default:
		panic(fmt.Sprintf("vm: invalid destination mode %d", dst.Mode))
	}
}

// registrySizeOf looks up a type's byte size through the registry
// reachable from this environment.
func (e *Environment) registrySizeOf(idx TypeIndex) (int, error) {
	info, err := e.TypeAt(idx)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// FormatData renders raw bytes as a hex diagnostic string. The format
// carries no stability contract.
func FormatData(b []byte) string {
	return "[data: " + hex.EncodeToString(b) + "]"
}

// FormatDynamicRegister renders a dynamic register's bytes, bounded by
// its tagged type's size.
func FormatDynamicRegister(env *Environment, reg *DataRegisterDynamic) (string, error) {
	if reg.Data == nil {
		return "[null]", nil
	}
	size, err := env.registrySizeOf(reg.Type)
	if err != nil {
		return "", err
	}
	return FormatData(reg.Data[:min(size, len(reg.Data))]), nil
}

// FormatStaticRegister renders a static register's bytes, bounded by its
// declared type's size.
func FormatStaticRegister(env *Environment, reg *DataRegisterStatic, declared TypeIndex) (string, error) {
	size, err := env.registrySizeOf(declared)
	if err != nil {
		return "", err
	}
	return FormatData(reg.Data[:min(size, len(reg.Data))]), nil
}
