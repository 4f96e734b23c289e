package vm

import (
	"fmt"
	"strings"
)

// FormatInstruction renders one compiled instruction in assembly-like
// form. Type indices are resolved to names through the registry when one
// is supplied.
func FormatInstruction(inst Instruction, registry *TypeRegistry) string {
	typeName := func(idx TypeIndex) string {
		if registry != nil {
			if info, err := registry.At(idx); err == nil && info.Name != "" {
				return info.Name
			}
		}
		return fmt.Sprintf("type#%d", idx)
	}

	switch inst.Op {
	case OpMove:
		return fmt.Sprintf("mov %s %s", inst.Dst, inst.Src)
	case OpLoadImm:
		return fmt.Sprintf("load %s %d %s", inst.Dst, inst.Imm, typeName(inst.Type))
	case OpLoadData:
		return fmt.Sprintf("load %s %s %s", inst.Dst, FormatData(inst.Data.data), typeName(inst.Type))
	case OpLoadPointer:
		return fmt.Sprintf("loadp %s %s", inst.Dst, FormatData(inst.Data.data))
	case OpReturn:
		return "ret"
	case OpDebugOutputRegister:
		return "db_opreg"
	default:
		return fmt.Sprintf("%s ???", inst.Op)
	}
}

// Disassemble returns a human-readable listing of a compiled function.
func Disassemble(fn *Function, registry *TypeRegistry) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", fn.Name))
	sb.WriteString(fmt.Sprintf("; dynamic vars: %d\n", fn.DynCount))
	if len(fn.StaticTypes) > 0 {
		sb.WriteString("; static vars:")
		for _, ti := range fn.StaticTypes {
			name := fmt.Sprintf("type#%d", ti)
			if registry != nil {
				if info, err := registry.At(ti); err == nil && info.Name != "" {
					name = info.Name
				}
			}
			sb.WriteString(" " + name)
		}
		sb.WriteString("\n")
	}
	for i, inst := range fn.Insts {
		sb.WriteString(fmt.Sprintf("%04d  %s\n", i, FormatInstruction(inst, registry)))
	}
	return sb.String()
}
