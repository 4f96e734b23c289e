package asm

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tarnlang/tarn/vm"
)

// ParseError is one diagnostic tied to a source line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ErrorList collects every diagnostic from one parse. Parsing continues
// past individual errors so a single run surfaces as many problems as
// possible.
type ErrorList []*ParseError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Program is the symbolic output of one parse: everything the compiler
// needs to lower a source file into the runtime representation.
type Program struct {
	Registry  *vm.TypeRegistry
	Functions map[string]*Function
	Entry     string
	Data      map[uint32][]byte
}

type section int

const (
	secNone section = iota
	secProgram
	secImports
	secExports
	secDatas
	secModule
	secFunc
	secType
)

var sectionNames = map[string]section{
	"program": secProgram,
	"imports": secImports,
	"exports": secExports,
	"datas":   secDatas,
	"module":  secModule,
	"func":    secFunc,
	"type":    secType,
}

var (
	regPlain = regexp.MustCompile(`^(\d+)$`)
	regEnv   = regexp.MustCompile(`^(\d+)\(%(\w+)\)$`)
)

type parser struct {
	prog     *Program
	errors   ErrorList
	line     int
	section  section
	currFunc *Function
	currType vm.TypeIndex
	haveType bool
}

// Parse parses assembly source text. On success the returned program
// carries a populated, unfrozen type registry. If any diagnostics were
// recorded the error is an ErrorList; the partial program is still
// returned for tooling that wants to inspect it.
func Parse(input string) (*Program, error) {
	p := &parser{
		prog: &Program{
			Registry:  vm.NewTypeRegistry(),
			Functions: make(map[string]*Function),
			Data:      make(map[uint32][]byte),
		},
	}
	for _, line := range strings.Split(input, "\n") {
		p.line++
		// Strip comment.
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		p.parseLine(line)
	}
	if len(p.errors) > 0 {
		return p.prog, p.errors
	}
	return p.prog, nil
}

func (p *parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)})
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t' || r == ','
}

func (p *parser) parseLine(line string) {
	fields := strings.FieldsFunc(line, isBlank)
	if len(fields) == 0 {
		// Separators only, e.g. a lone comma.
		p.errorf("unexpected text at start of line")
		return
	}
	switch {
	case line[0] == '.':
		p.parseSection(strings.TrimPrefix(fields[0], "."), fields[1:])
	case line[0] == ' ' || line[0] == '\t':
		if strings.HasPrefix(fields[0], ".") {
			p.parseSectionInside(strings.TrimPrefix(fields[0], "."), fields[1:])
		} else {
			p.parseInstruction(fields[0], fields[1:])
		}
	default:
		p.errorf("unexpected text at start of line")
	}
}

func (p *parser) parseSection(name string, args []string) {
	sec, ok := sectionNames[name]
	if !ok {
		p.errorf("unrecognized section %q", name)
		return
	}
	p.section = sec
	switch sec {
	case secProgram, secImports, secExports, secDatas, secModule:
		if len(args) != 0 {
			p.errorf("section .%s takes no arguments", name)
		}
	case secFunc:
		if len(args) != 1 {
			p.errorf("section .func expects a function name")
			return
		}
		fname := p.parseIdentifier(args[0])
		if _, ok := p.prog.Functions[fname]; ok {
			p.errorf("duplicate function name %q", fname)
			return
		}
		fn := &Function{Name: fname}
		p.prog.Functions[fname] = fn
		p.currFunc = fn
	case secType:
		if len(args) != 1 {
			p.errorf("section .type expects a type name")
			return
		}
		tname := p.parseIdentifier(args[0])
		if _, ok := p.prog.Registry.Find(tname); ok {
			p.errorf("duplicate type name %q", tname)
			p.haveType = false
			return
		}
		idx, err := p.prog.Registry.Insert(tname, vm.TypeInfo{})
		if err != nil {
			p.errorf("declaring type %q: %v", tname, err)
			p.haveType = false
			return
		}
		p.currType = idx
		p.haveType = true
	}
}

func (p *parser) parseSectionInside(cmd string, args []string) {
	switch p.section {
	case secFunc:
		if p.currFunc == nil {
			p.errorf("command %q before any .func declaration", cmd)
			return
		}
		switch cmd {
		case "arg":
			// Accepted for forward compatibility; carries no meaning yet.
		case "dyvarb":
			if len(args) != 1 {
				p.errorf(".dyvarb expects a count")
				return
			}
			p.currFunc.DynCount = int(p.parseUint(args[0], 16))
		case "stvarb":
			if len(args) != 2 {
				p.errorf(".stvarb expects a count and a type name")
				return
			}
			count := int(p.parseUint(args[0], 16))
			tname := p.parseIdentifier(args[1])
			for i := 0; i < count; i++ {
				p.currFunc.StaticTypeNames = append(p.currFunc.StaticTypeNames, tname)
			}
		default:
			p.errorf("unrecognized command %q in .func section", cmd)
		}
	case secProgram:
		if cmd != "entry" {
			p.errorf("unrecognized command %q in .program section", cmd)
			return
		}
		if len(args) != 1 {
			p.errorf(".entry expects a function name")
			return
		}
		p.prog.Entry = p.parseIdentifier(args[0])
	case secType:
		if cmd != "size" {
			p.errorf("unrecognized command %q in .type section", cmd)
			return
		}
		if len(args) != 1 {
			p.errorf(".size expects a byte count")
			return
		}
		if p.haveType {
			if err := p.prog.Registry.SetSize(p.currType, int(p.parseUint(args[0], 32))); err != nil {
				p.errorf("setting type size: %v", err)
			}
		}
	case secDatas:
		if cmd != "data" {
			p.errorf("unrecognized command %q in .datas section", cmd)
			return
		}
		p.parseData(args)
	default:
		p.errorf("unrecognized command %q", cmd)
	}
}

func (p *parser) parseData(args []string) {
	if len(args) != 3 {
		p.errorf(".data expects an index, a hex value and a size")
		return
	}
	idx := p.parseDataIndex(args[0])
	if _, ok := p.prog.Data[uint32(idx)]; ok {
		p.errorf("duplicate data index #%d", idx)
		return
	}
	size := int(p.parseUint(args[2], 32))
	hexWord := args[1]
	if len(hexWord) <= 2 || hexWord[0] != '0' || hexWord[1] != 'x' {
		p.errorf("unrecognized number %q: only hex unsigned integers are supported in the data section", hexWord)
		return
	}
	digits := hexWord[2:]
	if (len(digits)+1)/2 > size {
		p.errorf("data value %s does not fit in %d bytes", hexWord, size)
		return
	}
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}
	decoded, err := hex.DecodeString(digits)
	if err != nil {
		p.errorf("unrecognized number %q", hexWord)
		return
	}
	buffer := make([]byte, size)
	copy(buffer, decoded)
	p.prog.Data[uint32(idx)] = buffer
}

func (p *parser) parseInstruction(mnemonic string, args []string) {
	if p.section != secFunc || p.currFunc == nil {
		p.errorf("instruction %q outside a .func section", mnemonic)
		return
	}
	inst, ok := p.parseInstructionBase(mnemonic, args)
	if ok {
		p.currFunc.Insts = append(p.currFunc.Insts, inst)
	}
}

func (p *parser) parseInstructionBase(mnemonic string, args []string) (Instruction, bool) {
	switch mnemonic {
	case "mov":
		if len(args) != 2 {
			p.errorf("mov expects two registers")
			return nil, false
		}
		return Move{
			Dst: p.parseRegister(args[0]),
			Src: p.parseRegister(args[1]),
		}, true
	case "load":
		if len(args) != 3 {
			p.errorf("load expects a register, a value and a type")
			return nil, false
		}
		dst := p.parseRegister(args[0])
		if strings.HasPrefix(args[1], "#") {
			return LoadData{
				Dst:      dst,
				Data:     p.parseDataIndex(args[1]),
				TypeName: p.parseIdentifier(args[2]),
			}, true
		}
		return LoadImm{
			Dst:      dst,
			Value:    p.parseImmediate(args[1]),
			TypeName: p.parseIdentifier(args[2]),
		}, true
	case "loadp":
		if len(args) != 2 {
			p.errorf("loadp expects a register and a data index")
			return nil, false
		}
		return LoadPointer{
			Dst:  p.parseRegister(args[0]),
			Data: p.parseDataIndex(args[1]),
		}, true
	case "ret":
		return Return{}, true
	case "db_opreg":
		return DebugOutputRegister{}, true
	default:
		p.errorf("unrecognized instruction %q", mnemonic)
		return nil, false
	}
}

func (p *parser) parseRegister(word string) Register {
	if word == "" || word[0] != '%' {
		p.errorf("unrecognized register %q", word)
		return Register{}
	}
	if word == "%res" {
		return Register{Kind: RegResult}
	}
	if word == "%0" {
		return Register{Kind: RegZero}
	}

	var kind RegisterKind
	rest := word[1:]
	switch {
	case strings.HasPrefix(rest, "g"):
		kind = RegGlobal
		rest = rest[1:]
	case strings.HasPrefix(rest, "t"):
		kind = RegTemp
		rest = rest[1:]
	case rest != "" && rest[0] >= '0' && rest[0] <= '9':
		kind = RegNumbered
	default:
		p.errorf("unrecognized register %q", word)
		return Register{}
	}

	var index uint16
	env := EnvCurrent
	if m := regPlain.FindStringSubmatch(rest); m != nil {
		index = uint16(p.parseUint(m[1], 16))
	} else if m := regEnv.FindStringSubmatch(rest); m != nil {
		index = uint16(p.parseUint(m[1], 16))
		switch m[2] {
		case "env":
			env = EnvCurrent
		case "penv":
			env = EnvParent
		case "tenv":
			env = EnvTemp
		default:
			p.errorf("unrecognized environment %q", m[2])
		}
	} else {
		p.errorf("unrecognized register %q", word)
	}
	return Register{Kind: kind, Env: env, Index: index}
}

func (p *parser) parseDataIndex(word string) DataIndex {
	if word == "" || word[0] != '#' {
		p.errorf("unrecognized data index %q", word)
		return 0
	}
	return DataIndex(p.parseUint(word[1:], 32))
}

// parseImmediate parses a decimal or 0x-prefixed immediate. Immediates
// are limited to 32 bits, matching the width of the inline data operand.
func (p *parser) parseImmediate(word string) uint64 {
	base := 10
	nword := word
	if len(word) > 2 && word[0] == '0' && word[1] == 'x' {
		base = 16
		nword = word[2:]
	}
	v, err := strconv.ParseUint(nword, base, 32)
	if err != nil {
		if isDigits(nword, base) {
			p.errorf("number %q too large", word)
		} else {
			p.errorf("unrecognized number %q", word)
		}
		return 0
	}
	return v
}

func (p *parser) parseUint(word string, bits int) uint64 {
	v, err := strconv.ParseUint(word, 10, bits)
	if err != nil {
		if isDigits(word, 10) {
			p.errorf("number %q too large", word)
		} else {
			p.errorf("unrecognized number %q", word)
		}
		return 0
	}
	return v
}

func isDigits(word string, base int) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		switch {
		case r >= '0' && r <= '9':
		case base == 16 && ((r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')):
		default:
			return false
		}
	}
	return true
}

// parseIdentifier unescapes an identifier: '%' escapes the next
// character, allowing '%' and '#' to appear in names.
func (p *parser) parseIdentifier(word string) string {
	var sb strings.Builder
	escape := false
	for _, c := range word {
		if escape {
			escape = false
			if c == '%' || c == '#' {
				sb.WriteRune(c)
			} else {
				p.errorf("unrecognized escape %%%c in %q", c, word)
			}
			continue
		}
		if c == '%' {
			escape = true
			continue
		}
		sb.WriteRune(c)
	}
	if escape {
		p.errorf("unrecognized escape at end of %q", word)
	}
	return sb.String()
}
