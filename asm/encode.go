package asm

import (
	"fmt"
	"strings"
)

var regNames = map[string]int{
	"zero": 0, "ra": 1, "sp": 2, "gp": 3, "tp": 4,
	"t0": 5, "t1": 6, "t2": 7,
	"s0": 8, "fp": 8, "s1": 9,
	"a0": 10, "a1": 11, "a2": 12, "a3": 13, "a4": 14, "a5": 15, "a6": 16, "a7": 17,
	"s2": 18, "s3": 19, "s4": 20, "s5": 21, "s6": 22, "s7": 23, "s8": 24, "s9": 25,
	"s10": 26, "s11": 27,
	"t3": 28, "t4": 29, "t5": 30, "t6": 31,
}

func init() {
	for i := 0; i < 32; i++ {
		regNames[fmt.Sprintf("x%d", i)] = i
	}
}

func encR(op, rd, f3, rs1, rs2, f7 uint32) uint32 {
	return f7<<25 | rs2<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func encI(op, rd, f3, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func encS(op, f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | rs2<<20 | rs1<<15 | f3<<12 | (u&0x1f)<<7 | op
}

func encB(op, f3, rs1, rs2 uint32, off int32) uint32 {
	u := uint32(off)
	return (u>>12&1)<<31 | (u>>5&0x3f)<<25 | rs2<<20 | rs1<<15 | f3<<12 |
		(u>>1&0xf)<<8 | (u>>11&1)<<7 | op
}

func encU(op, rd, imm20 uint32) uint32 {
	return imm20<<12 | rd<<7 | op
}

func encJ(op, rd uint32, off int32) uint32 {
	u := uint32(off)
	return (u>>20&1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&1)<<20 | (u>>12&0xff)<<12 | rd<<7 | op
}

type enc struct {
	s      *stmt
	labels map[string]uint32
}

func (e *enc) errf(format string, args ...any) error {
	return fmt.Errorf("asm: line %d: %s: "+format,
		append([]any{e.s.line, e.s.mn}, args...)...)
}

func (e *enc) reg(arg string) (uint32, error) {
	r, ok := regNames[strings.ToLower(arg)]
	if !ok {
		return 0, e.errf("unknown register %q", arg)
	}
	return uint32(r), nil
}

func (e *enc) imm(arg string, bits uint) (int32, error) {
	v, err := parseImm(arg)
	if err != nil {
		if addr, ok := e.labels[arg]; ok {
			v = int64(int32(addr))
		} else {
			return 0, e.errf("bad immediate %q", arg)
		}
	}
	if bits < 32 {
		min, max := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
		if v < min || v > max {
			return 0, e.errf("immediate %d out of %d-bit range", v, bits)
		}
	}
	return int32(v), nil
}

// value resolves a full 32-bit immediate or label address (for li/la/.word).
func (e *enc) value(arg string) (uint32, error) {
	if addr, ok := e.labels[arg]; ok {
		return addr, nil
	}
	v, err := parseImm(arg)
	if err != nil {
		return 0, e.errf("bad value %q", arg)
	}
	return uint32(v), nil
}

// offset resolves a pc-relative branch/jump target.
func (e *enc) offset(arg string) (int32, error) {
	if addr, ok := e.labels[arg]; ok {
		return int32(addr - e.s.addr), nil
	}
	v, err := parseImm(arg)
	if err != nil {
		return 0, e.errf("bad target %q", arg)
	}
	return int32(v), nil
}

// memOperand parses "off(reg)".
func (e *enc) memOperand(arg string) (int32, uint32, error) {
	open := strings.IndexByte(arg, '(')
	if open < 0 || !strings.HasSuffix(arg, ")") {
		return 0, 0, e.errf("bad memory operand %q", arg)
	}
	offStr := arg[:open]
	if offStr == "" {
		offStr = "0"
	}
	off, err := e.imm(offStr, 12)
	if err != nil {
		return 0, 0, err
	}
	rs, err := e.reg(arg[open+1 : len(arg)-1])
	if err != nil {
		return 0, 0, err
	}
	return off, rs, nil
}

func words(ws ...uint32) []byte {
	b := make([]byte, 0, 4*len(ws))
	for _, w := range ws {
		b = append(b, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return b
}

// luiAddiPair splits an absolute value for a lui+addi sequence.
func luiAddiPair(v uint32) (hi uint32, lo int32) {
	hi = (v + 0x800) >> 12 & 0xfffff
	lo = int32(v) - int32(hi<<12)
	return hi, lo
}

var opImm = map[string]uint32{
	"addi": 0x0, "slti": 0x2, "sltiu": 0x3, "xori": 0x4, "ori": 0x6, "andi": 0x7,
}

var opReg = map[string]struct{ f3, f7 uint32 }{
	"add": {0x0, 0x00}, "sub": {0x0, 0x20},
	"sll": {0x1, 0x00}, "slt": {0x2, 0x00}, "sltu": {0x3, 0x00},
	"xor": {0x4, 0x00}, "srl": {0x5, 0x00}, "sra": {0x5, 0x20},
	"or": {0x6, 0x00}, "and": {0x7, 0x00},
}

var branches = map[string]uint32{
	"beq": 0x0, "bne": 0x1, "blt": 0x4, "bge": 0x5, "bltu": 0x6, "bgeu": 0x7,
}

var loads = map[string]uint32{
	"lb": 0x0, "lh": 0x1, "lw": 0x2, "lbu": 0x4, "lhu": 0x5,
}

var stores = map[string]uint32{
	"sb": 0x0, "sh": 0x1, "sw": 0x2,
}

func encode(s *stmt, labels map[string]uint32) ([]byte, error) {
	e := &enc{s: s, labels: labels}
	need := func(n int) error {
		if len(s.args) != n {
			return e.errf("want %d operands, have %d", n, len(s.args))
		}
		return nil
	}

	switch {
	case s.mn == ".word":
		var ws []uint32
		for _, a := range s.args {
			v, err := e.value(a)
			if err != nil {
				return nil, err
			}
			ws = append(ws, v)
		}
		return words(ws...), nil

	case s.mn == ".byte":
		var b []byte
		for _, a := range s.args {
			v, err := e.imm(a, 32)
			if err != nil {
				return nil, err
			}
			b = append(b, byte(v))
		}
		return b, nil

	case s.mn == ".ascii":
		return []byte(s.ascii), nil

	case s.mn == ".zero":
		n, _ := parseImm(s.args[0])
		return make([]byte, n), nil

	case s.mn == ".align":
		return make([]byte, align4(s.addr)-s.addr), nil

	case s.mn == "ecall":
		return words(0x00000073), nil

	case s.mn == "ebreak":
		return words(0x00100073), nil

	case s.mn == "unimp":
		return words(0x00000000), nil

	case s.mn == "nop":
		return words(encI(0x13, 0, 0, 0, 0)), nil

	case s.mn == "ret":
		return words(encI(0x67, 0, 0, 1, 0)), nil

	case s.mn == "mv":
		if err := need(2); err != nil {
			return nil, err
		}
		rd, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		rs, err := e.reg(s.args[1])
		if err != nil {
			return nil, err
		}
		return words(encI(0x13, rd, 0, rs, 0)), nil

	case s.mn == "li", s.mn == "la":
		if err := need(2); err != nil {
			return nil, err
		}
		rd, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		v, err := e.value(s.args[1])
		if err != nil {
			return nil, err
		}
		hi, lo := luiAddiPair(v)
		return words(encU(0x37, rd, hi), encI(0x13, rd, 0, rd, lo)), nil

	case s.mn == "lui", s.mn == "auipc":
		if err := need(2); err != nil {
			return nil, err
		}
		rd, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		v, err := e.imm(s.args[1], 32)
		if err != nil {
			return nil, err
		}
		op := uint32(0x37)
		if s.mn == "auipc" {
			op = 0x17
		}
		return words(encU(op, rd, uint32(v)&0xfffff)), nil

	case s.mn == "j":
		if err := need(1); err != nil {
			return nil, err
		}
		off, err := e.offset(s.args[0])
		if err != nil {
			return nil, err
		}
		return words(encJ(0x6f, 0, off)), nil

	case s.mn == "jal":
		if err := need(2); err != nil {
			return nil, err
		}
		rd, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		off, err := e.offset(s.args[1])
		if err != nil {
			return nil, err
		}
		return words(encJ(0x6f, rd, off)), nil

	case s.mn == "jalr":
		if err := need(2); err != nil {
			return nil, err
		}
		rd, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		off, rs1, err := e.memOperand(s.args[1])
		if err != nil {
			return nil, err
		}
		return words(encI(0x67, rd, 0, rs1, off)), nil

	case s.mn == "slli", s.mn == "srli", s.mn == "srai":
		if err := need(3); err != nil {
			return nil, err
		}
		rd, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		rs1, err := e.reg(s.args[1])
		if err != nil {
			return nil, err
		}
		sh, err := e.imm(s.args[2], 6)
		if err != nil || sh < 0 || sh > 31 {
			return nil, e.errf("bad shift amount %q", s.args[2])
		}
		f3, f7 := uint32(0x1), uint32(0x00)
		switch s.mn {
		case "srli":
			f3 = 0x5
		case "srai":
			f3, f7 = 0x5, 0x20
		}
		return words(encR(0x13, rd, f3, rs1, uint32(sh), f7)), nil

	default:
	}

	if f3, ok := opImm[s.mn]; ok {
		if err := need(3); err != nil {
			return nil, err
		}
		rd, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		rs1, err := e.reg(s.args[1])
		if err != nil {
			return nil, err
		}
		imm, err := e.imm(s.args[2], 12)
		if err != nil {
			return nil, err
		}
		return words(encI(0x13, rd, f3, rs1, imm)), nil
	}

	if f, ok := opReg[s.mn]; ok {
		if err := need(3); err != nil {
			return nil, err
		}
		rd, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		rs1, err := e.reg(s.args[1])
		if err != nil {
			return nil, err
		}
		rs2, err := e.reg(s.args[2])
		if err != nil {
			return nil, err
		}
		return words(encR(0x33, rd, f.f3, rs1, rs2, f.f7)), nil
	}

	if f3, ok := branches[s.mn]; ok {
		if err := need(3); err != nil {
			return nil, err
		}
		rs1, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		rs2, err := e.reg(s.args[1])
		if err != nil {
			return nil, err
		}
		off, err := e.offset(s.args[2])
		if err != nil {
			return nil, err
		}
		return words(encB(0x63, f3, rs1, rs2, off)), nil
	}

	if f3, ok := loads[s.mn]; ok {
		if err := need(2); err != nil {
			return nil, err
		}
		rd, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		off, rs1, err := e.memOperand(s.args[1])
		if err != nil {
			return nil, err
		}
		return words(encI(0x03, rd, f3, rs1, off)), nil
	}

	if f3, ok := stores[s.mn]; ok {
		if err := need(2); err != nil {
			return nil, err
		}
		rs2, err := e.reg(s.args[0])
		if err != nil {
			return nil, err
		}
		off, rs1, err := e.memOperand(s.args[1])
		if err != nil {
			return nil, err
		}
		return words(encS(0x23, f3, rs1, rs2, off)), nil
	}

	return nil, e.errf("unknown mnemonic")
}
