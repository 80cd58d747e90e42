package machine

// RV32I opcode majors.
const (
	opLUI    = 0x37
	opAUIPC  = 0x17
	opJAL    = 0x6f
	opJALR   = 0x67
	opBRANCH = 0x63
	opLOAD   = 0x03
	opSTORE  = 0x23
	opOPIMM  = 0x13
	opOP     = 0x33
	opSYSTEM = 0x73
)

func immI(inst uint32) int32 { return int32(inst) >> 20 }

func immS(inst uint32) int32 {
	return int32(inst&0xfe000000)>>20 | int32((inst>>7)&0x1f)
}

func immB(inst uint32) int32 {
	return int32(inst&0x80000000)>>19 |
		int32(inst&0x80)<<4 |
		int32(inst>>20)&0x7e0 |
		int32(inst>>7)&0x1e
}

func immU(inst uint32) int32 { return int32(inst & 0xfffff000) }

func immJ(inst uint32) int32 {
	return int32(inst&0x80000000)>>11 |
		int32(inst)&0xff000 |
		int32(inst>>9)&0x800 |
		int32(inst>>20)&0x7fe
}

// exec runs one decoded instruction. It returns true when the instruction
// trapped; otherwise the pc has advanced and execution may continue.
func (m *Machine) exec(inst uint32) bool {
	opcode := inst & 0x7f
	rd := int(inst >> 7 & 0x1f)
	funct3 := inst >> 12 & 0x7
	rs1 := int(inst >> 15 & 0x1f)
	rs2 := int(inst >> 20 & 0x1f)
	funct7 := inst >> 25

	next := m.pc + 4

	switch opcode {
	case opLUI:
		m.SetReg(rd, uint32(immU(inst)))

	case opAUIPC:
		m.SetReg(rd, m.pc+uint32(immU(inst)))

	case opJAL:
		m.SetReg(rd, next)
		next = m.pc + uint32(immJ(inst))

	case opJALR:
		if funct3 != 0 {
			return m.illegal(inst)
		}
		target := (m.Reg(rs1) + uint32(immI(inst))) &^ 1
		m.SetReg(rd, next)
		next = target

	case opBRANCH:
		a, b := m.Reg(rs1), m.Reg(rs2)
		var taken bool
		switch funct3 {
		case 0x0:
			taken = a == b
		case 0x1:
			taken = a != b
		case 0x4:
			taken = int32(a) < int32(b)
		case 0x5:
			taken = int32(a) >= int32(b)
		case 0x6:
			taken = a < b
		case 0x7:
			taken = a >= b
		default:
			return m.illegal(inst)
		}
		if taken {
			next = m.pc + uint32(immB(inst))
		}

	case opLOAD:
		addr := m.Reg(rs1) + uint32(immI(inst))
		var v uint32
		var err error
		switch funct3 {
		case 0x0: // lb
			v, err = m.mem.Load(addr, 1, true)
			v = uint32(int32(v<<24) >> 24)
		case 0x1: // lh
			v, err = m.mem.Load(addr, 2, true)
			v = uint32(int32(v<<16) >> 16)
		case 0x2: // lw
			v, err = m.mem.Load(addr, 4, true)
		case 0x4: // lbu
			v, err = m.mem.Load(addr, 1, true)
		case 0x5: // lhu
			v, err = m.mem.Load(addr, 2, true)
		default:
			return m.illegal(inst)
		}
		if err != nil {
			m.trap(CauseLoadAccessFault, addr)
			return true
		}
		m.SetReg(rd, v)

	case opSTORE:
		addr := m.Reg(rs1) + uint32(immS(inst))
		var n uint32
		switch funct3 {
		case 0x0:
			n = 1
		case 0x1:
			n = 2
		case 0x2:
			n = 4
		default:
			return m.illegal(inst)
		}
		if err := m.mem.Store(addr, n, m.Reg(rs2), true); err != nil {
			m.trap(CauseStoreAccessFault, addr)
			return true
		}

	case opOPIMM:
		a := m.Reg(rs1)
		imm := uint32(immI(inst))
		shamt := rs2
		var v uint32
		switch funct3 {
		case 0x0: // addi
			v = a + imm
		case 0x1: // slli
			if funct7 != 0 {
				return m.illegal(inst)
			}
			v = a << shamt
		case 0x2: // slti
			if int32(a) < int32(imm) {
				v = 1
			}
		case 0x3: // sltiu
			if a < imm {
				v = 1
			}
		case 0x4: // xori
			v = a ^ imm
		case 0x5: // srli / srai
			switch funct7 {
			case 0x00:
				v = a >> shamt
			case 0x20:
				v = uint32(int32(a) >> shamt)
			default:
				return m.illegal(inst)
			}
		case 0x6: // ori
			v = a | imm
		case 0x7: // andi
			v = a & imm
		}
		m.SetReg(rd, v)

	case opOP:
		a, b := m.Reg(rs1), m.Reg(rs2)
		var v uint32
		switch funct7<<3 | funct3 {
		case 0x00<<3 | 0x0: // add
			v = a + b
		case 0x20<<3 | 0x0: // sub
			v = a - b
		case 0x00<<3 | 0x1: // sll
			v = a << (b & 0x1f)
		case 0x00<<3 | 0x2: // slt
			if int32(a) < int32(b) {
				v = 1
			}
		case 0x00<<3 | 0x3: // sltu
			if a < b {
				v = 1
			}
		case 0x00<<3 | 0x4: // xor
			v = a ^ b
		case 0x00<<3 | 0x5: // srl
			v = a >> (b & 0x1f)
		case 0x20<<3 | 0x5: // sra
			v = uint32(int32(a) >> (b & 0x1f))
		case 0x00<<3 | 0x6: // or
			v = a | b
		case 0x00<<3 | 0x7: // and
			v = a & b
		default:
			return m.illegal(inst)
		}
		m.SetReg(rd, v)

	case opSYSTEM:
		switch inst {
		case 0x00000073: // ecall
			m.trap(CauseEnvCallUser, 0)
			return true
		case 0x00100073: // ebreak
			m.trap(CauseBreakpoint, m.pc)
			return true
		default:
			return m.illegal(inst)
		}

	default:
		return m.illegal(inst)
	}

	m.pc = next
	return false
}

func (m *Machine) illegal(inst uint32) bool {
	m.trap(CauseIllegalInstruction, inst)
	return true
}
