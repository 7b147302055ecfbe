package cpu

// executeInstruction dispatches on the raw opcode byte and performs its
// effect, returning any extra cycles beyond the table's base Cycles
// value (branches taken/page-crossed, etc).
func (cpu *CPU) executeInstruction(opcode uint8, address uint16, pageCrossed bool) uint8 {
	switch opcode {

	// --- Load/Store ---
	case 0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1:
		cpu.lda(address)
	case 0xA2, 0xA6, 0xB6, 0xAE, 0xBE:
		cpu.ldx(address)
	case 0xA0, 0xA4, 0xB4, 0xAC, 0xBC:
		cpu.ldy(address)
	case 0x85, 0x95, 0x8D, 0x9D, 0x99, 0x81, 0x91:
		cpu.sta(address)
	case 0x86, 0x96, 0x8E:
		cpu.stx(address)
	case 0x84, 0x94, 0x8C:
		cpu.sty(address)

	// --- Transfers ---
	case 0xAA:
		cpu.X = cpu.A
		cpu.setZN(cpu.X)
	case 0xA8:
		cpu.Y = cpu.A
		cpu.setZN(cpu.Y)
	case 0x8A:
		cpu.A = cpu.X
		cpu.setZN(cpu.A)
	case 0x98:
		cpu.A = cpu.Y
		cpu.setZN(cpu.A)
	case 0x9A:
		cpu.SP = cpu.X
	case 0xBA:
		cpu.X = cpu.SP
		cpu.setZN(cpu.X)

	// --- Stack ---
	case 0x48:
		cpu.push(cpu.A)
	case 0x68:
		cpu.A = cpu.pop()
		cpu.setZN(cpu.A)
	case 0x08:
		cpu.push(cpu.GetStatusByte() | bFlagMask)
	case 0x28:
		cpu.SetStatusByte(cpu.pop())

	// --- Logical ---
	case 0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31:
		cpu.and(address)
	case 0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11:
		cpu.ora(address)
	case 0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51:
		cpu.eor(address)
	case 0x24, 0x2C:
		cpu.bit(address)

	// --- Arithmetic ---
	case 0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71:
		cpu.adc(address)
	case 0xE9, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1, 0xEB:
		cpu.sbc(address)
	case 0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1:
		cpu.compare(&cpu.A, address)
	case 0xE0, 0xE4, 0xEC:
		cpu.compare(&cpu.X, address)
	case 0xC0, 0xC4, 0xCC:
		cpu.compare(&cpu.Y, address)

	// --- Increment/Decrement ---
	case 0xE6, 0xF6, 0xEE, 0xFE:
		cpu.inc(address)
	case 0xC6, 0xD6, 0xCE, 0xDE:
		cpu.dec(address)
	case 0xE8:
		cpu.X++
		cpu.setZN(cpu.X)
	case 0xC8:
		cpu.Y++
		cpu.setZN(cpu.Y)
	case 0xCA:
		cpu.X--
		cpu.setZN(cpu.X)
	case 0x88:
		cpu.Y--
		cpu.setZN(cpu.Y)

	// --- Shifts/Rotates ---
	case 0x0A:
		cpu.A = cpu.aslValue(cpu.A)
	case 0x06, 0x16, 0x0E, 0x1E:
		cpu.aslMem(address)
	case 0x4A:
		cpu.A = cpu.lsrValue(cpu.A)
	case 0x46, 0x56, 0x4E, 0x5E:
		cpu.lsrMem(address)
	case 0x2A:
		cpu.A = cpu.rolValue(cpu.A)
	case 0x26, 0x36, 0x2E, 0x3E:
		cpu.rolMem(address)
	case 0x6A:
		cpu.A = cpu.rorValue(cpu.A)
	case 0x66, 0x76, 0x6E, 0x7E:
		cpu.rorMem(address)

	// --- Jumps/Calls ---
	case 0x4C, 0x6C:
		cpu.PC = address
	case 0x20:
		cpu.pushWord(cpu.PC - 1)
		cpu.PC = address
	case 0x60:
		cpu.PC = cpu.popWord() + 1
	case 0x40:
		cpu.SetStatusByte(cpu.pop())
		cpu.PC = cpu.popWord()
	case 0x00:
		cpu.PC++
		cpu.pushWord(cpu.PC)
		cpu.push(cpu.GetStatusByte() | bFlagMask)
		cpu.I = true
		low := uint16(cpu.memory.Read(irqVector))
		high := uint16(cpu.memory.Read(irqVector + 1))
		cpu.PC = (high << 8) | low

	// --- Branches ---
	case 0x90:
		return cpu.branch(!cpu.C, address)
	case 0xB0:
		return cpu.branch(cpu.C, address)
	case 0xF0:
		return cpu.branch(cpu.Z, address)
	case 0xD0:
		return cpu.branch(!cpu.Z, address)
	case 0x30:
		return cpu.branch(cpu.N, address)
	case 0x10:
		return cpu.branch(!cpu.N, address)
	case 0x50:
		return cpu.branch(!cpu.V, address)
	case 0x70:
		return cpu.branch(cpu.V, address)

	// --- Flag operations ---
	case 0x18:
		cpu.C = false
	case 0x38:
		cpu.C = true
	case 0x58:
		cpu.I = false
	case 0x78:
		cpu.I = true
	case 0xB8:
		cpu.V = false
	case 0xD8:
		cpu.D = false
	case 0xF8:
		cpu.D = true

	// --- No-op ---
	case 0xEA,
		0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xFA, // unofficial single-byte NOP
		0x80, 0x82, 0x89, 0xC2, 0xE2, // unofficial immediate NOP
		0x04, 0x44, 0x64, 0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4, // unofficial zero-page NOP
		0x0C, 0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC: // unofficial absolute NOP

	// --- Unofficial combined opcodes ---
	case 0xA7, 0xB7, 0xAF, 0xBF, 0xA3, 0xB3:
		cpu.lax(address)
	case 0x87, 0x97, 0x8F, 0x83:
		cpu.sax(address)
	case 0xC7, 0xD7, 0xCF, 0xDF, 0xDB, 0xC3, 0xD3:
		cpu.dcp(address)
	case 0xE7, 0xF7, 0xEF, 0xFF, 0xFB, 0xE3, 0xF3:
		cpu.isb(address)
	case 0x07, 0x17, 0x0F, 0x1F, 0x1B, 0x03, 0x13:
		cpu.slo(address)
	case 0x27, 0x37, 0x2F, 0x3F, 0x3B, 0x23, 0x33:
		cpu.rla(address)
	case 0x47, 0x57, 0x4F, 0x5F, 0x5B, 0x43, 0x53:
		cpu.sre(address)
	case 0x67, 0x77, 0x6F, 0x7F, 0x7B, 0x63, 0x73:
		cpu.rra(address)

	default:
		panic(&FatalError{PC: cpu.PC, Opcode: opcode, A: cpu.A, X: cpu.X, Y: cpu.Y, SP: cpu.SP})
	}

	return 0
}

func (cpu *CPU) lda(address uint16) {
	cpu.A = cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) ldx(address uint16) {
	cpu.X = cpu.memory.Read(address)
	cpu.setZN(cpu.X)
}

func (cpu *CPU) ldy(address uint16) {
	cpu.Y = cpu.memory.Read(address)
	cpu.setZN(cpu.Y)
}

func (cpu *CPU) sta(address uint16) { cpu.memory.Write(address, cpu.A) }
func (cpu *CPU) stx(address uint16) { cpu.memory.Write(address, cpu.X) }
func (cpu *CPU) sty(address uint16) { cpu.memory.Write(address, cpu.Y) }

func (cpu *CPU) and(address uint16) {
	cpu.A &= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) ora(address uint16) {
	cpu.A |= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) eor(address uint16) {
	cpu.A ^= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) bit(address uint16) {
	value := cpu.memory.Read(address)
	cpu.Z = (cpu.A & value) == 0
	cpu.V = value&vFlagMask != 0
	cpu.N = value&nFlagMask != 0
}

func (cpu *CPU) adc(address uint16) {
	value := cpu.memory.Read(address)
	cpu.addWithCarry(value)
}

func (cpu *CPU) sbc(address uint16) {
	value := cpu.memory.Read(address)
	cpu.addWithCarry(value ^ 0xFF)
}

func (cpu *CPU) addWithCarry(value uint8) {
	carryIn := uint16(0)
	if cpu.C {
		carryIn = 1
	}
	sum := uint16(cpu.A) + uint16(value) + carryIn
	result := uint8(sum)

	cpu.C = sum > 0xFF
	cpu.V = (cpu.A^value)&0x80 == 0 && (cpu.A^result)&0x80 != 0
	cpu.A = result
	cpu.setZN(cpu.A)
}

func (cpu *CPU) compare(reg *uint8, address uint16) {
	value := cpu.memory.Read(address)
	result := *reg - value
	cpu.C = *reg >= value
	cpu.setZN(result)
}

func (cpu *CPU) inc(address uint16) {
	value := cpu.memory.Read(address) + 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
}

func (cpu *CPU) dec(address uint16) {
	value := cpu.memory.Read(address) - 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
}

func (cpu *CPU) aslValue(value uint8) uint8 {
	cpu.C = value&0x80 != 0
	result := value << 1
	cpu.setZN(result)
	return result
}

func (cpu *CPU) aslMem(address uint16) {
	cpu.memory.Write(address, cpu.aslValue(cpu.memory.Read(address)))
}

func (cpu *CPU) lsrValue(value uint8) uint8 {
	cpu.C = value&0x01 != 0
	result := value >> 1
	cpu.setZN(result)
	return result
}

func (cpu *CPU) lsrMem(address uint16) {
	cpu.memory.Write(address, cpu.lsrValue(cpu.memory.Read(address)))
}

func (cpu *CPU) rolValue(value uint8) uint8 {
	carryIn := uint8(0)
	if cpu.C {
		carryIn = 1
	}
	cpu.C = value&0x80 != 0
	result := (value << 1) | carryIn
	cpu.setZN(result)
	return result
}

func (cpu *CPU) rolMem(address uint16) {
	cpu.memory.Write(address, cpu.rolValue(cpu.memory.Read(address)))
}

func (cpu *CPU) rorValue(value uint8) uint8 {
	carryIn := uint8(0)
	if cpu.C {
		carryIn = 0x80
	}
	cpu.C = value&0x01 != 0
	result := (value >> 1) | carryIn
	cpu.setZN(result)
	return result
}

func (cpu *CPU) rorMem(address uint16) {
	cpu.memory.Write(address, cpu.rorValue(cpu.memory.Read(address)))
}

// branch takes the branch if cond is true, returning the extra cycles a
// taken/page-crossing branch costs (the 6502 charges 1 cycle for a taken
// branch, 2 if it also crosses a page).
func (cpu *CPU) branch(cond bool, target uint16) uint8 {
	if !cond {
		return 0
	}
	oldPC := cpu.PC
	cpu.PC = target
	if (oldPC & pageMask) != (target & pageMask) {
		return 2
	}
	return 1
}

// Unofficial/illegal opcodes. These combine a load or store with a
// read-modify-write operation in a single bus cycle on real silicon;
// emulated here as their component operations run back to back.

func (cpu *CPU) lax(address uint16) {
	value := cpu.memory.Read(address)
	cpu.A = value
	cpu.X = value
	cpu.setZN(value)
}

func (cpu *CPU) sax(address uint16) {
	cpu.memory.Write(address, cpu.A&cpu.X)
}

func (cpu *CPU) dcp(address uint16) {
	value := cpu.memory.Read(address) - 1
	cpu.memory.Write(address, value)
	cpu.C = cpu.A >= value
	cpu.setZN(cpu.A - value)
}

func (cpu *CPU) isb(address uint16) {
	value := cpu.memory.Read(address) + 1
	cpu.memory.Write(address, value)
	cpu.addWithCarry(value ^ 0xFF)
}

func (cpu *CPU) slo(address uint16) {
	value := cpu.aslValue(cpu.memory.Read(address))
	cpu.memory.Write(address, value)
	cpu.A |= value
	cpu.setZN(cpu.A)
}

func (cpu *CPU) rla(address uint16) {
	value := cpu.rolValue(cpu.memory.Read(address))
	cpu.memory.Write(address, value)
	cpu.A &= value
	cpu.setZN(cpu.A)
}

func (cpu *CPU) sre(address uint16) {
	value := cpu.lsrValue(cpu.memory.Read(address))
	cpu.memory.Write(address, value)
	cpu.A ^= value
	cpu.setZN(cpu.A)
}

func (cpu *CPU) rra(address uint16) {
	value := cpu.rorValue(cpu.memory.Read(address))
	cpu.memory.Write(address, value)
	cpu.addWithCarry(value)
}
