// Package cpu implements the 6502-family CPU core of the emulated
// console, including the full official instruction set, the commonly
// emulated unofficial opcodes, and 6502 interrupt sequencing.
package cpu

import "fmt"

// AddressingMode identifies how an instruction's operand address is
// computed.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// Instruction describes one entry of the 256-slot opcode table.
type Instruction struct {
	Name   string
	Opcode uint8
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
}

// MemoryInterface is the address-space view the CPU executes against.
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// FatalError reports a CPU-detected machine violation — an opcode with
// no table entry. Execution cannot continue once one of these occurs;
// the scheduler is expected to propagate it up to the application, which
// prints the register snapshot and exits rather than silently skipping
// the byte.
type FatalError struct {
	PC     uint16
	Opcode uint8
	A, X, Y, SP uint8
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("illegal opcode $%02X at PC=$%04X (A=$%02X X=$%02X Y=$%02X SP=$%02X)",
		e.Opcode, e.PC, e.A, e.X, e.Y, e.SP)
}

// CPU is a single 6502-family core with its registers, status flags, and
// interrupt lines.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	C, Z, I, D, B, V, N bool

	memory MemoryInterface

	cycles uint64

	instructions [256]*Instruction

	nmiPending  bool
	irqPending  bool
	nmiPrevious bool
}

// New creates a CPU wired to memory, with SP at its post-reset value. PC
// is left at 0 until Reset reads the reset vector.
func New(memory MemoryInterface) *CPU {
	cpu := &CPU{memory: memory, SP: 0xFD}
	cpu.initInstructions()
	return cpu
}

// Reset performs the 6502 reset sequence: 5 dummy bus cycles followed by
// a little-endian read of the reset vector into PC. Matches real
// hardware's 7-cycle reset latency.
func (cpu *CPU) Reset() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD

	cpu.C, cpu.Z, cpu.D, cpu.V, cpu.N = false, false, false, false, false
	cpu.I = true
	cpu.B = true

	for i := 0; i < 5; i++ {
		cpu.memory.Read(cpu.PC)
		cpu.cycles++
	}

	low := uint16(cpu.memory.Read(resetVector))
	high := uint16(cpu.memory.Read(resetVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 2
}

// Step fetches, decodes and executes one instruction, then services any
// interrupt that became pending during it. Returns the number of CPU
// cycles consumed.
func (cpu *CPU) Step() uint64 {
	opcode := cpu.memory.Read(cpu.PC)
	instruction := cpu.instructions[opcode]

	if instruction == nil {
		panic(&FatalError{PC: cpu.PC, Opcode: opcode, A: cpu.A, X: cpu.X, Y: cpu.Y, SP: cpu.SP})
	}

	address, pageCrossed := cpu.getOperandAddress(instruction.Mode)
	extraCycles := cpu.executeInstruction(opcode, address, pageCrossed)

	if pageCrossed {
		switch opcode {
		case 0x9D, 0x99, 0x91: // STA absolute,X / absolute,Y / (zp),Y: no penalty, addressed above only for reads
		default:
			if pageCrossPenalty[opcode] {
				extraCycles++
			}
		}
	}

	total := uint64(instruction.Cycles) + uint64(extraCycles)
	cpu.cycles += total

	beforeInterrupt := cpu.cycles
	cpu.ProcessPendingInterrupts()
	return total + (cpu.cycles - beforeInterrupt)
}

// pageCrossPenalty marks read-type opcodes (official and the commonly
// emulated unofficial ones) whose indexed/indirect addressing modes cost
// one extra cycle when the effective address crosses a page boundary.
var pageCrossPenalty = map[uint8]bool{
	0xBD: true, 0xB9: true, 0xB1: true, 0xBE: true, 0xBC: true,
	0x7D: true, 0x79: true, 0x71: true,
	0x3D: true, 0x39: true, 0x31: true,
	0x1D: true, 0x19: true, 0x11: true,
	0x5D: true, 0x59: true, 0x51: true,
	0xDD: true, 0xD9: true, 0xD1: true,
	0x1C: true, 0x3C: true, 0x5C: true, 0x7C: true, 0xDC: true, 0xFC: true,
	0xBF: true, 0xB3: true,
}

// getOperandAddress computes the effective address for mode, advancing PC
// past the instruction's operand bytes. The second return reports a
// page-boundary crossing for cycle-penalty accounting.
func (cpu *CPU) getOperandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false

	case Immediate:
		address := cpu.PC + 1
		cpu.PC += 2
		return address, false

	case ZeroPage:
		address := uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		return address, false

	case ZeroPageX:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.X) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case ZeroPageY:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.Y) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case Relative:
		offset := int8(cpu.memory.Read(cpu.PC + 1))
		oldPC := cpu.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		cpu.PC = oldPC
		pageCrossed := (oldPC & pageMask) != (newPC & pageMask)
		return newPC, pageCrossed

	case Absolute:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		address := (high << 8) | low
		cpu.PC += 3
		return address, false

	case AbsoluteX:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.X)
		cpu.PC += 3
		return address, (base & pageMask) != (address & pageMask)

	case AbsoluteY:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 3
		return address, (base & pageMask) != (address & pageMask)

	case Indirect: // JMP ($xxxx) only; reproduces the page-wrap hardware bug
		lowPtr := uint16(cpu.memory.Read(cpu.PC + 1))
		highPtr := uint16(cpu.memory.Read(cpu.PC + 2))
		ptr := (highPtr << 8) | lowPtr

		var address uint16
		if (ptr & zeroPageMask) == zeroPageMask {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr & pageMask))
			address = (high << 8) | low
		} else {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr + 1))
			address = (high << 8) | low
		}
		cpu.PC += 3
		return address, false

	case IndexedIndirect: // (zp,X)
		base := cpu.memory.Read(cpu.PC + 1)
		ptr := (base + cpu.X) & zeroPageMask
		low := uint16(cpu.memory.Read(uint16(ptr)))
		high := uint16(cpu.memory.Read(uint16((ptr + 1) & zeroPageMask)))
		address := (high << 8) | low
		cpu.PC += 2
		return address, false

	case IndirectIndexed: // (zp),Y
		ptr := uint16(cpu.memory.Read(cpu.PC + 1))
		low := uint16(cpu.memory.Read(ptr))
		high := uint16(cpu.memory.Read((ptr + 1) & zeroPageMask))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 2
		return address, (base & pageMask) != (address & pageMask)

	default:
		return 0, false
	}
}

func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase+uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value & 0xFF))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return (high << 8) | low
}

func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = (value & nFlagMask) != 0
}

func (cpu *CPU) handleNMI() {
	cpu.pushWord(cpu.PC)
	status := cpu.GetStatusByte() &^ bFlagMask
	status |= unusedMask
	cpu.push(status)
	cpu.I = true
	low := uint16(cpu.memory.Read(nmiVector))
	high := uint16(cpu.memory.Read(nmiVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 7
}

func (cpu *CPU) handleIRQ() {
	cpu.pushWord(cpu.PC)
	status := cpu.GetStatusByte() &^ bFlagMask
	status |= unusedMask
	cpu.push(status)
	cpu.I = true
	low := uint16(cpu.memory.Read(irqVector))
	high := uint16(cpu.memory.Read(irqVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 7
}

// SetNMI latches a pending NMI on the falling edge (true→false) of the
// PPU's /NMI line.
func (cpu *CPU) SetNMI(state bool) {
	if cpu.nmiPrevious && !state {
		cpu.nmiPending = true
	}
	cpu.nmiPrevious = state
}

// SetIRQ sets the level-triggered /IRQ line state.
func (cpu *CPU) SetIRQ(state bool) {
	cpu.irqPending = state
}

// ProcessPendingInterrupts services a pending NMI (unconditionally) or
// IRQ (if the I flag allows it). Called once per Step, after the
// instruction completes, reproducing the real CPU's one-instruction
// interrupt-recognition delay.
func (cpu *CPU) ProcessPendingInterrupts() {
	if cpu.nmiPending {
		cpu.nmiPending = false
		cpu.handleNMI()
		return
	}
	if cpu.irqPending && !cpu.I {
		cpu.handleIRQ()
	}
}

// TriggerNMI forces an NMI pending regardless of edge state; used by the
// scheduler when wiring PPU VBlank directly instead of through SetNMI.
func (cpu *CPU) TriggerNMI() { cpu.nmiPending = true }

// TriggerIRQ forces an IRQ pending; used by the APU frame IRQ.
func (cpu *CPU) TriggerIRQ() { cpu.irqPending = true }

// GetStatusByte packs the flags into the processor status byte, with bit
// 5 always set.
func (cpu *CPU) GetStatusByte() uint8 {
	var status uint8
	if cpu.N {
		status |= nFlagMask
	}
	if cpu.V {
		status |= vFlagMask
	}
	status |= unusedMask
	if cpu.B {
		status |= bFlagMask
	}
	if cpu.D {
		status |= dFlagMask
	}
	if cpu.I {
		status |= iFlagMask
	}
	if cpu.Z {
		status |= zFlagMask
	}
	if cpu.C {
		status |= cFlagMask
	}
	return status
}

// SetStatusByte unpacks a processor status byte into the flags (PLP,
// RTI, and save-state restore).
func (cpu *CPU) SetStatusByte(status uint8) {
	cpu.N = status&nFlagMask != 0
	cpu.V = status&vFlagMask != 0
	cpu.B = status&bFlagMask != 0
	cpu.D = status&dFlagMask != 0
	cpu.I = status&iFlagMask != 0
	cpu.Z = status&zFlagMask != 0
	cpu.C = status&cFlagMask != 0
}

// Cycles returns the cumulative cycle count since construction or the
// last Reset.
func (cpu *CPU) Cycles() uint64 { return cpu.cycles }

// State is a snapshot of every register a save state needs to resume
// execution exactly where it left off.
type State struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16
	Status  uint8
	Cycles  uint64
}

// GetState snapshots the current registers and flags.
func (cpu *CPU) GetState() State {
	return State{
		A:      cpu.A,
		X:      cpu.X,
		Y:      cpu.Y,
		SP:     cpu.SP,
		PC:     cpu.PC,
		Status: cpu.GetStatusByte(),
		Cycles: cpu.cycles,
	}
}

// SetState restores registers and flags from a prior GetState snapshot.
func (cpu *CPU) SetState(state State) {
	cpu.A, cpu.X, cpu.Y, cpu.SP, cpu.PC = state.A, state.X, state.Y, state.SP, state.PC
	cpu.SetStatusByte(state.Status)
	cpu.cycles = state.Cycles
}
