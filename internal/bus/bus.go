// Package bus wires the CPU, PPU, APU, memory and controller ports
// together and drives the 3:1 PPU:CPU interleave that makes the whole
// system tick.
package bus

import (
	"fmt"

	"nesvm/internal/apu"
	"nesvm/internal/cartridge"
	"nesvm/internal/cpu"
	"nesvm/internal/input"
	"nesvm/internal/memory"
	"nesvm/internal/ppu"
)

// Bus is the scheduler that owns every component and steps them in lockstep.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Bus
	Input  *input.InputState

	cpuCycles  uint64
	ppuCycles  uint64
	frameCount uint64

	dmaSuspendCycles uint64
	dmaInProgress    bool
	nmiPending       bool
	nmiCount         uint64

	cart *cartridge.Cartridge
}

// New builds a Bus with no cartridge loaded; LoadCartridge must be
// called before Step produces meaningful execution.
func New() *Bus {
	b := &Bus{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.NewInputState(),
	}

	b.Memory = memory.New(b.PPU, b.APU, nil)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	b.PPU.SetNMICallback(b.triggerNMI)
	b.PPU.SetFrameCompleteCallback(b.handleFrameComplete)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.Reset()
	return b
}

// Reset returns every component to its power-up/reset state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.cpuCycles = 0
	b.ppuCycles = 0
	b.frameCount = 0
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false
	b.nmiPending = false
	b.nmiCount = 0
}

func (b *Bus) triggerNMI() { b.nmiPending = true }

// NMICount reports how many NMIs have been serviced since the last Reset,
// for the debug scheduler's skip-to-next-NMI control.
func (b *Bus) NMICount() uint64 { return b.nmiCount }

// NextOpcode peeks the opcode byte at the CPU's current program counter
// without executing it, for the debug scheduler's skip-to-next-RTS control.
func (b *Bus) NextOpcode() uint8 { return b.Memory.Read(b.CPU.PC) }

func (b *Bus) handleFrameComplete() {
	b.frameCount = b.PPU.GetFrameCount()
}

// Step executes one CPU instruction (or one DMA stall cycle) and
// advances the PPU 3 dots and the APU 1 cycle for every CPU cycle
// spent, converting a fatal machine violation (illegal opcode, ROM or
// unmapped-region write, PPUDATA write into CHR space) panicked by the
// CPU, memory bus or PPU into a returned error rather than letting it
// escape to the caller.
func (b *Bus) Step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch fatal := r.(type) {
			case *cpu.FatalError:
				err = fmt.Errorf("bus: %w", fatal)
			case *memory.FatalError:
				err = fmt.Errorf("bus: %w", fatal)
			default:
				panic(r)
			}
		}
	}()

	var cpuCycles uint64

	if b.dmaSuspendCycles > 0 {
		cpuCycles = 1
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
	} else {
		if b.nmiPending {
			b.CPU.TriggerNMI()
			b.nmiPending = false
			b.nmiCount++
		}
		cpuCycles = b.CPU.Step()
	}

	for i := uint64(0); i < cpuCycles*3; i++ {
		b.PPU.Step()
		b.ppuCycles++
	}

	for i := uint64(0); i < cpuCycles; i++ {
		b.APU.Step()
	}

	b.cpuCycles += cpuCycles
	return nil
}

// TriggerOAMDMA performs the 256-byte OAM transfer from sourcePage<<8
// and stalls the CPU for the 513 (or 514, on an odd CPU cycle) cycles
// real hardware takes.
func (b *Bus) TriggerOAMDMA(sourcePage uint8) {
	if b.dmaInProgress {
		return
	}

	dmaCycles := uint64(513)
	if b.cpuCycles%2 == 1 {
		dmaCycles = 514
	}

	b.dmaInProgress = true
	b.dmaSuspendCycles = dmaCycles

	base := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		b.PPU.WriteOAM(uint8(i), b.Memory.Read(base+uint16(i)))
	}
}

// LoadCartridge rebuilds the memory map and CPU/PPU around cart,
// preserving the controller ports, then resets the CPU so PC picks up
// the cartridge's reset vector.
func (b *Bus) LoadCartridge(cart *cartridge.Cartridge) {
	b.cart = cart
	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	ppuMemory := memory.NewPPUMemory(cart, cart.GetMirrorMode())
	b.PPU.SetMemory(ppuMemory)

	b.PPU.SetNMICallback(b.triggerNMI)
	b.PPU.SetFrameCompleteCallback(b.handleFrameComplete)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.CPU.Reset()
}

// GetCartridge returns the currently loaded cartridge, or nil if none
// has been loaded yet.
func (b *Bus) GetCartridge() *cartridge.Cartridge { return b.cart }

// Run steps the bus until frames additional frames have completed,
// stopping early and returning the CPU's fatal error if one occurs.
func (b *Bus) Run(frames int) error {
	target := b.frameCount + uint64(frames)
	for b.frameCount < target {
		if err := b.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles steps the bus until at least cycles more CPU cycles have elapsed.
func (b *Bus) RunCycles(cycles uint64) error {
	target := b.cpuCycles + cycles
	for b.cpuCycles < target {
		if err := b.Step(); err != nil {
			return err
		}
	}
	return nil
}

// GetFrameBuffer returns the PPU's current 256x240 frame buffer of
// packed 0x00RRGGBB pixels.
func (b *Bus) GetFrameBuffer() []uint32 {
	fb := b.PPU.GetFrameBuffer()
	return fb[:]
}

// GetAudioSamples drains and returns the APU's synthesized samples
// since the last call.
func (b *Bus) GetAudioSamples() []float32 {
	return b.APU.GetSamples()
}

// SetControllerButtons sets every button of the given controller (1 or
// 2) atomically, avoiding the torn reads a button-at-a-time update can
// produce mid-frame.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// GetInputState returns the controller state for direct inspection.
func (b *Bus) GetInputState() *input.InputState { return b.Input }

// FrameCount reports the number of frames rendered since the last Reset.
func (b *Bus) FrameCount() uint64 { return b.frameCount }

// CycleCount reports the number of CPU cycles elapsed since the last Reset.
func (b *Bus) CycleCount() uint64 { return b.cpuCycles }

// State is a complete snapshot of machine state: every register, the
// PPU's timing position and OAM, and the 2KiB of internal RAM. It
// excludes cartridge PRG/CHR ROM (immutable) and battery SRAM (captured
// separately through GetCartridge().SRAM()).
type State struct {
	CPU        cpu.State
	PPU        ppu.State
	RAM        [0x800]uint8
	CPUCycles  uint64
	PPUCycles  uint64
	FrameCount uint64
}

// GetState snapshots every piece of machine state needed to resume
// execution from exactly this point.
func (b *Bus) GetState() State {
	return State{
		CPU:        b.CPU.GetState(),
		PPU:        b.PPU.GetState(),
		RAM:        b.Memory.GetRAM(),
		CPUCycles:  b.cpuCycles,
		PPUCycles:  b.ppuCycles,
		FrameCount: b.frameCount,
	}
}

// SetState restores a snapshot taken by GetState. The cartridge must
// already be loaded (via LoadCartridge) before calling SetState, since
// the snapshot carries no PRG/CHR/mapper data of its own.
func (b *Bus) SetState(state State) {
	b.CPU.SetState(state.CPU)
	b.PPU.SetState(state.PPU)
	b.Memory.SetRAM(state.RAM)
	b.cpuCycles = state.CPUCycles
	b.ppuCycles = state.PPUCycles
	b.frameCount = state.FrameCount
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false
	b.nmiPending = false
}
