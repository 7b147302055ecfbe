// Package memory implements the CPU address-space decode and the PPU's
// own nametable/palette memory space.
package memory

import "fmt"

// FatalError reports a bus-detected machine violation: a write landing on
// ROM or on an address range nothing claims. Real hardware can't do this
// (the data bus either doesn't decode there or the cartridge ignores it
// electrically); a ROM that tries is either exercising unimplemented
// mapper behavior or the emulator has the wrong mapper/region wired up,
// so the bus surfaces it loudly instead of dropping the byte.
type FatalError struct {
	Address uint16
	Value   uint8
	Reason  string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: write $%02X to $%04X", e.Reason, e.Value, e.Address)
}

// Bus represents the CPU-visible 64KiB address space: 2KiB internal RAM
// mirrored through $1FFF, PPU registers mirrored every 8 bytes through
// $3FFF, APU/controller ports at $4000-$401F, and the cartridge beyond.
type Bus struct {
	ram [0x800]uint8

	ppuRegisters PPURegisters
	apuRegisters APURegisters
	inputSystem  InputPorts
	cartridge    CartridgeBus

	dmaCallback func(uint8)

	// openBusValue is the last value placed on the bus, returned by reads
	// from unmapped or write-only addresses.
	openBusValue uint8
}

// PPURegisters is the $2000-$2007 register window exposed to the bus.
type PPURegisters interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APURegisters is the $4000-$4017 sound register window exposed to the bus.
type APURegisters interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputPorts is the $4016/$4017 controller port pair.
type InputPorts interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeBus is the PRG/CHR access surface a mapper must provide.
type CartridgeBus interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// MirrorMode selects how the PPU's two physical 1KiB nametables are
// mapped across the four logical $2000/$2400/$2800/$2C00 windows.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// New builds a Bus wired to the given PPU/APU register windows and
// cartridge, with RAM seeded to a non-zero power-up pattern.
func New(ppu PPURegisters, apu APURegisters, cart CartridgeBus) *Bus {
	b := &Bus{
		ppuRegisters: ppu,
		apuRegisters: apu,
		cartridge:    cart,
	}
	b.initializePowerUpRAM()
	return b
}

// SetInputSystem attaches the controller port pair. Built separately from
// New because the input system is wired after bus construction in the
// application startup sequence.
func (b *Bus) SetInputSystem(input InputPorts) {
	b.inputSystem = input
}

// SetDMACallback installs the handler invoked on a $4014 write. Routing
// OAM DMA through a callback (instead of transferring inline) lets the
// scheduler suspend the CPU for the correct 513/514-cycle duration.
func (b *Bus) SetDMACallback(callback func(uint8)) {
	b.dmaCallback = callback
}

// GetRAM returns a copy of the 2KiB internal RAM, for save-state capture.
func (b *Bus) GetRAM() [0x800]uint8 { return b.ram }

// SetRAM restores the 2KiB internal RAM from a save-state snapshot.
func (b *Bus) SetRAM(ram [0x800]uint8) { b.ram = ram }

// initializePowerUpRAM seeds RAM with the non-uniform bit patterns real
// 2KiB SRAM exhibits at power-up, rather than an all-zero array. Software
// that (incorrectly) depends on uninitialized RAM content behaves more
// faithfully against this than against all-zero RAM.
func (b *Bus) initializePowerUpRAM() {
	for i := 0; i < 0x800; i++ {
		switch {
		case i < 0x100:
			if i%2 == 0 {
				b.ram[i] = 0x00
			} else {
				b.ram[i] = 0xFF
			}
		case i < 0x200:
			if i%16 < 2 {
				b.ram[i] = 0xFF
			} else {
				b.ram[i] = 0x00
			}
		case i < 0x300:
			if (i/8)%2 == (i%8)/4 {
				b.ram[i] = 0xAA
			} else {
				b.ram[i] = 0x55
			}
		case i < 0x400:
			if i%8 == 0 {
				b.ram[i] = 0x00
			} else {
				b.ram[i] = 0xFF
			}
		default:
			switch i % 4 {
			case 0:
				b.ram[i] = 0x00
			case 1:
				b.ram[i] = 0xFF
			case 2:
				b.ram[i] = 0xAA
			case 3:
				b.ram[i] = 0x55
			}
		}
	}
}

// Read reads a byte from the CPU address space.
func (b *Bus) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = b.ram[address&0x07FF]

	case address < 0x4000:
		value = b.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch {
		case address == 0x4015:
			value = b.apuRegisters.ReadStatus()
		case address == 0x4016 || address == 0x4017:
			if b.inputSystem != nil {
				value = b.inputSystem.Read(address)
			}
		default:
			value = b.openBusValue
		}

	case address >= 0x6000 && address < 0x8000:
		if b.cartridge != nil {
			value = b.cartridge.ReadPRG(address)
		} else {
			value = b.openBusValue
		}

	case address < 0x8000:
		value = b.openBusValue

	default:
		if b.cartridge != nil {
			value = b.cartridge.ReadPRG(address)
		} else {
			value = b.openBusValue
		}
	}

	b.openBusValue = value
	return value
}

// Write writes a byte to the CPU address space.
func (b *Bus) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		b.ram[address&0x07FF] = value

	case address < 0x4000:
		b.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch {
		case address == 0x4014:
			if b.dmaCallback != nil {
				b.dmaCallback(value)
			} else {
				b.performOAMDMA(value)
			}
		case address == 0x4016:
			if b.inputSystem != nil {
				b.inputSystem.Write(address, value)
			}
		case address >= 0x4000 && address <= 0x4013:
			b.apuRegisters.WriteRegister(address, value)
		case address == 0x4015:
			b.apuRegisters.WriteRegister(address, value)
		case address == 0x4017:
			b.apuRegisters.WriteRegister(address, value)
		}
		// $4018-$401F (APU/IO test mode) are not decoded.

	case address >= 0x6000 && address < 0x8000:
		if b.cartridge != nil {
			b.cartridge.WritePRG(address, value)
		}

	case address < 0x8000:
		// $4020-$5FFF cartridge expansion area: nothing claims it.
		panic(&FatalError{Address: address, Value: value, Reason: "write to unmapped region"})

	default:
		panic(&FatalError{Address: address, Value: value, Reason: "write to ROM"})
	}
}

// performOAMDMA is the synchronous fallback used when no DMA callback is
// registered; the scheduler normally intercepts $4014 writes itself so it
// can account for the CPU stall.
func (b *Bus) performOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		b.ppuRegisters.WriteRegister(0x2004, b.Read(base+i))
	}
}
