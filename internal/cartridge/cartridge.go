// Package cartridge parses iNES ROM images and implements the NROM
// (mapper 0) memory mapper.
package cartridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"nesvm/internal/memory"
)

// Cartridge holds a loaded iNES image and the mapper that decodes it.
type Cartridge struct {
	prgROM []uint8
	chrROM []uint8

	mapperID uint8
	mapper   Mapper

	mirror memory.MirrorMode

	hasBattery bool
	sram       [0x2000]uint8

	hasCHRRAM bool
}

// Mapper is the PRG/CHR decode surface a cartridge's bank-switching logic
// must implement.
type Mapper interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// iNESHeader is the 16-byte header every iNES image begins with.
type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8 // 16KiB units
	CHRROMSize uint8 // 8KiB units
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// UnsupportedMapperError reports an iNES image whose mapper ID this
// emulator cannot decode. Only mapper 0 (NROM) is implemented; any other
// ID is a fatal load error rather than a silent fallback.
type UnsupportedMapperError struct {
	MapperID uint8
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("unsupported mapper %d: only mapper 0 (NROM) is implemented", e.MapperID)
}

// LoadFromFile opens and parses an iNES ROM file.
func LoadFromFile(filename string) (*Cartridge, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader parses an iNES image from r.
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	var header iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("reading iNES header: %w", err)
	}

	if string(header.Magic[:]) != "NES\x1A" {
		return nil, fmt.Errorf("not an iNES file: bad magic %q", header.Magic)
	}
	if header.PRGROMSize == 0 {
		return nil, fmt.Errorf("invalid ROM: PRG ROM size cannot be zero")
	}

	cart := &Cartridge{
		mapperID:   (header.Flags6 >> 4) | (header.Flags7 & 0xF0),
		hasBattery: (header.Flags6 & 0x02) != 0,
	}

	switch {
	case (header.Flags6 & 0x08) != 0:
		cart.mirror = memory.MirrorFourScreen
	case (header.Flags6 & 0x01) != 0:
		cart.mirror = memory.MirrorVertical
	default:
		cart.mirror = memory.MirrorHorizontal
	}

	if (header.Flags6 & 0x04) != 0 {
		trainer := make([]uint8, 512)
		if _, err := io.ReadFull(r, trainer); err != nil {
			return nil, fmt.Errorf("reading trainer: %w", err)
		}
	}

	prgSize := int(header.PRGROMSize) * 16384
	cart.prgROM = make([]uint8, prgSize)
	if _, err := io.ReadFull(r, cart.prgROM); err != nil {
		return nil, fmt.Errorf("reading PRG ROM: %w", err)
	}

	chrSize := int(header.CHRROMSize) * 8192
	if chrSize > 0 {
		cart.chrROM = make([]uint8, chrSize)
		if _, err := io.ReadFull(r, cart.chrROM); err != nil {
			return nil, fmt.Errorf("reading CHR ROM: %w", err)
		}
		blank := true
		for _, b := range cart.chrROM {
			if b != 0 {
				blank = false
				break
			}
		}
		cart.hasCHRRAM = blank
	} else {
		cart.chrROM = make([]uint8, 8192)
		cart.hasCHRRAM = true
	}

	mapper, err := createMapper(cart.mapperID, cart)
	if err != nil {
		return nil, err
	}
	cart.mapper = mapper

	return cart, nil
}

func (c *Cartridge) ReadPRG(address uint16) uint8          { return c.mapper.ReadPRG(address) }
func (c *Cartridge) WritePRG(address uint16, value uint8)   { c.mapper.WritePRG(address, value) }
func (c *Cartridge) ReadCHR(address uint16) uint8           { return c.mapper.ReadCHR(address) }
func (c *Cartridge) WriteCHR(address uint16, value uint8)   { c.mapper.WriteCHR(address, value) }
func (c *Cartridge) GetMirrorMode() memory.MirrorMode       { return c.mirror }
func (c *Cartridge) HasBattery() bool                       { return c.hasBattery }
func (c *Cartridge) SRAM() []byte                           { return c.sram[:] }

// createMapper returns the mapper for id, or an *UnsupportedMapperError
// for anything but NROM.
func createMapper(id uint8, cart *Cartridge) (Mapper, error) {
	switch id {
	case 0:
		return NewMapper000(cart), nil
	default:
		return nil, &UnsupportedMapperError{MapperID: id}
	}
}
