package cartridge

import "bytes"

// romBuilder assembles a minimal iNES image in memory for unit tests —
// a test-only convenience, not part of the emulator's public surface.
type romBuilder struct {
	prgBanks uint8
	chrBanks uint8
	mapperID uint8
	mirror   uint8
	prg      []byte
}

func newROMBuilder() *romBuilder {
	return &romBuilder{prgBanks: 1, chrBanks: 1, prg: make([]byte, 16384)}
}

func (b *romBuilder) withPRGSize(banks uint8) *romBuilder {
	b.prgBanks = banks
	b.prg = make([]byte, int(banks)*16384)
	return b
}

func (b *romBuilder) withResetVector(addr uint16) *romBuilder {
	end := len(b.prg)
	b.prg[end-4] = byte(addr)
	b.prg[end-3] = byte(addr >> 8)
	return b
}

func (b *romBuilder) withData(offset uint16, data []byte) *romBuilder {
	copy(b.prg[offset:], data)
	return b
}

func (b *romBuilder) withMapper(id uint8) *romBuilder {
	b.mapperID = id
	return b
}

func (b *romBuilder) build() []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(b.prgBanks)
	buf.WriteByte(b.chrBanks)
	buf.WriteByte((b.mapperID & 0x0F) << 4)
	buf.WriteByte(b.mapperID & 0xF0)
	buf.Write(make([]byte, 8))
	buf.Write(b.prg)
	buf.Write(make([]byte, int(b.chrBanks)*8192))
	return buf.Bytes()
}

func (b *romBuilder) buildCartridge() (*Cartridge, error) {
	return LoadFromReader(bytes.NewReader(b.build()))
}
