// Package ppu implements the Picture Processing Unit (2C02-family) of
// the emulated console: dot-clocked background/sprite rendering,
// VBlank/NMI timing, and pixel-accurate sprite-0-hit detection.
package ppu

import "nesvm/internal/memory"

// PPU renders one NES-style 256x240 frame at a time, 341 dots per
// scanline across 262 scanlines (-1..260, with -1 the pre-render line).
type PPU struct {
	ppuCtrl   uint8
	ppuMask   uint8
	ppuStatus uint8
	oamAddr   uint8
	ppuScroll uint8
	ppuAddr   uint8
	ppuData   uint8

	v uint16
	t uint16
	x uint8
	w bool

	memory *memory.PPUMemory

	scanline   int
	cycle      int
	frameCount uint64
	oddFrame   bool
	readBuffer uint8

	oam              [256]uint8
	secondaryOAM     [32]uint8
	spriteIndexes    [8]uint8
	spriteCount      uint8
	sprite0Hit       bool
	spriteOverflow   bool
	sprite0OnScanline bool
	lastEvalScanline int

	frameBuffer [256 * 240]uint32

	nmiCallback           func()
	frameCompleteCallback func()

	backgroundEnabled bool
	spritesEnabled    bool
	renderingEnabled  bool

	cycleCount uint64
}

// New creates a PPU parked at the pre-render scanline with a black
// frame buffer.
func New() *PPU {
	return &PPU{scanline: -1, lastEvalScanline: -999}
}

// Reset returns the PPU to its post-power-up state.
func (p *PPU) Reset() {
	p.ppuCtrl, p.ppuMask, p.oamAddr = 0, 0, 0
	p.ppuScroll, p.ppuAddr, p.ppuData = 0, 0, 0
	p.ppuStatus = 0xA0

	p.v, p.t, p.x, p.w = 0, 0, 0, false

	p.scanline, p.cycle = -1, 0
	p.frameCount, p.oddFrame = 0, false
	p.readBuffer = 0

	p.spriteCount = 0
	p.sprite0Hit = false
	p.spriteOverflow = false

	p.backgroundEnabled, p.spritesEnabled, p.renderingEnabled = false, false, false

	p.cycleCount = 0
	p.lastEvalScanline = -999

	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0
	}
}

// SetMemory wires the PPU's nametable/palette address space.
func (p *PPU) SetMemory(mem *memory.PPUMemory) { p.memory = mem }

// SetNMICallback registers the function invoked when VBlank NMI fires.
func (p *PPU) SetNMICallback(callback func()) { p.nmiCallback = callback }

// SetFrameCompleteCallback registers the function invoked once per
// completed frame (scanline 261 wraparound).
func (p *PPU) SetFrameCompleteCallback(callback func()) { p.frameCompleteCallback = callback }

// ReadRegister reads a CPU-visible PPU register ($2000-$2007).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2000, 0x2001, 0x2003, 0x2005, 0x2006:
		return p.ppuStatus & 0x1F
	case 0x2002:
		status := p.ppuStatus
		p.ppuStatus &= 0x3F
		p.sprite0Hit = false
		p.w = false
		return status
	case 0x2004:
		return p.oam[p.oamAddr]
	case 0x2007:
		return p.readPPUData()
	default:
		return 0
	}
}

// WriteRegister writes a CPU-visible PPU register.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000:
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		p.updateRenderingFlags()
		p.checkNMI()
	case 0x2001:
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writePPUScroll(value)
	case 0x2006:
		p.writePPUAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

// WriteOAM writes directly into OAM, used by the bus during OAM DMA.
func (p *PPU) WriteOAM(address uint8, value uint8) { p.oam[address] = value }

// Step advances the PPU by a single dot.
func (p *PPU) Step() {
	p.cycleCount++
	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
			p.frameCount++
			p.oddFrame = !p.oddFrame
			if p.frameCompleteCallback != nil {
				p.frameCompleteCallback()
			}
		}
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.ppuStatus |= 0x80
		p.ppuStatus &= 0x9F
		p.sprite0Hit = false
		p.spriteOverflow = false
		if p.ppuCtrl&0x80 != 0 && p.nmiCallback != nil {
			p.nmiCallback()
		}
	}

	if p.scanline == -1 && p.cycle == 1 {
		p.ppuStatus &= 0x7F
	}

	if p.scanline == 0 && p.cycle == 0 && p.renderingEnabled {
		p.v = p.t
	}

	if p.scanline >= -1 && p.scanline < 240 {
		p.renderCycle()
	}
}

func (p *PPU) renderCycle() {
	if p.scanline < -1 || p.scanline >= 240 {
		return
	}

	if p.spritesEnabled && p.scanline >= 0 && p.scanline < 240 && p.cycle == 1 {
		if p.lastEvalScanline != p.scanline {
			p.evaluateSprites()
		}
	}

	// Pixel output runs cycles 2-257, matching the real PPU's one-dot
	// render-pipeline latency (cycle 2 produces pixel 0).
	if p.scanline < 0 || p.scanline >= 240 || p.cycle < 2 || p.cycle > 257 {
		return
	}
	if p.memory == nil || (!p.backgroundEnabled && !p.spritesEnabled) {
		return
	}

	pixelX := p.cycle - 2
	pixelY := p.scanline

	background := pixel{transparent: true}
	sprite := pixel{transparent: true}

	if p.backgroundEnabled {
		background = p.renderBackgroundPixel(pixelX, pixelY)
	}
	if p.spritesEnabled {
		sprite = p.renderSpritePixel(pixelX, pixelY)
	}

	p.frameBuffer[pixelY*256+pixelX] = p.compositeFinalPixel(background, sprite)
}

// pixel is a rendered background or sprite pixel prior to compositing.
type pixel struct {
	colorIndex   uint8
	paletteIndex uint8
	rgbColor     uint32
	spriteIndex  int8
	priority     bool
	transparent  bool
}

func (p *PPU) evaluateSprites() {
	p.lastEvalScanline = p.scanline

	p.spriteCount = 0
	p.spriteOverflow = false
	p.sprite0OnScanline = false

	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}
	for i := range p.spriteIndexes {
		p.spriteIndexes[i] = 0xFF
	}

	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	spritesFound := 0
	for spriteIndex := 0; spriteIndex < 64; spriteIndex++ {
		oamIndex := spriteIndex * 4
		sY := int(p.oam[oamIndex])
		tileIndex := p.oam[oamIndex+1]
		attributes := p.oam[oamIndex+2]
		sX := p.oam[oamIndex+3]

		if p.scanline >= sY+1 && p.scanline < sY+1+spriteHeight {
			if spritesFound < 8 {
				secondaryIndex := spritesFound * 4
				p.secondaryOAM[secondaryIndex] = uint8(sY)
				p.secondaryOAM[secondaryIndex+1] = tileIndex
				p.secondaryOAM[secondaryIndex+2] = attributes
				p.secondaryOAM[secondaryIndex+3] = sX
				p.spriteIndexes[spritesFound] = uint8(spriteIndex)
				if spriteIndex == 0 {
					p.sprite0OnScanline = true
				}
				spritesFound++
			} else {
				p.spriteOverflow = true
				p.ppuStatus |= 0x20
				break
			}
		}
	}

	p.spriteCount = uint8(spritesFound)
}

func (p *PPU) renderBackgroundPixel(pixelX, pixelY int) pixel {
	var scrollX, scrollY, nametable int
	if p.t != 0 || p.x != 0 {
		scrollX = int(p.t&0x001F)<<3 + int(p.x)
		scrollY = int((p.t>>5)&0x001F)<<3 + int((p.t>>12)&0x0007)
		nametable = int((p.t >> 10) & 0x0003)
	}

	worldX := pixelX + scrollX
	worldY := pixelY + scrollY

	if worldX < -256 || worldX >= 768 {
		if worldX < -256 {
			worldX = -256
		} else {
			worldX = 767
		}
	}
	if worldY < -240 || worldY >= 720 {
		if worldY < -240 {
			worldY = -240
		} else {
			worldY = 719
		}
	}

	if worldX < 0 {
		nametable ^= 1
		worldX += 256
	}
	if worldX >= 256 {
		nametable ^= 1
		worldX -= 256
	}
	if worldY < 0 {
		nametable ^= 2
		worldY += 240
	}
	if worldY >= 240 {
		nametable ^= 2
		worldY -= 240
	}

	tileX := worldX >> 3
	tileY := worldY >> 3
	pixelInTileX := worldX & 7
	pixelInTileY := worldY & 7

	if tileX < 0 || tileX >= 32 || tileY < 0 || tileY >= 30 {
		return pixel{transparent: true}
	}

	nametableAddr := 0x2000 | (uint16(nametable&3) << 10) | uint16(tileY*32+tileX)
	tileID := p.memory.Read(nametableAddr)

	attributeAddr := 0x23C0 | (uint16(nametable&3) << 10) | uint16((tileY>>2)*8+(tileX>>2))
	attributeByte := p.memory.Read(attributeAddr)

	blockID := ((tileX & 3) >> 1) + ((tileY & 3) >> 1) * 2
	paletteIndex := (attributeByte >> (blockID << 1)) & 0x03

	var patternTableBase uint16
	if p.ppuCtrl&0x10 != 0 {
		patternTableBase = 0x1000
	}

	patternAddr := patternTableBase + uint16(tileID)*16 + uint16(pixelInTileY)
	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 0x08)

	bitShift := 7 - pixelInTileX
	bit0 := (patternLow >> bitShift) & 1
	bit1 := (patternHigh >> bitShift) & 1
	colorIndex := (bit1 << 1) | bit0

	var paletteAddr uint16
	if colorIndex == 0 {
		paletteAddr = 0x3F00
	} else {
		paletteAddr = 0x3F00 + uint16(paletteIndex)*4 + uint16(colorIndex)
	}

	nesColorIndex := p.memory.Read(paletteAddr)

	return pixel{
		colorIndex:   colorIndex,
		paletteIndex: paletteIndex,
		rgbColor:     NESColorToRGB(nesColorIndex),
		spriteIndex:  -1,
		transparent:  colorIndex == 0,
	}
}

func (p *PPU) renderSpritePixel(pixelX, pixelY int) pixel {
	for i := 0; i < int(p.spriteCount); i++ {
		secondaryIndex := i * 4
		sY := int(p.secondaryOAM[secondaryIndex])
		tileIndex := p.secondaryOAM[secondaryIndex+1]
		attributes := p.secondaryOAM[secondaryIndex+2]
		sX := int(p.secondaryOAM[secondaryIndex+3])

		spriteHeight := 8
		if p.ppuCtrl&0x20 != 0 {
			spriteHeight = 16
		}

		if pixelX >= sX && pixelX < sX+8 && pixelY >= sY+1 && pixelY < sY+1+spriteHeight {
			spritePixelX := pixelX - sX
			spritePixelY := pixelY - (sY + 1)

			if spritePixelX < 0 || spritePixelX >= 8 || spritePixelY < 0 || spritePixelY >= spriteHeight {
				continue
			}

			if attributes&0x40 != 0 {
				spritePixelX = 7 - spritePixelX
			}
			if attributes&0x80 != 0 {
				spritePixelY = spriteHeight - 1 - spritePixelY
			}
			if spritePixelX < 0 || spritePixelX >= 8 || spritePixelY < 0 || spritePixelY >= spriteHeight {
				continue
			}

			colorIndex := p.getSpritePixelColor(tileIndex, spritePixelX, spritePixelY)

			if colorIndex != 0 {
				if p.isOriginalSprite0(i) && !p.sprite0Hit {
					p.checkSprite0Hit(pixelX, pixelY, colorIndex)
				}

				paletteIndex := attributes & 0x03
				paletteAddr := 0x3F10 + uint16(paletteIndex)*4 + uint16(colorIndex)
				nesColorIndex := p.memory.Read(paletteAddr)

				return pixel{
					colorIndex:   colorIndex,
					paletteIndex: paletteIndex,
					rgbColor:     NESColorToRGB(nesColorIndex),
					spriteIndex:  int8(i),
					priority:     attributes&0x20 != 0,
				}
			}
		}
	}

	return pixel{spriteIndex: -1, transparent: true}
}

func (p *PPU) getSpritePixelColor(tileIndex uint8, pixelX, pixelY int) uint8 {
	if pixelX < 0 || pixelX >= 8 || pixelY < 0 || pixelY >= 16 {
		return 0
	}

	var patternTableBase uint16
	if p.ppuCtrl&0x20 == 0 {
		if p.ppuCtrl&0x08 != 0 {
			patternTableBase = 0x1000
		}
	} else {
		if tileIndex&0x01 != 0 {
			patternTableBase = 0x1000
		}
		tileIndex &= 0xFE
		if pixelY >= 8 {
			tileIndex++
			pixelY -= 8
		}
	}

	patternAddr := patternTableBase + uint16(tileIndex)*16 + uint16(pixelY)
	if patternAddr >= 0x2000 || patternAddr+0x08 >= 0x2000 {
		return 0
	}

	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 0x08)

	bitShift := 7 - pixelX
	bit0 := (patternLow >> bitShift) & 1
	bit1 := (patternHigh >> bitShift) & 1
	return (bit1 << 1) | bit0
}

func (p *PPU) isOriginalSprite0(secondaryOAMIndex int) bool {
	if secondaryOAMIndex >= int(p.spriteCount) {
		return false
	}
	return p.spriteIndexes[secondaryOAMIndex] == 0
}

// checkSprite0Hit reproduces the 2C02's pixel-accurate sprite-0-hit
// test: a hit latches only once both background and sprite-0 pixels
// are opaque at the same dot, with rendering enabled and outside the
// leftmost-8-pixel clip (when enabled) and the rightmost column.
func (p *PPU) checkSprite0Hit(pixelX, pixelY int, spriteColorIndex uint8) {
	if p.sprite0Hit || !p.backgroundEnabled || !p.spritesEnabled {
		return
	}
	if pixelX < 0 || pixelX >= 255 || pixelY < 0 || pixelY >= 240 {
		return
	}
	if pixelX < 8 && (p.ppuMask&0x02 == 0 || p.ppuMask&0x04 == 0) {
		return
	}
	if spriteColorIndex == 0 || spriteColorIndex > 3 {
		return
	}

	background := p.renderBackgroundPixel(pixelX, pixelY)
	if !background.transparent && background.colorIndex != 0 {
		p.sprite0Hit = true
		p.ppuStatus |= 0x40
	}
}

func (p *PPU) compositeFinalPixel(background, sprite pixel) uint32 {
	if sprite.transparent {
		if background.transparent {
			return NESColorToRGB(p.memory.Read(0x3F00))
		}
		return background.rgbColor
	}
	if background.transparent {
		return sprite.rgbColor
	}
	if sprite.priority && p.backgroundEnabled {
		return background.rgbColor
	}
	return sprite.rgbColor
}

func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = p.ppuMask&0x08 != 0
	p.spritesEnabled = p.ppuMask&0x10 != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
}

func (p *PPU) checkNMI() {
	if p.ppuCtrl&0x80 != 0 && p.ppuStatus&0x80 != 0 && p.nmiCallback != nil {
		p.nmiCallback()
	}
}

func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
		p.w = false
	}
}

func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

func (p *PPU) readPPUData() uint8 {
	var data uint8
	if p.memory == nil {
		data = 0
	} else if p.v >= 0x3F00 {
		data = p.memory.Read(p.v)
		p.readBuffer = p.memory.Read(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(p.v)
	}

	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
	return data
}

func (p *PPU) writePPUData(value uint8) {
	if p.v < 0x2000 {
		panic(&memory.FatalError{Address: p.v, Value: value, Reason: "PPUDATA write into pattern-table space"})
	}
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// GetFrameBuffer returns the rendered frame, 256x240 packed RGB.
func (p *PPU) GetFrameBuffer() [256 * 240]uint32 { return p.frameBuffer }

// GetFrameCount returns frames rendered since construction or Reset.
func (p *PPU) GetFrameCount() uint64 { return p.frameCount }

// GetScanline returns the current scanline (-1 to 260).
func (p *PPU) GetScanline() int { return p.scanline }

// GetCycle returns the current dot within the scanline (0-340).
func (p *PPU) GetCycle() int { return p.cycle }

// IsRenderingEnabled reports whether background or sprite rendering is on.
func (p *PPU) IsRenderingEnabled() bool { return p.renderingEnabled }

// IsVBlank reports whether the PPU is currently in vertical blank.
func (p *PPU) IsVBlank() bool { return p.ppuStatus&0x80 != 0 }

// State is a snapshot of the PPU's timing position, registers and OAM
// contents, enough to resume rendering from the exact same dot.
type State struct {
	PPUCtrl, PPUMask, PPUStatus, OAMAddr uint8
	V, T                                 uint16
	X                                    uint8
	W                                    bool
	ReadBuffer                           uint8
	Scanline, Cycle                      int
	FrameCount                           uint64
	OddFrame                             bool
	OAM                                  [256]uint8
}

// GetState snapshots the PPU's registers, internal latches and OAM.
func (p *PPU) GetState() State {
	return State{
		PPUCtrl:    p.ppuCtrl,
		PPUMask:    p.ppuMask,
		PPUStatus:  p.ppuStatus,
		OAMAddr:    p.oamAddr,
		V:          p.v,
		T:          p.t,
		X:          p.x,
		W:          p.w,
		ReadBuffer: p.readBuffer,
		Scanline:   p.scanline,
		Cycle:      p.cycle,
		FrameCount: p.frameCount,
		OddFrame:   p.oddFrame,
		OAM:        p.oam,
	}
}

// SetState restores a snapshot taken by GetState.
func (p *PPU) SetState(state State) {
	p.ppuCtrl = state.PPUCtrl
	p.ppuMask = state.PPUMask
	p.ppuStatus = state.PPUStatus
	p.oamAddr = state.OAMAddr
	p.v = state.V
	p.t = state.T
	p.x = state.X
	p.w = state.W
	p.readBuffer = state.ReadBuffer
	p.scanline = state.Scanline
	p.cycle = state.Cycle
	p.frameCount = state.FrameCount
	p.oddFrame = state.OddFrame
	p.oam = state.OAM
	p.updateRenderingFlags()
}

// NMIEnabled reports whether PPUCTRL bit 7 currently enables VBlank NMI.
func (p *PPU) NMIEnabled() bool { return p.ppuCtrl&0x80 != 0 }

// nesColorPalette is the canonical 64-entry 2C02 NTSC palette.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a 6-bit NES color index to packed 0x00RRGGBB.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}
