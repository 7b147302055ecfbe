package ppu

import (
	"testing"

	"nesvm/internal/memory"
)

type mockCartridge struct {
	chrData [0x2000]uint8
}

func newMockCartridge() *mockCartridge { return &mockCartridge{} }

func (m *mockCartridge) ReadPRG(address uint16) uint8         { return 0 }
func (m *mockCartridge) WritePRG(address uint16, value uint8) {}
func (m *mockCartridge) ReadCHR(address uint16) uint8         { return m.chrData[address&0x1FFF] }
func (m *mockCartridge) WriteCHR(address uint16, value uint8) { m.chrData[address&0x1FFF] = value }

func newTestPPUMemory() (*memory.PPUMemory, *mockCartridge) {
	cart := newMockCartridge()
	return memory.NewPPUMemory(cart, memory.MirrorHorizontal), cart
}

func TestNewStartsAtPreRenderScanline(t *testing.T) {
	p := New()
	if p.scanline != -1 || p.cycle != 0 || p.frameCount != 0 {
		t.Fatalf("unexpected initial state: scanline=%d cycle=%d frame=%d", p.scanline, p.cycle, p.frameCount)
	}
}

func TestResetRestoresPowerUpStatus(t *testing.T) {
	p := New()
	p.ppuCtrl, p.ppuMask, p.oamAddr = 0xFF, 0xFF, 0x80
	p.scanline, p.cycle, p.frameCount = 100, 200, 5
	p.v, p.t, p.x, p.w = 0x2000, 0x1000, 7, true

	p.Reset()

	if p.ppuStatus != 0xA0 {
		t.Errorf("PPUSTATUS = 0x%02X, want 0xA0", p.ppuStatus)
	}
	if p.v != 0 || p.t != 0 || p.x != 0 || p.w {
		t.Error("scroll/address latch state should be cleared on reset")
	}
	if p.scanline != -1 {
		t.Errorf("scanline = %d, want -1", p.scanline)
	}
}

func TestVBlankSetsStatusAndFiresNMI(t *testing.T) {
	p := New()
	p.WriteRegister(0x2000, 0x80) // enable NMI on VBlank

	nmiFired := false
	p.SetNMICallback(func() { nmiFired = true })

	p.scanline, p.cycle = 241, 0
	p.Step()

	if p.ppuStatus&0x80 == 0 {
		t.Error("VBL flag should be set entering scanline 241")
	}
	if !nmiFired {
		t.Error("NMI callback should fire when PPUCTRL bit 7 is set")
	}
}

func TestPPUStatusReadClearsVBLAndLatch(t *testing.T) {
	p := New()
	p.ppuStatus = 0x80
	p.w = true

	status := p.ReadRegister(0x2002)

	if status&0x80 == 0 {
		t.Error("read should return VBL flag as set")
	}
	if p.ppuStatus&0x80 != 0 {
		t.Error("VBL flag should clear after the read")
	}
	if p.w {
		t.Error("write latch should clear after reading $2002")
	}
}

func TestOAMDMAWriteIsVisibleViaOAMDATA(t *testing.T) {
	p := New()
	p.WriteOAM(0x10, 0x42)
	p.oamAddr = 0x10

	if got := p.ReadRegister(0x2004); got != 0x42 {
		t.Errorf("OAMDATA = 0x%02X, want 0x42", got)
	}
}

func TestPPUDataAutoIncrementsByStride(t *testing.T) {
	mem, _ := newTestPPUMemory()
	p := New()
	p.SetMemory(mem)

	p.WriteRegister(0x2006, 0x20) // high byte of $2000
	p.WriteRegister(0x2006, 0x00) // low byte -> v = $2000
	p.WriteRegister(0x2007, 0xAB)

	if got := mem.Read(0x2000); got != 0xAB {
		t.Errorf("nametable byte = 0x%02X, want 0xAB", got)
	}
	if p.v != 0x2001 {
		t.Errorf("v after write = 0x%04X, want 0x2001 (increment-by-1 mode)", p.v)
	}
}

func TestPPUDataWriteBelow2000Panics(t *testing.T) {
	mem, _ := newTestPPUMemory()
	p := New()
	p.SetMemory(mem)

	p.WriteRegister(0x2006, 0x00) // high byte of $0000
	p.WriteRegister(0x2006, 0x10) // low byte -> v = $0010, pattern-table space

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic writing PPUDATA with v < $2000")
		}
		if _, ok := r.(*memory.FatalError); !ok {
			t.Fatalf("panic value = %#v, want *memory.FatalError", r)
		}
	}()
	p.WriteRegister(0x2007, 0xAB)
}

func TestPaletteColorIndexClampsToTable(t *testing.T) {
	if got := NESColorToRGB(200); got != 0 {
		t.Errorf("NESColorToRGB(200) = 0x%06X, want 0 for out-of-range index", got)
	}
	if got := NESColorToRGB(0x30); got&0xFFFFFF != 0xFFFEFF {
		t.Errorf("NESColorToRGB(0x30) = 0x%06X, want 0xFFFEFF", got)
	}
}

func TestGetStateThenSetStateRoundTripsOAMAndTiming(t *testing.T) {
	p := New()
	mem, _ := newTestPPUMemory()
	p.SetMemory(mem)

	p.WriteOAM(0x10, 0xAB)
	p.scanline, p.cycle, p.frameCount = 100, 200, 42
	p.ppuCtrl = 0x80

	state := p.GetState()

	p.WriteOAM(0x10, 0x00)
	p.scanline, p.cycle, p.frameCount = 0, 0, 0
	p.ppuCtrl = 0

	p.SetState(state)

	if p.oam[0x10] != 0xAB {
		t.Errorf("OAM[0x10] after SetState = 0x%02X, want 0xAB", p.oam[0x10])
	}
	if p.scanline != 100 || p.cycle != 200 || p.frameCount != 42 {
		t.Errorf("timing after SetState = scanline:%d cycle:%d frame:%d, want 100/200/42", p.scanline, p.cycle, p.frameCount)
	}
	if !p.NMIEnabled() {
		t.Error("NMIEnabled() should be true after restoring ppuCtrl with bit 7 set")
	}
}
