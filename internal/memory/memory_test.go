package memory

import "testing"

type mockPPU struct {
	registers [8]uint8
}

func (m *mockPPU) ReadRegister(address uint16) uint8 {
	return m.registers[address&0x7]
}

func (m *mockPPU) WriteRegister(address uint16, value uint8) {
	m.registers[address&0x7] = value
}

type mockAPU struct {
	lastWrite uint16
}

func (m *mockAPU) WriteRegister(address uint16, value uint8) {
	m.lastWrite = address
}

func (m *mockAPU) ReadStatus() uint8 { return 0 }

type mockCartridge struct {
	prg [0x8000]uint8
	chr [0x2000]uint8
}

func (c *mockCartridge) ReadPRG(address uint16) uint8 {
	if address < 0x8000 {
		return 0
	}
	return c.prg[address-0x8000]
}

func (c *mockCartridge) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		// SRAM region not modeled by this mock.
		return
	}
}

func (c *mockCartridge) ReadCHR(address uint16) uint8  { return c.chr[address] }
func (c *mockCartridge) WriteCHR(address uint16, value uint8) { c.chr[address] = value }

func TestRAMMirroring(t *testing.T) {
	bus := New(&mockPPU{}, &mockAPU{}, &mockCartridge{})

	bus.Write(0x0010, 0x42)
	for _, mirror := range []uint16{0x0810, 0x1010, 0x1810} {
		if got := bus.Read(mirror); got != 0x42 {
			t.Errorf("Read(0x%04X) = 0x%02X, want 0x42", mirror, got)
		}
	}
}

func TestPPURegisterMirroring(t *testing.T) {
	ppu := &mockPPU{}
	bus := New(ppu, &mockAPU{}, &mockCartridge{})

	bus.Write(0x2000, 0x80)
	for _, mirror := range []uint16{0x2008, 0x2010, 0x3FF8} {
		if got := bus.Read(mirror); got != 0x80 {
			t.Errorf("Read(0x%04X) = 0x%02X, want 0x80", mirror, got)
		}
	}
}

func TestOpenBusReturnsLastValue(t *testing.T) {
	bus := New(&mockPPU{}, &mockAPU{}, &mockCartridge{})

	bus.Write(0x0000, 0x5A)
	bus.Read(0x0000)

	if got := bus.Read(0x4018); got != 0x5A {
		t.Errorf("open-bus read = 0x%02X, want 0x5A", got)
	}
}

func TestPRGROMReadRoutesToCartridge(t *testing.T) {
	cart := &mockCartridge{}
	cart.prg[0] = 0x10
	bus := New(&mockPPU{}, &mockAPU{}, cart)

	if got := bus.Read(0x8000); got != 0x10 {
		t.Errorf("Read(0x8000) = 0x%02X, want 0x10", got)
	}
}

func TestAPUFrameCounterWriteRoutes4017(t *testing.T) {
	apu := &mockAPU{}
	bus := New(&mockPPU{}, apu, &mockCartridge{})

	bus.Write(0x4017, 0x40)
	if apu.lastWrite != 0x4017 {
		t.Errorf("APU register write routed to 0x%04X, want 0x4017", apu.lastWrite)
	}
}

func TestPPUMemoryPaletteMirroring(t *testing.T) {
	pm := NewPPUMemory(&mockCartridge{}, MirrorHorizontal)

	pm.Write(0x3F10, 0x11)
	if got := pm.Read(0x3F00); got != 0x11 {
		t.Errorf("$3F00 after $3F10 write = 0x%02X, want 0x11", got)
	}

	pm.Write(0x3F18, 0x22)
	if got := pm.Read(0x3F08); got != 0x22 {
		t.Errorf("$3F08 after $3F18 write = 0x%02X, want 0x22", got)
	}
}

func TestPPUMemoryHorizontalMirroring(t *testing.T) {
	pm := NewPPUMemory(&mockCartridge{}, MirrorHorizontal)

	pm.Write(0x2000, 0x7)
	if got := pm.Read(0x2400); got != 0x7 {
		t.Errorf("horizontal mirror $2400 = 0x%02X, want 0x7", got)
	}
	pm.Write(0x2800, 0x9)
	if got := pm.Read(0x2C00); got != 0x9 {
		t.Errorf("horizontal mirror $2C00 = 0x%02X, want 0x9", got)
	}
}

func TestPPUMemoryVerticalMirroring(t *testing.T) {
	pm := NewPPUMemory(&mockCartridge{}, MirrorVertical)

	pm.Write(0x2000, 0x3)
	if got := pm.Read(0x2800); got != 0x3 {
		t.Errorf("vertical mirror $2800 = 0x%02X, want 0x3", got)
	}
}

func expectFatal(t *testing.T, reasonSubstr string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected a panic, got none")
		}
		fatal, ok := r.(*FatalError)
		if !ok {
			t.Fatalf("panic value = %#v, want *FatalError", r)
		}
		if fatal.Reason != reasonSubstr {
			t.Errorf("FatalError.Reason = %q, want %q", fatal.Reason, reasonSubstr)
		}
	}()
	fn()
}

func TestWriteToROMPanics(t *testing.T) {
	bus := New(&mockPPU{}, &mockAPU{}, &mockCartridge{})
	expectFatal(t, "write to ROM", func() { bus.Write(0x8000, 0x42) })
}

func TestWriteToUnmappedRegionPanics(t *testing.T) {
	bus := New(&mockPPU{}, &mockAPU{}, &mockCartridge{})
	expectFatal(t, "write to unmapped region", func() { bus.Write(0x4800, 0x42) })
}

func TestGetRAMThenSetRAMRoundTrips(t *testing.T) {
	b := New(&mockPPU{}, &mockAPU{}, &mockCartridge{})
	b.Write(0x0010, 0x99)

	snapshot := b.GetRAM()
	b.Write(0x0010, 0x00)

	b.SetRAM(snapshot)
	if b.Read(0x0010) != 0x99 {
		t.Errorf("RAM[0x10] after SetRAM = 0x%02X, want 0x99", b.Read(0x0010))
	}
}
