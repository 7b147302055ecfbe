package cpu

import "testing"

// mockMemory implements MemoryInterface for testing.
type mockMemory struct {
	data [0x10000]uint8
}

func newMockMemory() *mockMemory { return &mockMemory{} }

func (m *mockMemory) Read(address uint16) uint8         { return m.data[address] }
func (m *mockMemory) Write(address uint16, value uint8) { m.data[address] = value }

func (m *mockMemory) setBytes(address uint16, values ...uint8) {
	for i, v := range values {
		m.data[address+uint16(i)] = v
	}
}

type cpuTestHelper struct {
	CPU    *CPU
	Memory *mockMemory
}

func newCPUTestHelper() *cpuTestHelper {
	memory := newMockMemory()
	return &cpuTestHelper{CPU: New(memory), Memory: memory}
}

func (h *cpuTestHelper) setupResetVector(address uint16) {
	h.Memory.setBytes(0xFFFC, uint8(address&0xFF), uint8(address>>8))
	h.CPU.Reset()
}

func (h *cpuTestHelper) loadProgram(address uint16, program ...uint8) {
	h.Memory.setBytes(address, program...)
}

func TestResetSequenceSetsVectorAndFlags(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0xC000)

	if h.CPU.PC != 0xC000 {
		t.Errorf("PC = 0x%04X, want 0xC000", h.CPU.PC)
	}
	if h.CPU.SP != 0xFD {
		t.Errorf("SP = 0x%02X, want 0xFD", h.CPU.SP)
	}
	if !h.CPU.I {
		t.Error("I flag should be set after reset")
	}
	if h.CPU.Cycles() != 7 {
		t.Errorf("reset cycle count = %d, want 7", h.CPU.Cycles())
	}
}

func TestLDAImmediateLoadsAndSetsFlags(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0x8000)
	h.loadProgram(0x8000, 0xA9, 0x00)

	h.CPU.Step()

	if h.CPU.A != 0 {
		t.Errorf("A = 0x%02X, want 0x00", h.CPU.A)
	}
	if !h.CPU.Z {
		t.Error("Z flag should be set")
	}
	if h.CPU.N {
		t.Error("N flag should be clear")
	}
}

func TestJSRAndRTSRoundTrip(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0x8000)
	h.loadProgram(0x8000, 0x20, 0x00, 0x90) // JSR $9000
	h.loadProgram(0x9000, 0x60)             // RTS

	h.CPU.Step() // JSR
	if h.CPU.PC != 0x9000 {
		t.Fatalf("PC after JSR = 0x%04X, want 0x9000", h.CPU.PC)
	}

	h.CPU.Step() // RTS
	if h.CPU.PC != 0x8003 {
		t.Errorf("PC after RTS = 0x%04X, want 0x8003", h.CPU.PC)
	}
}

func TestIndirectJMPPageWrapBug(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0x8000)
	h.loadProgram(0x8000, 0x6C, 0xFF, 0x30) // JMP ($30FF)
	h.Memory.setBytes(0x30FF, 0x80)
	h.Memory.setBytes(0x3000, 0x12) // high byte fetched from $3000, not $3100

	h.CPU.Step()

	if h.CPU.PC != 0x1280 {
		t.Errorf("PC = 0x%04X, want 0x1280 (page-wrap bug)", h.CPU.PC)
	}
}

func TestBranchTakenAddsCycleAndPageCrossAddsAnother(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0x80FD)
	h.loadProgram(0x80FD, 0xF0, 0x02) // BEQ +2 from $80FF lands on $8101, in the next page
	h.CPU.Z = true

	cycles := h.CPU.Step()
	if cycles != 4 {
		t.Errorf("cycles = %d, want 4 (2 base + taken + page-cross)", cycles)
	}
	if h.CPU.PC != 0x8101 {
		t.Errorf("PC = 0x%04X, want 0x8101", h.CPU.PC)
	}
}

func TestNMIEntrySequencePushesStatusWithBClear(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0x8000)
	h.Memory.setBytes(0xFFFA, 0x00, 0x40) // NMI vector -> $4000
	h.loadProgram(0x8000, 0xEA)           // NOP

	h.CPU.SetNMI(true)
	h.CPU.SetNMI(false) // falling edge latches NMI pending

	h.CPU.Step() // executes NOP, then services the pending NMI

	if h.CPU.PC != 0x4000 {
		t.Errorf("PC after NMI = 0x%04X, want 0x4000", h.CPU.PC)
	}

	pushedStatus := h.Memory.Read(0x01FB) // below PC hi ($01FD) and PC lo ($01FC)
	if pushedStatus&bFlagMask != 0 {
		t.Error("B flag should be clear in status pushed for NMI")
	}
	if pushedStatus&unusedMask == 0 {
		t.Error("unused bit should be set in status pushed for NMI")
	}
	if !h.CPU.I {
		t.Error("I flag should be set after entering NMI handler")
	}
}

func TestIRQIgnoredWhenIFlagSet(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0x8000)
	h.loadProgram(0x8000, 0xEA)
	h.CPU.I = true

	h.CPU.SetIRQ(true)
	h.CPU.Step()

	if h.CPU.PC != 0x8001 {
		t.Errorf("PC = 0x%04X, want 0x8001 (IRQ masked)", h.CPU.PC)
	}
}

func TestUndefinedOpcodePanicsWithFatalError(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0x8000)
	h.loadProgram(0x8000, 0x02) // unassigned opcode (KIL/JAM family, not implemented)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic for an undefined opcode")
		}
		if _, ok := r.(*FatalError); !ok {
			t.Fatalf("expected *FatalError, got %T", r)
		}
	}()

	h.CPU.Step()
}

func TestUnofficialLAXLoadsAAndX(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0x8000)
	h.Memory.setBytes(0x50, 0x77)
	h.loadProgram(0x8000, 0xA7, 0x50) // LAX $50

	h.CPU.Step()

	if h.CPU.A != 0x77 || h.CPU.X != 0x77 {
		t.Errorf("A=0x%02X X=0x%02X, want both 0x77", h.CPU.A, h.CPU.X)
	}
}

func TestGetStateThenSetStateRoundTripsRegisters(t *testing.T) {
	h := newCPUTestHelper()
	h.setupResetVector(0x8000)

	h.CPU.A, h.CPU.X, h.CPU.Y = 0x11, 0x22, 0x33
	h.CPU.SP = 0xF0
	h.CPU.PC = 0x1234
	h.CPU.N, h.CPU.C = true, true

	state := h.CPU.GetState()

	h.CPU.A = 0
	h.CPU.PC = 0
	h.CPU.N = false

	h.CPU.SetState(state)

	if h.CPU.A != 0x11 || h.CPU.X != 0x22 || h.CPU.Y != 0x33 {
		t.Errorf("registers after SetState = A:%02X X:%02X Y:%02X, want 11/22/33", h.CPU.A, h.CPU.X, h.CPU.Y)
	}
	if h.CPU.PC != 0x1234 {
		t.Errorf("PC after SetState = $%04X, want $1234", h.CPU.PC)
	}
	if !h.CPU.N || !h.CPU.C {
		t.Error("N and C flags should survive a GetState/SetState round trip")
	}
}
