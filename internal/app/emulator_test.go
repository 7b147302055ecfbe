package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"nesvm/internal/bus"
	"nesvm/internal/cartridge"
)

func newTestEmulator(t *testing.T) (*Emulator, *bus.Bus) {
	t.Helper()
	romPath := filepath.Join(t.TempDir(), "game.nes")
	writeTestROM(t, romPath)

	data, err := os.ReadFile(romPath)
	if err != nil {
		t.Fatalf("reading test ROM: %v", err)
	}
	cart, err := cartridge.LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("loading cartridge: %v", err)
	}

	b := bus.New()
	b.LoadCartridge(cart)

	cfg := NewConfig()
	e := NewEmulator(b, cfg)
	return e, b
}

func TestUpdateDoesNothingBeforeStart(t *testing.T) {
	e, _ := newTestEmulator(t)
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.GetFrameCount() != 0 {
		t.Errorf("GetFrameCount() = %d, want 0 before Start", e.GetFrameCount())
	}
}

func TestUpdateAdvancesExactlyOneFrame(t *testing.T) {
	e, _ := newTestEmulator(t)
	e.Start()

	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.GetFrameCount() != 1 {
		t.Errorf("GetFrameCount() = %d, want 1", e.GetFrameCount())
	}
	if e.GetCycleCount() < ntscCyclesPerFrame {
		t.Errorf("GetCycleCount() = %d, want >= %d", e.GetCycleCount(), ntscCyclesPerFrame)
	}
}

func TestStopHaltsFurtherFrames(t *testing.T) {
	e, _ := newTestEmulator(t)
	e.Start()
	e.Stop()

	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.GetFrameCount() != 0 {
		t.Errorf("GetFrameCount() = %d, want 0 after Stop", e.GetFrameCount())
	}
}

// writeInstructionROM writes a ROM whose reset vector starts at $8000
// executing prg, for debug-scheduler tests that need specific opcodes
// rather than the all-zero (BRK-filled) default test ROM.
func writeInstructionROM(t *testing.T, path string, prg ...byte) {
	t.Helper()
	bank := make([]byte, 0x4000)
	copy(bank, prg)
	bank[0x3FFC] = 0x00
	bank[0x3FFD] = 0x80

	header := []byte{'N', 'E', 'S', 0x1A, 0x01, 0x01, 0x00, 0x00, 0, 0, 0, 0, 0, 0, 0, 0}
	data := append(header, bank...)
	data = append(data, make([]byte, 0x2000)...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing test ROM: %v", err)
	}
}

func newTestEmulatorWithProgram(t *testing.T, prg ...byte) (*Emulator, *bus.Bus) {
	t.Helper()
	romPath := filepath.Join(t.TempDir(), "game.nes")
	writeInstructionROM(t, romPath, prg...)

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		t.Fatalf("loading cartridge: %v", err)
	}
	b := bus.New()
	b.LoadCartridge(cart)

	e := NewEmulator(b, NewConfig())
	return e, b
}

func TestSetTimeDilationScalesFrameCycleBudget(t *testing.T) {
	e, _ := newTestEmulator(t)
	e.Start()
	e.SetTimeDilation(10)

	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.GetCycleCount() < ntscCyclesPerFrame*10 {
		t.Errorf("GetCycleCount() = %d, want >= %d at 10x dilation", e.GetCycleCount(), ntscCyclesPerFrame*10)
	}
}

func TestToggleFreezeStopsUpdate(t *testing.T) {
	e, _ := newTestEmulator(t)
	e.Start()
	e.ToggleFreeze()

	if !e.IsFrozen() {
		t.Fatal("expected IsFrozen() to be true after ToggleFreeze")
	}
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.GetFrameCount() != 0 {
		t.Errorf("GetFrameCount() = %d, want 0 while frozen", e.GetFrameCount())
	}

	e.ToggleFreeze()
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.GetFrameCount() != 1 {
		t.Errorf("GetFrameCount() = %d, want 1 after unfreezing", e.GetFrameCount())
	}
}

func TestStepInstructionAdvancesOneInstructionNotAFrame(t *testing.T) {
	e, b := newTestEmulatorWithProgram(t, 0xEA, 0xEA, 0xEA) // NOP NOP NOP
	if err := e.StepInstruction(); err != nil {
		t.Fatalf("StepInstruction: %v", err)
	}
	if b.CycleCount() >= ntscCyclesPerFrame {
		t.Errorf("CycleCount() = %d, should be far less than a frame after one instruction", b.CycleCount())
	}
	if b.CycleCount() == 0 {
		t.Error("CycleCount() should advance after StepInstruction")
	}
}

func TestSkipToRTSStopsWithRTSAsNextOpcode(t *testing.T) {
	e, b := newTestEmulatorWithProgram(t, 0xEA, 0xEA, 0x60) // NOP; NOP; RTS
	if err := e.SkipToRTS(); err != nil {
		t.Fatalf("SkipToRTS: %v", err)
	}
	if got := b.NextOpcode(); got != 0x60 {
		t.Errorf("NextOpcode() = $%02X, want $60 (RTS)", got)
	}
}

func TestToggleOverlayFlipsFlag(t *testing.T) {
	e, _ := newTestEmulator(t)
	if e.OverlayEnabled(0) {
		t.Fatal("expected overlay 0 to start disabled")
	}
	e.ToggleOverlay(0)
	if !e.OverlayEnabled(0) {
		t.Error("expected overlay 0 to be enabled after ToggleOverlay")
	}
}

func TestAudioRingReceivesSamplesAfterAFrame(t *testing.T) {
	e, _ := newTestEmulator(t)
	e.Start()
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.AudioRing().Available() == 0 {
		t.Error("expected the audio ring to have buffered samples after a frame")
	}
}
