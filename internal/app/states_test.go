package app

import (
	"os"
	"path/filepath"
	"testing"

	"nesvm/internal/bus"
	"nesvm/internal/cartridge"
)

func writeTestROM(t *testing.T, path string) {
	t.Helper()
	prg := make([]byte, 0x4000)
	prg[0x3FFC] = 0x00
	prg[0x3FFD] = 0x80

	header := []byte{'N', 'E', 'S', 0x1A, 0x01, 0x01, 0x00, 0x00, 0, 0, 0, 0, 0, 0, 0, 0}
	data := append(header, prg...)
	data = append(data, make([]byte, 0x2000)...)

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing test ROM: %v", err)
	}
}

func TestSaveStateThenLoadStateRestoresRegisters(t *testing.T) {
	romPath := filepath.Join(t.TempDir(), "game.nes")
	writeTestROM(t, romPath)

	b := bus.New()
	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		t.Fatalf("loading cartridge: %v", err)
	}
	b.LoadCartridge(cart)

	for i := 0; i < 1000; i++ {
		if err := b.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	wantCycles := b.CycleCount()
	wantPC := b.CPU.PC

	sm := NewStateManager(t.TempDir())
	if err := sm.SaveState(b, 0, romPath); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	// Disturb the machine so LoadState has something to undo.
	b.CPU.PC = 0x1234
	b.CPU.A = 0xFF

	if err := sm.LoadState(b, 0, romPath); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if b.CPU.PC != wantPC {
		t.Errorf("PC after restore = $%04X, want $%04X", b.CPU.PC, wantPC)
	}
	if b.CycleCount() != wantCycles {
		t.Errorf("CycleCount after restore = %d, want %d", b.CycleCount(), wantCycles)
	}
}

func TestLoadStateRejectsMismatchedROM(t *testing.T) {
	dir := t.TempDir()
	romPath := filepath.Join(dir, "game.nes")
	writeTestROM(t, romPath)

	b := bus.New()
	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		t.Fatalf("loading cartridge: %v", err)
	}
	b.LoadCartridge(cart)

	sm := NewStateManager(t.TempDir())
	if err := sm.SaveState(b, 0, romPath); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	if err := sm.LoadState(b, 0, "different.nes"); err == nil {
		t.Error("expected LoadState to reject a save state for a different ROM path")
	}
}

func TestHasSaveStateAndDeleteState(t *testing.T) {
	romPath := filepath.Join(t.TempDir(), "game.nes")
	writeTestROM(t, romPath)

	b := bus.New()
	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		t.Fatalf("loading cartridge: %v", err)
	}
	b.LoadCartridge(cart)

	sm := NewStateManager(t.TempDir())
	if sm.HasSaveState(0, romPath) {
		t.Error("HasSaveState should be false before any save")
	}

	if err := sm.SaveState(b, 0, romPath); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if !sm.HasSaveState(0, romPath) {
		t.Error("HasSaveState should be true after a save")
	}

	if err := sm.DeleteState(0, romPath); err != nil {
		t.Fatalf("DeleteState: %v", err)
	}
	if sm.HasSaveState(0, romPath) {
		t.Error("HasSaveState should be false after DeleteState")
	}
}

func TestCalculateROMChecksumIsStableForSameFile(t *testing.T) {
	romPath := filepath.Join(t.TempDir(), "game.nes")
	writeTestROM(t, romPath)

	sm := NewStateManager(t.TempDir())
	a := sm.calculateROMChecksum(romPath)
	b := sm.calculateROMChecksum(romPath)
	if a == "" || a != b {
		t.Errorf("calculateROMChecksum not stable: %q vs %q", a, b)
	}
}
