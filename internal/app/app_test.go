package app

import (
	"path/filepath"
	"testing"

	"nesvm/internal/graphics"
)

func newHeadlessTestApp(t *testing.T) (*Application, string) {
	t.Helper()
	application, err := NewApplicationWithMode("", true)
	if err != nil {
		t.Fatalf("NewApplicationWithMode: %v", err)
	}

	romPath := filepath.Join(t.TempDir(), "game.nes")
	writeTestROM(t, romPath)
	if err := application.LoadROM(romPath); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	return application, romPath
}

func TestNewApplicationWithModeHeadlessInitializes(t *testing.T) {
	application, err := NewApplicationWithMode("", true)
	if err != nil {
		t.Fatalf("NewApplicationWithMode: %v", err)
	}
	if !application.initialized {
		t.Error("expected application to be initialized")
	}
	if application.GetBus() == nil {
		t.Error("expected a non-nil bus")
	}
}

func TestLoadROMStartsEmulatorAndSetsROMPath(t *testing.T) {
	application, romPath := newHeadlessTestApp(t)
	if application.GetROMPath() != romPath {
		t.Errorf("GetROMPath() = %q, want %q", application.GetROMPath(), romPath)
	}
	if !application.emulator.IsRunning() {
		t.Error("expected the emulator to be running after LoadROM")
	}
}

func TestPauseStopsEmulatorUpdatesWithoutStoppingEmulator(t *testing.T) {
	application, _ := newHeadlessTestApp(t)

	before := application.GetFrameCount()
	application.Pause()
	if err := application.updateEmulator(); err != nil {
		t.Fatalf("updateEmulator: %v", err)
	}
	if application.GetFrameCount() != before {
		t.Errorf("GetFrameCount() advanced while paused: before=%d after=%d", before, application.GetFrameCount())
	}

	application.Resume()
	if err := application.updateEmulator(); err != nil {
		t.Fatalf("updateEmulator: %v", err)
	}
	if application.GetFrameCount() != before+1 {
		t.Errorf("GetFrameCount() = %d, want %d after resuming", application.GetFrameCount(), before+1)
	}
}

func TestSaveStateThenLoadStateRoundTripsThroughApplication(t *testing.T) {
	application, _ := newHeadlessTestApp(t)
	application.states = NewStateManager(t.TempDir())

	if err := application.updateEmulator(); err != nil {
		t.Fatalf("updateEmulator: %v", err)
	}
	wantPC := application.bus.CPU.PC

	if err := application.SaveState(0); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	application.bus.CPU.PC = 0x1234
	if err := application.LoadState(0); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if application.bus.CPU.PC != wantPC {
		t.Errorf("CPU.PC after LoadState = $%04X, want $%04X", application.bus.CPU.PC, wantPC)
	}
}

func TestHandleDebugKeySetsTimeDilation(t *testing.T) {
	application, _ := newHeadlessTestApp(t)

	application.handleDebugKey(graphics.InputEvent{Type: graphics.InputEventTypeKey, Key: graphics.Key3, Pressed: true})
	if got := application.emulator.TimeDilation(); got != 1000 {
		t.Errorf("TimeDilation() = %d, want 1000 after pressing key 3", got)
	}
}

func TestHandleDebugKeyTogglesFreeze(t *testing.T) {
	application, _ := newHeadlessTestApp(t)

	application.handleDebugKey(graphics.InputEvent{Type: graphics.InputEventTypeKey, Key: graphics.KeyF, Pressed: true})
	if !application.emulator.IsFrozen() {
		t.Error("expected emulator to be frozen after pressing F")
	}
}

func TestCleanupMarksApplicationUninitialized(t *testing.T) {
	application, _ := newHeadlessTestApp(t)
	application.states = NewStateManager(t.TempDir())

	if err := application.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if application.initialized {
		t.Error("expected initialized to be false after Cleanup")
	}
}
