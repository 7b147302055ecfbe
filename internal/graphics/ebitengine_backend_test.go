//go:build !headless

package graphics

import "testing"

func TestEbitengineBackendInitializeRejectsDoubleInit(t *testing.T) {
	backend := NewEbitengineBackend()

	if err := backend.Initialize(Config{WindowTitle: "Test"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := backend.Initialize(Config{}); err == nil {
		t.Error("expected an error re-initializing an already-initialized backend")
	}
}

func TestEbitengineBackendCreateWindowRequiresInitialize(t *testing.T) {
	backend := NewEbitengineBackend()
	if _, err := backend.CreateWindow("Test", 256, 240); err == nil {
		t.Error("expected an error creating a window before Initialize")
	}
}

func TestEbitengineBackendCreateWindowRejectsHeadlessConfig(t *testing.T) {
	backend := NewEbitengineBackend()
	if err := backend.Initialize(Config{Headless: true}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := backend.CreateWindow("Test", 256, 240); err == nil {
		t.Error("expected an error creating a window on a headless-configured backend")
	}
}

func TestEbitengineWindowRenderFrameRequiresGame(t *testing.T) {
	w := &EbitengineWindow{}
	if err := w.RenderFrame([256 * 240]uint32{}); err == nil {
		t.Error("expected an error rendering without an initialized game")
	}
}

func TestEbitengineWindowPollEventsDrainsQueue(t *testing.T) {
	w := &EbitengineWindow{events: []InputEvent{{Type: InputEventTypeQuit}}}
	events := w.PollEvents()
	if len(events) != 1 {
		t.Fatalf("PollEvents returned %d events, want 1", len(events))
	}
	if len(w.PollEvents()) != 0 {
		t.Error("PollEvents should drain the event queue")
	}
}

func TestGetName(t *testing.T) {
	if got := NewEbitengineBackend().GetName(); got != "Ebitengine" {
		t.Errorf("GetName() = %q, want %q", got, "Ebitengine")
	}
}
