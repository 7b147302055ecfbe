package graphics

import (
	"os"
	"testing"
)

func TestHeadlessBackendIsHeadless(t *testing.T) {
	backend := NewHeadlessBackend()
	if !backend.IsHeadless() {
		t.Error("HeadlessBackend.IsHeadless() should always be true")
	}
}

func TestHeadlessWindowRenderFrameDumpsOnConfiguredInterval(t *testing.T) {
	backend := NewHeadlessBackend()
	if err := backend.Initialize(Config{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	window, err := backend.CreateWindow("Test", 256, 240)
	if err != nil {
		t.Fatalf("CreateWindow: %v", err)
	}

	hw := window.(*HeadlessWindow)
	dir := t.TempDir()
	hw.SetOutputPath(dir + "/frame")
	hw.SetFrameDumping(2)

	if err := hw.RenderFrame([256 * 240]uint32{}); err != nil {
		t.Fatalf("RenderFrame (frame 1): %v", err)
	}
	if err := hw.RenderFrame([256 * 240]uint32{}); err != nil {
		t.Fatalf("RenderFrame (frame 2): %v", err)
	}

	if hw.GetFrameCount() != 2 {
		t.Errorf("GetFrameCount() = %d, want 2", hw.GetFrameCount())
	}

	matches, _ := os.ReadDir(dir)
	if len(matches) != 1 {
		t.Errorf("expected exactly one dumped frame at the 2-frame interval, found %d files", len(matches))
	}
}

func TestHeadlessWindowPollEventsReturnsNil(t *testing.T) {
	w := &HeadlessWindow{running: true}
	if events := w.PollEvents(); events != nil {
		t.Errorf("PollEvents() = %v, want nil", events)
	}
}
