//go:build headless

package graphics

import (
	"fmt"
	"io"
)

// EbitengineBackend is a stub for headless builds, where the ebiten
// dependency itself is compiled out.
type EbitengineBackend struct{}

// EbitengineWindow is a stub for headless builds.
type EbitengineWindow struct{}

// NewEbitengineBackend creates a stub backend that always fails to initialize.
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

func (b *EbitengineBackend) Initialize(config Config) error {
	return fmt.Errorf("ebitengine backend not available in headless build")
}

func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	return nil, fmt.Errorf("ebitengine backend not available in headless build")
}

func (b *EbitengineBackend) Cleanup() error { return nil }

func (b *EbitengineBackend) IsHeadless() bool { return true }

func (b *EbitengineBackend) GetName() string { return "Ebitengine-Stub" }

func (w *EbitengineWindow) SetTitle(title string)        {}
func (w *EbitengineWindow) GetSize() (width, height int) { return 0, 0 }
func (w *EbitengineWindow) ShouldClose() bool            { return true }
func (w *EbitengineWindow) SwapBuffers()                 {}
func (w *EbitengineWindow) PollEvents() []InputEvent     { return nil }
func (w *EbitengineWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	return fmt.Errorf("ebitengine backend not available in headless build")
}
func (w *EbitengineWindow) Cleanup() error { return nil }
func (w *EbitengineWindow) Run() error {
	return fmt.Errorf("ebitengine backend not available in headless build")
}
func (w *EbitengineWindow) SetEmulatorUpdateFunc(updateFunc func() error) {}
func (w *EbitengineWindow) SetAudioStream(stream io.Reader) error {
	return fmt.Errorf("ebitengine backend not available in headless build")
}
