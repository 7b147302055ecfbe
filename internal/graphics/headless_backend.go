package graphics

import (
	"fmt"
	"os"
)

// HeadlessBackend implements Backend with no window or audio device —
// for automated playback, frame-dump captures, and CI.
type HeadlessBackend struct {
	initialized bool
	config      Config
}

// HeadlessWindow implements Window with no-op presentation; RenderFrame
// optionally dumps frames to disk when DumpEveryNFrames is set.
type HeadlessWindow struct {
	title            string
	width            int
	height           int
	running          bool
	frameCount       int
	outputPath       string
	dumpEveryNFrames int
}

// NewHeadlessBackend creates an uninitialized headless backend.
func NewHeadlessBackend() Backend {
	return &HeadlessBackend{}
}

// Initialize records the backend configuration.
func (b *HeadlessBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("headless backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates a headless window that renders nowhere.
func (b *HeadlessBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	return &HeadlessWindow{
		title:      title,
		width:      width,
		height:     height,
		running:    true,
		outputPath: "frame_output",
	}, nil
}

// Cleanup marks the backend uninitialized.
func (b *HeadlessBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless always reports true for this backend.
func (b *HeadlessBackend) IsHeadless() bool { return true }

// GetName identifies this backend.
func (b *HeadlessBackend) GetName() string { return "Headless" }

// SetTitle records the title (there's no window chrome to update).
func (w *HeadlessWindow) SetTitle(title string) { w.title = title }

// GetSize returns the configured dimensions.
func (w *HeadlessWindow) GetSize() (width, height int) { return w.width, w.height }

// ShouldClose reports whether Cleanup has been called.
func (w *HeadlessWindow) ShouldClose() bool { return !w.running }

// SwapBuffers is a no-op; there is no surface to present.
func (w *HeadlessWindow) SwapBuffers() {}

// PollEvents always returns no events; headless mode has no input source.
func (w *HeadlessWindow) PollEvents() []InputEvent { return nil }

// RenderFrame counts the frame and, if SetFrameDumping was enabled,
// periodically writes it to a PPM file for offline inspection.
func (w *HeadlessWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	w.frameCount++

	if w.dumpEveryNFrames > 0 && w.frameCount%w.dumpEveryNFrames == 0 {
		filename := fmt.Sprintf("%s_%06d.ppm", w.outputPath, w.frameCount)
		return w.saveFrameAsPPM(frameBuffer, filename)
	}
	return nil
}

// saveFrameAsPPM writes frameBuffer as a plain (ASCII) PPM image.
func (w *HeadlessWindow) saveFrameAsPPM(frameBuffer [256 * 240]uint32, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer file.Close()

	fmt.Fprintf(file, "P3\n256 240\n255\n")
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			pixel := frameBuffer[y*256+x]
			fmt.Fprintf(file, "%d %d %d ", (pixel>>16)&0xFF, (pixel>>8)&0xFF, pixel&0xFF)
		}
		fmt.Fprintln(file)
	}
	return nil
}

// Cleanup marks the window closed.
func (w *HeadlessWindow) Cleanup() error {
	w.running = false
	return nil
}

// SetOutputPath sets the filename prefix used by frame dumps.
func (w *HeadlessWindow) SetOutputPath(path string) { w.outputPath = path }

// SetFrameDumping enables a PPM dump every n frames; 0 disables dumping.
func (w *HeadlessWindow) SetFrameDumping(n int) { w.dumpEveryNFrames = n }

// GetFrameCount returns the number of frames rendered so far.
func (w *HeadlessWindow) GetFrameCount() int { return w.frameCount }
