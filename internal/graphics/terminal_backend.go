package graphics

import "fmt"

// TerminalBackend implements Backend as a coarse ASCII-art renderer,
// for environments with a TTY but no graphical display.
type TerminalBackend struct {
	initialized bool
	config      Config
}

// TerminalWindow implements Window over stdout.
type TerminalWindow struct {
	title   string
	width   int
	height  int
	running bool
}

// NewTerminalBackend creates an uninitialized terminal backend.
func NewTerminalBackend() Backend {
	return &TerminalBackend{}
}

// Initialize records the backend configuration.
func (b *TerminalBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("terminal backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates a terminal "window" (no actual window).
func (b *TerminalBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	return &TerminalWindow{title: title, width: width, height: height, running: true}, nil
}

// Cleanup marks the backend uninitialized.
func (b *TerminalBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless reports false; the terminal is a (crude) display.
func (b *TerminalBackend) IsHeadless() bool { return false }

// GetName identifies this backend.
func (b *TerminalBackend) GetName() string { return "Terminal" }

// SetTitle sets the terminal's window title via an OSC escape sequence.
func (w *TerminalWindow) SetTitle(title string) {
	w.title = title
	fmt.Printf("\033]0;%s\007", title)
}

// GetSize returns the configured dimensions.
func (w *TerminalWindow) GetSize() (width, height int) { return w.width, w.height }

// ShouldClose reports whether Cleanup has been called.
func (w *TerminalWindow) ShouldClose() bool { return !w.running }

// SwapBuffers is a no-op for terminal output.
func (w *TerminalWindow) SwapBuffers() {}

// PollEvents always returns no events; the terminal backend has no input path.
func (w *TerminalWindow) PollEvents() []InputEvent { return nil }

// RenderFrame prints a coarse subsampled ASCII-art rendering of the frame.
func (w *TerminalWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	fmt.Print("\033[2J\033[H")

	for y := 0; y < 240; y += 8 {
		for x := 0; x < 256; x += 4 {
			if frameBuffer[y*256+x] == 0x000000 {
				fmt.Print(" ")
			} else {
				fmt.Print("#")
			}
		}
		fmt.Println()
	}
	return nil
}

// Cleanup marks the window closed.
func (w *TerminalWindow) Cleanup() error {
	w.running = false
	return nil
}
