// Package graphics abstracts the presentation layer (window, input
// polling, frame/audio output) behind a Backend/Window pair so the
// emulation core never depends on a concrete windowing toolkit.
package graphics

// Backend represents a graphics+input+audio host (Ebitengine, headless, terminal).
type Backend interface {
	Initialize(config Config) error
	CreateWindow(title string, width, height int) (Window, error)
	Cleanup() error
	IsHeadless() bool
	GetName() string
}

// Window represents a single presentation surface.
type Window interface {
	SetTitle(title string)
	GetSize() (width, height int)
	ShouldClose() bool
	SwapBuffers()
	PollEvents() []InputEvent
	RenderFrame(frameBuffer [256 * 240]uint32) error
	Cleanup() error
}

// Config configures a graphics backend.
type Config struct {
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Fullscreen   bool
	VSync        bool

	Filter      string // "nearest", "linear"
	AspectRatio string // "4:3", "stretch"

	Headless bool
	Debug    bool
}

// InputEvent is a single input event polled from a Window.
type InputEvent struct {
	Type      InputEventType
	Key       Key
	Button    Button
	Pressed   bool
	Modifiers ModifierKey
}

// InputEventType distinguishes key, controller-button and quit events.
type InputEventType int

const (
	InputEventTypeKey InputEventType = iota
	InputEventTypeButton
	InputEventTypeQuit
)

// Key enumerates the keyboard keys the emulator recognizes.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyEnter
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyW
	KeyA
	KeyS
	KeyD
	KeyJ
	KeyK
	KeyX
	KeyZ
	KeyR
	KeyN
	KeyF
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

// Button enumerates the two controller ports' 8 face/d-pad buttons each.
type Button int

const (
	ButtonUnknown Button = iota
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
	Button2A
	Button2B
	Button2Select
	Button2Start
	Button2Up
	Button2Down
	Button2Left
	Button2Right
)

// ModifierKey is a bitmask of held modifier keys.
type ModifierKey int

const (
	ModifierNone  ModifierKey = 0
	ModifierShift ModifierKey = 1 << iota
	ModifierCtrl
	ModifierAlt
	ModifierSuper
)

// BackendType names a concrete Backend implementation for CreateBackend.
type BackendType string

const (
	BackendEbitengine BackendType = "ebitengine"
	BackendHeadless   BackendType = "headless"
	BackendTerminal   BackendType = "terminal"
)

// CreateBackend builds the named backend, defaulting to Ebitengine for
// an unrecognized type since that's the one with a real window.
func CreateBackend(backendType BackendType) (Backend, error) {
	switch backendType {
	case BackendEbitengine:
		return NewEbitengineBackend(), nil
	case BackendHeadless:
		return NewHeadlessBackend(), nil
	case BackendTerminal:
		return NewTerminalBackend(), nil
	default:
		return NewEbitengineBackend(), nil
	}
}

// AsEbitengineWindow type-asserts window down to *EbitengineWindow, for
// callers (app setup, the CLI) that need backend-specific hooks like
// SetEmulatorUpdateFunc or Run.
func AsEbitengineWindow(window Window) (*EbitengineWindow, bool) {
	w, ok := window.(*EbitengineWindow)
	return w, ok
}
