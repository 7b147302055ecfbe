//go:build !headless

package graphics

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const audioSampleRate = 44100

// EbitengineBackend implements Backend on top of Ebitengine.
type EbitengineBackend struct {
	initialized bool
	config      Config
	game        *EbitengineGame
}

// EbitengineWindow implements Window on top of an EbitengineGame.
type EbitengineWindow struct {
	backend            *EbitengineBackend
	title              string
	width              int
	height             int
	game               *EbitengineGame
	running            bool
	events             []InputEvent
	emulatorUpdateFunc func() error
}

// EbitengineGame implements ebiten.Game, driving the emulator from
// Ebitengine's Update/Draw callbacks.
type EbitengineGame struct {
	window       *EbitengineWindow
	frameBuffer  [256 * 240]uint32
	frameImage   *ebiten.Image
	nesWidth     int
	nesHeight    int
	windowWidth  int
	windowHeight int

	previousKeyStates map[ebiten.Key]bool
	scale             int

	imageBuffer *image.RGBA

	audioContext *audio.Context
	audioPlayer  *audio.Player
}

// NewEbitengineBackend creates an uninitialized Ebitengine backend.
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

// Initialize records the backend configuration.
func (b *EbitengineBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("ebitengine backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates the single Ebitengine window and game loop shell.
func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	if b.config.Headless {
		return nil, fmt.Errorf("cannot create window in headless mode")
	}

	scale := 1
	if width >= 512 && height >= 480 {
		scale = 2
	}
	if width >= 1024 && height >= 960 {
		scale = 4
	}

	game := &EbitengineGame{
		nesWidth:          256,
		nesHeight:         240,
		windowWidth:       width,
		windowHeight:      height,
		scale:             scale,
		frameImage:        ebiten.NewImage(256, 240),
		previousKeyStates: make(map[ebiten.Key]bool),
		imageBuffer:       image.NewRGBA(image.Rect(0, 0, 256, 240)),
	}

	window := &EbitengineWindow{
		backend: b,
		title:   title,
		width:   width,
		height:  height,
		game:    game,
		running: true,
	}

	game.window = window
	b.game = game

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(b.config.VSync)

	if b.config.Fullscreen {
		ebiten.SetFullscreen(true)
	}

	ebiten.SetScreenFilterEnabled(b.config.Filter == "linear")

	return window, nil
}

// Cleanup marks the backend uninitialized.
func (b *EbitengineBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless reports the configured headless flag.
func (b *EbitengineBackend) IsHeadless() bool { return b.config.Headless }

// GetName identifies this backend.
func (b *EbitengineBackend) GetName() string { return "Ebitengine" }

// SetTitle updates the OS window title.
func (w *EbitengineWindow) SetTitle(title string) {
	w.title = title
	ebiten.SetWindowTitle(title)
}

// GetSize returns the window's current dimensions.
func (w *EbitengineWindow) GetSize() (width, height int) { return w.width, w.height }

// ShouldClose reports whether the game loop has been asked to stop.
func (w *EbitengineWindow) ShouldClose() bool { return !w.running }

// SwapBuffers is a no-op; Ebitengine presents automatically after Draw.
func (w *EbitengineWindow) SwapBuffers() {}

// PollEvents drains and returns the events accumulated since the last call.
func (w *EbitengineWindow) PollEvents() []InputEvent {
	events := w.events
	w.events = nil
	return events
}

// RenderFrame copies a completed NES frame buffer into the displayed image.
func (w *EbitengineWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	if w.game == nil {
		return fmt.Errorf("game not initialized")
	}

	w.game.frameBuffer = frameBuffer

	img := w.game.imageBuffer
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			pixel := frameBuffer[y*256+x]
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(pixel >> 16), G: uint8(pixel >> 8), B: uint8(pixel), A: 255,
			})
		}
	}

	w.game.frameImage.WritePixels(img.Pix)
	return nil
}

// Cleanup stops the game loop.
func (w *EbitengineWindow) Cleanup() error {
	w.running = false
	return nil
}

// Run starts Ebitengine's blocking game loop.
func (w *EbitengineWindow) Run() error {
	if w.game == nil {
		return fmt.Errorf("game not initialized")
	}
	return ebiten.RunGame(w.game)
}

// SetEmulatorUpdateFunc installs the per-frame emulator advance callback.
func (w *EbitengineWindow) SetEmulatorUpdateFunc(updateFunc func() error) {
	w.emulatorUpdateFunc = updateFunc
}

// SetAudioStream attaches an io.Reader of 16-bit stereo PCM as the
// window's audio source, delegating to the underlying game.
func (w *EbitengineWindow) SetAudioStream(stream io.Reader) error {
	if w.game == nil {
		return fmt.Errorf("game not initialized")
	}
	return w.game.SetAudioStream(stream)
}

// SetAudioStream attaches an io.Reader of 16-bit stereo PCM as the
// game's audio source, starting playback immediately. Passing nil
// stops and releases any previously attached player.
func (g *EbitengineGame) SetAudioStream(stream io.Reader) error {
	if g.audioContext == nil {
		g.audioContext = audio.NewContext(audioSampleRate)
	}
	if g.audioPlayer != nil {
		g.audioPlayer.Close()
		g.audioPlayer = nil
	}
	if stream == nil {
		return nil
	}

	player, err := g.audioContext.NewPlayer(stream)
	if err != nil {
		return fmt.Errorf("create audio player: %w", err)
	}
	g.audioPlayer = player
	g.audioPlayer.Play()
	return nil
}

// Update advances input polling and the emulator for one Ebitengine tick.
func (g *EbitengineGame) Update() error {
	if g.window == nil {
		return nil
	}

	g.processInput()

	if g.window.emulatorUpdateFunc != nil {
		return g.window.emulatorUpdateFunc()
	}
	return nil
}

// Draw composites the latest NES frame into the window, letterboxed
// to preserve aspect ratio.
func (g *EbitengineGame) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 0, G: 0, B: 0, A: 255})
	if g.frameImage == nil {
		return
	}

	op := &ebiten.DrawImageOptions{}

	scaleX := float64(g.windowWidth) / float64(g.nesWidth)
	scaleY := float64(g.windowHeight) / float64(g.nesHeight)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}

	offsetX := (float64(g.windowWidth) - float64(g.nesWidth)*scale) / 2
	offsetY := (float64(g.windowHeight) - float64(g.nesHeight)*scale) / 2

	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(offsetX, offsetY)

	screen.DrawImage(g.frameImage, op)
}

// Layout reports the outer window size back to Ebitengine unchanged;
// scaling happens in Draw.
func (g *EbitengineGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.windowWidth = outsideWidth
	g.windowHeight = outsideHeight
	return outsideWidth, outsideHeight
}

var keyMappings = map[ebiten.Key]Key{
	ebiten.KeyEscape:     KeyEscape,
	ebiten.KeyEnter:      KeyEnter,
	ebiten.KeySpace:      KeySpace,
	ebiten.KeyArrowUp:    KeyUp,
	ebiten.KeyArrowDown:  KeyDown,
	ebiten.KeyArrowLeft:  KeyLeft,
	ebiten.KeyArrowRight: KeyRight,
	ebiten.KeyW:          KeyW,
	ebiten.KeyA:          KeyA,
	ebiten.KeyS:          KeyS,
	ebiten.KeyD:          KeyD,
	ebiten.KeyJ:          KeyJ,
	ebiten.KeyK:          KeyK,
	ebiten.KeyX:          KeyX,
	ebiten.KeyZ:          KeyZ,
	ebiten.KeyR:          KeyR,
	ebiten.KeyN:          KeyN,
	ebiten.KeyF:          KeyF,
	ebiten.Key1:          Key1,
	ebiten.Key2:          Key2,
	ebiten.Key3:          Key3,
	ebiten.Key4:          Key4,
	ebiten.Key5:          Key5,
	ebiten.Key6:          Key6,
	ebiten.Key7:          Key7,
	ebiten.Key8:          Key8,
	ebiten.KeyF1:         KeyF1,
	ebiten.KeyF2:         KeyF2,
	ebiten.KeyF3:         KeyF3,
	ebiten.KeyF4:         KeyF4,
	ebiten.KeyF5:         KeyF5,
	ebiten.KeyF6:         KeyF6,
	ebiten.KeyF7:         KeyF7,
	ebiten.KeyF8:         KeyF8,
	ebiten.KeyF9:         KeyF9,
	ebiten.KeyF10:        KeyF10,
	ebiten.KeyF11:        KeyF11,
	ebiten.KeyF12:        KeyF12,
}

// buttonMappings maps the recognized keys onto the two controller ports.
var buttonMappings = map[Key]Button{
	KeyUp:    ButtonUp,
	KeyDown:  ButtonDown,
	KeyLeft:  ButtonLeft,
	KeyRight: ButtonRight,
	KeyW:     ButtonUp,
	KeyS:     ButtonDown,
	KeyA:     ButtonLeft,
	KeyD:     ButtonRight,
	KeyJ:     ButtonA,
	KeyK:     ButtonB,
	KeyZ:     ButtonA,
	KeyX:     ButtonB,
	KeyEnter: ButtonStart,
	KeySpace: ButtonSelect,
	Key1:     Button2Up,
	Key2:     Button2Down,
	Key3:     Button2Left,
	Key4:     Button2Right,
	Key5:     Button2A,
	Key6:     Button2B,
	Key7:     Button2Start,
	Key8:     Button2Select,
}

// processInput polls Ebitengine's key-change detection and converts
// recognized keys into queued InputEvents (button events where a
// controller mapping exists, raw key events otherwise).
func (g *EbitengineGame) processInput() {
	if g.window == nil {
		return
	}

	var events []InputEvent

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		events = append(events, InputEvent{Type: InputEventTypeQuit, Pressed: true})
	}

	var rawKeyEvents []InputEvent
	for ebitenKey, key := range keyMappings {
		if inpututil.IsKeyJustPressed(ebitenKey) {
			rawKeyEvents = append(rawKeyEvents, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: true})
			g.previousKeyStates[ebitenKey] = true
		} else if inpututil.IsKeyJustReleased(ebitenKey) {
			rawKeyEvents = append(rawKeyEvents, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: false})
			g.previousKeyStates[ebitenKey] = false
		}
	}

	// A key carrying a controller-button mapping (1-8, Enter, Space, ...)
	// still does double duty: the same physical press both drives that
	// controller port and reaches the application as a raw key, so the
	// debug scheduler bindings sharing those keys (time dilation on 1-5,
	// single-step on Enter) still fire.
	for _, event := range rawKeyEvents {
		events = append(events, event)
		if button, ok := buttonMappings[event.Key]; ok {
			events = append(events, InputEvent{Type: InputEventTypeButton, Button: button, Pressed: event.Pressed})
		}
	}

	g.window.events = append(g.window.events, events...)
}
