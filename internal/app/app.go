package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"nesvm/internal/audio"
	"nesvm/internal/bus"
	"nesvm/internal/cartridge"
	"nesvm/internal/graphics"
)

// Application wires the bus, graphics backend, emulator loop and
// persistence layers into a runnable program.
type Application struct {
	bus *bus.Bus

	graphicsBackend graphics.Backend
	window          graphics.Window
	videoProcessor  *graphics.VideoProcessor

	config   *Config
	emulator *Emulator
	states   *StateManager

	running     bool
	paused      bool
	initialized bool
	headless    bool

	startTime  time.Time
	currentFPS float64

	romPath   string
	cartridge *cartridge.Cartridge

	lastController1State [8]bool
	lastController2State [8]bool
}

// ApplicationError reports a failure during one phase of setup or the
// main loop.
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

// NewApplication creates an application with a GUI graphics backend,
// loading configuration from configPath if given.
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode creates an application, optionally forcing the
// headless graphics backend regardless of configuration.
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	app := &Application{
		config:    NewConfig(),
		headless:  headless,
		startTime: time.Now(),
	}

	if configPath != "" {
		if err := app.config.LoadFromFile(configPath); err != nil {
			fmt.Printf("warning: could not load config from %s, using defaults: %v\n", configPath, err)
		}
	}

	if err := app.initializeComponents(headless); err != nil {
		return nil, &ApplicationError{Component: "initialization", Operation: "component setup", Err: err}
	}

	return app, nil
}

func (app *Application) initializeComponents(headless bool) error {
	app.bus = bus.New()

	if err := app.initializeGraphicsBackend(headless); err != nil {
		return fmt.Errorf("failed to initialize graphics backend: %w", err)
	}

	app.emulator = NewEmulator(app.bus, app.config)
	app.states = NewStateManager(app.config.Paths.SaveStates)

	app.initialized = true
	return nil
}

func (app *Application) initializeGraphicsBackend(headless bool) error {
	var backendType graphics.BackendType
	switch {
	case headless:
		backendType = graphics.BackendHeadless
	case app.config.Video.Backend == "headless":
		backendType = graphics.BackendHeadless
	case app.config.Video.Backend == "terminal":
		backendType = graphics.BackendTerminal
	default:
		backendType = graphics.BackendEbitengine
	}

	var err error
	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return fmt.Errorf("failed to create graphics backend: %w", err)
	}

	graphicsConfig := graphics.Config{
		WindowTitle:  "nesvm",
		WindowWidth:  app.config.Window.Width,
		WindowHeight: app.config.Window.Height,
		Fullscreen:   app.config.Window.Fullscreen,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		AspectRatio:  app.config.Video.AspectRatio,
		Headless:     headless,
		Debug:        app.config.Debug.EnableLogging,
	}

	if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
		if backendType != graphics.BackendEbitengine {
			return fmt.Errorf("failed to initialize graphics backend: %w", err)
		}

		fmt.Printf("warning: Ebitengine backend failed (%v), falling back to headless mode\n", err)
		app.graphicsBackend, err = graphics.CreateBackend(graphics.BackendHeadless)
		if err != nil {
			return fmt.Errorf("failed to create fallback headless backend: %w", err)
		}
		graphicsConfig.Headless = true
		if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
			return fmt.Errorf("failed to initialize fallback headless backend: %w", err)
		}
	}

	if !headless && !app.graphicsBackend.IsHeadless() {
		app.window, err = app.graphicsBackend.CreateWindow(
			graphicsConfig.WindowTitle, graphicsConfig.WindowWidth, graphicsConfig.WindowHeight)
		if err != nil {
			return fmt.Errorf("failed to create window: %w", err)
		}
	}

	app.videoProcessor = graphics.NewVideoProcessor(
		app.config.Video.Brightness, app.config.Video.Contrast, app.config.Video.Saturation)

	return nil
}

// LoadROM loads a cartridge image and resets the system to run it.
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load ROM", Err: err}
	}

	app.cartridge = cart
	app.romPath = romPath
	app.bus.LoadCartridge(cart)

	if ebitengineWindow, ok := graphics.AsEbitengineWindow(app.window); ok {
		stream := audio.NewStream(app.emulator.AudioRing())
		if err := ebitengineWindow.SetAudioStream(stream); err != nil {
			fmt.Printf("warning: could not start audio playback: %v\n", err)
		}
	}

	if app.window != nil {
		app.window.SetTitle(fmt.Sprintf("nesvm - %s", filepath.Base(romPath)))
	}

	app.emulator.Start()
	return nil
}

// Run starts the main application loop; it blocks until Stop is called
// or the window is closed.
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	app.running = true
	app.startTime = time.Now()

	if ebitengineWindow, ok := graphics.AsEbitengineWindow(app.window); ok {
		ebitengineWindow.SetEmulatorUpdateFunc(func() error {
			if err := app.processInput(); err != nil {
				return err
			}
			if err := app.updateEmulator(); err != nil {
				return err
			}
			if err := app.render(); err != nil {
				return err
			}
			if app.window != nil && app.window.ShouldClose() {
				app.Stop()
			}
			return nil
		})
		return ebitengineWindow.Run()
	}

	for app.running {
		if err := app.processInput(); err != nil {
			fmt.Printf("input processing error: %v\n", err)
		}
		if err := app.updateEmulator(); err != nil {
			return fmt.Errorf("emulator update error: %w", err)
		}
		if err := app.render(); err != nil {
			fmt.Printf("render error: %v\n", err)
		}
		if app.window != nil && app.window.ShouldClose() {
			app.Stop()
		}
		time.Sleep(16 * time.Millisecond)
	}

	return nil
}

func (app *Application) updateEmulator() error {
	if !app.paused && app.cartridge != nil {
		return app.emulator.Update()
	}
	return nil
}

func (app *Application) processInput() error {
	if app.window == nil {
		return nil
	}

	events := app.window.PollEvents()
	if len(events) == 0 {
		return nil
	}

	controller1 := app.lastController1State
	controller2 := app.lastController2State
	var changed1, changed2 bool

	for _, event := range events {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
			return nil

		case graphics.InputEventTypeKey:
			app.handleSaveStateKey(event)
			app.handleDebugKey(event)

		case graphics.InputEventTypeButton:
			if app.cartridge == nil {
				continue
			}
			if idx := controller2ButtonIndex(event.Button); idx >= 0 {
				controller2[idx] = event.Pressed
				changed2 = true
			} else if idx := controller1ButtonIndex(event.Button); idx >= 0 {
				controller1[idx] = event.Pressed
				changed1 = true
			}
		}
	}

	if changed1 {
		app.bus.SetControllerButtons(1, controller1)
		app.lastController1State = controller1
	}
	if changed2 {
		app.bus.SetControllerButtons(2, controller2)
		app.lastController2State = controller2
	}

	return nil
}

// handleSaveStateKey maps F1-F10 to save-state slots 0-9: plain press
// saves, Shift+press loads.
func (app *Application) handleSaveStateKey(event graphics.InputEvent) bool {
	if !event.Pressed {
		return false
	}

	switch event.Key {
	case graphics.KeyF1, graphics.KeyF2, graphics.KeyF3, graphics.KeyF4, graphics.KeyF5,
		graphics.KeyF6, graphics.KeyF7, graphics.KeyF8, graphics.KeyF9, graphics.KeyF10:
		slot := int(event.Key - graphics.KeyF1)
		if event.Modifiers&graphics.ModifierShift != 0 {
			if err := app.LoadState(slot); err != nil {
				fmt.Printf("failed to load state %d: %v\n", slot, err)
			}
		} else {
			if err := app.SaveState(slot); err != nil {
				fmt.Printf("failed to save state %d: %v\n", slot, err)
			}
		}
		return true
	}
	return false
}

// timeDilationLevels maps the 1-5 keys onto the dot-budget multipliers
// the debug scheduler exposes: real-time, then increasing fast-forward.
var timeDilationLevels = map[graphics.Key]uint64{
	graphics.Key1: 1,
	graphics.Key2: 10,
	graphics.Key3: 1000,
	graphics.Key4: 5000,
	graphics.Key5: 200000,
}

// handleDebugKey routes the scheduler's debug bindings: 1-5 set time
// dilation, F toggles freeze, Enter single-steps one CPU instruction, R
// skips to the next RTS, N skips to the next NMI, and F1-F4 toggle the
// (content-less) debug-overlay flags.
func (app *Application) handleDebugKey(event graphics.InputEvent) {
	if !event.Pressed || app.cartridge == nil {
		return
	}

	if dilation, ok := timeDilationLevels[event.Key]; ok {
		app.emulator.SetTimeDilation(dilation)
		return
	}

	switch event.Key {
	case graphics.KeyF:
		app.emulator.ToggleFreeze()

	case graphics.KeyEnter:
		if err := app.emulator.StepInstruction(); err != nil {
			fmt.Printf("single-step error: %v\n", err)
		}

	case graphics.KeyR:
		if err := app.emulator.SkipToRTS(); err != nil {
			fmt.Printf("skip-to-RTS error: %v\n", err)
		}

	case graphics.KeyN:
		if err := app.emulator.SkipToNMI(); err != nil {
			fmt.Printf("skip-to-NMI error: %v\n", err)
		}

	case graphics.KeyF1, graphics.KeyF2, graphics.KeyF3, graphics.KeyF4:
		app.emulator.ToggleOverlay(int(event.Key - graphics.KeyF1))
	}
}

func controller1ButtonIndex(button graphics.Button) int {
	switch button {
	case graphics.ButtonA:
		return 0
	case graphics.ButtonB:
		return 1
	case graphics.ButtonSelect:
		return 2
	case graphics.ButtonStart:
		return 3
	case graphics.ButtonUp:
		return 4
	case graphics.ButtonDown:
		return 5
	case graphics.ButtonLeft:
		return 6
	case graphics.ButtonRight:
		return 7
	default:
		return -1
	}
}

func controller2ButtonIndex(button graphics.Button) int {
	switch button {
	case graphics.Button2A:
		return 0
	case graphics.Button2B:
		return 1
	case graphics.Button2Select:
		return 2
	case graphics.Button2Start:
		return 3
	case graphics.Button2Up:
		return 4
	case graphics.Button2Down:
		return 5
	case graphics.Button2Left:
		return 6
	case graphics.Button2Right:
		return 7
	default:
		return -1
	}
}

// SetControllerButtons sets every button of controller (1 or 2) at once.
func (app *Application) SetControllerButtons(controller int, buttons [8]bool) {
	if app.bus != nil {
		app.bus.SetControllerButtons(controller, buttons)
	}
}

// GetBus returns the underlying bus, for tests and tooling that need
// direct access.
func (app *Application) GetBus() *bus.Bus { return app.bus }

func (app *Application) render() error {
	if app.window == nil {
		return nil
	}
	if app.cartridge == nil {
		return nil
	}

	frame := app.videoProcessor.ProcessFrame(app.emulator.GetFrameBuffer())

	var frameBuffer [256 * 240]uint32
	copy(frameBuffer[:], frame)
	if err := app.window.RenderFrame(frameBuffer); err != nil {
		return fmt.Errorf("failed to render frame: %w", err)
	}

	app.window.SwapBuffers()
	return nil
}

// Stop ends the main loop on its next iteration.
func (app *Application) Stop() { app.running = false }

// Pause suspends emulation without stopping the main loop.
func (app *Application) Pause() { app.paused = true }

// Resume resumes emulation after Pause.
func (app *Application) Resume() { app.paused = false }

// TogglePause flips the paused state.
func (app *Application) TogglePause() { app.paused = !app.paused }

// SaveState captures the running machine into slot.
func (app *Application) SaveState(slot int) error {
	if app.cartridge == nil {
		return errors.New("no ROM loaded")
	}
	return app.states.SaveState(app.bus, slot, app.romPath)
}

// LoadState restores the machine from slot.
func (app *Application) LoadState(slot int) error {
	if app.cartridge == nil {
		return errors.New("no ROM loaded")
	}
	return app.states.LoadState(app.bus, slot, app.romPath)
}

// Reset resets the loaded machine to its power-up state.
func (app *Application) Reset() {
	if app.bus != nil {
		app.bus.Reset()
	}
}

// IsRunning reports whether the main loop is active.
func (app *Application) IsRunning() bool { return app.running }

// IsPaused reports whether emulation is currently paused.
func (app *Application) IsPaused() bool { return app.paused }

// GetFrameCount returns the number of frames emulated since the last Reset.
func (app *Application) GetFrameCount() uint64 { return app.emulator.GetFrameCount() }

// GetUptime returns the time elapsed since Run started.
func (app *Application) GetUptime() time.Duration { return time.Since(app.startTime) }

// GetROMPath returns the currently loaded ROM's path.
func (app *Application) GetROMPath() string { return app.romPath }

// GetConfig returns the application's configuration.
func (app *Application) GetConfig() *Config { return app.config }

// GetFPS returns the current smoothed frames-per-second figure.
func (app *Application) GetFPS() float64 {
	avg := app.emulator.GetAverageFrameTime()
	if avg == 0 {
		return 0
	}
	app.currentFPS = float64(time.Second) / float64(avg)
	return app.currentFPS
}

// ApplyDebugSettings re-applies the current debug configuration, for
// use after a ROM load recreates emulation components.
func (app *Application) ApplyDebugSettings() {
	if app.config.Debug.EnableLogging {
		fmt.Printf("debug: log level %s, cpu tracing %t, ppu debugging %t\n",
			app.config.Debug.LogLevel, app.config.Debug.CPUTracing, app.config.Debug.PPUDebugging)
	}
}

// Cleanup releases every owned resource, continuing past the first
// error so every component gets a chance to shut down.
func (app *Application) Cleanup() error {
	var lastErr error

	if app.states != nil {
		if err := app.states.Cleanup(); err != nil {
			lastErr = err
		}
	}
	if app.emulator != nil {
		if err := app.emulator.Cleanup(); err != nil {
			lastErr = err
		}
	}
	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
		}
	}
	if app.graphicsBackend != nil {
		if err := app.graphicsBackend.Cleanup(); err != nil {
			lastErr = err
		}
	}

	app.initialized = false
	return lastErr
}
