package app

import (
	"fmt"
	"time"

	"nesvm/internal/audio"
	"nesvm/internal/bus"
)

// ntscCyclesPerFrame is the CPU cycle count of one NTSC frame: 262
// scanlines * 341 PPU dots = 89342 dots, divided by 3 dots per CPU
// cycle (29780.67), rounded up to a whole cycle.
const ntscCyclesPerFrame = 29781

// Emulator drives the bus at a fixed cycles-per-frame cadence and
// shuttles its output into a frame buffer and an audio ring buffer.
type Emulator struct {
	bus    *bus.Bus
	config *Config

	cyclesPerFrame uint64
	targetFrameTime time.Duration

	// timeDilation multiplies the nominal per-frame budget: the master
	// loop advances cyclesPerFrame*timeDilation CPU cycles per host frame,
	// so 1 is real-time and larger values fast-forward. Emulation slower
	// than real time is not available through this setting.
	timeDilation uint64
	frozen       bool
	debugOverlays [4]bool

	frameBuffer []uint32
	audioRing   *audio.Ring

	actualFrameTime  time.Duration
	averageFrameTime time.Duration
	cycleCount       uint64
	frameCount       uint64

	isRunning     bool
	lastResetTime time.Time
}

// NewEmulator creates an emulator driving bus at the NTSC frame rate.
func NewEmulator(b *bus.Bus, config *Config) *Emulator {
	e := &Emulator{
		bus:             b,
		config:          config,
		cyclesPerFrame:  ntscCyclesPerFrame,
		targetFrameTime: time.Second / 60,
		timeDilation:    1,
		frameBuffer:     make([]uint32, 256*240),
		audioRing:       audio.NewRing(0),
		lastResetTime:   time.Now(),
	}
	e.Reset()
	return e
}

// Reset clears frame/cycle counters and the frame buffer.
func (e *Emulator) Reset() {
	e.frameCount = 0
	e.cycleCount = 0
	e.actualFrameTime = 0
	e.averageFrameTime = 0
	e.lastResetTime = time.Now()

	for i := range e.frameBuffer {
		e.frameBuffer[i] = 0
	}
}

// Start begins stepping the emulator on Update calls.
func (e *Emulator) Start() { e.isRunning = true }

// Stop halts stepping; Update becomes a no-op until Start is called again.
func (e *Emulator) Stop() { e.isRunning = false }

// Update runs exactly one frame of emulation if the emulator is running
// and not frozen by the debug scheduler.
func (e *Emulator) Update() error {
	if !e.isRunning || e.frozen {
		return nil
	}

	frameStart := time.Now()
	if err := e.runFrameFixed(); err != nil {
		return fmt.Errorf("frame execution error: %w", err)
	}
	e.actualFrameTime = time.Since(frameStart)

	if e.averageFrameTime == 0 {
		e.averageFrameTime = e.actualFrameTime
	} else {
		e.averageFrameTime = time.Duration(
			float64(e.averageFrameTime)*0.95 + float64(e.actualFrameTime)*0.05,
		)
	}

	return nil
}

// runFrameFixed steps the bus for exactly one NTSC frame's worth of CPU
// cycles, then pulls the resulting picture and sound out of it.
func (e *Emulator) runFrameFixed() error {
	dilation := e.timeDilation
	if dilation == 0 {
		dilation = 1
	}
	target := e.bus.CycleCount() + e.cyclesPerFrame*dilation
	for e.bus.CycleCount() < target {
		if err := e.bus.Step(); err != nil {
			return err
		}
	}

	e.frameCount++
	e.cycleCount = e.bus.CycleCount()

	nesFrame := e.bus.GetFrameBuffer()
	if len(nesFrame) == len(e.frameBuffer) {
		copy(e.frameBuffer, nesFrame)
	}

	if samples := e.bus.GetAudioSamples(); len(samples) > 0 {
		e.audioRing.Push(samples)
	}

	return nil
}

// GetFrameBuffer returns the most recently rendered 256x240 frame.
func (e *Emulator) GetFrameBuffer() []uint32 { return e.frameBuffer }

// AudioRing returns the ring buffer audio samples are pushed into each
// frame, for wiring into a graphics backend's audio stream.
func (e *Emulator) AudioRing() *audio.Ring { return e.audioRing }

// GetFrameCount returns the number of frames stepped since Reset.
func (e *Emulator) GetFrameCount() uint64 { return e.frameCount }

// GetCycleCount returns the number of CPU cycles elapsed since Reset.
func (e *Emulator) GetCycleCount() uint64 { return e.cycleCount }

// GetActualFrameTime returns the wall-clock time the last Update took.
func (e *Emulator) GetActualFrameTime() time.Duration { return e.actualFrameTime }

// GetAverageFrameTime returns an exponential moving average of frame times.
func (e *Emulator) GetAverageFrameTime() time.Duration { return e.averageFrameTime }

// GetTargetFrameTime returns the target wall-clock duration of one frame.
func (e *Emulator) GetTargetFrameTime() time.Duration { return e.targetFrameTime }

// GetEmulationSpeed returns actual frame time as a multiple of real-time
// speed (1.0 means running at exactly 60 FPS).
func (e *Emulator) GetEmulationSpeed() float64 {
	if e.averageFrameTime == 0 {
		return 0
	}
	return float64(e.targetFrameTime) / float64(e.averageFrameTime)
}

// IsRunning reports whether the emulator is currently stepping frames.
func (e *Emulator) IsRunning() bool { return e.isRunning }

// GetUptime returns the time elapsed since the last Reset.
func (e *Emulator) GetUptime() time.Duration { return time.Since(e.lastResetTime) }

// SetCyclesPerFrame overrides the per-frame cycle budget, for PAL/Dendy
// timing or deliberate slow-motion/fast-forward.
func (e *Emulator) SetCyclesPerFrame(cycles uint64) {
	if cycles > 0 {
		e.cyclesPerFrame = cycles
	}
}

// StepFrame runs exactly one frame regardless of run/pause state, for
// frame-advance debugging.
func (e *Emulator) StepFrame() error {
	return e.runFrameFixed()
}

// SetTimeDilation sets the per-frame dot-budget multiplier (1, 10, 1000,
// 5000, 200000 are the bindings the debug scheduler exposes); 0 is
// treated as 1 (real-time).
func (e *Emulator) SetTimeDilation(multiplier uint64) { e.timeDilation = multiplier }

// TimeDilation returns the current per-frame dot-budget multiplier.
func (e *Emulator) TimeDilation() uint64 { return e.timeDilation }

// SetFrozen pauses (or resumes) the scheduler without touching the
// higher-level Application pause state; frozen and paused are reported
// and toggled independently by the debug surface and the general pause
// control.
func (e *Emulator) SetFrozen(frozen bool) { e.frozen = frozen }

// ToggleFreeze flips the frozen state.
func (e *Emulator) ToggleFreeze() { e.frozen = !e.frozen }

// IsFrozen reports whether the scheduler is currently frozen.
func (e *Emulator) IsFrozen() bool { return e.frozen }

// StepInstruction executes exactly one CPU instruction regardless of
// run/freeze state, for single-step debugging. Unlike StepFrame it does
// not refresh the frame buffer or push audio samples mid-frame.
func (e *Emulator) StepInstruction() error {
	return e.bus.Step()
}

// SkipToRTS runs instructions until the opcode at PC is RTS ($60) or an
// error occurs, executing at least one instruction so a breakpoint
// already sitting on an RTS doesn't stall immediately.
func (e *Emulator) SkipToRTS() error {
	const rtsOpcode = 0x60
	for {
		if err := e.bus.Step(); err != nil {
			return err
		}
		if e.bus.NextOpcode() == rtsOpcode {
			return nil
		}
	}
}

// SkipToNMI runs instructions until the next NMI has been serviced or an
// error occurs.
func (e *Emulator) SkipToNMI() error {
	target := e.bus.NMICount() + 1
	for e.bus.NMICount() < target {
		if err := e.bus.Step(); err != nil {
			return err
		}
	}
	return nil
}

// ToggleOverlay flips one of the four debug-overlay flags (memory,
// visual/PPU state, palettes, nametables), bound to F1-F4. The overlays
// themselves have no defined rendering; this only tracks which are on.
func (e *Emulator) ToggleOverlay(index int) {
	if index >= 0 && index < len(e.debugOverlays) {
		e.debugOverlays[index] = !e.debugOverlays[index]
	}
}

// OverlayEnabled reports whether the overlay at index is toggled on.
func (e *Emulator) OverlayEnabled(index int) bool {
	if index < 0 || index >= len(e.debugOverlays) {
		return false
	}
	return e.debugOverlays[index]
}

// Cleanup stops the emulator. It exists to satisfy Application's uniform
// component-teardown pass.
func (e *Emulator) Cleanup() error {
	e.Stop()
	return nil
}
