// Package main implements the nesvm emulator executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nesvm/internal/app"
	"nesvm/internal/version"
)

func main() {
	var (
		romFile     = flag.String("rom", "", "Path to NES ROM file (optional for GUI mode)")
		configFile  = flag.String("config", "", "Path to configuration file")
		debug       = flag.Bool("debug", false, "Enable debug mode")
		nogui       = flag.Bool("nogui", false, "Run without GUI (headless mode)")
		help        = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	if *showVersion {
		version.PrintBuildInfo()
		os.Exit(0)
	}

	setupGracefulShutdown()

	fmt.Println("nesvm starting...")

	configPath := *configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}

	application, err := app.NewApplicationWithMode(configPath, *nogui)
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}

	if *nogui {
		config := application.GetConfig()
		config.Video.Backend = "headless"
		fmt.Println("headless mode requested")
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("application cleanup error: %v", err)
		}
	}()

	if *debug {
		config := application.GetConfig()
		config.UpdateDebug(true, true, true)
		application.ApplyDebugSettings()
		fmt.Println("debug mode enabled")
	}

	if *romFile != "" {
		fmt.Printf("loading ROM: %s\n", *romFile)
		if err := application.LoadROM(*romFile); err != nil {
			log.Fatalf("failed to load ROM: %v", err)
		}
		fmt.Println("ROM loaded")

		if *debug {
			application.ApplyDebugSettings()
		}
	}

	if *nogui {
		if *romFile == "" {
			log.Fatal("ROM file required for headless mode")
		}
		runHeadlessMode(application)
	} else {
		fmt.Println("starting GUI mode...")
		if err := runGUIMode(application); err != nil {
			log.Fatalf("GUI mode failed: %v", err)
		}
	}

	fmt.Println("nesvm shutting down")
}

func runGUIMode(application *app.Application) error {
	config := application.GetConfig()
	windowWidth, windowHeight := config.GetWindowResolution()
	fmt.Printf("window: %dx%d (scale %dx)\n", windowWidth, windowHeight, config.Window.Scale)
	fmt.Printf("audio: %s (%d Hz, %.0f%% volume)\n",
		enabledString(config.Audio.Enabled), config.Audio.SampleRate, config.Audio.Volume*100)
	fmt.Printf("video: %s, %s, vsync: %s\n",
		config.Video.Filter, config.Video.AspectRatio, enabledString(config.Video.VSync))

	if err := application.Run(); err != nil {
		return fmt.Errorf("application run failed: %w", err)
	}

	fmt.Printf("session statistics:\n")
	fmt.Printf("  frames rendered: %d\n", application.GetFrameCount())
	fmt.Printf("  session time: %v\n", application.GetUptime())
	fmt.Printf("  average fps: %.1f\n", application.GetFPS())

	return nil
}

// runHeadlessMode steps the emulator for a fixed run and dumps a few
// frames as PPM images, for scripted smoke tests with no window.
func runHeadlessMode(application *app.Application) {
	fmt.Println("running in headless mode")

	b := application.GetBus()
	if b == nil {
		fmt.Println("bus not initialized")
		return
	}

	const targetFrames = 120
	const cyclesPerFrame = 29781

	for frame := 0; frame < targetFrames; frame++ {
		target := b.CycleCount() + cyclesPerFrame
		for b.CycleCount() < target {
			if err := b.Step(); err != nil {
				log.Fatalf("step error at frame %d: %v", frame, err)
			}
		}

		if frame == 30 || frame == 60 || frame == 119 {
			filename := fmt.Sprintf("frame_%03d.ppm", frame+1)
			fmt.Printf("saving %s\n", filename)
			var buf [256 * 240]uint32
			copy(buf[:], b.GetFrameBuffer())
			if err := saveFrameBufferAsPPM(buf, filename); err != nil {
				fmt.Printf("failed to save %s: %v\n", filename, err)
			}
			analyzeFrameBuffer(buf, frame+1)
		}

		if frame%30 == 29 {
			fmt.Printf("%d/%d frames complete\n", frame+1, targetFrames)
		}
	}

	fmt.Println("headless run complete")
}

func saveFrameBufferAsPPM(frameBuffer [256 * 240]uint32, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "P3\n256 240\n255\n")
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			pixel := frameBuffer[y*256+x]
			r := (pixel >> 16) & 0xFF
			g := (pixel >> 8) & 0xFF
			b := pixel & 0xFF
			fmt.Fprintf(file, "%d %d %d ", r, g, b)
		}
		fmt.Fprintf(file, "\n")
	}
	return nil
}

func analyzeFrameBuffer(frameBuffer [256 * 240]uint32, frame int) {
	colorCounts := make(map[uint32]int)
	for _, pixel := range frameBuffer {
		colorCounts[pixel]++
	}

	nonBlackPixels := 0
	for color, count := range colorCounts {
		if color != 0x000000 {
			nonBlackPixels += count
		}
	}

	fmt.Printf("  frame %d: %d distinct colors, %d non-black pixels (%.1f%%)\n",
		frame, len(colorCounts), nonBlackPixels,
		float64(nonBlackPixels)/float64(256*240)*100)
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Println("\ninterrupt received, shutting down")
		os.Exit(0)
	}()
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func printUsage() {
	fmt.Println("nesvm - NES hardware emulator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  nesvm [options]                    # Start GUI mode without ROM")
	fmt.Println("  nesvm -rom <file> [options]        # Start with ROM loaded")
	fmt.Println("  nesvm -nogui -rom <file> [options] # Run headless mode")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("CONTROLS (Default):")
	fmt.Println("  Player 1:")
	fmt.Println("    Arrow Keys / WASD - D-Pad")
	fmt.Println("    J / Z             - A Button")
	fmt.Println("    K / X             - B Button")
	fmt.Println("    Enter             - Start")
	fmt.Println("    Space             - Select")
	fmt.Println()
	fmt.Println("  Special Keys:")
	fmt.Println("    Escape            - Quit")
	fmt.Println("    F1-F10            - Save States")
	fmt.Println("    Shift+F1-F10      - Load States")
	fmt.Println()
	fmt.Println("  Debug Scheduler (shares keys with Player 2/Save States above):")
	fmt.Println("    1-5               - Time dilation (1x, 10x, 1000x, 5000x, 200000x)")
	fmt.Println("    F                 - Freeze toggle")
	fmt.Println("    Enter             - Single-step one CPU instruction")
	fmt.Println("    R                 - Skip to next RTS")
	fmt.Println("    N                 - Skip to next NMI")
	fmt.Println("    F1-F4             - Toggle debug overlay flags")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Printf("  Config file: %s\n", app.GetDefaultConfigPath())
	fmt.Println("  ROMs:        ./roms/")
	fmt.Println("  Save States: ./states/")
}
