package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oledviz/internal/app"
	"oledviz/internal/audio"
	"oledviz/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "Optional YAML config file")
		deviceName = flag.String("audio-device", "", "PortAudio device name (substring match)")
		noAudio    = flag.Bool("no-audio", false, "Run with a synthetic tone (for testing)")
		sinkName   = flag.String("sink", "terminal", "Output sink (terminal|sdl|none)")
		mpdAddr    = flag.String("mpd", "", "MPD address (host:port), overrides config")
		webEnable  = flag.Bool("web", false, "Enable the browser monitor")
		webPort    = flag.Int("web-port", 0, "Monitor port, overrides config")
		targetFPS  = flag.Float64("fps", 0, "Target frames per second, overrides config")
		profile    = flag.String("profile", "", "Append frame timings to this CSV file")
		listDevs   = flag.Bool("list-audio-devices", false, "List audio input devices and exit")
		debug      = flag.Bool("debug", false, "Enable verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	// stderr: the terminal sink owns stdout
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if *deviceName != "" {
		cfg.Audio.Device = *deviceName
	}
	if *mpdAddr != "" {
		if host, port, ok := splitAddr(*mpdAddr); ok {
			cfg.Player.Host = host
			cfg.Player.Port = port
		} else {
			logger.Error("invalid -mpd address", "addr", *mpdAddr)
			os.Exit(1)
		}
	}
	if *webEnable {
		cfg.Web.Enabled = true
	}
	if *webPort > 0 {
		cfg.Web.Port = *webPort
	}
	if *targetFPS > 0 {
		cfg.TargetFPS = *targetFPS
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	needAudio := !*noAudio || *listDevs
	if needAudio {
		if err := audio.Initialize(); err != nil {
			logger.Error("portaudio init failed", "error", err)
			os.Exit(1)
		}
		defer audio.Terminate()
	}

	if *listDevs {
		devices, err := audio.ListDevices()
		if err != nil {
			logger.Error("list devices failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\n=== Audio Input Devices ===\n\n")
		for _, dev := range devices {
			if dev.MaxInput == 0 {
				continue
			}
			markers := ""
			if dev.IsDefaultInput {
				markers += " (default)"
			}
			fmt.Printf("- %s [%s]%s\n    inputs:%d outputs:%d sample:%.0f Hz\n",
				dev.Name, dev.HostAPI, markers, dev.MaxInput, dev.MaxOutput, dev.DefaultSampleHz)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Config{
		Runtime:      cfg,
		DisableAudio: *noAudio,
		SinkName:     *sinkName,
		ProfilePath:  *profile,
		Log:          logger,
	})
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "exiting")
			return
		}
		logger.Error("runtime error", "error", err)
		os.Exit(1)
	}

	// give the terminal a beat to settle after the alt-screen restore
	time.Sleep(50 * time.Millisecond)
}

// splitAddr parses host:port without resolving anything.
func splitAddr(addr string) (host string, port int, ok bool) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host = addr[:i]
			if _, err := fmt.Sscanf(addr[i+1:], "%d", &port); err != nil || host == "" || port <= 0 {
				return "", 0, false
			}
			return host, port, true
		}
	}
	return "", 0, false
}
