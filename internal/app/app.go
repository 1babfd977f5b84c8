// Package app wires the subsystems together: capture engine, player watcher,
// sleep orchestrator, display sinks and the optional web monitor, all driven
// by a single control loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eiannone/keyboard"

	"oledviz/internal/analyzer"
	"oledviz/internal/audio"
	"oledviz/internal/config"
	"oledviz/internal/display"
	"oledviz/internal/player"
	"oledviz/internal/power"
	"oledviz/internal/viz"
	"oledviz/internal/web"
)

// Config configures the application runtime.
type Config struct {
	Runtime      config.Config
	DisableAudio bool   // synthetic tone instead of a capture device
	SinkName     string // "terminal", "sdl" or "none"
	ProfilePath  string
	Log          *slog.Logger
}

type inputEvent int

const (
	inputEventQuit inputEvent = iota
	inputEventSwitchViz
	inputEventSensUp
	inputEventSensDown
	inputEventNoiseUp
	inputEventNoiseDown
	inputEventReset
	inputEventWake
)

// App ties together capture, analysis, player tracking and output.
type App struct {
	cfg Config
	log *slog.Logger

	engine  *analyzer.Engine
	watcher *player.Watcher
	orch    *power.Orchestrator
	sinks   []display.Sink
	vizs    []viz.Visualization
	monitor *web.Server
	prof    *profiler

	// current and asleep mirror loop-owned state for the web handlers.
	current atomic.Int32
	asleep  atomic.Bool

	events chan inputEvent

	ticker        *time.Ticker
	frameDuration time.Duration
}

// New constructs the application using the provided configuration.
func New(cfg Config) (*App, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Runtime.TargetFPS <= 0 {
		cfg.Runtime.TargetFPS = 60
	}
	if cfg.Runtime.SleepPoll <= 0 {
		cfg.Runtime.SleepPoll = 100 * time.Millisecond
	}

	a := &App{
		cfg:    cfg,
		log:    cfg.Log,
		vizs:   viz.All(),
		events: make(chan inputEvent, 16),
		prof:   newProfiler(cfg.ProfilePath, cfg.Log),
	}
	a.frameDuration = time.Duration(float64(time.Second) / cfg.Runtime.TargetFPS)

	ac := cfg.Runtime.Audio
	a.engine = analyzer.New(analyzer.Config{
		SampleRate:       ac.SampleRate,
		FramesPerBuffer:  ac.FramesPerBuffer,
		SleepFrames:      ac.SleepFrames,
		SilenceThreshold: ac.SilenceThreshold,
		SilenceTimeout:   ac.SilenceTimeout,
		Sensitivity:      ac.Sensitivity,
		NoiseReduction:   ac.NoiseReduction,
	}, a.openDevice, cfg.Log)

	a.watcher = player.New(player.Config{
		Addr:             cfg.Runtime.Player.Addr(),
		ConnectTimeout:   cfg.Runtime.Player.ConnectTimeout,
		ReconnectBackoff: cfg.Runtime.Player.ReconnectBackoff,
		IdleTimeout:      cfg.Runtime.Player.IdleTimeout,
		SleepCheck:       cfg.Runtime.Player.SleepCheck,
	}, cfg.Log)

	if err := a.openSinks(); err != nil {
		return nil, err
	}

	displays := make([]power.Display, len(a.sinks))
	for i, s := range a.sinks {
		displays[i] = s
	}
	a.orch = power.New(a.engine, a.watcher, power.Peripherals{
		Displays:  displays,
		Indicator: logIndicator{log: cfg.Log},
		Bus:       logBus{log: cfg.Log},
	}, cfg.Log)

	if cfg.Runtime.Web.Enabled {
		a.monitor = web.NewServer(a, cfg.Log)
	}

	return a, nil
}

func (a *App) openDevice() (analyzer.Device, error) {
	ac := a.cfg.Runtime.Audio
	if a.cfg.DisableAudio {
		a.log.Info("audio capture disabled, using synthetic tone")
		return audio.NewSynth(ac.SampleRate, ac.Channels, true), nil
	}

	in, err := audio.OpenInput(audio.Config{
		DeviceName:  ac.Device,
		SampleRate:  ac.SampleRate,
		Channels:    ac.Channels,
		ChunkFrames: ac.SleepFrames,
	})
	if err != nil {
		return nil, err
	}
	a.log.Info("audio capture started", "device", in.DeviceName(), "rate", in.SampleRate())
	return in, nil
}

func (a *App) openSinks() error {
	switch a.cfg.SinkName {
	case "", "terminal":
		a.sinks = []display.Sink{display.NewTerminal(nil)}
	case "sdl":
		sdl, err := display.NewSDL("oledviz", 800, 480)
		if err != nil {
			return fmt.Errorf("open sdl sink: %w", err)
		}
		a.sinks = []display.Sink{sdl}
	case "none":
	default:
		return fmt.Errorf("unknown sink %q", a.cfg.SinkName)
	}
	return nil
}

// Run drives the control loop until context cancellation, a quit key or a
// closed display window.
func (a *App) Run(ctx context.Context) error {
	if err := a.engine.Start(); err != nil {
		a.closeSinks()
		return fmt.Errorf("start capture: %w", err)
	}
	defer a.engine.Stop()

	a.watcher.Start()
	defer a.watcher.Stop()

	if a.monitor != nil {
		a.monitor.Start(ctx, a.cfg.Runtime.Web.Port)
	}
	defer a.closeSinks()
	defer a.prof.Close()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	a.startInputListener(inputCtx)

	a.ticker = time.NewTicker(a.frameDuration)
	defer a.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt := <-a.events:
			if a.handleInput(evt) {
				return nil
			}

		case <-a.ticker.C:
			if a.orch.Check() {
				a.syncCadence()
			}
			if a.orch.Asleep() {
				continue
			}
			if err := a.step(); err != nil {
				if errors.Is(err, display.ErrClosed) {
					return nil
				}
				return err
			}
		}
	}
}

// syncCadence matches the loop interval to the power state: frame rate while
// awake, coarse polling while asleep.
func (a *App) syncCadence() {
	a.asleep.Store(a.orch.Asleep())
	if a.orch.Asleep() {
		a.ticker.Reset(a.cfg.Runtime.SleepPoll)
	} else {
		a.ticker.Reset(a.frameDuration)
	}
}

func (a *App) step() error {
	a.prof.beginFrame()

	frame := a.vizs[a.current.Load()].Render(a.engine, a.watcher.FormattedText())
	a.prof.markSection("render")

	for _, sink := range a.sinks {
		if err := sink.Render(frame); err != nil {
			return err
		}
	}
	a.prof.markSection("draw")

	if a.monitor != nil {
		a.monitor.Publish(frame)
	}
	a.prof.endFrame()
	return nil
}

// handleInput applies one user event and reports whether to quit. Every event
// counts as activity, so input always wakes a sleeping system and holds the
// silence timer off.
func (a *App) handleInput(evt inputEvent) (quit bool) {
	a.engine.MarkActivity()
	if a.orch.WakeEvent("user input") {
		a.syncCadence()
	}

	switch evt {
	case inputEventQuit:
		return true
	case inputEventSwitchViz:
		a.nextVisualization()
	case inputEventSensUp:
		a.engine.SetSensitivity(a.engine.Sensitivity() + 10)
	case inputEventSensDown:
		a.engine.SetSensitivity(a.engine.Sensitivity() - 10)
	case inputEventNoiseUp:
		a.engine.SetNoiseReduction(a.engine.NoiseReduction() + 5)
	case inputEventNoiseDown:
		a.engine.SetNoiseReduction(a.engine.NoiseReduction() - 5)
	case inputEventReset:
		a.engine.SetSensitivity(a.cfg.Runtime.Audio.Sensitivity)
		a.engine.SetNoiseReduction(a.cfg.Runtime.Audio.NoiseReduction)
		a.log.Info("tuning reset",
			"sensitivity", a.engine.Sensitivity(),
			"noiseReduction", a.engine.NoiseReduction())
	case inputEventWake:
		// activity already marked above
	}
	return false
}

func (a *App) nextVisualization() {
	next := (a.current.Load() + 1) % int32(len(a.vizs))
	a.current.Store(next)
	a.log.Info("visualization switched", "name", a.vizs[next].Name())
	for _, sink := range a.sinks {
		_ = sink.Clear()
	}
}

func (a *App) closeSinks() {
	for _, sink := range a.sinks {
		if err := sink.Close(); err != nil {
			a.log.Warn("sink close failed", "sink", sink.Name(), "error", err)
		}
	}
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Warn("keyboard input disabled", "error", err)
		return
	}

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}

			evt := inputEventWake
			switch {
			case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
				evt = inputEventQuit
			case char == 'q' || char == 'Q':
				evt = inputEventQuit
			case key == keyboard.KeySpace || char == 'v' || char == 'V':
				evt = inputEventSwitchViz
			case char == '+' || char == '=':
				evt = inputEventSensUp
			case char == '-' || char == '_':
				evt = inputEventSensDown
			case char == ']':
				evt = inputEventNoiseUp
			case char == '[':
				evt = inputEventNoiseDown
			case char == 'r' || char == 'R':
				evt = inputEventReset
			}

			select {
			case a.events <- evt:
			default:
			}
			if evt == inputEventQuit {
				return
			}
		}
	}()
}

// web.Controls implementation. The knob setters go straight to the engine,
// which is safe from any goroutine; anything touching loop-owned state goes
// through the event channel instead.

func (a *App) Sensitivity() int        { return a.engine.Sensitivity() }
func (a *App) NoiseReduction() int     { return a.engine.NoiseReduction() }
func (a *App) SetSensitivity(v int)    { a.engine.SetSensitivity(v) }
func (a *App) SetNoiseReduction(v int) { a.engine.SetNoiseReduction(v) }

func (a *App) SwitchVisualization() {
	select {
	case a.events <- inputEventSwitchViz:
	default:
	}
}

func (a *App) VisualizationName() string {
	return a.vizs[a.current.Load()].Name()
}

func (a *App) PowerState() string {
	if a.asleep.Load() {
		return power.Asleep.String()
	}
	return power.Awake.String()
}

func (a *App) TrackText() string     { return a.watcher.FormattedText() }
func (a *App) PlayerConnected() bool { return a.watcher.IsConnected() }

// logIndicator stands in for the front-panel status light on builds without
// one.
type logIndicator struct{ log *slog.Logger }

func (l logIndicator) SetPower(on bool) {
	l.log.Debug("status indicator", "on", on)
}

// logBus stands in for the peripheral bus clock control.
type logBus struct{ log *slog.Logger }

func (l logBus) SlowClock()   { l.log.Debug("bus clock", "mode", "slow") }
func (l logBus) NormalClock() { l.log.Debug("bus clock", "mode", "normal") }
