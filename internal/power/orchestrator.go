// Package power drives the system-wide Awake/Asleep state machine. The
// orchestrator holds non-owning references to the capture engine, the player
// watcher and the peripherals, and only ever touches their public surfaces,
// so it has no locking responsibilities of its own. It is driven from the
// single control loop.
package power

import "log/slog"

// State is the system power state. The orchestrator holds the single
// authoritative value; the engines only mirror it as a sleep-request flag.
type State int

const (
	Awake State = iota
	Asleep
)

func (s State) String() string {
	if s == Asleep {
		return "asleep"
	}
	return "awake"
}

// Sleeper is the run-mode surface both background engines expose.
type Sleeper interface {
	SetSleepState(sleeping bool)
}

// AudioDetector is the capture engine as the orchestrator sees it: a sleeper
// that also provides the silence signal.
type AudioDetector interface {
	Sleeper
	CheckForAudio() bool
}

// Display is an external display sink's power surface.
type Display interface {
	SetPower(on bool) error
	Clear() error
}

// Indicator is the status light.
type Indicator interface {
	SetPower(on bool)
}

// Bus is the peripheral bus clock, dropped to a lower rate while asleep.
type Bus interface {
	SlowClock()
	NormalClock()
}

// Peripherals groups the external power-managed hardware. Any field may be
// nil.
type Peripherals struct {
	Displays  []Display
	Indicator Indicator
	Bus       Bus
}

// Orchestrator coordinates sleep transitions across the engines and
// peripherals.
type Orchestrator struct {
	audio   AudioDetector
	watcher Sleeper
	per     Peripherals
	log     *slog.Logger

	state State
}

// New creates an orchestrator starting in the Awake state.
func New(audio AudioDetector, watcher Sleeper, per Peripherals, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		audio:   audio,
		watcher: watcher,
		per:     per,
		log:     logger.With("subsystem", "power"),
	}
}

// State returns the current power state.
func (o *Orchestrator) State() State {
	return o.state
}

// Asleep reports whether the system is asleep.
func (o *Orchestrator) Asleep() bool {
	return o.state == Asleep
}

// Check runs one transition evaluation against the silence detector and
// reports whether the state changed. Call once per control-loop pass.
func (o *Orchestrator) Check() bool {
	hasAudio := o.audio.CheckForAudio()

	switch {
	case !hasAudio && o.state == Awake:
		o.sleep()
		return true
	case hasAudio && o.state == Asleep:
		o.wake("audio detected")
		return true
	}
	return false
}

// WakeEvent forces a wake from user input (button press, visualization
// switch). No-op while awake.
func (o *Orchestrator) WakeEvent(reason string) bool {
	if o.state != Asleep {
		return false
	}
	o.wake(reason)
	return true
}

func (o *Orchestrator) sleep() {
	o.log.Info("entering sleep mode, no audio detected")
	o.state = Asleep

	o.audio.SetSleepState(true)
	if o.watcher != nil {
		o.watcher.SetSleepState(true)
	}

	for _, d := range o.per.Displays {
		if err := d.SetPower(false); err != nil {
			o.log.Warn("display power-down failed", "error", err)
		}
	}
	if o.per.Indicator != nil {
		o.per.Indicator.SetPower(false)
	}
	if o.per.Bus != nil {
		o.per.Bus.SlowClock()
	}
}

func (o *Orchestrator) wake(reason string) {
	o.log.Info("waking up", "reason", reason)
	o.state = Awake

	o.audio.SetSleepState(false)
	if o.watcher != nil {
		o.watcher.SetSleepState(false)
	}

	if o.per.Bus != nil {
		o.per.Bus.NormalClock()
	}
	for _, d := range o.per.Displays {
		if err := d.SetPower(true); err != nil {
			o.log.Warn("display power-up failed", "error", err)
		}
		if err := d.Clear(); err != nil {
			o.log.Warn("display clear failed", "error", err)
		}
	}
	if o.per.Indicator != nil {
		o.per.Indicator.SetPower(true)
	}
}
