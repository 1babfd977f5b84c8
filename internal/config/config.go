// Package config holds the runtime configuration for the visualizer daemon.
// Values come from compiled-in defaults, an optional YAML file, and flag
// overrides applied in main, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Audio configures the capture device and the analysis engine.
type Audio struct {
	Device           string        `yaml:"device"`            // substring match, empty = auto-detect
	SampleRate       int           `yaml:"sample_rate"`
	Channels         int           `yaml:"channels"`
	FramesPerBuffer  int           `yaml:"frames_per_buffer"` // block size while awake
	SleepFrames      int           `yaml:"sleep_frames"`      // block size while asleep
	SilenceThreshold float64       `yaml:"silence_threshold"` // normalized full scale
	SilenceTimeout   time.Duration `yaml:"silence_timeout"`
	Sensitivity      int           `yaml:"sensitivity"`
	NoiseReduction   int           `yaml:"noise_reduction"`
}

// Player configures the MPD connection.
type Player struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	SleepCheck       time.Duration `yaml:"sleep_check"`
}

// Web configures the optional browser monitor.
type Web struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Config is the top-level configuration tree.
type Config struct {
	Audio     Audio   `yaml:"audio"`
	Player    Player  `yaml:"player"`
	Web       Web     `yaml:"web"`
	TargetFPS float64 `yaml:"target_fps"`
	// SleepPoll is the coarse control-loop cadence while asleep. Wake
	// inputs must still be observed within about one second.
	SleepPoll time.Duration `yaml:"sleep_poll"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Audio: Audio{
			SampleRate:       44100,
			Channels:         2,
			FramesPerBuffer:  2048,
			SleepFrames:      256,
			SilenceThreshold: 0.001,
			SilenceTimeout:   10 * time.Second,
			Sensitivity:      100,
			NoiseReduction:   77,
		},
		Player: Player{
			Host:             "localhost",
			Port:             6600,
			ConnectTimeout:   2 * time.Second,
			ReconnectBackoff: 5 * time.Second,
			IdleTimeout:      time.Second,
			SleepCheck:       500 * time.Millisecond,
		},
		Web: Web{
			Enabled: false,
			Port:    8080,
		},
		TargetFPS: 60,
		SleepPoll: 100 * time.Millisecond,
	}
}

// Load reads a YAML file over the defaults. A missing path is not an error;
// the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engines cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Audio.SampleRate <= 0:
		return fmt.Errorf("sample_rate must be positive (got %d)", c.Audio.SampleRate)
	case c.Audio.Channels != 2:
		return fmt.Errorf("channels must be 2 (got %d)", c.Audio.Channels)
	case c.Audio.FramesPerBuffer <= 0:
		return fmt.Errorf("frames_per_buffer must be positive (got %d)", c.Audio.FramesPerBuffer)
	case c.Audio.SleepFrames <= 0 || c.Audio.SleepFrames > c.Audio.FramesPerBuffer:
		return fmt.Errorf("sleep_frames must be in (0, frames_per_buffer] (got %d)", c.Audio.SleepFrames)
	case c.Audio.SilenceThreshold <= 0:
		return fmt.Errorf("silence_threshold must be positive (got %g)", c.Audio.SilenceThreshold)
	case c.Audio.SilenceTimeout <= 0:
		return fmt.Errorf("silence_timeout must be positive (got %s)", c.Audio.SilenceTimeout)
	case c.Player.Port <= 0 || c.Player.Port > 65535:
		return fmt.Errorf("player port out of range (got %d)", c.Player.Port)
	case c.Player.IdleTimeout <= 0:
		return fmt.Errorf("idle_timeout must be positive (got %s)", c.Player.IdleTimeout)
	case c.Player.SleepCheck <= 0:
		return fmt.Errorf("sleep_check must be positive (got %s)", c.Player.SleepCheck)
	case c.TargetFPS <= 0:
		return fmt.Errorf("target_fps must be positive (got %g)", c.TargetFPS)
	case c.SleepPoll <= 0:
		return fmt.Errorf("sleep_poll must be positive (got %s)", c.SleepPoll)
	}
	return nil
}

// Addr returns the MPD dial address.
func (p *Player) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}
