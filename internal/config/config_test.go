package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Audio.Sensitivity != 100 || cfg.Audio.NoiseReduction != 77 {
		t.Fatalf("unexpected tuning defaults: %d/%d", cfg.Audio.Sensitivity, cfg.Audio.NoiseReduction)
	}
	if cfg.Player.Addr() != "localhost:6600" {
		t.Fatalf("player addr=%s want=localhost:6600", cfg.Player.Addr())
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Fatalf("sample rate=%d want=44100", cfg.Audio.SampleRate)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oledviz.yaml")
	body := "player:\n  host: jukebox\n  port: 6601\naudio:\n  silence_timeout: 30s\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Player.Addr() != "jukebox:6601" {
		t.Fatalf("player addr=%s want=jukebox:6601", cfg.Player.Addr())
	}
	if cfg.Audio.SilenceTimeout != 30*time.Second {
		t.Fatalf("silence timeout=%s want=30s", cfg.Audio.SilenceTimeout)
	}
	// untouched keys keep defaults
	if cfg.Audio.FramesPerBuffer != 2048 {
		t.Fatalf("frames_per_buffer=%d want=2048", cfg.Audio.FramesPerBuffer)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"zero sample rate":    func(c *Config) { c.Audio.SampleRate = 0 },
		"mono":                func(c *Config) { c.Audio.Channels = 1 },
		"huge sleep frames":   func(c *Config) { c.Audio.SleepFrames = c.Audio.FramesPerBuffer + 1 },
		"negative threshold":  func(c *Config) { c.Audio.SilenceThreshold = -1 },
		"port out of range":   func(c *Config) { c.Player.Port = 70000 },
		"zero idle timeout":   func(c *Config) { c.Player.IdleTimeout = 0 },
		"zero fps":            func(c *Config) { c.TargetFPS = 0 },
	}
	for name, mutate := range cases {
		cfg := Defaults()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
