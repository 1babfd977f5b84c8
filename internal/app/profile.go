package app

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// profiler appends per-frame section timings to a CSV file. A nil profiler is
// valid and does nothing, so callers never guard the calls.
type profiler struct {
	mu    sync.Mutex
	file  *os.File
	start time.Time
	last  time.Time
}

func newProfiler(path string, logger *slog.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if logger != nil {
			logger.Warn("profiler disabled", "error", err)
		}
		return nil
	}
	p := &profiler{file: f}
	fmt.Fprintln(f, "timestamp,section,delta_ms")
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	p.start = now
	p.last = now
	p.log("frame_start", 0)
}

func (p *profiler) markSection(name string) {
	if p == nil {
		return
	}
	now := time.Now()
	delta := now.Sub(p.last).Seconds() * 1000
	p.last = now
	p.log(name, delta)
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	p.log("frame_total", time.Since(p.start).Seconds()*1000)
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	return p.file.Close()
}

func (p *profiler) log(section string, deltaMs float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return
	}
	fmt.Fprintf(p.file, "%s,%s,%.3f\n", time.Now().Format(time.RFC3339Nano), section, deltaMs)
}
