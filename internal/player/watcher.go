// Package player tracks the MPD daemon in the background and exposes an
// always-fresh snapshot of the current track. The MPD protocol itself comes
// from gompd; this package owns connection lifecycle, the idle long-poll
// loop, sleep suspension, and snapshot formatting.
package player

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

// Config carries the connection parameters.
type Config struct {
	Network          string // default "tcp"
	Addr             string
	ConnectTimeout   time.Duration
	ReconnectBackoff time.Duration
	IdleTimeout      time.Duration
	SleepCheck       time.Duration
}

func (c *Config) applyDefaults() {
	if c.Network == "" {
		c.Network = "tcp"
	}
	if c.Addr == "" {
		c.Addr = "localhost:6600"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 2 * time.Second
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = 5 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = time.Second
	}
	if c.SleepCheck <= 0 {
		c.SleepCheck = 500 * time.Millisecond
	}
}

// Watcher maintains the track snapshot. Two connections are held while
// awake: a command connection for queries and keepalives, and gompd's idle
// watcher connection for player-state events. Closing the idle connection is
// the out-of-band cancel that wakes a blocked long-poll.
type Watcher struct {
	cfg Config
	log *slog.Logger

	// dataMu guards the snapshot only; never held across protocol calls.
	dataMu sync.Mutex
	snap   TrackSnapshot

	// connMu guards both connection handles. Taken by the watcher
	// goroutine and by Stop's out-of-band cancel.
	connMu sync.Mutex
	client *mpd.Client
	idle   *mpd.Watcher

	sleeping  atomic.Bool
	connected atomic.Bool

	runMu   sync.Mutex
	running bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

// New creates a watcher. No connection is attempted until Start.
func New(cfg Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Watcher{
		cfg:  cfg,
		log:  logger.With("subsystem", "player"),
		snap: waitingSnapshot(),
	}
}

// Start launches the background goroutine. Calling Start while running is a
// no-op.
func (w *Watcher) Start() {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	if w.running {
		return
	}
	w.quit = make(chan struct{})
	w.running = true
	w.wg.Add(1)
	go w.run(w.quit)
}

// Stop shuts the goroutine down and releases the connections. It forces a
// wake from sleep so the goroutine is not stuck waiting, cancels any
// outstanding long-poll by closing the idle connection, then joins. Safe to
// call repeatedly.
func (w *Watcher) Stop() {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	if !w.running {
		return
	}
	close(w.quit)
	w.sleeping.Store(false)
	w.disconnect()
	w.wg.Wait()
	w.running = false
	w.log.Info("player watcher stopped")
}

// SetSleepState suspends or resumes the watcher. Entering sleep drops the
// connections; the goroutine re-checks the flag at the sleep-check interval.
func (w *Watcher) SetSleepState(sleeping bool) {
	if w.sleeping.Swap(sleeping) != sleeping {
		w.log.Debug("sleep state changed", "sleeping", sleeping)
	}
}

// IsConnected reports whether the command connection is up.
func (w *Watcher) IsConnected() bool {
	return w.connected.Load()
}

// Snapshot returns the current track snapshot.
func (w *Watcher) Snapshot() TrackSnapshot {
	w.dataMu.Lock()
	defer w.dataMu.Unlock()
	return w.snap
}

// FormattedText returns the display line for the current track.
func (w *Watcher) FormattedText() string { return w.Snapshot().FormattedText }

// Title returns the current title, or a sentinel when nothing is known.
func (w *Watcher) Title() string { return w.Snapshot().Title }

// Artist returns the current artist, possibly empty.
func (w *Watcher) Artist() string { return w.Snapshot().Artist }

// Year returns the four-digit year, possibly empty.
func (w *Watcher) Year() string { return w.Snapshot().Year }

// TrackNumber returns the 1-based queue position, possibly empty.
func (w *Watcher) TrackNumber() string { return w.Snapshot().TrackNumber }

func (w *Watcher) run(quit chan struct{}) {
	defer w.wg.Done()
	defer w.disconnect()

	for {
		select {
		case <-quit:
			return
		default:
		}

		if w.sleeping.Load() {
			w.disconnect()
			if !w.waitWhileSleeping(quit) {
				return
			}
			continue
		}

		if !w.IsConnected() {
			if err := w.connect(); err != nil {
				w.log.Debug("connect failed", "addr", w.cfg.Addr, "error", err)
				if !w.backoff(quit) {
					return
				}
				continue
			}
			w.log.Info("connected", "addr", w.cfg.Addr)
			w.refreshSnapshot()
		}

		w.idleWait(quit)
	}
}

// waitWhileSleeping blocks until sleep is cleared, re-checking at the
// configured interval. Returns false on shutdown.
func (w *Watcher) waitWhileSleeping(quit chan struct{}) bool {
	for {
		select {
		case <-quit:
			return false
		case <-time.After(w.cfg.SleepCheck):
			if !w.sleeping.Load() {
				w.log.Debug("waking up, reconnecting")
				return true
			}
		}
	}
}

// backoff waits the reconnect delay, returning early on a sleep transition
// and false on shutdown.
func (w *Watcher) backoff(quit chan struct{}) bool {
	deadline := time.Now().Add(w.cfg.ReconnectBackoff)
	for time.Now().Before(deadline) {
		select {
		case <-quit:
			return false
		case <-time.After(100 * time.Millisecond):
			if w.sleeping.Load() {
				return true
			}
		}
	}
	return true
}

func (w *Watcher) connect() error {
	client, err := dialTimeout(w.cfg.Network, w.cfg.Addr, w.cfg.ConnectTimeout)
	if err != nil {
		return err
	}

	idle, err := mpd.NewWatcher(w.cfg.Network, w.cfg.Addr, "", "player")
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("idle connection: %w", err)
	}

	w.connMu.Lock()
	w.client = client
	w.idle = idle
	w.connMu.Unlock()
	w.connected.Store(true)
	return nil
}

func (w *Watcher) disconnect() {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	if w.idle != nil {
		_ = w.idle.Close()
		w.idle = nil
	}
	if w.client != nil {
		_ = w.client.Close()
		w.client = nil
	}
	if w.connected.Swap(false) {
		w.log.Debug("disconnected")
	}
}

// idleWait blocks on the long-poll for up to the idle timeout. An event
// refreshes the snapshot, a timeout triggers a keepalive ping, an error
// drops the connection. Shutdown and sleep transitions are observed on the
// next pass through run's loop; Stop additionally closes the idle connection
// so an in-flight wait returns immediately.
func (w *Watcher) idleWait(quit chan struct{}) {
	w.connMu.Lock()
	idle := w.idle
	w.connMu.Unlock()
	if idle == nil {
		return
	}

	timer := time.NewTimer(w.cfg.IdleTimeout)
	defer timer.Stop()

	select {
	case <-quit:

	case subsystem, ok := <-idle.Event:
		if !ok {
			w.disconnect()
			return
		}
		if subsystem == "player" {
			w.refreshSnapshot()
		}

	case err, ok := <-idle.Error:
		if ok && err != nil {
			w.log.Debug("idle error", "error", err)
		}
		w.disconnect()

	case <-timer.C:
		// no event within the window; nudge the command connection so
		// the server side does not go stale
		if err := w.ping(); err != nil {
			w.log.Debug("keepalive failed", "error", err)
			w.disconnect()
		}
	}
}

func (w *Watcher) ping() error {
	w.connMu.Lock()
	client := w.client
	w.connMu.Unlock()
	if client == nil {
		return fmt.Errorf("not connected")
	}
	return client.Ping()
}

// refreshSnapshot queries the current song and swaps the snapshot. Protocol
// errors drop the connection; the stale snapshot stays visible until the
// next successful fetch.
func (w *Watcher) refreshSnapshot() {
	w.connMu.Lock()
	client := w.client
	w.connMu.Unlock()
	if client == nil {
		return
	}

	attrs, err := client.CurrentSong()
	if err != nil {
		w.log.Debug("currentsong failed", "error", err)
		w.disconnect()
		return
	}

	snap := snapshotFromAttrs(attrs)
	w.dataMu.Lock()
	w.snap = snap
	w.dataMu.Unlock()
	w.log.Debug("track updated", "text", snap.FormattedText)
}

// dialTimeout bounds mpd.Dial, which has no deadline of its own. A late
// success is closed by the drain goroutine.
func dialTimeout(network, addr string, timeout time.Duration) (*mpd.Client, error) {
	type result struct {
		client *mpd.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		client, err := mpd.Dial(network, addr)
		ch <- result{client, err}
	}()

	select {
	case r := <-ch:
		return r.client, r.err
	case <-time.After(timeout):
		go func() {
			if r := <-ch; r.client != nil {
				_ = r.client.Close()
			}
		}()
		return nil, fmt.Errorf("connect to %s timed out after %s", addr, timeout)
	}
}
