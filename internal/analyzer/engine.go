// Package analyzer owns audio capture and on-demand spectral analysis. A
// background goroutine ingests device blocks into a ring buffer; the render
// loop queries bounded snapshots (spectrum, waveform, stereo field) that copy
// under a short lock and compute off-lock, so capture is never blocked behind
// analysis work.
package analyzer

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

// Channel selects one side of the stereo capture.
type Channel int

const (
	Left Channel = iota
	Right
)

const (
	// fftSize is the single analysis window shared by all bands.
	fftSize = 8192

	// ringCapacity is twice the analysis window so the writer can lap a
	// full window without overwriting a snapshot in progress.
	ringCapacity = fftSize * 2

	// stereoWindow is the sample count for phase/correlation analysis.
	stereoWindow = 512

	// stereoFloor ignores near-silent samples in the phase estimate.
	stereoFloor = 0.01
)

// Device is the blocking capture source the engine reads from. Read fills
// the whole buffer with interleaved stereo S16 samples; Recover repairs the
// device in place after a failed Read.
type Device interface {
	Read(dst []int16) error
	Recover(readErr error) error
	Close() error
}

// OpenDeviceFunc opens the capture device; called once per Start.
type OpenDeviceFunc func() (Device, error)

// Config carries the capture and detection parameters.
type Config struct {
	SampleRate       int
	FramesPerBuffer  int // block size while awake
	SleepFrames      int // block size while asleep, for fast wake latency
	SilenceThreshold float64
	SilenceTimeout   time.Duration
	Sensitivity      int
	NoiseReduction   int
}

// Engine captures audio and serves analysis snapshots. Start/Stop cycle the
// capture goroutine; all query methods are safe from any goroutine.
type Engine struct {
	cfg        config
	openDevice OpenDeviceFunc
	log        *slog.Logger

	// buffer mutex: ring writes from the capture goroutine, snapshot
	// copies from queries. Held only for copies, never for FFT work.
	mu   sync.Mutex
	ring *ringBuffer

	// analysis mutex: tuning knobs and the per-band spectrum memory that
	// implements the gravity/integral envelope across calls.
	amu  sync.Mutex
	tune tuning
	memL [NumBands]float64
	memR [NumBands]float64

	window []float64 // Hann, fftSize

	sleeping  atomic.Bool
	lastAudio atomic.Int64 // unix nanos of last block over the silence threshold

	runMu   sync.Mutex
	running bool
	quit    chan struct{}
	wg      sync.WaitGroup
	device  Device
}

// config is Config with zero values filled in.
type config Config

func (c *config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = 2048
	}
	if c.SleepFrames <= 0 {
		c.SleepFrames = 256
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = 0.001
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = 10 * time.Second
	}
	if c.Sensitivity == 0 {
		c.Sensitivity = 100
	}
	if c.NoiseReduction == 0 {
		c.NoiseReduction = 77
	}
}

// New creates an engine. The device is not opened until Start.
func New(cfg Config, open OpenDeviceFunc, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	c := config(cfg)
	c.applyDefaults()

	e := &Engine{
		cfg:        c,
		openDevice: open,
		log:        logger.With("subsystem", "analyzer"),
		ring:       newRingBuffer(ringCapacity),
		window:     hannWindow(fftSize),
	}
	e.tune.setSensitivity(c.Sensitivity)
	e.tune.setNoiseReduction(c.NoiseReduction)
	e.lastAudio.Store(time.Now().UnixNano())
	return e
}

// Start opens the device and launches the capture goroutine. An open failure
// is fatal: the error is returned and no goroutine runs. Calling Start while
// running is a no-op.
func (e *Engine) Start() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.running {
		return nil
	}

	dev, err := e.openDevice()
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}

	e.device = dev
	e.quit = make(chan struct{})
	e.running = true
	e.lastAudio.Store(time.Now().UnixNano())

	e.wg.Add(1)
	go e.captureLoop(dev, e.quit)

	e.log.Info("capture started",
		"sample_rate", e.cfg.SampleRate,
		"frames_per_buffer", e.cfg.FramesPerBuffer)
	return nil
}

// Stop terminates the capture goroutine and closes the device. Safe to call
// repeatedly; a later Start resumes normal operation.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if !e.running {
		return
	}

	close(e.quit)
	e.wg.Wait()

	if err := e.device.Close(); err != nil {
		e.log.Warn("device close failed", "error", err)
	}
	e.device = nil
	e.running = false
	e.log.Info("capture stopped")
}

// SetSleepState switches the capture goroutine between full-fidelity
// ingestion and peak-only wake detection.
func (e *Engine) SetSleepState(sleeping bool) {
	e.sleeping.Store(sleeping)
}

// CheckForAudio reports whether any block exceeded the silence threshold
// within the silence timeout. This is the orchestrator's sole silence signal.
func (e *Engine) CheckForAudio() bool {
	last := time.Unix(0, e.lastAudio.Load())
	return time.Since(last) < e.cfg.SilenceTimeout
}

// MarkActivity restarts the silence timer as if audio had just been heard.
// User input counts as activity so a manual wake is not undone on the next
// silence check.
func (e *Engine) MarkActivity() {
	e.lastAudio.Store(time.Now().UnixNano())
}

func (e *Engine) captureLoop(dev Device, quit chan struct{}) {
	defer e.wg.Done()

	buf := make([]int16, e.cfg.FramesPerBuffer*2)
	left := make([]float64, e.cfg.FramesPerBuffer)
	right := make([]float64, e.cfg.FramesPerBuffer)

	for {
		select {
		case <-quit:
			return
		default:
		}

		asleep := e.sleeping.Load()
		frames := e.cfg.FramesPerBuffer
		if asleep {
			frames = e.cfg.SleepFrames
		}
		block := buf[:frames*2]

		if err := dev.Read(block); err != nil {
			if rerr := dev.Recover(err); rerr != nil {
				e.log.Warn("capture read failed", "error", err, "recover_error", rerr)
			}
			// Either way this block is lost; keep the loop alive.
			continue
		}

		e.processBlock(block, left[:frames], right[:frames], asleep)
	}
}

// processBlock normalizes one interleaved block and feeds it to the ring (or,
// while asleep, only scans it for the peak amplitude).
func (e *Engine) processBlock(block []int16, left, right []float64, asleep bool) {
	peak := 0.0

	if asleep {
		for _, s := range block {
			if a := math.Abs(float64(s) / 32768.0); a > peak {
				peak = a
			}
		}
	} else {
		for i := range left {
			l := float64(block[i*2]) / 32768.0
			r := float64(block[i*2+1]) / 32768.0
			left[i] = l
			right[i] = r
			if a := math.Abs(l); a > peak {
				peak = a
			}
			if a := math.Abs(r); a > peak {
				peak = a
			}
		}

		e.mu.Lock()
		e.ring.write(left, right)
		e.mu.Unlock()
	}

	if peak > e.cfg.SilenceThreshold {
		e.lastAudio.Store(time.Now().UnixNano())
	}
}

// Spectrum computes the current 7-band magnitudes for both channels. Each
// value is an integer in [0,255], smoothed by the asymmetric envelope: rises
// are damped by the integral factor, falls decay at the gravity rate but
// never below the freshly smoothed value.
func (e *Engine) Spectrum() (left, right [NumBands]int) {
	bufL := make([]float64, fftSize)
	bufR := make([]float64, fftSize)

	e.mu.Lock()
	e.ring.copyRecent(bufL, bufR)
	e.mu.Unlock()

	e.amu.Lock()
	defer e.amu.Unlock()

	left = e.analyzeChannel(bufL, &e.memL)
	right = e.analyzeChannel(bufR, &e.memR)
	return left, right
}

// analyzeChannel runs windowed FFT band extraction for one channel and folds
// the result into that channel's spectrum memory. Caller holds amu.
func (e *Engine) analyzeChannel(samples []float64, mem *[NumBands]float64) [NumBands]int {
	for i := range samples {
		samples[i] *= e.window[i]
	}
	spectrum := fft.FFTReal(samples)

	var out [NumBands]int
	for b, band := range frequencyBands {
		lowIdx := band.LowHz * fftSize / e.cfg.SampleRate
		highIdx := band.HighHz * fftSize / e.cfg.SampleRate

		sum := 0.0
		for i := lowIdx; i < highIdx && i < fftSize/2; i++ {
			re := real(spectrum[i])
			im := imag(spectrum[i])
			sum += re*re + im*im
		}

		raw := math.Sqrt(sum/float64(highIdx-lowIdx)) * e.tune.scaleFactor * band.Correction

		smoothed := e.tune.integralFactor*mem[b] + (1.0-e.tune.integralFactor)*raw
		if smoothed < mem[b] {
			fall := (mem[b] - smoothed) * e.tune.gravityFactor
			mem[b] -= fall
			if mem[b] < smoothed {
				mem[b] = smoothed
			}
		} else {
			mem[b] = smoothed
		}

		out[b] = int(clamp(mem[b], 0, 255))
	}
	return out
}

// VULevels returns the per-channel mean of the spectrum bands, scaled for VU
// needle rendering.
func (e *Engine) VULevels() (left, right int) {
	l, r := e.Spectrum()
	for i := 0; i < NumBands; i++ {
		left += l[i]
		right += r[i]
	}
	return left / NumBands, right / NumBands
}

// Waveform copies the n most recent samples of one channel for oscilloscope
// rendering. n is clamped to the ring capacity.
func (e *Engine) Waveform(n int, ch Channel) []float64 {
	if n <= 0 {
		return nil
	}
	if n > ringCapacity {
		n = ringCapacity
	}
	out := make([]float64, n)

	e.mu.Lock()
	e.ring.copyRecentChannel(out, ch)
	e.mu.Unlock()
	return out
}

// StereoAnalysis estimates the mean inter-channel phase and the Pearson
// correlation over the most recent 512-sample window. Correlation is clamped
// to [-1,1]; near-silent samples are excluded from the phase estimate.
func (e *Engine) StereoAnalysis() (phase, correlation float64) {
	left := make([]float64, stereoWindow)
	right := make([]float64, stereoWindow)

	e.mu.Lock()
	e.ring.copyRecent(left, right)
	e.mu.Unlock()

	sumPhase := 0.0
	for i := 0; i < stereoWindow; i++ {
		if math.Abs(left[i]) > stereoFloor && math.Abs(right[i]) > stereoFloor {
			sumPhase += math.Atan2(right[i], left[i])
		}
	}
	phase = sumPhase / stereoWindow

	var sumL, sumR, sumLR, sumL2, sumR2 float64
	for i := 0; i < stereoWindow; i++ {
		sumL += left[i]
		sumR += right[i]
		sumLR += left[i] * right[i]
		sumL2 += left[i] * left[i]
		sumR2 += right[i] * right[i]
	}

	n := float64(stereoWindow)
	num := n*sumLR - sumL*sumR
	den := math.Sqrt((n*sumL2 - sumL*sumL) * (n*sumR2 - sumR*sumR))
	if den > 0 {
		correlation = num / den
	}
	correlation = clamp(correlation, -1, 1)
	return phase, correlation
}

// SetSensitivity clamps to [10,300] and recomputes the derived factors.
func (e *Engine) SetSensitivity(v int) {
	e.amu.Lock()
	defer e.amu.Unlock()
	e.tune.setSensitivity(v)
}

// SetNoiseReduction clamps to [0,100] and recomputes the derived factors.
func (e *Engine) SetNoiseReduction(v int) {
	e.amu.Lock()
	defer e.amu.Unlock()
	e.tune.setNoiseReduction(v)
}

// Sensitivity returns the current sensitivity knob value.
func (e *Engine) Sensitivity() int {
	e.amu.Lock()
	defer e.amu.Unlock()
	return int(e.tune.sensitivity)
}

// NoiseReduction returns the current noise reduction knob value.
func (e *Engine) NoiseReduction() int {
	e.amu.Lock()
	defer e.amu.Unlock()
	return int(e.tune.noiseReduction)
}

func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}
