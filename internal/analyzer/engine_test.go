package analyzer

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		SampleRate:       44100,
		FramesPerBuffer:  2048,
		SleepFrames:      256,
		SilenceThreshold: 0.001,
		SilenceTimeout:   10 * time.Second,
		Sensitivity:      100,
		NoiseReduction:   77,
	}
}

// feedSine pushes enough sine blocks through the capture path to fill the
// ring. invertRight makes the right channel a perfect phase inversion.
func feedSine(e *Engine, freq, amp float64, invertRight bool) {
	const frames = 2048
	block := make([]int16, frames*2)
	left := make([]float64, frames)
	right := make([]float64, frames)

	phase := 0.0
	step := 2 * math.Pi * freq / 44100
	for b := 0; b < ringCapacity/frames; b++ {
		for i := 0; i < frames; i++ {
			phase += step
			s := int16(amp * math.Sin(phase) * 32767)
			block[i*2] = s
			if invertRight {
				block[i*2+1] = -s
			} else {
				block[i*2+1] = s
			}
		}
		e.processBlock(block, left, right, false)
	}
}

func TestSpectrumDominantBandForSineTone(t *testing.T) {
	e := New(testConfig(), nil, nil)
	feedSine(e, 440, 0.5, false)

	// run a few frames so the envelope settles
	var left [NumBands]int
	for i := 0; i < 5; i++ {
		left, _ = e.Spectrum()
	}

	want := BandFor(440)
	if want < 0 {
		t.Fatalf("440Hz not covered by band table")
	}
	for b := 0; b < NumBands; b++ {
		if b == want {
			continue
		}
		if left[b] >= left[want] {
			t.Fatalf("band %d (%d) not dominated by band %d (%d); spectrum=%v",
				b, left[b], want, left[want], left)
		}
	}
}

func TestSpectrumValuesStayInByteRange(t *testing.T) {
	e := New(testConfig(), nil, nil)
	e.SetSensitivity(300)
	feedSine(e, 1000, 1.0, false)

	for i := 0; i < 10; i++ {
		l, r := e.Spectrum()
		for b := 0; b < NumBands; b++ {
			if l[b] < 0 || l[b] > 255 || r[b] < 0 || r[b] > 255 {
				t.Fatalf("band %d out of [0,255]: left=%d right=%d", b, l[b], r[b])
			}
		}
	}
}

func TestSpectrumSilenceIsZero(t *testing.T) {
	e := New(testConfig(), nil, nil)
	l, r := e.Spectrum()
	for b := 0; b < NumBands; b++ {
		if l[b] != 0 || r[b] != 0 {
			t.Fatalf("silent spectrum nonzero at band %d: %d/%d", b, l[b], r[b])
		}
	}
}

func TestStereoCorrelation(t *testing.T) {
	e := New(testConfig(), nil, nil)
	feedSine(e, 440, 0.5, false)
	if _, corr := e.StereoAnalysis(); math.Abs(corr-1.0) > 0.01 {
		t.Fatalf("identical channels: correlation=%f want~1.0", corr)
	}

	e = New(testConfig(), nil, nil)
	feedSine(e, 440, 0.5, true)
	if _, corr := e.StereoAnalysis(); math.Abs(corr+1.0) > 0.01 {
		t.Fatalf("inverted channels: correlation=%f want~-1.0", corr)
	}
}

func TestWaveformReturnsRecentSamples(t *testing.T) {
	e := New(testConfig(), nil, nil)
	feedSine(e, 440, 0.5, false)

	wave := e.Waveform(512, Left)
	if len(wave) != 512 {
		t.Fatalf("waveform length=%d want=512", len(wave))
	}
	peak := 0.0
	for _, v := range wave {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak < 0.4 || peak > 0.55 {
		t.Fatalf("waveform peak=%f want~0.5", peak)
	}
}

func TestCheckForAudioTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.SilenceTimeout = 50 * time.Millisecond
	e := New(cfg, nil, nil)

	feedSine(e, 440, 0.5, false)
	if !e.CheckForAudio() {
		t.Fatalf("expected audio right after a loud block")
	}

	time.Sleep(80 * time.Millisecond)
	if e.CheckForAudio() {
		t.Fatalf("expected silence after timeout")
	}
}

func TestSleepModeSkipsRingWrites(t *testing.T) {
	e := New(testConfig(), nil, nil)

	block := make([]int16, 256*2)
	for i := range block {
		block[i] = 16000
	}
	e.processBlock(block, nil, nil, true)

	if !e.CheckForAudio() {
		t.Fatalf("loud sleep block should stamp last-audio")
	}
	for i, v := range e.Waveform(256, Left) {
		if v != 0 {
			t.Fatalf("ring written during sleep at %d: %f", i, v)
		}
	}
}

// blockDevice produces a constant tone and counts reads. A nonzero failEvery
// makes every Nth read fail to exercise the recovery path.
type blockDevice struct {
	reads     atomic.Int64
	recovers  atomic.Int64
	closes    atomic.Int64
	failEvery int64
}

func (d *blockDevice) Read(dst []int16) error {
	n := d.reads.Add(1)
	if d.failEvery > 0 && n%d.failEvery == 0 {
		return errors.New("device glitch")
	}
	for i := range dst {
		dst[i] = int16(8000 * math.Sin(float64(i)*0.05))
	}
	time.Sleep(time.Millisecond)
	return nil
}

func (d *blockDevice) Recover(error) error {
	d.recovers.Add(1)
	return nil
}

func (d *blockDevice) Close() error {
	d.closes.Add(1)
	return nil
}

func TestStartStopCycle(t *testing.T) {
	dev := &blockDevice{}
	e := New(testConfig(), func() (Device, error) { return dev, nil }, nil)

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	e.Stop()
	e.Stop() // must be safe to call repeatedly
	if dev.closes.Load() != 1 {
		t.Fatalf("device closed %d times, want 1", dev.closes.Load())
	}

	if err := e.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	e.Stop()

	if dev.reads.Load() == 0 {
		t.Fatalf("capture loop never read from the device")
	}
}

func TestStartReportsOpenFailure(t *testing.T) {
	openErr := errors.New("no such device")
	e := New(testConfig(), func() (Device, error) { return nil, openErr }, nil)

	if err := e.Start(); !errors.Is(err, openErr) {
		t.Fatalf("start error=%v want wrapped %v", err, openErr)
	}
	// failed start must not leave anything running
	e.Stop()
}

func TestCaptureRecoversFromReadErrors(t *testing.T) {
	dev := &blockDevice{failEvery: 3}
	e := New(testConfig(), func() (Device, error) { return dev, nil }, nil)

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	if dev.recovers.Load() == 0 {
		t.Fatalf("expected recovery attempts")
	}
	if !e.CheckForAudio() {
		t.Fatalf("audio should still have been detected between glitches")
	}
}
