package viz

import (
	"testing"

	"oledviz/internal/analyzer"
)

// fakeSource returns canned analysis values.
type fakeSource struct {
	spectrum [analyzer.NumBands]int
	vu       int
	wave     []float64
	phase    float64
	corr     float64
}

func (f *fakeSource) Spectrum() (l, r [analyzer.NumBands]int) {
	return f.spectrum, f.spectrum
}

func (f *fakeSource) VULevels() (l, r int) { return f.vu, f.vu }

func (f *fakeSource) Waveform(n int, ch analyzer.Channel) []float64 {
	if n > len(f.wave) {
		n = len(f.wave)
	}
	return f.wave[:n]
}

func (f *fakeSource) StereoAnalysis() (phase, correlation float64) {
	return f.phase, f.corr
}

func TestAllVariantsHaveUniqueNamesAndKinds(t *testing.T) {
	names := map[string]bool{}
	kinds := map[Kind]bool{}
	for _, v := range All() {
		if names[v.Name()] {
			t.Fatalf("duplicate name %q", v.Name())
		}
		if kinds[v.Kind()] {
			t.Fatalf("duplicate kind %v", v.Kind())
		}
		names[v.Name()] = true
		kinds[v.Kind()] = true
	}
}

func TestFramesCarryKindAndTrackText(t *testing.T) {
	src := &fakeSource{vu: 50, wave: make([]float64, 256)}
	for _, v := range All() {
		frame := v.Render(src, "01. Song")
		if frame.Kind != v.Kind() {
			t.Fatalf("%s: frame kind %v != %v", v.Name(), frame.Kind, v.Kind())
		}
		if frame.TrackText != "01. Song" {
			t.Fatalf("%s: track text %q", v.Name(), frame.TrackText)
		}
		if frame.Name != v.Name() {
			t.Fatalf("frame name %q != %q", frame.Name, v.Name())
		}
	}
}

func TestSpectrumPeaksHoldAndFall(t *testing.T) {
	src := &fakeSource{}
	src.spectrum[0] = 200
	bars := &spectrumBars{}

	frame := bars.Render(src, "")
	if frame.PeakLeft[0] != 200 {
		t.Fatalf("peak should jump to the level, got %d", frame.PeakLeft[0])
	}

	src.spectrum[0] = 0
	frame = bars.Render(src, "")
	if frame.PeakLeft[0] != 200-peakFall {
		t.Fatalf("peak should fall by %d, got %d", peakFall, frame.PeakLeft[0])
	}

	// falls all the way to zero, never below
	for i := 0; i < 100; i++ {
		frame = bars.Render(src, "")
	}
	if frame.PeakLeft[0] != 0 {
		t.Fatalf("peak should settle at zero, got %d", frame.PeakLeft[0])
	}
}

func TestWaveformScopeWidth(t *testing.T) {
	src := &fakeSource{wave: make([]float64, 1024)}
	frame := waveformScope{}.Render(src, "")
	if len(frame.WaveLeft) != waveSamples || len(frame.WaveRight) != waveSamples {
		t.Fatalf("wave lengths %d/%d want %d", len(frame.WaveLeft), len(frame.WaveRight), waveSamples)
	}
}

func TestStereoFieldCarriesAnalysis(t *testing.T) {
	src := &fakeSource{phase: 0.25, corr: -0.5, vu: 10}
	frame := stereoField{}.Render(src, "")
	if frame.Phase != 0.25 || frame.Correlation != -0.5 {
		t.Fatalf("phase=%v corr=%v", frame.Phase, frame.Correlation)
	}
	if frame.VULeft != 10 {
		t.Fatalf("vu=%d", frame.VULeft)
	}
}
