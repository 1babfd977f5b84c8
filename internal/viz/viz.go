// Package viz holds the display-agnostic visualization variants. Each variant
// samples the analysis engine and produces a Frame; sinks decide how to draw
// it. Variants are selected by index so a single keypress can cycle them.
package viz

import "oledviz/internal/analyzer"

// Kind tags the frame so sinks can pick a drawing routine without type
// switching on the variant.
type Kind int

const (
	VUMeter Kind = iota
	SpectrumBars
	WaveformScope
	StereoField
)

// Source is the slice of the analysis engine the variants read from.
type Source interface {
	Spectrum() (left, right [analyzer.NumBands]int)
	VULevels() (left, right int)
	Waveform(n int, ch analyzer.Channel) []float64
	StereoAnalysis() (phase, correlation float64)
}

// Frame is one rendered snapshot. Only the fields relevant to Kind are
// populated; the rest stay at their zero values.
type Frame struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`

	SpectrumLeft  [analyzer.NumBands]int `json:"spectrumLeft,omitempty"`
	SpectrumRight [analyzer.NumBands]int `json:"spectrumRight,omitempty"`
	PeakLeft      [analyzer.NumBands]int `json:"peakLeft,omitempty"`
	PeakRight     [analyzer.NumBands]int `json:"peakRight,omitempty"`

	VULeft  int `json:"vuLeft,omitempty"`
	VURight int `json:"vuRight,omitempty"`

	WaveLeft  []float64 `json:"waveLeft,omitempty"`
	WaveRight []float64 `json:"waveRight,omitempty"`

	Phase       float64 `json:"phase,omitempty"`
	Correlation float64 `json:"correlation,omitempty"`

	TrackText string `json:"trackText"`
}

// Visualization renders frames for one variant.
type Visualization interface {
	Name() string
	Kind() Kind
	Render(src Source, trackText string) Frame
}

// All returns the variant set in cycling order.
func All() []Visualization {
	return []Visualization{
		&vuMeter{},
		&spectrumBars{},
		&waveformScope{},
		&stereoField{},
	}
}

type vuMeter struct{}

func (vuMeter) Name() string { return "vu-meter" }
func (vuMeter) Kind() Kind   { return VUMeter }

func (v vuMeter) Render(src Source, trackText string) Frame {
	l, r := src.VULevels()
	return Frame{
		Kind:      VUMeter,
		Name:      v.Name(),
		VULeft:    l,
		VURight:   r,
		TrackText: trackText,
	}
}

// peakFall is the per-frame decay of the spectrum peak markers.
const peakFall = 4

// spectrumBars keeps falling peak markers between frames, so the same
// instance must render every frame of its run.
type spectrumBars struct {
	peakL [analyzer.NumBands]int
	peakR [analyzer.NumBands]int
}

func (spectrumBars) Name() string { return "spectrum" }
func (spectrumBars) Kind() Kind   { return SpectrumBars }

func (s *spectrumBars) Render(src Source, trackText string) Frame {
	l, r := src.Spectrum()
	for b := 0; b < analyzer.NumBands; b++ {
		s.peakL[b] = holdPeak(s.peakL[b], l[b])
		s.peakR[b] = holdPeak(s.peakR[b], r[b])
	}
	return Frame{
		Kind:          SpectrumBars,
		Name:          s.Name(),
		SpectrumLeft:  l,
		SpectrumRight: r,
		PeakLeft:      s.peakL,
		PeakRight:     s.peakR,
		TrackText:     trackText,
	}
}

func holdPeak(peak, level int) int {
	peak -= peakFall
	if level > peak {
		peak = level
	}
	if peak < 0 {
		peak = 0
	}
	return peak
}

// waveSamples is the per-channel scope width.
const waveSamples = 128

type waveformScope struct{}

func (waveformScope) Name() string { return "waveform" }
func (waveformScope) Kind() Kind   { return WaveformScope }

func (w waveformScope) Render(src Source, trackText string) Frame {
	return Frame{
		Kind:      WaveformScope,
		Name:      w.Name(),
		WaveLeft:  src.Waveform(waveSamples, analyzer.Left),
		WaveRight: src.Waveform(waveSamples, analyzer.Right),
		TrackText: trackText,
	}
}

type stereoField struct{}

func (stereoField) Name() string { return "stereo-field" }
func (stereoField) Kind() Kind   { return StereoField }

func (s stereoField) Render(src Source, trackText string) Frame {
	phase, corr := src.StereoAnalysis()
	l, r := src.VULevels()
	return Frame{
		Kind:        StereoField,
		Name:        s.Name(),
		Phase:       phase,
		Correlation: corr,
		VULeft:      l,
		VURight:     r,
		TrackText:   trackText,
	}
}
