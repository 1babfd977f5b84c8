package analyzer

import "math"

// NumBands is the number of display bands on the spectrum visualizations.
const NumBands = 7

// FrequencyBand buckets spectral energy for one display column. Correction
// compensates for the energy falloff of typical program material toward the
// high end.
type FrequencyBand struct {
	LowHz      int
	HighHz     int
	Correction float64
}

// frequencyBands spans roughly 63Hz-16kHz in the classic 7-column layout.
var frequencyBands = [NumBands]FrequencyBand{
	{63, 120, 0.5},
	{120, 350, 1.0},
	{350, 900, 2.0},
	{900, 2000, 3.5},
	{2000, 5000, 5.0},
	{5000, 10000, 7.0},
	{10000, 16000, 10.0},
}

// Bands returns a copy of the band table, for labeling in the visualizations.
func Bands() [NumBands]FrequencyBand {
	return frequencyBands
}

// BandFor returns the index of the band containing freq, or -1 if freq falls
// outside the table.
func BandFor(freq float64) int {
	for i, b := range frequencyBands {
		if freq >= float64(b.LowHz) && freq < float64(b.HighHz) {
			return i
		}
	}
	return -1
}

const (
	minSensitivity = 10
	maxSensitivity = 300
	minNoise       = 0
	maxNoise       = 100
)

// tuning holds the user-adjustable knobs and the factors derived from them.
// The derived values are recomputed on every change, never lazily.
type tuning struct {
	sensitivity    float64
	noiseReduction float64

	integralFactor float64 // rise damping
	gravityFactor  float64 // bounded decay rate
	scaleFactor    float64
}

func (t *tuning) update() {
	nr := t.noiseReduction / 100.0
	t.integralFactor = nr * 0.95
	t.gravityFactor = math.Max(0.2, 1.0-nr*0.8)
	t.scaleFactor = (t.sensitivity / 100.0) * 2.2
}

func (t *tuning) setSensitivity(v int) {
	t.sensitivity = clamp(float64(v), minSensitivity, maxSensitivity)
	t.update()
}

func (t *tuning) setNoiseReduction(v int) {
	t.noiseReduction = clamp(float64(v), minNoise, maxNoise)
	t.update()
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
