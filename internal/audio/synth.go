package audio

import (
	"math"
	"math/rand"
	"time"
)

// Synth is a software stand-in for Input used by -no-audio runs. It produces
// a slowly wandering stereo tone with a little noise so every visualization
// has something to chew on.
type Synth struct {
	sampleRate int
	channels   int
	rng        *rand.Rand

	phase     float64
	sweep     float64
	realtime  bool
	amplitude float64
}

// NewSynth creates a generator at the given rate. When realtime is set, Read
// paces itself to wall-clock speed like a real capture device would.
func NewSynth(sampleRate, channels int, realtime bool) *Synth {
	return &Synth{
		sampleRate: sampleRate,
		channels:   channels,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		realtime:   realtime,
		amplitude:  0.4,
	}
}

// Read fills dst with interleaved samples of a wandering tone.
func (s *Synth) Read(dst []int16) error {
	frames := len(dst) / s.channels
	s.sweep += float64(frames) / float64(s.sampleRate) * 0.2
	freq := 180.0 + 700.0*(0.5+0.5*math.Sin(s.sweep))

	step := 2 * math.Pi * freq / float64(s.sampleRate)
	for i := 0; i < frames; i++ {
		s.phase += step
		v := s.amplitude*math.Sin(s.phase) + s.rng.Float64()*0.02 - 0.01
		sample := int16(v * 32767)
		for ch := 0; ch < s.channels; ch++ {
			dst[i*s.channels+ch] = sample
		}
	}

	if s.realtime {
		time.Sleep(time.Duration(frames) * time.Second / time.Duration(s.sampleRate))
	}
	return nil
}

// Recover never fails; the generator has no device state to repair.
func (s *Synth) Recover(error) error { return nil }

// Close is a no-op.
func (s *Synth) Close() error { return nil }
