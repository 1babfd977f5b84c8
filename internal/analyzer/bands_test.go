package analyzer

import "testing"

func TestDerivedFactorRanges(t *testing.T) {
	for sens := 10; sens <= 300; sens += 10 {
		for nr := 0; nr <= 100; nr += 5 {
			tu := tuning{}
			tu.setSensitivity(sens)
			tu.setNoiseReduction(nr)

			if tu.integralFactor < 0 || tu.integralFactor > 0.95 {
				t.Fatalf("integral=%f out of [0,0.95] for nr=%d", tu.integralFactor, nr)
			}
			if tu.gravityFactor < 0.2 || tu.gravityFactor > 1.0 {
				t.Fatalf("gravity=%f out of [0.2,1.0] for nr=%d", tu.gravityFactor, nr)
			}
		}
	}
}

func TestTuningClampsOutOfRangeValues(t *testing.T) {
	tu := tuning{}
	tu.setSensitivity(5000)
	if tu.sensitivity != maxSensitivity {
		t.Fatalf("sensitivity=%f want=%d", tu.sensitivity, maxSensitivity)
	}
	tu.setSensitivity(-4)
	if tu.sensitivity != minSensitivity {
		t.Fatalf("sensitivity=%f want=%d", tu.sensitivity, minSensitivity)
	}
	tu.setNoiseReduction(101)
	if tu.noiseReduction != maxNoise {
		t.Fatalf("noise=%f want=%d", tu.noiseReduction, maxNoise)
	}
}

func TestDefaultTuningValues(t *testing.T) {
	tu := tuning{}
	tu.setSensitivity(100)
	tu.setNoiseReduction(77)

	// integral = 0.77*0.95, gravity = max(0.2, 1-0.77*0.8), scale = 2.2
	if got, want := tu.integralFactor, 0.77*0.95; !almostEqual(got, want) {
		t.Fatalf("integral=%f want=%f", got, want)
	}
	if got, want := tu.gravityFactor, 1.0-0.77*0.8; !almostEqual(got, want) {
		t.Fatalf("gravity=%f want=%f", got, want)
	}
	if got, want := tu.scaleFactor, 2.2; !almostEqual(got, want) {
		t.Fatalf("scale=%f want=%f", got, want)
	}
}

func TestBandForCoversTable(t *testing.T) {
	cases := map[float64]int{
		63:    0,
		119:   0,
		440:   2,
		1000:  3,
		15999: 6,
		16000: -1,
		20:    -1,
	}
	for freq, want := range cases {
		if got := BandFor(freq); got != want {
			t.Fatalf("BandFor(%g)=%d want=%d", freq, got, want)
		}
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
