package waveform

import "math"

// leadGain projects the synthetic cardiac vector onto each lead. Values are
// rough textbook polarities, not a physiological model.
var leadGain = [LeadCount]float64{0.8, 1.0, 0.4, -0.9, 0.3, 0.7, -0.4, 0.2, 0.6, 1.1, 1.0, 0.8}

// SynthOptions controls Synthesize.
type SynthOptions struct {
	Rate       int     // samples per second
	Seconds    float64 // recording length
	HeartRate  float64 // beats per minute
	NoiseLevel float64 // deterministic noise amplitude, ~0.0-0.05
}

// Synthesize builds an ECG-like 12-lead waveform from gaussian P, Q, R, S and
// T bumps over a slow baseline. It is deterministic and not clinical; it
// exists for development mode and tests.
func Synthesize(opts SynthOptions) (*Waveform, error) {
	if opts.Rate <= 0 {
		opts.Rate = DefaultSamplingRate
	}
	if opts.HeartRate <= 0 {
		opts.HeartRate = 72
	}
	n := int(opts.Seconds * float64(opts.Rate))

	base := make([]float64, n)
	cycleHz := opts.HeartRate / 60.0
	phase := 0.0
	for i := range base {
		phase += cycleHz / float64(opts.Rate)
		if phase >= 1 {
			phase -= 1
		}
		base[i] = cardiacCycle(phase, opts.NoiseLevel)
	}

	leads := make([][]float64, LeadCount)
	for l := range leads {
		leads[l] = make([]float64, n)
		for i, v := range base {
			leads[l][i] = v * leadGain[l]
		}
	}
	return New(opts.Rate, leads)
}

func cardiacCycle(t, noise float64) float64 {
	baseline := 0.05 * math.Sin(2*math.Pi*0.33*t)

	p := 0.08 * gauss(t, 0.18, 0.03)
	q := -0.12 * gauss(t, 0.30, 0.01)
	r := 1.00 * gauss(t, 0.32, 0.008)
	s := -0.25 * gauss(t, 0.35, 0.012)
	tw := 0.25 * gauss(t, 0.60, 0.06)

	n := noise * (2*fract(math.Sin(12345.678*t)*9876.543) - 1)

	return baseline + p + q + r + s + tw + n
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }
