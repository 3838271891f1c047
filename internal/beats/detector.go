// Package beats detects R-peaks on a reference lead and derives Q/S companion
// points and RR-interval statistics.
//
// Detection is a plain local-maximum scan with a fixed amplitude threshold and
// a fixed refractory skip. It is not Pan-Tompkins and does no filtering.
package beats

import (
	"fmt"
	"math"

	"github.com/banshee-data/ecgscope/internal/waveform"
)

const (
	// DefaultThreshold is the minimum R-peak amplitude in mV.
	DefaultThreshold = 0.5
	// DefaultRefractorySeconds is the skip applied after each accepted peak.
	DefaultRefractorySeconds = 0.2
	// DefaultNeighborhood is the Q/S search half-width in samples.
	DefaultNeighborhood = 50
)

// Options tunes detection. A nil Threshold and non-positive durations select
// the defaults; an explicit zero threshold is honored.
type Options struct {
	Threshold           *float64
	RefractorySeconds   float64
	NeighborhoodSamples int
}

// Threshold returns a pointer to v for use in Options.
func Threshold(v float64) *float64 { return &v }

func (o Options) threshold() float64 {
	if o.Threshold == nil {
		return DefaultThreshold
	}
	return *o.Threshold
}

func (o Options) withDefaults() Options {
	if o.RefractorySeconds <= 0 {
		o.RefractorySeconds = DefaultRefractorySeconds
	}
	if o.NeighborhoodSamples <= 0 {
		o.NeighborhoodSamples = DefaultNeighborhood
	}
	return o
}

// Mark is one detected fiducial point.
type Mark struct {
	Index     int     `json:"index"`
	Amplitude float64 `json:"amplitude"`
	Time      float64 `json:"time"`
}

// Analysis is the output of one detection pass. It is replaced wholesale on
// each run and shared read-only afterwards.
type Analysis struct {
	Lead int `json:"lead"`
	Rate int `json:"sampling_rate"`

	R []Mark `json:"r"`
	Q []Mark `json:"q"`
	S []Mark `json:"s"`
	// P and T are placeholders; wave detection beyond QRS is not attempted.
	P []Mark `json:"p"`
	T []Mark `json:"t"`
}

// Detect scans lead of w for R-peaks and their Q/S companions.
func Detect(w *waveform.Waveform, lead int, opts Options) (*Analysis, error) {
	samples, err := w.Lead(lead)
	if err != nil {
		return nil, fmt.Errorf("beat detection: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("beat detection: lead %s is empty: %w", waveform.LeadName(lead), waveform.ErrInvalidInput)
	}
	if opts.Threshold != nil && (*opts.Threshold < 0 || math.IsNaN(*opts.Threshold)) {
		return nil, fmt.Errorf("beat detection: threshold must be non-negative, got %v: %w", *opts.Threshold, waveform.ErrInvalidInput)
	}
	opts = opts.withDefaults()
	rate := w.Rate()

	a := &Analysis{
		Lead: lead,
		Rate: rate,
		R:    []Mark{},
		Q:    []Mark{},
		S:    []Mark{},
		P:    []Mark{},
		T:    []Mark{},
	}

	for _, r := range FindPeaks(samples, rate, opts.threshold(), opts.RefractorySeconds) {
		a.R = append(a.R, mark(samples, r, rate))

		if q, ok := argmin(samples, max(0, r-opts.NeighborhoodSamples), r); ok {
			a.Q = append(a.Q, mark(samples, q, rate))
		}
		if s, ok := argmin(samples, r+1, min(len(samples)-1, r+opts.NeighborhoodSamples)+1); ok {
			a.S = append(a.S, mark(samples, s, rate))
		}
	}
	return a, nil
}

// FindPeaks returns indices of strict local maxima above threshold. After
// each accepted peak the scan skips floor(refractory*rate) samples.
func FindPeaks(x []float64, rate int, threshold, refractorySeconds float64) []int {
	skip := int(refractorySeconds * float64(rate))
	if skip < 1 {
		skip = 1
	}

	var peaks []int
	for i := 1; i < len(x)-1; {
		if x[i] > x[i-1] && x[i] > x[i+1] && x[i] > threshold {
			peaks = append(peaks, i)
			i += skip
			continue
		}
		i++
	}
	return peaks
}

// argmin returns the index of the smallest value in x[lo:hi].
func argmin(x []float64, lo, hi int) (int, bool) {
	if lo < 0 {
		lo = 0
	}
	if hi > len(x) {
		hi = len(x)
	}
	if lo >= hi {
		return 0, false
	}
	best := lo
	for i := lo + 1; i < hi; i++ {
		if x[i] < x[best] {
			best = i
		}
	}
	return best, true
}

func mark(x []float64, idx, rate int) Mark {
	return Mark{Index: idx, Amplitude: x[idx], Time: float64(idx) / float64(rate)}
}
