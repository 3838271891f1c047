// Package metrics combines beat detection output with the playback window to
// produce windowed statistics and coarse signal-quality scores.
package metrics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ecgscope/internal/beats"
	"github.com/banshee-data/ecgscope/internal/playback"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

// Window quality heuristic. Thresholds are fixed for parity with the
// reference viewer; the score is a replaceable stub, not a validated index.
const (
	qualityStart        = 100
	flatVariance        = 0.001
	flatPenalty         = 30
	saturatedPeakToPeak = 2.0
	saturatedPenalty    = 20
)

// Summary is the per-window statistic set.
type Summary struct {
	InstantHeartRate int            `json:"instantaneous_heart_rate"`
	BeatsInWindow    int            `json:"beats_in_window"`
	SignalQuality    int            `json:"signal_quality"`
	Window           playback.Range `json:"window"`
}

// Summarize computes window statistics for one lead. A nil analysis counts as
// no beats.
func Summarize(w *waveform.Waveform, lead int, a *beats.Analysis, win playback.Range) Summary {
	s := Summary{Window: win}

	var inWindow []beats.Mark
	if a != nil {
		for _, m := range a.R {
			if win.Contains(m.Index) {
				inWindow = append(inWindow, m)
			}
		}
	}
	s.BeatsInWindow = len(inWindow)

	switch {
	case len(inWindow) >= 2:
		s.InstantHeartRate = beats.HeartRate(beats.MeanRR(inWindow, w.Rate()))
	case len(inWindow) == 1 && a != nil:
		s.InstantHeartRate = beats.HeartRate(a.MeanRR())
	}

	if samples, err := w.Lead(lead); err == nil {
		lo, hi := clampRange(win, len(samples))
		s.SignalQuality = WindowQuality(samples[lo:hi])
	}
	return s
}

// WindowQuality scores a window from 100: minus 30 when the population
// variance is below 0.001, minus 20 when peak-to-peak exceeds 2.0. An empty
// window scores 0.
func WindowQuality(x []float64) int {
	if len(x) == 0 {
		return 0
	}
	q := qualityStart
	if stat.PopVariance(x, nil) < flatVariance {
		q -= flatPenalty
	}
	if floats.Max(x)-floats.Min(x) > saturatedPeakToPeak {
		q -= saturatedPenalty
	}
	return clampInt(q, 0, 100)
}

// RecordQuality scores a whole recording: each lead with more than 10
// samples scores min(100, 80 + 50*range) when range > 0.1 and variance >
// 0.001, otherwise 30. The result is the truncated mean over scored leads,
// 50 when no lead qualifies and 0 without a waveform.
func RecordQuality(w *waveform.Waveform) int {
	if w.LeadCount() == 0 {
		return 0
	}
	var scores []float64
	for i := 0; i < w.LeadCount(); i++ {
		x, err := w.Lead(i)
		if err != nil || len(x) <= 10 {
			continue
		}
		span := floats.Max(x) - floats.Min(x)
		if span > 0.1 && stat.PopVariance(x, nil) > flatVariance {
			scores = append(scores, min(100, 80+span*50))
		} else {
			scores = append(scores, 30)
		}
	}
	if len(scores) == 0 {
		return 50
	}
	return int(stat.Mean(scores, nil))
}

func clampRange(r playback.Range, n int) (int, int) {
	lo := clampInt(r.Start, 0, n)
	hi := clampInt(r.End, lo, n)
	return lo, hi
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
