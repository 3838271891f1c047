package beats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// QTCoefficient scales sqrt(meanRR) in the QT approximation. The estimate is
// round(1000 * 0.39 * sqrt(meanRR seconds)) ms, a Bazett-style placeholder
// rather than a measured QT.
const QTCoefficient = 0.39

// rrTolerance absorbs rounding in the RR mean so a regular rhythm, whose
// standard deviation is exactly zero, reports no abnormal intervals.
const rrTolerance = 1e-9

// Stats summarises the RR series of one analysis.
type Stats struct {
	TotalBeats    int     `json:"total_beats"`
	MeanRR        float64 `json:"mean_rr_seconds"`
	HeartRate     int     `json:"heart_rate"`
	RRms          int     `json:"rr_interval"`
	HRVms         int     `json:"hrv"`
	QTms          int     `json:"qt_interval"`
	AbnormalBeats int     `json:"abnormal_beats"`
}

// Intervals returns RR intervals in seconds between consecutive R-marks.
func Intervals(marks []Mark, rate int) []float64 {
	if len(marks) < 2 || rate <= 0 {
		return []float64{}
	}
	out := make([]float64, len(marks)-1)
	for i := 1; i < len(marks); i++ {
		out[i-1] = float64(marks[i].Index-marks[i-1].Index) / float64(rate)
	}
	return out
}

// MeanRR is the mean RR interval in seconds, 0 with fewer than two marks.
func MeanRR(marks []Mark, rate int) float64 {
	rr := Intervals(marks, rate)
	if len(rr) == 0 {
		return 0
	}
	return stat.Mean(rr, nil)
}

// HeartRate converts a mean RR interval to beats per minute.
func HeartRate(meanRR float64) int {
	if meanRR <= 0 {
		return 0
	}
	return int(math.Round(60 / meanRR))
}

// QTms is the QT approximation for a mean RR interval in seconds.
func QTms(meanRR float64) int {
	if meanRR <= 0 {
		return 0
	}
	return int(math.Round(1000 * QTCoefficient * math.Sqrt(meanRR)))
}

// Intervals returns the RR series of the analysis.
func (a *Analysis) Intervals() []float64 {
	if a == nil {
		return []float64{}
	}
	return Intervals(a.R, a.Rate)
}

// MeanRR returns the mean RR interval of the analysis in seconds.
func (a *Analysis) MeanRR() float64 {
	if a == nil {
		return 0
	}
	return MeanRR(a.R, a.Rate)
}

// Stats computes heart rate, RR, HRV (SDNN), QT and the abnormal-interval
// count. An abnormal interval deviates from the mean by more than two
// standard deviations and needs at least three R-marks to be meaningful.
func (a *Analysis) Stats() Stats {
	if a == nil {
		return Stats{}
	}
	s := Stats{TotalBeats: len(a.R)}

	rr := a.Intervals()
	if len(rr) == 0 {
		return s
	}

	mean := stat.Mean(rr, nil)
	s.MeanRR = mean
	s.HeartRate = HeartRate(mean)
	s.RRms = int(mean * 1000)
	s.QTms = QTms(mean)

	sd := stat.PopStdDev(rr, nil)
	s.HRVms = int(sd * 1000)

	if len(a.R) >= 3 {
		for _, v := range rr {
			if math.Abs(v-mean) > 2*sd+rrTolerance {
				s.AbnormalBeats++
			}
		}
	}
	return s
}
