package beats

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func marksAt(idx ...int) []Mark {
	out := make([]Mark, len(idx))
	for i, v := range idx {
		out[i] = Mark{Index: v}
	}
	return out
}

func TestIntervals(t *testing.T) {
	if rr := Intervals(nil, 100); len(rr) != 0 {
		t.Errorf("Intervals(nil) = %v, want empty", rr)
	}
	if rr := Intervals(marksAt(10), 100); len(rr) != 0 {
		t.Errorf("Intervals(one mark) = %v, want empty", rr)
	}

	rr := Intervals(marksAt(0, 100, 250), 100)
	if diff := cmp.Diff([]float64{1.0, 1.5}, rr); diff != "" {
		t.Errorf("Intervals mismatch (-want +got):\n%s", diff)
	}
}

func TestHeartRateAndQT(t *testing.T) {
	hr := map[float64]int{0: 0, 1.0: 60, 0.8: 75}
	for rr, want := range hr {
		if got := HeartRate(rr); got != want {
			t.Errorf("HeartRate(%v) = %d, want %d", rr, got, want)
		}
	}

	qt := map[float64]int{0: 0, 1.0: 390, 0.8: int(math.Round(390 * math.Sqrt(0.8)))}
	for rr, want := range qt {
		if got := QTms(rr); got != want {
			t.Errorf("QTms(%v) = %d, want %d", rr, got, want)
		}
	}
}

func TestStats(t *testing.T) {
	a := &Analysis{Rate: 100, R: marksAt(0, 100, 200, 300)}
	want := Stats{
		TotalBeats: 4,
		MeanRR:     1.0,
		HeartRate:  60,
		RRms:       1000,
		QTms:       390,
	}
	if diff := cmp.Diff(want, a.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestStats_AbnormalInterval(t *testing.T) {
	// Nine regular 1s intervals and one 3s pause.
	idx := []int{0}
	for i := 1; i <= 9; i++ {
		idx = append(idx, i*100)
	}
	idx = append(idx, 1200)

	s := (&Analysis{Rate: 100, R: marksAt(idx...)}).Stats()
	if s.AbnormalBeats != 1 {
		t.Errorf("AbnormalBeats = %d, want 1", s.AbnormalBeats)
	}
	if s.HRVms <= 0 {
		t.Errorf("HRVms = %d, want > 0", s.HRVms)
	}
}

func TestStats_RegularRhythmHasNoAbnormalBeats(t *testing.T) {
	// 0.8 s spacing at 360 Hz leaves a rounding error in the mean RR.
	idx := make([]int, 13)
	for i := range idx {
		idx[i] = i * 288
	}
	s := (&Analysis{Rate: 360, R: marksAt(idx...)}).Stats()

	if s.HeartRate != 75 {
		t.Errorf("HeartRate = %d, want 75", s.HeartRate)
	}
	if s.HRVms != 0 {
		t.Errorf("HRVms = %d, want 0", s.HRVms)
	}
	if s.AbnormalBeats != 0 {
		t.Errorf("AbnormalBeats = %d, want 0", s.AbnormalBeats)
	}
}

func TestStats_Empty(t *testing.T) {
	var a *Analysis
	if got := a.Stats(); got != (Stats{}) {
		t.Errorf("nil analysis Stats() = %+v, want zero", got)
	}

	s := (&Analysis{Rate: 100, R: marksAt(5)}).Stats()
	if s.TotalBeats != 1 || s.HeartRate != 0 || s.QTms != 0 {
		t.Errorf("single mark Stats() = %+v, want 1 beat and zero rates", s)
	}
}
