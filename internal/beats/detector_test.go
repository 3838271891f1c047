package beats

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ecgscope/internal/waveform"
)

// trianglePeak rises linearly to height at center and falls back.
func trianglePeak(n, center int, height float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		d := i - center
		if d < 0 {
			d = -d
		}
		x[i] = height * (1 - float64(d)/float64(center))
	}
	return x
}

// spikeTrain places unit spikes at the given indices over a slightly
// negative baseline so Q/S minima are well defined.
func spikeTrain(n int, at ...int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = -0.05
	}
	for _, i := range at {
		x[i] = 1.0
		if i > 2 {
			x[i-2] = -0.3
		}
		if i+3 < n {
			x[i+3] = -0.4
		}
	}
	return x
}

func mustWave(t *testing.T, rate int, lead []float64) *waveform.Waveform {
	t.Helper()
	w, err := waveform.New(rate, [][]float64{lead})
	require.NoError(t, err)
	return w
}

func TestDetect_SinglePeak(t *testing.T) {
	w := mustWave(t, 100, trianglePeak(101, 50, 1.0))

	a, err := Detect(w, 0, Options{})
	require.NoError(t, err)

	require.Len(t, a.R, 1)
	assert.Equal(t, 50, a.R[0].Index)
	assert.Equal(t, 1.0, a.R[0].Amplitude)
	assert.InDelta(t, 0.5, a.R[0].Time, 1e-12)
	assert.Empty(t, a.Intervals())
	assert.Zero(t, a.Stats().HeartRate)
}

func TestDetect_BelowThreshold(t *testing.T) {
	w := mustWave(t, 100, trianglePeak(101, 50, 0.5))

	a, err := Detect(w, 0, Options{})
	require.NoError(t, err)
	assert.Empty(t, a.R, "peak equal to the threshold is not accepted")
}

func TestDetect_ExplicitZeroThreshold(t *testing.T) {
	w := mustWave(t, 100, trianglePeak(101, 50, 0.3))

	a, err := Detect(w, 0, Options{})
	require.NoError(t, err)
	assert.Empty(t, a.R, "default threshold rejects a 0.3 mV peak")

	a, err = Detect(w, 0, Options{Threshold: Threshold(0)})
	require.NoError(t, err)
	require.Len(t, a.R, 1, "zero threshold is not replaced by the default")
	assert.Equal(t, 50, a.R[0].Index)
}

func TestDetect_NegativeThreshold(t *testing.T) {
	w := mustWave(t, 100, trianglePeak(101, 50, 1.0))

	_, err := Detect(w, 0, Options{Threshold: Threshold(-0.1)})
	assert.ErrorIs(t, err, waveform.ErrInvalidInput)
}

func TestDetect_RefractorySuppression(t *testing.T) {
	rate := 100
	// Second spike 10 samples after the first falls inside the 20-sample skip.
	w := mustWave(t, rate, spikeTrain(400, 50, 60, 150, 250))

	a, err := Detect(w, 0, Options{})
	require.NoError(t, err)

	var got []int
	for _, m := range a.R {
		got = append(got, m.Index)
	}
	if diff := cmp.Diff([]int{50, 150, 250}, got); diff != "" {
		t.Errorf("R indices mismatch (-want +got):\n%s", diff)
	}

	skip := int(DefaultRefractorySeconds * float64(rate))
	for i := 1; i < len(a.R); i++ {
		assert.GreaterOrEqual(t, a.R[i].Index-a.R[i-1].Index, skip)
	}
}

func TestDetect_QSCompanions(t *testing.T) {
	w := mustWave(t, 100, spikeTrain(400, 50, 150))

	a, err := Detect(w, 0, Options{})
	require.NoError(t, err)

	require.Len(t, a.Q, 2)
	require.Len(t, a.S, 2)
	assert.Equal(t, 48, a.Q[0].Index)
	assert.Equal(t, -0.3, a.Q[0].Amplitude)
	assert.Equal(t, 53, a.S[0].Index)
	assert.Equal(t, -0.4, a.S[0].Amplitude)
	assert.Empty(t, a.P)
	assert.Empty(t, a.T)
}

func TestDetect_CompanionWindowsClipAtEdges(t *testing.T) {
	x := []float64{0, 0.9, 0.1}
	w := mustWave(t, 10, x)

	a, err := Detect(w, 0, Options{NeighborhoodSamples: 50})
	require.NoError(t, err)
	require.Len(t, a.R, 1)
	require.Len(t, a.Q, 1)
	require.Len(t, a.S, 1)
	assert.Equal(t, 0, a.Q[0].Index)
	assert.Equal(t, 2, a.S[0].Index)
}

func TestDetect_InvalidInput(t *testing.T) {
	_, err := Detect(nil, 0, Options{})
	assert.ErrorIs(t, err, waveform.ErrInvalidInput)

	w, err := waveform.New(100, [][]float64{{1, 2, 3}, {}})
	require.NoError(t, err)

	_, err = Detect(w, 5, Options{})
	assert.ErrorIs(t, err, waveform.ErrInvalidInput)

	_, err = Detect(w, 1, Options{})
	assert.ErrorIs(t, err, waveform.ErrInvalidInput)
}

func TestDetect_SyntheticRhythm(t *testing.T) {
	w, err := waveform.Synthesize(waveform.SynthOptions{Rate: 360, Seconds: 10, HeartRate: 75})
	require.NoError(t, err)

	a, err := Detect(w, waveform.LeadII, Options{})
	require.NoError(t, err)

	s := a.Stats()
	assert.InDelta(t, 75, s.HeartRate, 1)
	assert.Len(t, a.Intervals(), len(a.R)-1)
	assert.Equal(t, 0, s.AbnormalBeats)
}
