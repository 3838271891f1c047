package chart

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ecgscope/internal/playback"
	"github.com/banshee-data/ecgscope/internal/view"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

func sineRecording(t *testing.T) *waveform.Waveform {
	t.Helper()
	leads := make([][]float64, 2)
	for l := range leads {
		leads[l] = make([]float64, 2000)
		for i := range leads[l] {
			leads[l][i] = math.Sin(float64(i)/20 + float64(l))
		}
	}
	w, err := waveform.New(200, leads)
	require.NoError(t, err)
	return w
}

func render(t *testing.T, res view.Result) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, res, Options{AssetsHost: "/assets/"}))
	return buf.String()
}

func TestRender_Continuous(t *testing.T) {
	w := sineRecording(t)
	st := playback.State{WindowSeconds: 2}
	res := view.Render(w, st, view.ContinuousConfig{}, view.AllLeads(2))

	html := render(t, res)
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "/assets/echarts.min.js")
	assert.Contains(t, html, `"name":"I"`)
	assert.Contains(t, html, `"name":"II"`)
	assert.Contains(t, html, `"type":"line"`)
}

func TestRender_Polar(t *testing.T) {
	w := sineRecording(t)
	res := view.Render(w, playback.State{}, view.PolarConfig{Lead: 0, Mode: view.PolarCumulative}, nil)

	html := render(t, res)
	assert.Contains(t, html, `"type":"scatter"`)
	assert.Contains(t, html, "visualMap")
}

func TestRender_Recurrence(t *testing.T) {
	w := sineRecording(t)
	for _, mode := range []view.RecurrenceMode{view.RecurrenceScatter, view.RecurrenceDensity} {
		res := view.Render(w, playback.State{}, view.RecurrenceConfig{LeadX: 0, LeadY: 1, Mode: mode, Colormap: "plasma", Bins: 10}, nil)
		require.False(t, res.Empty())

		html := render(t, res)
		assert.Contains(t, html, "#0d0887", "plasma palette for %s", mode)
	}
}

func TestRender_Empty(t *testing.T) {
	html := render(t, view.Result{Mode: view.ModeChunk})
	assert.Contains(t, html, "ECG chunk")
}

func TestPalette(t *testing.T) {
	assert.Equal(t, palettes["viridis"], Palette(""))
	assert.Equal(t, palettes["viridis"], Palette("unknown"))
	assert.Equal(t, palettes["hot"], Palette(" HOT "))
}

func TestPolarXY(t *testing.T) {
	got := polarXY([]view.PolarPoint{{R: 1, Theta: 0}, {R: 2, Theta: 90}, {R: 1, Theta: 180}})
	want := [][2]float64{{1, 0}, {0, 2}, {-1, 0}}
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i][0], got[i][0], 1e-9)
		assert.InDelta(t, want[i][1], got[i][1], 1e-9)
	}
}

func TestScatterDataRange(t *testing.T) {
	data, lo, hi := scatterData(view.Trace{Points: []view.Point{{X: 1, Y: 2, Value: 0.5}, {X: 0, Y: 0, Value: 3}}})
	assert.Len(t, data, 2)
	assert.Equal(t, 0.5, lo)
	assert.Equal(t, 3.0, hi)

	_, lo, hi = scatterData(view.Trace{})
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)
}

func TestDensityData(t *testing.T) {
	data, maxCount := densityData(view.Trace{Cells: []view.Cell{{X: 0, Y: 0, Count: 2}, {X: 1, Y: 1, Count: 7}}})
	assert.Len(t, data, 2)
	assert.Equal(t, 7, maxCount)
}
