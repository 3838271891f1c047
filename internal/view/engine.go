package view

import (
	"fmt"
	"math"

	"github.com/banshee-data/ecgscope/internal/playback"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

const (
	// MaxOverlayChunks bounds overlay output.
	MaxOverlayChunks = 10
	// MaxDifferenceChunks bounds difference output (chunks 1..N vs chunk 0).
	MaxDifferenceChunks = 5
	// RadialPadding scales the polar radial axis above the largest radius.
	RadialPadding = 1.1
)

// Render dispatches on the config variant. It never returns an error: a
// missing waveform, lead or window yields an empty trace set.
func Render(w *waveform.Waveform, st playback.State, cfg Config, selected LeadSet) Result {
	switch c := cfg.(type) {
	case ContinuousConfig:
		return Continuous(w, st, selected)
	case ChunkConfig:
		return Chunks(w, c)
	case PolarConfig:
		return Polar(w, st, c)
	case RecurrenceConfig:
		return Recurrence(w, c)
	default:
		return empty(ModeContinuous)
	}
}

// Continuous slices every selected lead over the playback window.
func Continuous(w *waveform.Waveform, st playback.State, selected LeadSet) Result {
	res := empty(ModeContinuous)
	rate := w.Rate()
	if rate == 0 {
		return res
	}
	res.Layout = Layout{Title: "Continuous", XAxis: "Time (s)", YAxis: "Amplitude (mV)"}

	for _, lead := range selected.Sorted() {
		samples, err := w.Lead(lead)
		if err != nil || len(samples) == 0 {
			continue
		}
		win := playback.VisibleRange(st, rate, len(samples))
		if win.Len() == 0 {
			continue
		}
		res.Window = win

		pts := make([]Point, 0, win.Len())
		for i := win.Start; i < win.End; i++ {
			pts = append(pts, Point{X: float64(i) / float64(rate), Y: samples[i]})
		}
		res.Traces = append(res.Traces, Trace{
			Name:   waveform.LeadName(lead),
			Kind:   KindLine,
			Lead:   lead,
			Points: pts,
		})
	}

	if !res.Empty() {
		res.Layout.XRange = &[2]float64{
			float64(res.Window.Start) / float64(rate),
			float64(res.Window.Start)/float64(rate) + st.WindowSeconds,
		}
	}
	return res
}

// SplitChunks partitions x into contiguous chunks of size n, discarding the
// trailing remainder. The chunks alias x.
func SplitChunks(x []float64, n int) [][]float64 {
	if n <= 0 {
		return nil
	}
	count := len(x) / n
	out := make([][]float64, count)
	for i := range out {
		out[i] = x[i*n : (i+1)*n]
	}
	return out
}

// Chunks renders the overlay or difference comparison of one lead.
func Chunks(w *waveform.Waveform, c ChunkConfig) Result {
	res := empty(ModeChunk)
	samples, err := w.Lead(c.Lead)
	if err != nil || c.ChunkSize <= 0 {
		return res
	}
	rate := float64(w.Rate())
	chunks := SplitChunks(samples, c.ChunkSize)

	switch c.Display {
	case ChunkDifference:
		if len(chunks) < 2 {
			return res
		}
		base := chunks[0]
		for k := 1; k <= min(MaxDifferenceChunks, len(chunks)-1); k++ {
			pts := make([]Point, len(base))
			for i := range base {
				pts[i] = Point{X: float64(i) / rate, Y: math.Abs(chunks[k][i] - base[i])}
			}
			res.Traces = append(res.Traces, Trace{
				Name:   fmt.Sprintf("|chunk %d - chunk 0|", k),
				Kind:   KindLine,
				Lead:   c.Lead,
				Points: pts,
			})
		}
		res.Layout = Layout{Title: "Chunk difference " + waveform.LeadName(c.Lead), XAxis: "Local time (s)", YAxis: "|Δ| (mV)"}
	default:
		for k := 0; k < min(MaxOverlayChunks, len(chunks)); k++ {
			pts := make([]Point, len(chunks[k]))
			for i, v := range chunks[k] {
				pts[i] = Point{X: float64(i) / rate, Y: v}
			}
			res.Traces = append(res.Traces, Trace{
				Name:   fmt.Sprintf("chunk %d", k),
				Kind:   KindLine,
				Lead:   c.Lead,
				Points: pts,
			})
		}
		res.Layout = Layout{Title: "Chunk overlay " + waveform.LeadName(c.Lead), XAxis: "Local time (s)", YAxis: "Amplitude (mV)"}
	}
	return res
}

// PolarAngle maps a time in seconds onto [0, 360) degrees, one turn per second.
func PolarAngle(t float64) float64 {
	a := math.Mod(t*360, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

// Polar maps one lead to r = |amplitude|, θ = time mod 1s in degrees, either
// over the rolling window or over the whole decimated lead.
func Polar(w *waveform.Waveform, st playback.State, c PolarConfig) Result {
	res := empty(ModePolar)
	samples, err := w.Lead(c.Lead)
	if err != nil || len(samples) == 0 {
		return res
	}
	rate := w.Rate()

	var idx []int
	if c.Mode == PolarCumulative {
		idx = DecimateIndices(len(samples))
		res.Stride = Stride(len(samples))
		res.Window = playback.Range{Start: 0, End: len(samples)}
	} else {
		win := playback.VisibleRange(st, rate, len(samples))
		if c.WindowSize > 0 {
			win.End = min(win.Start+c.WindowSize, len(samples))
		}
		res.Window = win
		for i := win.Start; i < win.End; i++ {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return res
	}

	maxR := 0.0
	pts := make([]PolarPoint, len(idx))
	for k, i := range idx {
		r := math.Abs(samples[i])
		if r > maxR {
			maxR = r
		}
		pts[k] = PolarPoint{R: r, Theta: PolarAngle(float64(i) / float64(rate))}
	}

	radial := maxR * RadialPadding
	if radial == 0 {
		radial = 1
	}
	res.Traces = []Trace{{Name: waveform.LeadName(c.Lead), Kind: KindPolar, Lead: c.Lead, Polar: pts}}
	res.Layout = Layout{Title: fmt.Sprintf("Polar %s (%s)", waveform.LeadName(c.Lead), c.Mode), RadialRange: radial}
	return res
}

// Recurrence pairs two leads on a shared decimated index set and emits
// either the scatter or its 2-D density.
func Recurrence(w *waveform.Waveform, c RecurrenceConfig) Result {
	res := empty(ModeRecurrence)
	xs, errX := w.Lead(c.LeadX)
	ys, errY := w.Lead(c.LeadY)
	if errX != nil || errY != nil {
		return res
	}
	idx := PairedIndices(len(xs), len(ys))
	if len(idx) == 0 {
		return res
	}
	rate := float64(w.Rate())
	res.Stride = Stride(min(len(xs), len(ys)))
	res.Window = playback.Range{Start: 0, End: min(len(xs), len(ys))}

	pts := make([]Point, len(idx))
	for k, i := range idx {
		pts[k] = Point{X: xs[i], Y: ys[i], Value: float64(i) / rate}
	}

	nameX, nameY := waveform.LeadName(c.LeadX), waveform.LeadName(c.LeadY)
	res.Layout = Layout{
		Title:    fmt.Sprintf("Recurrence %s vs %s", nameX, nameY),
		XAxis:    nameX + " (mV)",
		YAxis:    nameY + " (mV)",
		Colormap: c.Colormap,
	}

	if c.Mode == RecurrenceDensity {
		bins := c.Bins
		if bins <= 0 {
			bins = DefaultDensityBins
		}
		res.Traces = []Trace{Density(pts, bins, fmt.Sprintf("%s/%s density", nameX, nameY), c.LeadX)}
		return res
	}

	res.Traces = []Trace{{Name: fmt.Sprintf("%s/%s", nameX, nameY), Kind: KindScatter, Lead: c.LeadX, Points: pts}}
	return res
}
