package chart

import (
	"math"
	"strings"

	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/ecgscope/internal/view"
)

var palettes = map[string][]string{
	"viridis": {"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"},
	"plasma":  {"#0d0887", "#41049d", "#6a00a8", "#8f0da4", "#b12a90", "#cc4778", "#e16462", "#f2844b", "#fca636", "#f0f921"},
	"inferno": {"#000004", "#1b0c41", "#4a0c6b", "#781c6d", "#a52c60", "#cf4446", "#ed6925", "#fb9b06", "#f7d13d", "#fcffa4"},
	"hot":     {"#0b0000", "#4c0000", "#8e0000", "#cf0000", "#ff1200", "#ff5300", "#ff9500", "#ffd600", "#ffff3a", "#ffffff"},
	"blues":   {"#f7fbff", "#deebf7", "#c6dbef", "#9ecae1", "#6baed6", "#4292c6", "#2171b5", "#08519c", "#08306b"},
}

// Palette returns the colour ramp for a colormap name; unknown names fall
// back to viridis.
func Palette(name string) []string {
	if p, ok := palettes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return palettes["viridis"]
}

// lineData converts a trace to [x, y] pairs.
func lineData(t view.Trace) []opts.LineData {
	data := make([]opts.LineData, 0, len(t.Points))
	for _, p := range t.Points {
		data = append(data, opts.LineData{Value: []interface{}{p.X, p.Y}})
	}
	return data
}

// polarXY projects polar samples onto the plane so they can be drawn as a
// scatter with symmetric axes.
func polarXY(pts []view.PolarPoint) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		rad := p.Theta * math.Pi / 180
		out[i] = [2]float64{p.R * math.Cos(rad), p.R * math.Sin(rad)}
	}
	return out
}

func polarData(t view.Trace) []opts.ScatterData {
	xy := polarXY(t.Polar)
	data := make([]opts.ScatterData, 0, len(xy))
	for i, p := range xy {
		data = append(data, opts.ScatterData{Value: []interface{}{p[0], p[1], t.Polar[i].Theta}})
	}
	return data
}

// scatterData keeps the value dimension for the visual map.
func scatterData(t view.Trace) ([]opts.ScatterData, float64, float64) {
	data := make([]opts.ScatterData, 0, len(t.Points))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range t.Points {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Value}})
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	if len(data) == 0 {
		return data, 0, 0
	}
	return data, lo, hi
}

// densityData places each non-empty cell at its bin centre with the count as
// the value dimension.
func densityData(t view.Trace) ([]opts.ScatterData, int) {
	data := make([]opts.ScatterData, 0, len(t.Cells))
	maxCount := 0
	for _, c := range t.Cells {
		data = append(data, opts.ScatterData{Value: []interface{}{c.X, c.Y, c.Count}})
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}
	return data, maxCount
}

// axisBounds returns a layout range if present.
func axisBounds(r *[2]float64) (interface{}, interface{}) {
	if r == nil {
		return nil, nil
	}
	return r[0], r[1]
}
