// Package chart renders view results as standalone go-echarts HTML pages for
// debugging. It is a presentation adapter only; the JSON frame is the
// primary output.
package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/ecgscope/internal/view"
)

// DefaultAssetsHost serves the echarts javascript.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Options controls page chrome.
type Options struct {
	AssetsHost string
	Theme      string
	Subtitle   string
	Width      string
	Height     string
}

func (o Options) init(title string) opts.Initialization {
	host := o.AssetsHost
	if host == "" {
		host = DefaultAssetsHost
	}
	w, h := o.Width, o.Height
	if w == "" {
		w = "1200px"
	}
	if h == "" {
		h = "720px"
	}
	return opts.Initialization{PageTitle: title, Theme: o.Theme, Width: w, Height: h, AssetsHost: host}
}

// Render writes res as an HTML page.
func Render(out io.Writer, res view.Result, o Options) error {
	title := res.Layout.Title
	if title == "" {
		title = fmt.Sprintf("ECG %s", res.Mode)
	}
	if o.Subtitle == "" {
		o.Subtitle = fmt.Sprintf("mode=%s traces=%d window=[%d,%d)", res.Mode, len(res.Traces), res.Window.Start, res.Window.End)
		if res.Stride > 1 {
			o.Subtitle += fmt.Sprintf(" stride=%d", res.Stride)
		}
	}

	kind := view.KindLine
	if len(res.Traces) > 0 {
		kind = res.Traces[0].Kind
	}
	switch kind {
	case view.KindPolar:
		return renderPolar(out, title, res, o)
	case view.KindScatter:
		return renderScatter(out, title, res, o)
	case view.KindDensity:
		return renderDensity(out, title, res, o)
	default:
		return renderLines(out, title, res, o)
	}
}

func renderLines(out io.Writer, title string, res view.Result, o Options) error {
	xMin, xMax := axisBounds(res.Layout.XRange)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(o.init(title)),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: res.Layout.XAxis, Min: xMin, Max: xMax, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: res.Layout.YAxis, NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	for _, t := range res.Traces {
		line.AddSeries(t.Name, lineData(t), charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line.Render(out)
}

func renderPolar(out io.Writer, title string, res view.Result, o Options) error {
	pad := res.Layout.RadialRange
	if pad <= 0 {
		pad = 1
	}
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(o.square(title)),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "r·cos θ (mV)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "r·sin θ (mV)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        360,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: Palette(res.Layout.Colormap)},
		}),
	)
	for _, t := range res.Traces {
		scatter.AddSeries(t.Name, polarData(t), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	}
	return scatter.Render(out)
}

func renderScatter(out io.Writer, title string, res view.Result, o Options) error {
	scatter := charts.NewScatter()
	var lo, hi float64
	for i, t := range res.Traces {
		data, tlo, thi := scatterData(t)
		if i == 0 || tlo < lo {
			lo = tlo
		}
		if i == 0 || thi > hi {
			hi = thi
		}
		scatter.AddSeries(t.Name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	}
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(o.square(title)),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: res.Layout.XAxis, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: res.Layout.YAxis, NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: Palette(res.Layout.Colormap)},
		}),
	)
	return scatter.Render(out)
}

func renderDensity(out io.Writer, title string, res view.Result, o Options) error {
	scatter := charts.NewScatter()
	maxCount := 0
	for _, t := range res.Traces {
		data, m := densityData(t)
		if m > maxCount {
			maxCount = m
		}
		scatter.AddSeries(t.Name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}
	if maxCount == 0 {
		maxCount = 1
	}
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(o.square(title)),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: res.Layout.XAxis, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: res.Layout.YAxis, NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCount),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: Palette(res.Layout.Colormap)},
		}),
	)
	return scatter.Render(out)
}

func (o Options) square(title string) opts.Initialization {
	if o.Width == "" {
		o.Width = "900px"
	}
	if o.Height == "" {
		o.Height = "900px"
	}
	return o.init(title)
}
