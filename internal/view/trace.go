// Package view turns a waveform, a playback state and a visualization config
// into named traces for an external presentation layer. Every transform is a
// pure function: it never mutates its inputs and degrades to an empty trace
// set instead of failing.
package view

import "github.com/banshee-data/ecgscope/internal/playback"

// TraceKind tells the presentation layer how to draw a trace.
type TraceKind string

const (
	KindLine    TraceKind = "line"
	KindPolar   TraceKind = "polar"
	KindScatter TraceKind = "scatter"
	KindDensity TraceKind = "density"
)

// Point is a cartesian sample. Value carries the colour dimension (time for
// recurrence scatter) and is always encoded, since t=0 is a real colour.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
}

// PolarPoint is a sample mapped to radius and angle in degrees.
type PolarPoint struct {
	R     float64 `json:"r"`
	Theta float64 `json:"theta"`
}

// Cell is one non-empty bin of a 2-D histogram.
type Cell struct {
	XBin  int     `json:"x_bin"`
	YBin  int     `json:"y_bin"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Count int     `json:"count"`
}

// Trace is one named series.
type Trace struct {
	Name   string       `json:"name"`
	Kind   TraceKind    `json:"kind"`
	Lead   int          `json:"lead"`
	Points []Point      `json:"points,omitempty"`
	Polar  []PolarPoint `json:"polar,omitempty"`
	Cells  []Cell       `json:"cells,omitempty"`
	XEdges []float64    `json:"x_edges,omitempty"`
	YEdges []float64    `json:"y_edges,omitempty"`
}

// Len returns the number of plotted elements.
func (t Trace) Len() int {
	return len(t.Points) + len(t.Polar) + len(t.Cells)
}

// Layout carries display metadata.
type Layout struct {
	Title       string      `json:"title"`
	XAxis       string      `json:"x_axis,omitempty"`
	YAxis       string      `json:"y_axis,omitempty"`
	XRange      *[2]float64 `json:"x_range,omitempty"`
	YRange      *[2]float64 `json:"y_range,omitempty"`
	RadialRange float64     `json:"radial_range,omitempty"`
	Colormap    string      `json:"colormap,omitempty"`
}

// Result is the output of one render.
type Result struct {
	Mode   Mode           `json:"mode"`
	Traces []Trace        `json:"traces"`
	Layout Layout         `json:"layout"`
	Window playback.Range `json:"window"`
	Stride int            `json:"stride,omitempty"`
}

// Empty reports whether the render produced nothing to plot.
func (r Result) Empty() bool {
	return len(r.Traces) == 0
}

func empty(mode Mode) Result {
	return Result{Mode: mode, Traces: []Trace{}}
}
