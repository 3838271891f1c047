package view

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Density bins points into a bins x bins histogram spanning their extent.
// Only non-empty cells are emitted; edges have bins+1 entries per axis.
func Density(pts []Point, bins int, name string, lead int) Trace {
	tr := Trace{Name: name, Kind: KindDensity, Lead: lead, Cells: []Cell{}}
	if len(pts) == 0 || bins <= 0 {
		return tr
	}

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	xEdges := edges(floats.Min(xs), floats.Max(xs), bins)
	yEdges := edges(floats.Min(ys), floats.Max(ys), bins)

	rows := make([][]float64, bins)
	for i, y := range ys {
		row := floats.Within(yEdges, y)
		if row < 0 {
			continue
		}
		rows[row] = append(rows[row], xs[i])
	}

	counts := make([]float64, bins)
	for row, rx := range rows {
		if len(rx) == 0 {
			continue
		}
		sort.Float64s(rx)
		for i := range counts {
			counts[i] = 0
		}
		stat.Histogram(counts, xEdges, rx, nil)
		for col, n := range counts {
			if n == 0 {
				continue
			}
			tr.Cells = append(tr.Cells, Cell{
				XBin:  col,
				YBin:  row,
				X:     (xEdges[col] + xEdges[col+1]) / 2,
				Y:     (yEdges[row] + yEdges[row+1]) / 2,
				Count: int(n),
			})
		}
	}

	tr.XEdges, tr.YEdges = xEdges, yEdges
	return tr
}

// edges returns bins+1 evenly spaced dividers over [lo, hi]. The last
// divider is nudged up so the maximum value falls inside the final bin.
func edges(lo, hi float64, bins int) []float64 {
	if hi <= lo {
		hi = lo + 1
	}
	e := floats.Span(make([]float64, bins+1), lo, hi)
	e[bins] = math.Nextafter(hi, math.Inf(1))
	return e
}
