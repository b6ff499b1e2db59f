package table

import (
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/ocr"
)

// Rule geometry tolerances in points.
const (
	ruleSlack = 2.0
	cutMerge  = 2.0
)

// interval is a closed range on one axis.
type interval struct{ lo, hi float64 }

func (iv interval) mid() float64 { return (iv.lo + iv.hi) / 2 }

// vectorMatrix builds the grid from the rules inside the region. Vertical
// rules define columns; a full grid (vertical and horizontal rules) also
// defines rows. Open tables with only row lines fall back to span clustering.
func vectorMatrix(rules []domain.Rule, block domain.LayoutBlock) domain.Matrix {
	region := block.BBox.Expand(ruleSlack)
	var xs, ys []float64
	for _, r := range rules {
		if r.BBox.X0 < region.X0 || r.BBox.X1 > region.X1 || r.BBox.Y0 < region.Y0 || r.BBox.Y1 > region.Y1 {
			continue
		}
		cx, cy := r.BBox.Center()
		if r.Horizontal() {
			ys = append(ys, cy)
		} else {
			xs = append(xs, cx)
		}
	}
	xs = dedupe(xs)
	ys = dedupe(ys)

	spans := block.Spans
	var cols, rows []interval
	if len(xs) >= 2 {
		cols = bands(xs, block.BBox.X0, block.BBox.X1)
	} else {
		ranges := make([]interval, 0, len(spans))
		for _, s := range spans {
			ranges = append(ranges, interval{s.BBox.X0, s.BBox.X1})
		}
		cols = merge(ranges, 0)
	}
	if len(xs) >= 2 && len(ys) >= 2 {
		rows = bands(ys, block.BBox.Y0, block.BBox.Y1)
	} else {
		rows = textRows(spans)
	}

	cells := newCells(len(rows), len(cols))
	for _, s := range sortedSpans(spans) {
		cx, cy := s.BBox.Center()
		cells.add(nearest(rows, cy), nearest(cols, cx), s.Text)
	}
	return cells.matrix()
}

// ocrMatrix clusters word boxes into rows by vertical centre and into
// columns by horizontal projection.
func ocrMatrix(boxes []domain.OCRBox, rowTolerance float64) domain.Matrix {
	if len(boxes) == 0 {
		return nil
	}
	heights := make([]float64, 0, len(boxes))
	ranges := make([]interval, 0, len(boxes))
	for _, b := range boxes {
		heights = append(heights, b.BBox.Height())
		ranges = append(ranges, interval{b.BBox.X0, b.BBox.X1})
	}
	sort.Float64s(heights)
	cols := merge(ranges, heights[len(heights)/2])

	rows := ocr.Rows(boxes, rowTolerance)
	cells := newCells(len(rows), len(cols))
	for r, row := range rows {
		for _, b := range row {
			cx, _ := b.BBox.Center()
			cells.add(r, nearest(cols, cx), b.Text)
		}
	}
	return cells.matrix()
}

// textRows clusters spans into lines by vertical centre.
func textRows(spans []domain.TextSpan) []interval {
	sorted := sortedSpans(spans)
	var rows []interval
	for _, s := range sorted {
		_, cy := s.BBox.Center()
		if n := len(rows); n > 0 && cy >= rows[n-1].lo && cy <= rows[n-1].hi {
			rows[n-1].lo = math.Min(rows[n-1].lo, s.BBox.Y0)
			rows[n-1].hi = math.Max(rows[n-1].hi, s.BBox.Y1)
			continue
		}
		rows = append(rows, interval{s.BBox.Y0, s.BBox.Y1})
	}
	return rows
}

func sortedSpans(spans []domain.TextSpan) []domain.TextSpan {
	out := make([]domain.TextSpan, len(spans))
	copy(out, spans)
	sort.SliceStable(out, func(i, j int) bool {
		_, yi := out[i].BBox.Center()
		_, yj := out[j].BBox.Center()
		if math.Abs(yi-yj) > 1 {
			return yi < yj
		}
		return out[i].BBox.X0 < out[j].BBox.X0
	})
	return out
}

// merge unions ranges whose gap is at most gap.
func merge(ranges []interval, gap float64) []interval {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].lo < ranges[j].lo })
	var out []interval
	for _, r := range ranges {
		if n := len(out); n > 0 && r.lo-out[n-1].hi <= gap {
			out[n-1].hi = math.Max(out[n-1].hi, r.hi)
			continue
		}
		out = append(out, r)
	}
	return out
}

// bands turns sorted cut positions into the intervals between them,
// closing the outer edges of the region when no rule is drawn there.
func bands(cuts []float64, lo, hi float64) []interval {
	if cuts[0] > lo+cutMerge {
		cuts = append([]float64{lo}, cuts...)
	}
	if cuts[len(cuts)-1] < hi-cutMerge {
		cuts = append(cuts, hi)
	}
	out := make([]interval, 0, len(cuts)-1)
	for i := 1; i < len(cuts); i++ {
		if cuts[i]-cuts[i-1] >= 1 {
			out = append(out, interval{cuts[i-1], cuts[i]})
		}
	}
	return out
}

func dedupe(vals []float64) []float64 {
	sort.Float64s(vals)
	var out []float64
	for _, v := range vals {
		if n := len(out); n > 0 && v-out[n-1] <= cutMerge {
			continue
		}
		out = append(out, v)
	}
	return out
}

// nearest returns the interval containing v, else the one with the closest midpoint.
func nearest(ivs []interval, v float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, iv := range ivs {
		if v >= iv.lo && v <= iv.hi {
			return i
		}
		if d := math.Abs(iv.mid() - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// cells accumulates text per grid cell.
type cells [][][]string

func newCells(rows, cols int) cells {
	c := make(cells, rows)
	for i := range c {
		c[i] = make([][]string, cols)
	}
	return c
}

func (c cells) add(row, col int, text string) {
	if row < 0 || row >= len(c) || col < 0 || col >= len(c[row]) {
		return
	}
	c[row][col] = append(c[row][col], text)
}

// matrix joins cell text and drops rows and columns that are entirely empty.
func (c cells) matrix() domain.Matrix {
	if len(c) == 0 {
		return nil
	}
	cols := len(c[0])
	used := make([]bool, cols)
	var rows [][]string
	for _, row := range c {
		out := make([]string, cols)
		empty := true
		for j, parts := range row {
			out[j] = strings.Join(parts, " ")
			if strings.TrimSpace(out[j]) != "" {
				used[j] = true
				empty = false
			}
		}
		if !empty {
			rows = append(rows, out)
		}
	}

	for i, row := range rows {
		kept := make([]string, 0, cols)
		for j, cell := range row {
			if used[j] {
				kept = append(kept, cell)
			}
		}
		rows[i] = kept
	}
	return domain.NewMatrix(rows)
}
