package layout

import (
	"math"
	"regexp"
	"sort"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Rule-grid tuning, in points.
const (
	// ruleJoin is the gap within which touching rules belong to one grid.
	ruleJoin = 3.0

	// ruleStackGap is the largest vertical gap between stacked horizontal rules of one table.
	ruleStackGap = 120.0

	minTableWidth  = 36.0
	minTableHeight = 12.0

	// pageFrameRatio rejects grids covering nearly the whole page (page borders).
	pageFrameRatio = 0.9
)

var numericCell = regexp.MustCompile(`^[-+(]?[$€£¥]?\d[\d,.]*%?\)?$`)

// detectRegions finds FIGURE regions from image placements and TABLE regions
// from rule grids (native pages) or aligned text rows (OCR pages).
func (a *Analyzer) detectRegions(page domain.PageRecord) []domain.LayoutBlock {
	var regions []domain.LayoutBlock
	pageArea := page.Bounds().Area()

	if page.HasNativeText {
		for _, box := range ruledTables(page.Rules, pageArea) {
			regions = append(regions, domain.LayoutBlock{Type: domain.BlockTable, BBox: box, Page: page.Number, Ruled: true})
		}
	} else {
		for _, box := range alignedTables(page.Spans, a.minTableRows, a.minTableCols) {
			regions = append(regions, domain.LayoutBlock{Type: domain.BlockTable, BBox: box, Page: page.Number})
		}
	}

	for _, img := range page.Images {
		img = img.Intersect(page.Bounds())
		if pageArea > 0 {
			ratio := img.Area() / pageArea
			if ratio < a.minImageRatio || ratio >= a.maxImageRatio {
				continue
			}
		}
		if img.IsEmpty() {
			continue
		}
		regions = append(regions, domain.LayoutBlock{Type: domain.BlockFigure, BBox: img, Page: page.Number})
	}

	return mergeRegions(regions)
}

// mergeRegions unions overlapping regions. The larger region's type wins.
func mergeRegions(regions []domain.LayoutBlock) []domain.LayoutBlock {
	for changed := true; changed; {
		changed = false
	outer:
		for i := 0; i < len(regions); i++ {
			for j := i + 1; j < len(regions); j++ {
				if !regions[i].BBox.Overlaps(regions[j].BBox) {
					continue
				}
				keep, drop := i, j
				if regions[j].BBox.Area() > regions[i].BBox.Area() {
					keep, drop = j, i
				}
				regions[keep].BBox = regions[keep].BBox.Union(regions[drop].BBox)
				regions[keep].Ruled = regions[keep].Ruled || regions[drop].Ruled
				regions = append(regions[:drop], regions[drop+1:]...)
				changed = true
				break outer
			}
		}
	}
	return regions
}

// ruledTables groups rules into grids and returns the bounding box of each
// grid that looks like a table: at least two horizontal and two vertical
// rules, or three stacked horizontal rules (open tables with only row lines).
func ruledTables(rules []domain.Rule, pageArea float64) []domain.BBox {
	n := len(rules)
	if n < 3 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rulesJoin(rules[i], rules[j]) {
				parent[find(i)] = find(j)
			}
		}
	}

	type grid struct {
		box          domain.BBox
		horiz, verts int
	}
	grids := map[int]*grid{}
	var roots []int
	for i, r := range rules {
		root := find(i)
		g, ok := grids[root]
		if !ok {
			g = &grid{box: r.BBox}
			grids[root] = g
			roots = append(roots, root)
		}
		g.box = unionRaw(g.box, r.BBox)
		if r.Horizontal() {
			g.horiz++
		} else {
			g.verts++
		}
	}

	var out []domain.BBox
	for _, root := range roots {
		g := grids[root]
		if !(g.horiz >= 2 && g.verts >= 2) && g.horiz < 3 {
			continue
		}
		if g.box.Width() < minTableWidth || g.box.Height() < minTableHeight {
			continue
		}
		if pageArea > 0 && g.box.Area() >= pageFrameRatio*pageArea {
			continue
		}
		out = append(out, g.box)
	}
	return out
}

func rulesJoin(a, b domain.Rule) bool {
	if a.BBox.Expand(ruleJoin).Overlaps(b.BBox.Expand(ruleJoin)) {
		return true
	}
	if !a.Horizontal() || !b.Horizontal() {
		return false
	}
	overlap := math.Min(a.BBox.X1, b.BBox.X1) - math.Max(a.BBox.X0, b.BBox.X0)
	narrower := math.Min(a.BBox.Width(), b.BBox.Width())
	return narrower > 0 && overlap >= 0.5*narrower && a.BBox.VerticalGap(b.BBox) <= ruleStackGap
}

// unionRaw is BBox.Union without the empty-box identity, since zero-height rules are valid inputs.
func unionRaw(a, b domain.BBox) domain.BBox {
	return domain.BBox{
		X0: math.Min(a.X0, b.X0),
		Y0: math.Min(a.Y0, b.Y0),
		X1: math.Max(a.X1, b.X1),
		Y1: math.Max(a.Y1, b.Y1),
	}
}

// alignedTables finds runs of consecutive text rows that each hold at least
// minCols separate cells, where at least half of the rows carry a number.
func alignedTables(spans []domain.TextSpan, minRows, minCols int) []domain.BBox {
	rows := rowsOf(spans)

	var out []domain.BBox
	var run [][]domain.TextSpan
	flush := func() {
		if len(run) >= minRows {
			numeric := 0
			box := domain.BBox{}
			for _, row := range run {
				if hasNumericCell(row) {
					numeric++
				}
				for _, s := range row {
					box = box.Union(s.BBox)
				}
			}
			if numeric*2 >= len(run) {
				out = append(out, box)
			}
		}
		run = nil
	}

	for _, row := range rows {
		if len(row) < minCols {
			flush()
			continue
		}
		if len(run) > 0 {
			prev := rowBox(run[len(run)-1])
			cur := rowBox(row)
			if prev.VerticalGap(cur) > 2*math.Max(prev.Height(), cur.Height()) {
				flush()
			}
		}
		run = append(run, row)
	}
	flush()
	return out
}

// rowsOf groups spans sharing a vertical band, without regard to horizontal gaps.
func rowsOf(spans []domain.TextSpan) [][]domain.TextSpan {
	sorted := make([]domain.TextSpan, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		_, yi := sorted[i].BBox.Center()
		_, yj := sorted[j].BBox.Center()
		return yi < yj
	})

	var rows [][]domain.TextSpan
	for _, s := range sorted {
		if n := len(rows); n > 0 {
			box := rowBox(rows[n-1])
			_, cy := s.BBox.Center()
			if cy >= box.Y0 && cy <= box.Y1 {
				rows[n-1] = append(rows[n-1], s)
				continue
			}
		}
		rows = append(rows, []domain.TextSpan{s})
	}
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].BBox.X0 < row[j].BBox.X0 })
	}
	return rows
}

func rowBox(row []domain.TextSpan) domain.BBox {
	box := domain.BBox{}
	for _, s := range row {
		box = box.Union(s.BBox)
	}
	return box
}

func hasNumericCell(row []domain.TextSpan) bool {
	for _, s := range row {
		if numericCell.MatchString(s.Text) {
			return true
		}
	}
	return false
}
