package pdf

import (
	"math"
	"sort"
	"strings"

	ltpdf "github.com/ledongthuc/pdf"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Glyph merging thresholds, as multiples of the font size.
const (
	// rowTolerance groups glyphs whose baselines differ by less than this into one row.
	rowTolerance = 0.35

	// wordGap inserts a space between glyphs further apart than this.
	wordGap = 0.25

	// spanGap splits a row into separate spans (e.g. table columns) beyond this gap.
	spanGap = 1.2

	// ascent and descent place the glyph box around the baseline.
	ascent  = 0.8
	descent = 0.2
)

// glyph is a positioned character in top-left page coordinates.
type glyph struct {
	s        string
	font     string
	size     float64
	x, w     float64
	baseline float64
}

func toGlyphs(texts []ltpdf.Text, height float64) []glyph {
	out := make([]glyph, 0, len(texts))
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		size := t.FontSize
		if size <= 0 {
			size = 10
		}
		w := t.W
		if w <= 0 {
			// fonts without a Widths array report zero advance
			w = 0.5 * size * float64(len([]rune(t.S)))
		}
		out = append(out, glyph{s: t.S, font: t.Font, size: size, x: t.X, w: w, baseline: height - t.Y})
	}
	return out
}

// groupRows buckets glyphs into text lines by baseline.
func groupRows(glyphs []glyph) [][]glyph {
	sorted := make([]glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].baseline < sorted[j].baseline })

	var rows [][]glyph
	for _, g := range sorted {
		if n := len(rows); n > 0 {
			last := rows[n-1]
			ref := last[len(last)-1]
			if math.Abs(g.baseline-ref.baseline) <= rowTolerance*math.Max(ref.size, g.size) {
				rows[n-1] = append(last, g)
				continue
			}
		}
		rows = append(rows, []glyph{g})
	}
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].x < row[j].x })
	}
	return rows
}

// mergeSpans joins each row's glyphs into spans of uniform font.
func mergeSpans(rows [][]glyph) []domain.TextSpan {
	var spans []domain.TextSpan
	for _, row := range rows {
		var cur *spanBuilder
		for _, g := range row {
			if cur != nil && cur.accepts(g) {
				cur.add(g)
				continue
			}
			if cur != nil {
				spans = appendSpan(spans, cur)
			}
			cur = newSpanBuilder(g)
		}
		if cur != nil {
			spans = appendSpan(spans, cur)
		}
	}
	return spans
}

type spanBuilder struct {
	text     strings.Builder
	font     string
	size     float64
	x0, x1   float64
	baseline float64
}

func newSpanBuilder(g glyph) *spanBuilder {
	b := &spanBuilder{font: g.font, size: g.size, x0: g.x, x1: g.x + g.w, baseline: g.baseline}
	b.text.WriteString(g.s)
	return b
}

func (b *spanBuilder) accepts(g glyph) bool {
	if g.font != b.font || math.Abs(g.size-b.size) > 0.5 {
		return false
	}
	return g.x-b.x1 <= spanGap*b.size
}

func (b *spanBuilder) add(g glyph) {
	if g.x-b.x1 > wordGap*b.size && g.s != " " && !strings.HasSuffix(b.text.String(), " ") {
		b.text.WriteByte(' ')
	}
	b.text.WriteString(g.s)
	b.x1 = math.Max(b.x1, g.x+g.w)
}

func appendSpan(spans []domain.TextSpan, b *spanBuilder) []domain.TextSpan {
	text := domain.NormalizeText(b.text.String())
	if text == "" {
		return spans
	}
	return append(spans, domain.TextSpan{
		Text:       text,
		BBox:       domain.BBox{X0: b.x0, Y0: b.baseline - ascent*b.size, X1: b.x1, Y1: b.baseline + descent*b.size},
		FontSize:   b.size,
		FontName:   b.font,
		Bold:       isBoldFont(b.font),
		Confidence: 1,
	})
}

var boldMarkers = []string{"bold", "black", "heavy", "semibold", "demi"}

func isBoldFont(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range boldMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// rawText joins spans into reading-order lines.
func rawText(rows [][]domain.TextSpan) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		parts := make([]string, 0, len(row))
		for _, s := range row {
			parts = append(parts, s.Text)
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}

// spanLines groups spans by shared vertical extent for rawText.
func spanLines(spans []domain.TextSpan) [][]domain.TextSpan {
	var lines [][]domain.TextSpan
	for _, s := range spans {
		if n := len(lines); n > 0 {
			ref := lines[n-1][0].BBox
			_, cy := s.BBox.Center()
			if cy >= ref.Y0 && cy <= ref.Y1 {
				lines[n-1] = append(lines[n-1], s)
				continue
			}
		}
		lines = append(lines, []domain.TextSpan{s})
	}
	return lines
}
