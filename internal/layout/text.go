package layout

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Line grouping and block merging, as multiples of the font size.
const (
	// lineJoinGap is the largest horizontal gap between spans of one line.
	lineJoinGap = 3.0

	// paragraphGap is the largest vertical gap between lines of one block.
	paragraphGap = 0.6

	// alignSlack is the left-edge tolerance for lines of one block.
	alignSlack = 2.0

	// indentSlack allows an indented first line.
	indentSlack = 4.0

	maxHeadingChars = 200
	maxHeadingWords = 15
)

var (
	captionPattern  = regexp.MustCompile(`(?i)^(figure|fig\.?|table|exhibit|chart|graph|source|note)s?\b`)
	footnotePattern = regexp.MustCompile(`^(?:[*†‡§¶]+|\(?\d{1,2}[.)\]]?|\[\d{1,2}\]|[a-z]\))\s*\S`)
)

// line is a run of spans sharing a baseline band.
type line struct {
	spans []domain.TextSpan
	bbox  domain.BBox
	size  float64
	bold  bool
	text  string
	kind  domain.BlockType
}

func buildLines(spans []domain.TextSpan) []line {
	sorted := make([]domain.TextSpan, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		_, yi := sorted[i].BBox.Center()
		_, yj := sorted[j].BBox.Center()
		if yi != yj {
			return yi < yj
		}
		return sorted[i].BBox.X0 < sorted[j].BBox.X0
	})

	var lines []line
	for _, s := range sorted {
		placed := false
		for i := len(lines) - 1; i >= 0; i-- {
			if joinsLine(lines[i], s) {
				lines[i].spans = append(lines[i].spans, s)
				lines[i].bbox = lines[i].bbox.Union(s.BBox)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, line{spans: []domain.TextSpan{s}, bbox: s.BBox})
		}
	}

	for i := range lines {
		finishLine(&lines[i])
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].bbox.Y0 != lines[j].bbox.Y0 {
			return lines[i].bbox.Y0 < lines[j].bbox.Y0
		}
		return lines[i].bbox.X0 < lines[j].bbox.X0
	})
	return lines
}

func joinsLine(l line, s domain.TextSpan) bool {
	overlap := math.Min(l.bbox.Y1, s.BBox.Y1) - math.Max(l.bbox.Y0, s.BBox.Y0)
	if overlap < 0.5*math.Min(l.bbox.Height(), s.BBox.Height()) {
		return false
	}
	size := math.Max(s.FontSize, 1)
	return s.BBox.X0 >= l.bbox.X0-1 && s.BBox.X0-l.bbox.X1 <= lineJoinGap*size
}

func finishLine(l *line) {
	sort.SliceStable(l.spans, func(i, j int) bool { return l.spans[i].BBox.X0 < l.spans[j].BBox.X0 })
	l.text = spanText(l.spans)
	l.bold = true
	dominant := 0
	for _, s := range l.spans {
		if !s.Bold {
			l.bold = false
		}
		if n := utf8.RuneCountInString(s.Text); n > dominant {
			dominant = n
			l.size = s.FontSize
		}
	}
}

// classifyLine applies the positional, pattern and font rules in priority order,
// so a line never receives two types.
func (a *Analyzer) classifyLine(l line, median float64, page domain.PageRecord, regions []domain.LayoutBlock) domain.BlockType {
	if page.Height > 0 {
		_, cy := l.bbox.Center()
		rel := cy / page.Height
		if rel < a.headerBand {
			return domain.BlockHeader
		}
		if rel > a.footerBand {
			return domain.BlockFooter
		}
	}

	if captionPattern.MatchString(l.text) && a.nearRegion(l.bbox, regions) {
		return domain.BlockCaption
	}

	if l.size > 0 && l.size < median*a.footnoteRatio && footnotePattern.MatchString(l.text) {
		return domain.BlockFootnote
	}

	if l.size >= median*a.headingRatio && utf8.RuneCountInString(l.text) <= maxHeadingChars {
		return domain.BlockHeading
	}
	if l.bold && len(strings.Fields(l.text)) < maxHeadingWords {
		return domain.BlockHeading
	}

	return domain.BlockParagraph
}

func (a *Analyzer) nearRegion(b domain.BBox, regions []domain.LayoutBlock) bool {
	for _, r := range regions {
		if b.EdgeDistance(r.BBox) <= a.captionMaxDistance {
			return true
		}
	}
	return false
}

// mergeLines folds vertically adjacent, left-aligned lines of the same type
// into blocks. Untyped continuation lines extend a preceding caption or footnote.
func mergeLines(lines []line, page int) []domain.LayoutBlock {
	var blocks []domain.LayoutBlock
	lastLine := map[int]line{}

	for _, l := range lines {
		target := -1
		for i := len(blocks) - 1; i >= 0; i-- {
			if continues(blocks[i], lastLine[i], l) {
				target = i
				break
			}
		}
		if target < 0 {
			blocks = append(blocks, domain.LayoutBlock{
				Type:     l.kind,
				BBox:     l.bbox,
				Text:     l.text,
				Page:     page,
				FontSize: l.size,
				Spans:    append([]domain.TextSpan(nil), l.spans...),
			})
			lastLine[len(blocks)-1] = l
			continue
		}
		b := &blocks[target]
		b.BBox = b.BBox.Union(l.bbox)
		b.Text = joinLines(b.Text, l.text)
		b.Spans = append(b.Spans, l.spans...)
		b.FontSize = math.Max(b.FontSize, l.size)
		lastLine[target] = l
	}
	return blocks
}

func continues(b domain.LayoutBlock, prev, l line) bool {
	switch {
	case b.Type == l.kind:
	case l.kind == domain.BlockParagraph && (b.Type == domain.BlockCaption || b.Type == domain.BlockFootnote):
	default:
		return false
	}

	size := math.Max(math.Max(prev.size, l.size), 1)
	gap := l.bbox.Y0 - prev.bbox.Y1
	if gap < -0.5*size || gap > paragraphGap*size {
		return false
	}
	if b.Type == domain.BlockHeading && math.Abs(prev.size-l.size) > 1 {
		return false
	}

	dx := l.bbox.X0 - prev.bbox.X0
	if math.Abs(dx) <= alignSlack*size {
		return true
	}
	// indented first line
	if len(b.Spans) == len(prev.spans) && dx < 0 && -dx <= indentSlack*size {
		return true
	}
	// centred headings
	if b.Type == domain.BlockHeading {
		px, _ := prev.bbox.Center()
		lx, _ := l.bbox.Center()
		return math.Abs(px-lx) <= size
	}
	return false
}

// joinLines appends a line, rejoining words hyphenated across the break.
func joinLines(text, next string) string {
	if strings.HasSuffix(text, "-") && next != "" {
		r, _ := utf8.DecodeRuneInString(next)
		if r >= 'a' && r <= 'z' {
			return strings.TrimSuffix(text, "-") + next
		}
	}
	return text + " " + next
}

func spanText(spans []domain.TextSpan) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		parts = append(parts, s.Text)
	}
	return domain.NormalizeText(strings.Join(parts, " "))
}

// resolveOverlaps enforces non-overlapping blocks. A region absorbs any text
// block it overlaps; overlapping text blocks merge, the type going to the
// larger font, then the higher block.
func resolveOverlaps(blocks []domain.LayoutBlock) []domain.LayoutBlock {
	for changed := true; changed; {
		changed = false
	outer:
		for i := 0; i < len(blocks); i++ {
			for j := i + 1; j < len(blocks); j++ {
				if !blocks[i].BBox.Overlaps(blocks[j].BBox) {
					continue
				}
				keep, drop := precedence(blocks, i, j)
				k := &blocks[keep]
				d := blocks[drop]
				k.BBox = k.BBox.Union(d.BBox)
				k.Spans = append(k.Spans, d.Spans...)
				k.Ruled = k.Ruled || d.Ruled
				if !k.Type.IsRegion() {
					k.Text = spanText(sortedSpans(k.Spans))
					k.FontSize = math.Max(k.FontSize, d.FontSize)
				}
				blocks = append(blocks[:drop], blocks[drop+1:]...)
				changed = true
				break outer
			}
		}
	}
	return blocks
}

func precedence(blocks []domain.LayoutBlock, i, j int) (keep, drop int) {
	a, b := blocks[i], blocks[j]
	switch {
	case a.Type.IsRegion() && !b.Type.IsRegion():
		return i, j
	case b.Type.IsRegion() && !a.Type.IsRegion():
		return j, i
	case a.Type.IsRegion():
		if b.BBox.Area() > a.BBox.Area() {
			return j, i
		}
		return i, j
	case a.FontSize != b.FontSize:
		if b.FontSize > a.FontSize {
			return j, i
		}
		return i, j
	case b.BBox.Y0 < a.BBox.Y0:
		return j, i
	default:
		return i, j
	}
}

func sortedSpans(spans []domain.TextSpan) []domain.TextSpan {
	out := make([]domain.TextSpan, len(spans))
	copy(out, spans)
	sort.SliceStable(out, func(i, j int) bool {
		if math.Abs(out[i].BBox.Y0-out[j].BBox.Y0) > 1 {
			return out[i].BBox.Y0 < out[j].BBox.Y0
		}
		return out[i].BBox.X0 < out[j].BBox.X0
	})
	return out
}
