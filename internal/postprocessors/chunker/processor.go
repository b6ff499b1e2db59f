// Package chunker converts classified blocks, tables and figures into typed chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per text chunk.
const DefaultChunkSize = 450

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 50

// DefaultLookback is how far back a window end may move to find a break.
const DefaultLookback = 60

// DefaultMinLength matches the quality gate minimum; shorter figure texts get a placeholder.
const DefaultMinLength = 30

// DefaultMaxLength bounds page summary text.
const DefaultMaxLength = 8000

// Chunker builds chunks for one document.
type Chunker struct {
	chunkSize   int
	overlap     int
	lookback    int
	pageSummary bool
	minLength   int
	maxLength   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the text window in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between text windows in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithPageSummary enables or disables page summary chunks.
func WithPageSummary(enabled bool) Option {
	return func(c *Chunker) {
		c.pageSummary = enabled
	}
}

// WithLengthBounds sets the quality gate bounds the chunker plans for.
func WithLengthBounds(minLen, maxLen int) Option {
	return func(c *Chunker) {
		if minLen >= 0 {
			c.minLength = minLen
		}
		if maxLen > 0 {
			c.maxLength = maxLen
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize:   DefaultChunkSize,
		overlap:     DefaultChunkOverlap,
		lookback:    DefaultLookback,
		pageSummary: true,
		minLength:   DefaultMinLength,
		maxLength:   DefaultMaxLength,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	if c.lookback >= c.chunkSize-c.overlap {
		c.lookback = (c.chunkSize - c.overlap) / 2
	}

	return c
}

// PageSummaryEnabled reports whether page summaries are produced.
func (c *Chunker) PageSummaryEnabled() bool {
	return c.pageSummary
}

// segment is a piece of section text and the page it came from.
type segment struct {
	start int // rune offset in the section text
	page  int
}

type section struct {
	heading  string
	text     strings.Builder
	runes    int
	segments []segment
}

func (s *section) add(text string, page int) {
	text = domain.NormalizeText(text)
	if text == "" {
		return
	}
	if s.runes > 0 {
		s.text.WriteByte(' ')
		s.runes++
	}
	s.segments = append(s.segments, segment{start: s.runes, page: page})
	s.text.WriteString(text)
	s.runes += utf8.RuneCountInString(text)
}

func (s *section) pageAt(offset int) int {
	page := 0
	for _, seg := range s.segments {
		if seg.start > offset {
			break
		}
		page = seg.page
	}
	return page
}

// TextChunks concatenates headings, paragraphs and footnotes per section,
// in document order, and splits each section into overlapping windows.
// A heading opens a new section; each window's page is where it starts.
func (c *Chunker) TextChunks(doc domain.SourceDocument, blocks []domain.LayoutBlock) []domain.Chunk {
	var sections []*section
	cur := &section{}
	for _, b := range blocks {
		if !b.Type.IsTextual() {
			continue
		}
		if b.Type == domain.BlockHeading {
			if cur.runes > 0 {
				sections = append(sections, cur)
			}
			cur = &section{heading: domain.NormalizeText(b.Text)}
		}
		cur.add(b.Text, b.Page)
	}
	if cur.runes > 0 {
		sections = append(sections, cur)
	}

	var chunks []domain.Chunk
	for _, s := range sections {
		for _, w := range splitWindows([]rune(s.text.String()), c.chunkSize, c.overlap, c.lookback) {
			chunks = append(chunks, domain.NewChunk(domain.ChunkText, w.text, domain.ChunkMetadata{
				DocHash:    doc.Hash,
				SourceFile: doc.FileName(),
				Page:       s.pageAt(w.start),
				Section:    s.heading,
			}))
		}
	}
	return chunks
}

// TableChunk renders the k-th table of its page.
func (c *Chunker) TableChunk(doc domain.SourceDocument, t *domain.ExtractedTable, k int, section string) domain.Chunk {
	text := t.Markdown
	if t.Summary != "" {
		text += "\nSummary: " + t.Summary
	}
	return domain.NewChunk(domain.ChunkTable, text, domain.ChunkMetadata{
		DocHash:    doc.Hash,
		SourceFile: doc.FileName(),
		Page:       t.Page,
		Section:    section,
		ExhibitID:  domain.TableExhibitID(k, t.Page),
		CSV:        t.CSV,
		Method:     string(t.Method),
	})
}

// FigureChunk renders a figure from its caption, description and OCR text.
// Figures with too little text get a placeholder naming the figure so they
// still reach the index.
func (c *Chunker) FigureChunk(doc domain.SourceDocument, f domain.ExtractedFigure, section string) domain.Chunk {
	var lines []string
	if f.Caption != "" {
		lines = append(lines, "Caption: "+f.Caption)
	}
	if f.Description != nil && *f.Description != "" {
		lines = append(lines, *f.Description)
	}
	if f.OCRText != "" {
		lines = append(lines, "OCR overlay: "+f.OCRText)
	}
	text := strings.Join(lines, "\n")
	if utf8.RuneCountInString(text) < c.minLength {
		text = strings.TrimSpace(fmt.Sprintf("Figure %d from %s page %d. %s", f.Index, doc.FileName(), f.Page, text))
	}

	return domain.NewChunk(domain.ChunkFigure, text, domain.ChunkMetadata{
		DocHash:    doc.Hash,
		SourceFile: doc.FileName(),
		Page:       f.Page,
		Section:    section,
		ExhibitID:  domain.FigureExhibitID(f.Index, f.Page),
		ImagePath:  f.ImagePath,
		ChartType:  f.ChartType,
		Series:     f.Series,
	})
}

// PageSummary joins the page's block summaries: block text for prose, the
// summary sentence for tables and captions for figures. It returns false
// when summaries are disabled or the page has too little text.
func (c *Chunker) PageSummary(doc domain.SourceDocument, page int, blocks []domain.LayoutBlock, tables []*domain.ExtractedTable, figures []domain.ExtractedFigure) (domain.Chunk, bool) {
	if !c.pageSummary {
		return domain.Chunk{}, false
	}

	var parts []string
	for _, b := range blocks {
		if b.Type.IsTextual() || b.Type == domain.BlockCaption {
			parts = append(parts, b.Text)
		}
	}
	for _, t := range tables {
		parts = append(parts, t.Summary)
	}
	for _, f := range figures {
		if f.Description != nil {
			parts = append(parts, *f.Description)
		}
	}

	body := domain.NormalizeText(strings.Join(parts, " "))
	if utf8.RuneCountInString(body) < c.minLength {
		return domain.Chunk{}, false
	}
	prefix := fmt.Sprintf("[Page %d overview] ", page)
	body = truncate(body, c.maxLength-utf8.RuneCountInString(prefix))

	return domain.NewChunk(domain.ChunkPageSummary, prefix+body, domain.ChunkMetadata{
		DocHash:    doc.Hash,
		SourceFile: doc.FileName(),
		Page:       page,
	}), true
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// Split breaks text into windows of at most size characters overlapping by
// overlap characters. Window ends prefer a sentence end, then whitespace,
// within a small lookback.
func Split(text string, size, overlap int) []string {
	c := New(WithChunkSize(size), WithOverlap(overlap))
	windows := splitWindows([]rune(domain.NormalizeText(text)), c.chunkSize, c.overlap, c.lookback)
	out := make([]string, 0, len(windows))
	for _, w := range windows {
		out = append(out, w.text)
	}
	return out
}

type window struct {
	start int
	text  string
}

func splitWindows(runes []rune, size, overlap, lookback int) []window {
	n := len(runes)
	var out []window
	start := 0
	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else if b := breakPoint(runes, start, end, lookback); b > start {
			end = b
		}

		if text := strings.TrimSpace(string(runes[start:end])); text != "" {
			out = append(out, window{start: start, text: text})
		}
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = wordStart(runes, next, end)
	}
	return out
}

// breakPoint returns the best window end in (end-lookback, end], or -1.
func breakPoint(runes []rune, start, end, lookback int) int {
	lo := end - lookback
	if lo <= start {
		lo = start + 1
	}
	space := -1
	for i := end; i > lo; i-- {
		prev := runes[i-1]
		if !unicode.IsSpace(runes[i]) {
			continue
		}
		if prev == '.' || prev == '!' || prev == '?' {
			return i
		}
		if space < 0 {
			space = i
		}
	}
	return space
}

// wordStart moves pos forward to the start of the next word, unless that
// would pass limit.
func wordStart(runes []rune, pos, limit int) int {
	if pos == 0 || unicode.IsSpace(runes[pos-1]) {
		return pos
	}
	for i := pos; i < limit; i++ {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return pos
}
