// Package quality filters degenerate, noisy and repeated chunks before indexing.
package quality

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure Gate implements the interface.
var _ driven.ChunkProcessor = (*Gate)(nil)

// Default thresholds.
const (
	DefaultMinLength          = 30
	DefaultMaxLength          = 8000
	DefaultMinAlnumRatio      = 0.30
	DefaultMinUniqueWordRatio = 0.5
	DefaultNearDuplicate      = 0.95

	// minRepetitionWords is the word count below which repetition is not judged.
	minRepetitionWords = 5
)

// Rejection records why a chunk was filtered.
type Rejection struct {
	Chunk  domain.Chunk
	Reason string
}

// Gate is the quality filter. It is safe for concurrent use; each Filter
// call compares duplicates only within its own batch.
type Gate struct {
	minLength          int
	maxLength          int
	minAlnumRatio      float64
	minUniqueWordRatio float64
	nearDuplicate      float64
}

// Option configures the gate.
type Option func(*Gate)

// WithLengthBounds sets the inclusive character length bounds.
func WithLengthBounds(minLen, maxLen int) Option {
	return func(g *Gate) {
		if minLen >= 0 && maxLen >= minLen {
			g.minLength = minLen
			g.maxLength = maxLen
		}
	}
}

// WithMinAlnumRatio sets the minimum share of letters and digits.
func WithMinAlnumRatio(r float64) Option {
	return func(g *Gate) {
		if r >= 0 && r <= 1 {
			g.minAlnumRatio = r
		}
	}
}

// WithMinUniqueWordRatio sets the minimum unique/total word ratio.
func WithMinUniqueWordRatio(r float64) Option {
	return func(g *Gate) {
		if r >= 0 && r <= 1 {
			g.minUniqueWordRatio = r
		}
	}
}

// WithNearDuplicate sets the word-set Jaccard similarity treated as a repeat.
// A value above 1 disables fuzzy matching; exact repeats are always dropped.
func WithNearDuplicate(j float64) Option {
	return func(g *Gate) {
		if j > 0 {
			g.nearDuplicate = j
		}
	}
}

// New creates a gate with the given options.
func New(opts ...Option) *Gate {
	g := &Gate{
		minLength:          DefaultMinLength,
		maxLength:          DefaultMaxLength,
		minAlnumRatio:      DefaultMinAlnumRatio,
		minUniqueWordRatio: DefaultMinUniqueWordRatio,
		nearDuplicate:      DefaultNearDuplicate,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the processor name.
func (g *Gate) Name() string {
	return "quality"
}

// Process returns the chunks that pass the gate.
func (g *Gate) Process(_ context.Context, chunks []domain.Chunk) ([]domain.Chunk, error) {
	kept, rejected := g.Filter(chunks)
	if len(rejected) > 0 {
		logger.Debug("quality gate: %d chunks kept, %d rejected", len(kept), len(rejected))
	}
	return kept, nil
}

// Filter splits chunks into kept and rejected, preserving order.
// Repetition is judged against chunks of the same kind already kept,
// so the first occurrence of repeated content survives.
func (g *Gate) Filter(chunks []domain.Chunk) (kept []domain.Chunk, rejected []Rejection) {
	seen := make(map[domain.ChunkKind]*history)
	for _, c := range chunks {
		h := seen[c.Kind]
		if h == nil {
			h = newHistory()
			seen[c.Kind] = h
		}

		reason := g.Check(c)
		if reason == "" {
			reason = h.duplicate(c.Text, g.nearDuplicate)
		}
		if reason != "" {
			logger.Debug("chunk rejected (%s): %s", reason, preview(c.Text))
			rejected = append(rejected, Rejection{Chunk: c, Reason: reason})
			continue
		}

		h.add(c.Text)
		kept = append(kept, c)
	}
	return kept, rejected
}

// Check applies the per-chunk rules and returns the rejection reason, or "".
func (g *Gate) Check(c domain.Chunk) string {
	text := strings.TrimSpace(c.Text)
	n := utf8.RuneCountInString(text)
	if n < g.minLength {
		return fmt.Sprintf("too short (%d chars)", n)
	}
	if n > g.maxLength {
		return fmt.Sprintf("too long (%d chars)", n)
	}

	body := text
	if c.Kind == domain.ChunkTable {
		body = stripTableMarkup(text)
	}
	if r := alnumRatio(body); r < g.minAlnumRatio {
		return fmt.Sprintf("low alphanumeric ratio (%.2f)", r)
	}

	if words := strings.Fields(body); len(words) >= minRepetitionWords {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if r := float64(len(unique)) / float64(len(words)); r < g.minUniqueWordRatio {
			return fmt.Sprintf("repetitive content (%.2f unique)", r)
		}
	}
	return ""
}

func alnumRatio(s string) float64 {
	total, alnum := 0, 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}

var separatorRow = regexp.MustCompile(`^\|(\s*:?-+:?\s*\|)+$`)

// stripTableMarkup drops markdown separator rows and cell pipes.
func stripTableMarkup(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if separatorRow.MatchString(line) {
			continue
		}
		for _, cell := range strings.Split(line, "|") {
			if cell = strings.TrimSpace(cell); cell != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(cell)
			}
		}
	}
	return b.String()
}

// history holds the normalized texts and word sets of kept chunks.
type history struct {
	exact map[string]struct{}
	sets  []map[string]struct{}
}

func newHistory() *history {
	return &history{exact: make(map[string]struct{})}
}

func (h *history) add(text string) {
	h.exact[strings.ToLower(domain.NormalizeText(text))] = struct{}{}
	h.sets = append(h.sets, wordSet(text))
}

func (h *history) duplicate(text string, threshold float64) string {
	if _, ok := h.exact[strings.ToLower(domain.NormalizeText(text))]; ok {
		return "duplicate"
	}
	if threshold > 1 {
		return ""
	}
	words := wordSet(text)
	for _, prev := range h.sets {
		if j := jaccard(words, prev); j >= threshold {
			return fmt.Sprintf("near duplicate (%.2f)", j)
		}
	}
	return ""
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func preview(s string) string {
	s = domain.NormalizeText(s)
	if r := []rune(s); len(r) > 80 {
		return string(r[:80])
	}
	return s
}
