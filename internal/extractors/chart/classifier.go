package chart

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure KeywordClassifier implements the interface.
var _ driven.ChartClassifier = (*KeywordClassifier)(nil)

type keywordRule struct {
	pattern *regexp.Regexp
	chart   domain.ChartType
}

// keywordRules are checked in order; specific families precede the generic
// ones they contain ("stacked bar" before "bar", "multi-line" before "line").
var keywordRules = []keywordRule{
	{regexp.MustCompile(`(?i)\bpie\b`), domain.ChartPie},
	{regexp.MustCompile(`(?i)\bdonut\b`), domain.ChartDonut},
	{regexp.MustCompile(`(?i)\bscatter\b`), domain.ChartScatter},
	{regexp.MustCompile(`(?i)\bbubble\b`), domain.ChartBubble},
	{regexp.MustCompile(`(?i)\b(candle\w*|ohlc)\b`), domain.ChartCandlestick},
	{regexp.MustCompile(`(?i)\bwaterfall\b`), domain.ChartWaterfall},
	{regexp.MustCompile(`(?i)\bheat\s*map\b`), domain.ChartHeatmap},
	{regexp.MustCompile(`(?i)\bbox\b.*\bwhiskers?\b|\bbox\s*plots?\b`), domain.ChartBoxWhisker},
	{regexp.MustCompile(`(?i)\bhistogram\b`), domain.ChartHistogram},
	{regexp.MustCompile(`(?i)\bnetwork\b`), domain.ChartNetwork},
	{regexp.MustCompile(`(?i)\bparallel\s*coord`), domain.ChartParallel},
	{regexp.MustCompile(`(?i)\bstacked\s*(bar|column)\b`), domain.ChartStackedBar},
	{regexp.MustCompile(`(?i)\bbar\b|\bcolumn\b`), domain.ChartBar},
	{regexp.MustCompile(`(?i)\barea\b`), domain.ChartArea},
	{regexp.MustCompile(`(?i)\bline\b.*\bline\b|\bmulti.?line\b`), domain.ChartMultiLine},
	{regexp.MustCompile(`(?i)\bline\b`), domain.ChartLine},
}

// KeywordClassifier labels charts by matching keywords in caption and OCR text.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the default rule-based classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify returns the first matching chart type, or domain.ChartUnknown.
func (c *KeywordClassifier) Classify(text string) domain.ChartType {
	if strings.TrimSpace(text) == "" {
		return domain.ChartUnknown
	}
	for _, r := range keywordRules {
		if r.pattern.MatchString(text) {
			return r.chart
		}
	}
	return domain.ChartUnknown
}
