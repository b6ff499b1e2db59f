// Package vision holds what the vision model adapters share: prompt
// rendering and answer clean-up. The adapters live in subpackages.
package vision

import (
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Fallback prompts used when no PromptStore is configured.
const (
	fallbackDescribePrompt = `Describe this chart in two to four sentences: what is measured and the main trend.
Text read from the chart:
%s`

	fallbackDigitisePrompt = `Extract the data behind this chart as a table, one row per line, cells separated by " | ". Output only the table.`
)

// Prompts renders chart prompts from an optional store.
type Prompts struct {
	Store driven.PromptStore
}

// Describe returns the describe prompt with axisText substituted for the
// first %s. A template without a placeholder gets the text appended.
func (p Prompts) Describe(axisText string) string {
	tmpl := p.load(driven.PromptChartDescribe, fallbackDescribePrompt)
	axisText = strings.TrimSpace(axisText)
	if axisText == "" {
		axisText = "(none)"
	}
	if strings.Contains(tmpl, "%s") {
		return strings.Replace(tmpl, "%s", axisText, 1)
	}
	return tmpl + "\n\n" + axisText
}

// Digitise returns the digitise prompt.
func (p Prompts) Digitise() string {
	return p.load(driven.PromptChartDigitise, fallbackDigitisePrompt)
}

func (p Prompts) load(name, fallback string) string {
	if p.Store == nil {
		return fallback
	}
	prompt, err := p.Store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

// CleanAnswer trims whitespace and strips a surrounding markdown code fence,
// which vision models like to add around tables.
func CleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
