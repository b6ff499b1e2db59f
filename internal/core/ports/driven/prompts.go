package driven

// PromptStore provides the prompt templates sent to chart models.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names are an error; known names fall back to a built-in default.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Prompt names.
const (
	// PromptChartDescribe asks a vision model to summarise a chart.
	// The template expects one %s placeholder for the OCR'd axis and legend text.
	PromptChartDescribe = "chart_describe"

	// PromptChartDigitise asks a vision model for the data table behind a chart,
	// linearised as rows of "|"-separated cells. It has no placeholders.
	PromptChartDigitise = "chart_digitise"
)
