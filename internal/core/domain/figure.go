package domain

// ChartType is the chart family a figure was classified as.
type ChartType string

// Chart types recognised by the keyword classifier.
const (
	ChartPie         ChartType = "pie"
	ChartDonut       ChartType = "donut"
	ChartScatter     ChartType = "scatter"
	ChartBubble      ChartType = "bubble"
	ChartCandlestick ChartType = "candlestick"
	ChartWaterfall   ChartType = "waterfall"
	ChartHeatmap     ChartType = "heatmap"
	ChartBoxWhisker  ChartType = "box_whisker"
	ChartHistogram   ChartType = "histogram"
	ChartNetwork     ChartType = "network"
	ChartParallel    ChartType = "parallel_coordinates"
	ChartStackedBar  ChartType = "stacked_bar"
	ChartBar         ChartType = "bar"
	ChartArea        ChartType = "area"
	ChartMultiLine   ChartType = "multi_line"
	ChartLine        ChartType = "line"
	ChartUnknown     ChartType = "unknown"
)

// String returns the string representation.
func (c ChartType) String() string {
	return string(c)
}

// Series is digitised chart data: a header row and data rows.
type Series struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"data"`
}

// ExtractedFigure is a cropped figure with its caption and chart analysis.
type ExtractedFigure struct {
	// Index is the 1-based figure number within its page.
	Index int

	// Page is the 1-based page number.
	Page int

	BBox BBox

	// ImagePath is the persisted crop relative to the storage root.
	ImagePath string

	// Caption is the linked caption text, empty when none is within reach.
	Caption string

	// OCRText is the axis, legend and title text recovered from the crop.
	OCRText string

	// ChartType is ChartUnknown when classification fails.
	ChartType ChartType

	// Description is nil when the description model is unavailable or failed.
	Description *string

	// Series is nil when digitisation is disabled, not applicable or failed.
	Series *Series

	// PNG is the encoded crop, kept in memory for the chart models.
	PNG []byte `json:"-"`
}

// HasCaption reports whether a caption was linked.
func (f ExtractedFigure) HasCaption() bool {
	return f.Caption != ""
}
