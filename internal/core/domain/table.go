package domain

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// TableMethod records how a table's structure was recovered.
type TableMethod string

// Table extraction methods.
const (
	// TableMethodVector reconstructs cells from drawn rule geometry.
	TableMethodVector TableMethod = "vector"

	// TableMethodOCR clusters OCR boxes into rows and columns.
	TableMethodOCR TableMethod = "ocr"
)

// Matrix is a rectangular grid of cell strings; row 0 is the header.
type Matrix [][]string

// NewMatrix trims every cell and pads ragged rows with empty cells.
func NewMatrix(rows [][]string) Matrix {
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	m := make(Matrix, 0, len(rows))
	for _, r := range rows {
		row := make([]string, cols)
		for i, cell := range r {
			row[i] = NormalizeText(cell)
		}
		m = append(m, row)
	}
	return m
}

// Rows returns the number of rows including the header.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the number of columns.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Markdown renders the matrix as a GitHub-flavoured pipe table.
func (m Matrix) Markdown() string {
	if m.Rows() == 0 {
		return ""
	}
	var b strings.Builder
	writeRow := func(row []string) {
		b.WriteString("|")
		for _, cell := range row {
			b.WriteString(" ")
			b.WriteString(escapeMarkdownCell(cell))
			b.WriteString(" |")
		}
	}
	writeRow(m[0])
	b.WriteString("\n|")
	for range m.Cols() {
		b.WriteString(" --- |")
	}
	for _, row := range m[1:] {
		b.WriteString("\n")
		writeRow(row)
	}
	return b.String()
}

// CSV renders the matrix as RFC 4180 CSV.
func (m Matrix) CSV() string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// WriteAll only fails on writer errors, which bytes.Buffer never returns.
	_ = w.WriteAll(m)
	return buf.String()
}

// Summary returns a one-sentence description of the table's shape and header.
func (m Matrix) Summary() string {
	if m.Rows() == 0 {
		return ""
	}
	var header []string
	for _, h := range m[0] {
		if h != "" {
			header = append(header, h)
		}
	}
	s := fmt.Sprintf("Table with %d data rows and %d columns", m.Rows()-1, m.Cols())
	if len(header) > 0 {
		s += "; columns: " + strings.Join(header, ", ")
	}
	return s + "."
}

func escapeMarkdownCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ExtractedTable is a table recovered from one page region.
// Markdown and CSV are always rendered from the same Matrix.
type ExtractedTable struct {
	Matrix   Matrix
	Markdown string
	CSV      string
	Summary  string
	BBox     BBox
	Page     int
	Method   TableMethod
}

// NewExtractedTable derives every rendering from the matrix.
func NewExtractedTable(m Matrix, bbox BBox, page int, method TableMethod) *ExtractedTable {
	return &ExtractedTable{
		Matrix:   m,
		Markdown: m.Markdown(),
		CSV:      m.CSV(),
		Summary:  m.Summary(),
		BBox:     bbox,
		Page:     page,
		Method:   method,
	}
}
