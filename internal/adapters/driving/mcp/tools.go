package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Query       string   `json:"query" jsonschema:"the text to find similar chunks for"`
	K           int      `json:"k,omitempty" jsonschema:"number of hits to return (default 5)"`
	Collections []string `json:"collections,omitempty" jsonschema:"restrict to text, tables or figures"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Hits  []HitOutput `json:"hits"`
	Count int         `json:"count"`
}

// HitOutput represents a single query hit.
type HitOutput struct {
	ID         string  `json:"id"`
	Collection string  `json:"collection"`
	Score      float64 `json:"score"`
	Citation   string  `json:"citation"`
	Text       string  `json:"text"`
	SourceFile string  `json:"source_file"`
	Page       int     `json:"page"`
	Section    string  `json:"section,omitempty"`
	ImagePath  string  `json:"image_path,omitempty"`
}

// StatsInput is the (empty) input schema for the stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Chunks map[string]int `json:"chunks"`
	Files  map[string]int `json:"files"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Path  string `json:"path" jsonschema:"a PDF file or a folder of PDFs"`
	Force bool   `json:"force,omitempty" jsonschema:"re-ingest documents that are already in the registry"`
	File  bool   `json:"file,omitempty" jsonschema:"treat path as a single file"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	RunID    string   `json:"run_id"`
	Ingested int      `json:"ingested"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Stored   int      `json:"stored"`
	Errors   []string `json:"errors,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Find the chunks of ingested PDFs most similar to a piece of text",
	}, s.handleQuery)
	s.tools = append(s.tools, "query")

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "stats",
		Description: "Report chunk counts per collection and document counts per status",
	}, s.handleStats)
	s.tools = append(s.tools, "stats")

	if s.ports.Ingestor != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest",
			Description: "Ingest a PDF or a folder of PDFs into the index",
		}, s.handleIngest)
		s.tools = append(s.tools, "ingest")
	}
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	opts := domain.QueryOptions{K: input.K}
	for _, name := range input.Collections {
		c, err := domain.ParseCollection(name)
		if err != nil {
			return nil, QueryOutput{}, err
		}
		opts.Collections = append(opts.Collections, c)
	}

	hits, err := s.ports.Query.Query(ctx, input.Query, opts)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Hits:  make([]HitOutput, len(hits)),
		Count: len(hits),
	}
	for i, h := range hits {
		output.Hits[i] = HitOutput{
			ID:         h.Record.ID,
			Collection: string(h.Record.Collection),
			Score:      h.Score,
			Citation:   h.Record.Citation,
			Text:       h.Record.Text,
			SourceFile: h.Record.Metadata.SourceFile,
			Page:       h.Record.Metadata.Page,
			Section:    h.Record.Metadata.Section,
			ImagePath:  h.Record.Metadata.ImagePath,
		}
	}

	return nil, output, nil
}

// handleStats handles the stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Query.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}

	output := StatsOutput{
		Chunks: make(map[string]int, len(stats.Chunks)),
		Files:  make(map[string]int, len(stats.Files)),
	}
	for c, n := range stats.Chunks {
		output.Chunks[string(c)] = n
	}
	for status, n := range stats.Files {
		output.Files[string(status)] = n
	}
	return nil, output, nil
}

// handleIngest handles the ingest tool invocation.
// Per-document failures are reported in the output, not as a tool error.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingestor == nil {
		return nil, IngestOutput{}, ErrIngestDisabled
	}
	if input.Path == "" {
		return nil, IngestOutput{}, fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	if !s.ingestMu.TryLock() {
		return nil, IngestOutput{}, ErrIngestBusy
	}
	defer s.ingestMu.Unlock()

	var (
		report *domain.IngestReport
		err    error
	)
	if input.File {
		report, err = s.ports.Ingestor.IngestFile(ctx, input.Path, input.Force)
	} else {
		report, err = s.ports.Ingestor.IngestFolder(ctx, input.Path, input.Force)
	}
	if err != nil {
		return nil, IngestOutput{}, err
	}

	output := IngestOutput{
		RunID:    report.RunID,
		Ingested: report.Stats.FilesProcessed,
		Skipped:  report.Stats.FilesSkipped,
		Failed:   report.Stats.FilesFailed,
		Stored:   report.Stats.Stored,
	}
	for _, d := range report.Failed() {
		output.Errors = append(output.Errors, d.Err.Error())
	}
	return nil, output, nil
}
