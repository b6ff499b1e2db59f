// Package mcp provides an MCP (Model Context Protocol) server adapter for the ingest index.
// It lets AI assistants query the ingested documents and trigger ingestion.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

// ErrIngestDisabled is returned by the ingest tool when no ingestor is wired.
var ErrIngestDisabled = errors.New("mcp: ingestion is not enabled")

// ErrIngestBusy is returned by the ingest tool while another ingest call is running.
var ErrIngestBusy = errors.New("mcp: an ingest run is already in progress")
