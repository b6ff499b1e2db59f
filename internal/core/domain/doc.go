// Package domain defines the core business entities for sercha-ingest.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceDocument: A PDF identified by the hash of its bytes
//   - PageRecord: One parsed page with native spans, rules and image regions
//   - LayoutBlock: A classified, non-overlapping page region
//   - ExtractedTable / ExtractedFigure: Recovered exhibits
//   - Chunk: The typed, citation-carrying unit stored in the vector index
//   - ProcessedFile: A registry entry keyed by document hash
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
