// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - PageParser: Opens a PDF and yields positioned text, rules and image placements per page
//   - PageRenderer: Rasterises pages for OCR and figure cropping
//   - LayoutClassifier: Turns a parsed page into typed layout blocks
//   - EmbeddingService: Generates vector embeddings for chunks
//   - VectorIndex: Stores embedded chunks keyed by content hash
//   - ProcessedFileRegistry: Remembers which document hashes were ingested
//   - FigureStore: Stages cropped figure images
//   - FigureCommitter: Publishes staged figures once a document is indexed
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - OCREngine: Without it, scanned pages and raster tables yield no text.
//   - ChartDescriber, ChartDigitiser: Without them, figures carry no description or series.
//   - ChunkProcessor: Additional chunk filters beyond the quality gate.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or stage package
package driven
