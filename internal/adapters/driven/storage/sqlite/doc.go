// Package sqlite provides the SQLite-backed registry and vector index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. One database file holds both stores:
//
//   - ProcessedFileRegistry: which source documents were ingested or failed
//   - VectorIndex: embedded chunks in the ingest_text, ingest_tables and
//     ingest_figures collections, searched by brute-force cosine similarity
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database is stored at <storage root>/index.db.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
