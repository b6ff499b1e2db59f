// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage with INGEST_* environment overrides
//   - PromptStore: user-editable chart model prompts with embedded defaults
package file
