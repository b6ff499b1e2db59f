package driven

import "context"

// FigureStore persists cropped figure images.
type FigureStore interface {
	// Save stages the PNG for figure k on page n of a document and returns
	// the path it has once committed. Saving the same (docHash, page, k)
	// again replaces the staged file.
	Save(ctx context.Context, docHash string, page, k int, png []byte) (string, error)
}

// FigureCommitter publishes or drops the figures staged for a document.
// A document's figures become visible only after its chunks are indexed.
type FigureCommitter interface {
	// Commit moves every staged figure of the document into place,
	// replacing the figures of an earlier run.
	Commit(ctx context.Context, docHash string) error

	// Discard removes the document's staged figures. Committed figures stay.
	Discard(docHash string) error
}
