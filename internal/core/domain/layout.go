package domain

// BlockType is the semantic class of a layout block.
type BlockType string

// Layout block types.
const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockCaption   BlockType = "caption"
	BlockFootnote  BlockType = "footnote"
	BlockHeader    BlockType = "header"
	BlockFooter    BlockType = "footer"
	BlockFigure    BlockType = "figure"
	BlockTable     BlockType = "table"
)

// IsTextual reports whether blocks of this type carry prose for text chunks.
func (t BlockType) IsTextual() bool {
	switch t {
	case BlockHeading, BlockParagraph, BlockFootnote:
		return true
	default:
		return false
	}
}

// IsRegion reports whether blocks of this type are visual regions (figures and tables).
func (t BlockType) IsRegion() bool {
	return t == BlockFigure || t == BlockTable
}

// String returns the string representation.
func (t BlockType) String() string {
	return string(t)
}

// LayoutBlock is a classified region of a page.
// Blocks on the same page never overlap and each span belongs to exactly one block.
type LayoutBlock struct {
	Type BlockType
	BBox BBox

	// Text is the block text for textual blocks; regions carry the text of absorbed spans.
	Text string

	// Page is the 1-based page number.
	Page int

	// FontSize is the dominant font size of the block's spans.
	FontSize float64

	// Spans are the source spans that make up the block.
	Spans []TextSpan

	// Ruled marks TABLE regions detected from vector rules.
	Ruled bool
}
