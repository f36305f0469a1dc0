package entity

// Chunk is a contiguous span of a document's extracted text, the unit of
// embedding and retrieval. Start/End are rune offsets into the extracted
// text; consecutive chunks overlap by the configured overlap window.
type Chunk struct {
	DocumentId   string
	DocumentName string
	Ordinal      int
	Start        int
	End          int
	Text         string
}
