package extract

import (
	"context"
	"errors"
)

// ErrExtractionFailed marks a per-document extraction failure. The indexer
// records the document as failed and moves on; the scan never aborts.
var ErrExtractionFailed = errors.New("text extraction failed")

// Extractor turns a source file into plain text. Implementations may use
// OCR for scanned pages; that stays behind this interface.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}
