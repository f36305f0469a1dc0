package entity

import "time"

type DocumentStatus string

const (
	DocumentStatusPending DocumentStatus = "pending"
	DocumentStatusIndexed DocumentStatus = "indexed"
	DocumentStatusFailed  DocumentStatus = "failed"
)

// Document is one source PDF tracked by the index. Id is derived from the
// absolute file path and stays stable across re-indexing; Generation bumps
// on every successful re-index so readers can distinguish old chunk sets
// from new ones.
type Document struct {
	Id          string
	Name        string
	Path        string
	Fingerprint string
	Status      DocumentStatus
	ChunkCount  int
	Generation  int
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// Selectable reports whether the document may appear in the selection
// keyboard and in retrieval. Failed documents are excluded from both.
func (d *Document) Selectable() bool {
	return d.Status == DocumentStatusIndexed && d.ChunkCount > 0
}
