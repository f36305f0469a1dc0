package contract

import (
	"context"

	"pdf-chat-bot/internal/entity"
)

// ChunkRecord is one chunk plus its embedding, as handed to the store by the
// indexer. Records are keyed by (DocumentId, Generation, Ordinal).
type ChunkRecord struct {
	Chunk      entity.Chunk
	Generation int
	Embedding  []float32
}

// ScoredChunk is a retrieval candidate with its similarity score.
type ScoredChunk struct {
	Chunk      entity.Chunk
	Similarity float64
}

// SearchFilter restricts a similarity query to the caller's view of the
// index: only chunks of the listed documents at exactly the listed
// generation are visible. This is the read-path guard that makes a
// re-index atomic per document: a query sees the fully-old or fully-new
// chunk set, never a mix.
type SearchFilter struct {
	// Generations maps document id -> current generation.
	Generations map[string]int
}

// VectorStore persists chunk embeddings and supports filtered similarity
// search. Scores are cosine similarities, comparable across calls.
type VectorStore interface {
	Upsert(ctx context.Context, records []ChunkRecord) error

	// DeleteDocument removes chunks of the document. Generations equal to
	// keepGeneration survive; pass a negative value to remove everything.
	DeleteDocument(ctx context.Context, documentId string, keepGeneration int) error

	Search(ctx context.Context, vector []float32, filter SearchFilter, topK int) ([]ScoredChunk, error)
}
