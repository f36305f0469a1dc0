package memory

import (
	"context"
	"sort"
	"sync"

	"pdf-chat-bot/internal/repository/contract"
)

// VectorStore is a brute-force cosine-similarity store held in memory. It
// backs tests and no-database runs; vectors are assumed L2-normalized so
// the dot product is the cosine similarity.
type VectorStore struct {
	mu      sync.RWMutex
	records []contract.ChunkRecord
}

func NewVectorStore() *VectorStore {
	return &VectorStore{}
}

// Upsert inserts records, replacing any existing record with the same
// (document, generation, ordinal) key.
func (s *VectorStore) Upsert(ctx context.Context, records []contract.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if i, ok := s.indexOf(rec); ok {
			s.records[i] = rec
			continue
		}
		s.records = append(s.records, rec)
	}
	return nil
}

func (s *VectorStore) indexOf(rec contract.ChunkRecord) (int, bool) {
	for i, old := range s.records {
		if old.Chunk.DocumentId == rec.Chunk.DocumentId &&
			old.Generation == rec.Generation &&
			old.Chunk.Ordinal == rec.Chunk.Ordinal {
			return i, true
		}
	}
	return 0, false
}

func (s *VectorStore) DeleteDocument(ctx context.Context, documentId string, keepGeneration int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.Chunk.DocumentId == documentId && rec.Generation != keepGeneration {
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return nil
}

func (s *VectorStore) Search(ctx context.Context, vector []float32, filter contract.SearchFilter, topK int) ([]contract.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}

	var scored []contract.ScoredChunk
	for _, rec := range s.records {
		gen, ok := filter.Generations[rec.Chunk.DocumentId]
		if !ok || rec.Generation != gen {
			continue
		}
		scored = append(scored, contract.ScoredChunk{
			Chunk:      rec.Chunk,
			Similarity: dot(rec.Embedding, vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// ChunkCount reports stored chunks per document, used by tests to verify
// old generations are really gone.
func (s *VectorStore) ChunkCount(documentId string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.Chunk.DocumentId == documentId {
			n++
		}
	}
	return n
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
