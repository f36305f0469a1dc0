package memory

import (
	"context"
	"sort"
	"sync"

	"pdf-chat-bot/internal/entity"
)

// DocumentRepository keeps fingerprint records in memory for tests and
// no-database runs.
type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]entity.Document
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{docs: make(map[string]entity.Document)}
}

func (r *DocumentRepository) Save(ctx context.Context, doc *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.Id] = *doc
	return nil
}

func (r *DocumentRepository) FindById(ctx context.Context, id string) (*entity.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if doc, ok := r.docs[id]; ok {
		copy := doc
		return &copy, nil
	}
	return nil, nil
}

func (r *DocumentRepository) FindAll(ctx context.Context) ([]*entity.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		copy := doc
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}
