package contract

import (
	"context"

	"pdf-chat-bot/internal/entity"
)

// DocumentRepository persists document fingerprint records, which is what
// makes Sync idempotent across runs.
type DocumentRepository interface {
	Save(ctx context.Context, doc *entity.Document) error
	FindById(ctx context.Context, id string) (*entity.Document, error)
	FindAll(ctx context.Context) ([]*entity.Document, error)
	Delete(ctx context.Context, id string) error
}
