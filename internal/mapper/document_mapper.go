package mapper

import (
	"pdf-chat-bot/internal/entity"
	"pdf-chat-bot/internal/model"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToModel(e *entity.Document) *model.Document {
	return &model.Document{
		Id:          e.Id,
		Name:        e.Name,
		Path:        e.Path,
		Fingerprint: e.Fingerprint,
		Status:      string(e.Status),
		ChunkCount:  e.ChunkCount,
		Generation:  e.Generation,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (m *DocumentMapper) ToEntity(mo *model.Document) *entity.Document {
	return &entity.Document{
		Id:          mo.Id,
		Name:        mo.Name,
		Path:        mo.Path,
		Fingerprint: mo.Fingerprint,
		Status:      entity.DocumentStatus(mo.Status),
		ChunkCount:  mo.ChunkCount,
		Generation:  mo.Generation,
		CreatedAt:   mo.CreatedAt,
		UpdatedAt:   mo.UpdatedAt,
	}
}
