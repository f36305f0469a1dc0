package implementation

import (
	"context"
	"encoding/json"

	"pdf-chat-bot/internal/entity"
	"pdf-chat-bot/internal/model"
	"pdf-chat-bot/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChunkEmbeddingRepositoryImpl is the pgvector-backed VectorStore. Cosine
// distance comes from the `<=>` operator; similarity = 1 - distance.
type ChunkEmbeddingRepositoryImpl struct {
	db *gorm.DB
}

func NewChunkEmbeddingRepository(db *gorm.DB) contract.VectorStore {
	return &ChunkEmbeddingRepositoryImpl{db: db}
}

func (r *ChunkEmbeddingRepositoryImpl) Upsert(ctx context.Context, records []contract.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	models := make([]*model.ChunkEmbedding, len(records))
	for i, rec := range records {
		meta, _ := json.Marshal(map[string]interface{}{
			"document_name": rec.Chunk.DocumentName,
		})
		models[i] = &model.ChunkEmbedding{
			Id:             uuid.New(),
			DocumentId:     rec.Chunk.DocumentId,
			Generation:     rec.Generation,
			Ordinal:        rec.Chunk.Ordinal,
			StartOffset:    rec.Chunk.Start,
			EndOffset:      rec.Chunk.End,
			Text:           rec.Chunk.Text,
			EmbeddingValue: pgvector.NewVector(rec.Embedding),
			Metadata:       datatypes.JSON(meta),
		}
	}
	return r.db.WithContext(ctx).CreateInBatches(models, 256).Error
}

func (r *ChunkEmbeddingRepositoryImpl) DeleteDocument(ctx context.Context, documentId string, keepGeneration int) error {
	query := r.db.WithContext(ctx).Where("document_id = ?", documentId)
	if keepGeneration >= 0 {
		query = query.Where("generation <> ?", keepGeneration)
	}
	return query.Delete(&model.ChunkEmbedding{}).Error
}

func (r *ChunkEmbeddingRepositoryImpl) Search(ctx context.Context, vector []float32, filter contract.SearchFilter, topK int) ([]contract.ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}
	if len(filter.Generations) == 0 {
		return nil, nil
	}

	// Restrict to (document, generation) pairs the caller considers current.
	pairs := make([][]interface{}, 0, len(filter.Generations))
	for docId, gen := range filter.Generations {
		pairs = append(pairs, []interface{}{docId, gen})
	}

	type result struct {
		model.ChunkEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)

	err := r.db.WithContext(ctx).
		Table("chunk_embeddings").
		Select("chunk_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("(document_id, generation) IN ?", pairs).
		Order("similarity DESC").
		Limit(topK).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]contract.ScoredChunk, len(results))
	for i, res := range results {
		scored[i] = contract.ScoredChunk{
			Chunk: entity.Chunk{
				DocumentId:   res.DocumentId,
				DocumentName: documentNameFromMetadata(res.Metadata),
				Ordinal:      res.Ordinal,
				Start:        res.StartOffset,
				End:          res.EndOffset,
				Text:         res.Text,
			},
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func documentNameFromMetadata(meta datatypes.JSON) string {
	var m map[string]interface{}
	if err := json.Unmarshal(meta, &m); err != nil {
		return ""
	}
	if name, ok := m["document_name"].(string); ok {
		return name
	}
	return ""
}
