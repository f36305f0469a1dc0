package memory

import (
	"context"
	"testing"

	"pdf-chat-bot/internal/entity"
	"pdf-chat-bot/internal/repository/contract"
)

func record(docId string, generation, ordinal int, text string, score float32) contract.ChunkRecord {
	return contract.ChunkRecord{
		Chunk: entity.Chunk{
			DocumentId:   docId,
			DocumentName: docId + ".pdf",
			Ordinal:      ordinal,
			Text:         text,
		},
		Generation: generation,
		Embedding:  []float32{score, 0, 0},
	}
}

func TestUpsertReplacesSameKey(t *testing.T) {
	s := NewVectorStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, []contract.ChunkRecord{record("manual", 1, 0, "old text", 0.9)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []contract.ChunkRecord{record("manual", 1, 0, "new text", 0.9)}); err != nil {
		t.Fatal(err)
	}

	if got := s.ChunkCount("manual"); got != 1 {
		t.Fatalf("stored %d records for the same (document, generation, ordinal) key, want 1", got)
	}

	scored, err := s.Search(ctx, []float32{1, 0, 0}, contract.SearchFilter{Generations: map[string]int{"manual": 1}}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 {
		t.Fatalf("search returned %d chunks, want 1", len(scored))
	}
	if scored[0].Chunk.Text != "new text" {
		t.Errorf("search returned %q, want the replacing record", scored[0].Chunk.Text)
	}
}

func TestUpsertDistinctKeysCoexist(t *testing.T) {
	s := NewVectorStore()
	ctx := context.Background()

	records := []contract.ChunkRecord{
		record("manual", 1, 0, "a", 0.9),
		record("manual", 1, 1, "b", 0.8), // different ordinal
		record("manual", 2, 0, "c", 0.7), // different generation
		record("guide", 1, 0, "d", 0.6),  // different document
	}
	if err := s.Upsert(ctx, records); err != nil {
		t.Fatal(err)
	}

	if got := s.ChunkCount("manual"); got != 3 {
		t.Errorf("manual has %d records, want 3", got)
	}
	if got := s.ChunkCount("guide"); got != 1 {
		t.Errorf("guide has %d records, want 1", got)
	}
}
