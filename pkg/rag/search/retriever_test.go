package search

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"pdf-chat-bot/internal/entity"
	"pdf-chat-bot/internal/repository/contract"
	"pdf-chat-bot/internal/repository/memory"
	"pdf-chat-bot/pkg/store"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

func testConfig() Config {
	return Config{
		TopK:          5,
		Threshold:     0.15,
		DedupWindow:   1,
		ContextBudget: 4000,
		HardCap:       8000,
	}
}

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// seedDoc registers an indexed document and its chunks. The first component
// of each embedding doubles as the similarity score against query [1,0,0].
func seedDoc(t *testing.T, docs *memory.DocumentRepository, vectors *memory.VectorStore, id string, generation int, scores map[int]float32) {
	t.Helper()
	ctx := context.Background()

	if err := docs.Save(ctx, &entity.Document{
		Id:         id,
		Name:       id + ".pdf",
		Status:     entity.DocumentStatusIndexed,
		ChunkCount: len(scores),
		Generation: generation,
	}); err != nil {
		t.Fatal(err)
	}

	var records []contract.ChunkRecord
	for ordinal, score := range scores {
		records = append(records, contract.ChunkRecord{
			Chunk: entity.Chunk{
				DocumentId:   id,
				DocumentName: id + ".pdf",
				Ordinal:      ordinal,
				Text:         "chunk text for ordinal",
			},
			Generation: generation,
			Embedding:  []float32{score, 0, 0},
		})
	}
	if err := vectors.Upsert(ctx, records); err != nil {
		t.Fatal(err)
	}
}

func TestRetrieveThresholdFiltering(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()
	seedDoc(t, docs, vectors, "manual", 1, map[int]float32{
		0: 0.9,
		5: 0.05, // below threshold
	})

	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0, 0}}, vectors, docs, testConfig(), discard())
	res, err := r.Retrieve(context.Background(), "question", store.SelectionAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(res.Chunks))
	}
	if res.Chunks[0].Chunk.Ordinal != 0 {
		t.Errorf("kept ordinal %d, want 0", res.Chunks[0].Chunk.Ordinal)
	}
}

func TestRetrieveNothingRelevantIsNotAnError(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()
	seedDoc(t, docs, vectors, "manual", 1, map[int]float32{0: 0.01, 3: 0.02})

	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0, 0}}, vectors, docs, testConfig(), discard())
	res, err := r.Retrieve(context.Background(), "unrelated", store.SelectionAll)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty() {
		t.Fatalf("expected empty result, got %d chunks", len(res.Chunks))
	}
}

func TestRetrieveDeterministicOrderWithTies(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()
	seedDoc(t, docs, vectors, "manual", 1, map[int]float32{
		8: 0.5,
		2: 0.5, // tie resolved by lower ordinal
		5: 0.7,
	})

	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0, 0}}, vectors, docs, testConfig(), discard())

	var firstOrder []int
	for run := 0; run < 5; run++ {
		res, err := r.Retrieve(context.Background(), "q", store.SelectionAll)
		if err != nil {
			t.Fatal(err)
		}
		var order []int
		for _, c := range res.Chunks {
			order = append(order, c.Chunk.Ordinal)
		}
		if run == 0 {
			firstOrder = order
			continue
		}
		for i := range order {
			if order[i] != firstOrder[i] {
				t.Fatalf("run %d order %v differs from first run %v", run, order, firstOrder)
			}
		}
	}

	want := []int{5, 2, 8}
	for i, ord := range want {
		if firstOrder[i] != ord {
			t.Fatalf("order %v, want %v", firstOrder, want)
		}
	}
}

func TestRetrieveDeduplicatesAdjacentChunks(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()
	seedDoc(t, docs, vectors, "manual", 1, map[int]float32{
		3: 0.9,
		4: 0.8, // within DedupWindow of ordinal 3, mostly the same text
		7: 0.6,
	})

	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0, 0}}, vectors, docs, testConfig(), discard())
	res, err := r.Retrieve(context.Background(), "q", store.SelectionAll)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(res.Chunks))
	}
	if res.Chunks[0].Chunk.Ordinal != 3 || res.Chunks[1].Chunk.Ordinal != 7 {
		t.Errorf("kept ordinals %d,%d, want 3,7", res.Chunks[0].Chunk.Ordinal, res.Chunks[1].Chunk.Ordinal)
	}
}

func TestRetrieveHonorsDocumentFilter(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()
	seedDoc(t, docs, vectors, "manual", 1, map[int]float32{0: 0.9})
	seedDoc(t, docs, vectors, "guide", 1, map[int]float32{0: 0.8})

	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0, 0}}, vectors, docs, testConfig(), discard())

	res, err := r.Retrieve(context.Background(), "q", "guide")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range res.Chunks {
		if c.Chunk.DocumentId != "guide" {
			t.Errorf("chunk from %q leaked through the filter", c.Chunk.DocumentId)
		}
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(res.Chunks))
	}
}

func TestRetrieveSeesOnlyCurrentGeneration(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()
	ctx := context.Background()

	// Old generation still present in the store, new one recorded on the doc.
	if err := vectors.Upsert(ctx, []contract.ChunkRecord{{
		Chunk:      entity.Chunk{DocumentId: "manual", DocumentName: "manual.pdf", Ordinal: 0, Text: "old"},
		Generation: 1,
		Embedding:  []float32{0.99, 0, 0},
	}}); err != nil {
		t.Fatal(err)
	}
	seedDoc(t, docs, vectors, "manual", 2, map[int]float32{0: 0.5})

	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0, 0}}, vectors, docs, testConfig(), discard())
	res, err := r.Retrieve(ctx, "q", store.SelectionAll)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range res.Chunks {
		if c.Chunk.Text == "old" {
			t.Fatal("retrieved a chunk from a superseded generation")
		}
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(res.Chunks))
	}
}

func TestRetrieveContextBudget(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()
	ctx := context.Background()

	if err := docs.Save(ctx, &entity.Document{
		Id: "manual", Name: "manual.pdf",
		Status: entity.DocumentStatusIndexed, ChunkCount: 2, Generation: 1,
	}); err != nil {
		t.Fatal(err)
	}
	big := strings.Repeat("x", 3500)
	if err := vectors.Upsert(ctx, []contract.ChunkRecord{
		{
			Chunk:      entity.Chunk{DocumentId: "manual", DocumentName: "manual.pdf", Ordinal: 0, Text: big},
			Generation: 1, Embedding: []float32{0.9, 0, 0},
		},
		{
			Chunk:      entity.Chunk{DocumentId: "manual", DocumentName: "manual.pdf", Ordinal: 5, Text: big},
			Generation: 1, Embedding: []float32{0.8, 0, 0},
		},
	}); err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0, 0}}, vectors, docs, testConfig(), discard())
	res, err := r.Retrieve(ctx, "q", store.SelectionAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (second chunk exceeds budget)", len(res.Chunks))
	}
}

func TestRetrieveTopChunkAlwaysSurvivesClipped(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()
	ctx := context.Background()

	cfg := testConfig()
	cfg.ContextBudget = 100
	cfg.HardCap = 200

	if err := docs.Save(ctx, &entity.Document{
		Id: "manual", Name: "manual.pdf",
		Status: entity.DocumentStatusIndexed, ChunkCount: 1, Generation: 1,
	}); err != nil {
		t.Fatal(err)
	}
	if err := vectors.Upsert(ctx, []contract.ChunkRecord{{
		Chunk:      entity.Chunk{DocumentId: "manual", DocumentName: "manual.pdf", Ordinal: 0, Text: strings.Repeat("y", 500)},
		Generation: 1, Embedding: []float32{0.9, 0, 0},
	}}); err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0, 0}}, vectors, docs, cfg, discard())
	res, err := r.Retrieve(ctx, "q", store.SelectionAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("top chunk was dropped entirely")
	}
	if got := len(res.Chunks[0].Chunk.Text); got != 200 {
		t.Errorf("top chunk clipped to %d chars, want 200", got)
	}
}

func TestRetrieveEmbedFailure(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()
	seedDoc(t, docs, vectors, "manual", 1, map[int]float32{0: 0.9})

	r := NewRetriever(&stubEmbedder{err: errors.New("ollama down")}, vectors, docs, testConfig(), discard())
	_, err := r.Retrieve(context.Background(), "q", store.SelectionAll)
	if !errors.Is(err, ErrRetrievalUnavailable) {
		t.Fatalf("got %v, want ErrRetrievalUnavailable", err)
	}
}

func TestRetrieveNoIndexedDocuments(t *testing.T) {
	docs := memory.NewDocumentRepository()
	vectors := memory.NewVectorStore()

	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0, 0}}, vectors, docs, testConfig(), discard())
	res, err := r.Retrieve(context.Background(), "q", store.SelectionAll)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty() {
		t.Fatal("expected empty result with no indexed documents")
	}
}
