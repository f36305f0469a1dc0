package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-chat-bot/internal/config"
	"pdf-chat-bot/internal/dto"
	"pdf-chat-bot/internal/entity"
	"pdf-chat-bot/internal/repository/memory"
	"pdf-chat-bot/pkg/extract"
)

// fakeExtractor reads the "PDF" as plain text, so fixtures can be written
// with os.WriteFile. Files listed in failFor simulate extraction failures;
// delay makes extraction slow enough for overlap scenarios.
type fakeExtractor struct {
	failFor map[string]bool
	delay   time.Duration
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failFor[filepath.Base(path)] {
		return "", extract.ErrExtractionFailed
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return []float32{1, 0, 0}, nil
}

func (e *countingEmbedder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func testIndexConfig() config.IndexConfig {
	return config.IndexConfig{
		ChunkSize:       200,
		OverlapFraction: 0.2,
		MinChunkChars:   50,
		MinChunkWords:   5,
		MaxConcurrency:  2,
	}
}

func fixtureText(topic string) string {
	return strings.Repeat("This document describes the "+topic+" in plentiful detail. ", 20)
}

type indexerFixture struct {
	indexer   IIndexerService
	documents *memory.DocumentRepository
	vectors   *memory.VectorStore
	embedder  *countingEmbedder
	extractor *fakeExtractor
	dir       string
}

func newIndexerFixture(t *testing.T) *indexerFixture {
	t.Helper()
	f := &indexerFixture{
		documents: memory.NewDocumentRepository(),
		vectors:   memory.NewVectorStore(),
		embedder:  &countingEmbedder{},
		extractor: &fakeExtractor{failFor: make(map[string]bool)},
		dir:       t.TempDir(),
	}
	f.indexer = NewIndexerService(f.documents, f.vectors, f.extractor, f.embedder, testIndexConfig(), nopLogger{})
	return f
}

func (f *indexerFixture) writePDF(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644))
}

func TestSyncIndexesNewDocuments(t *testing.T) {
	f := newIndexerFixture(t)
	f.writePDF(t, "manual.pdf", fixtureText("warranty terms"))
	f.writePDF(t, "guide.pdf", fixtureText("setup procedure"))

	report, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	docs, err := f.documents.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Equal(t, entity.DocumentStatusIndexed, doc.Status)
		assert.Equal(t, 1, doc.Generation)
		assert.True(t, doc.Selectable())
		assert.Equal(t, doc.ChunkCount, f.vectors.ChunkCount(doc.Id))
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newIndexerFixture(t)
	f.writePDF(t, "manual.pdf", fixtureText("warranty terms"))

	_, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err)
	embedsAfterFirst := f.embedder.count()

	report, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Indexed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, embedsAfterFirst, f.embedder.count(), "unchanged file must not be re-embedded")

	docs, err := f.documents.FindAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, docs[0].Generation, "generation must not advance on a no-op sync")
}

func TestSyncReindexesChangedFile(t *testing.T) {
	f := newIndexerFixture(t)
	f.writePDF(t, "manual.pdf", fixtureText("warranty terms"))

	_, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err)

	f.writePDF(t, "manual.pdf", fixtureText("revised warranty terms and coverage"))

	report, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)

	docs, err := f.documents.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, 2, doc.Generation)
	assert.Equal(t, doc.ChunkCount, f.vectors.ChunkCount(doc.Id), "old generation chunks must be gone")
}

func TestSyncFailureIsolation(t *testing.T) {
	f := newIndexerFixture(t)
	f.writePDF(t, "broken.pdf", "does not matter")
	f.writePDF(t, "manual.pdf", fixtureText("warranty terms"))
	f.extractor.failFor["broken.pdf"] = true

	report, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err, "a per-document failure must not abort the sync")

	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Failures, "broken.pdf")

	docs, err := f.documents.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		if doc.Name == "broken.pdf" {
			assert.Equal(t, entity.DocumentStatusFailed, doc.Status)
			assert.False(t, doc.Selectable())
		} else {
			assert.Equal(t, entity.DocumentStatusIndexed, doc.Status)
		}
	}
}

func TestConcurrentSyncRunsDoNotDuplicateChunks(t *testing.T) {
	f := newIndexerFixture(t)
	f.extractor.delay = 20 * time.Millisecond
	f.writePDF(t, "manual.pdf", fixtureText("warranty terms"))
	f.writePDF(t, "guide.pdf", fixtureText("setup procedure"))

	// Two runs racing over the same folder: one from the reindex consumer,
	// one from the HTTP sync endpoint. They must serialize, otherwise both
	// read generation 0, both write generation 1, and the prune keeps both
	// chunk sets.
	var wg sync.WaitGroup
	reports := make([]*dto.IndexReport, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := f.indexer.Sync(context.Background(), f.dir)
			require.NoError(t, err)
			reports[i] = report
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, reports[0].Indexed+reports[1].Indexed, "each document indexed exactly once across both runs")
	assert.Equal(t, 2, reports[0].Skipped+reports[1].Skipped)

	docs, err := f.documents.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Equal(t, 1, doc.Generation)
		assert.Equal(t, doc.ChunkCount, f.vectors.ChunkCount(doc.Id),
			"store must hold exactly one chunk set for %s", doc.Name)
	}
}

func TestSyncRemovesDeletedFiles(t *testing.T) {
	f := newIndexerFixture(t)
	f.writePDF(t, "manual.pdf", fixtureText("warranty terms"))
	f.writePDF(t, "old.pdf", fixtureText("obsolete content"))

	_, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.dir, "old.pdf")))

	report, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)

	docs, err := f.documents.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "manual.pdf", docs[0].Name)

	for _, doc := range docs {
		assert.Equal(t, doc.ChunkCount, f.vectors.ChunkCount(doc.Id))
	}
}

func TestSyncIgnoresNonPDFFiles(t *testing.T) {
	f := newIndexerFixture(t)
	f.writePDF(t, "manual.pdf", fixtureText("warranty terms"))
	f.writePDF(t, "notes.txt", fixtureText("should be ignored"))

	report, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)

	docs, err := f.documents.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestSyncRejectsAllLowQualityChunks(t *testing.T) {
	f := newIndexerFixture(t)
	// Long enough to chunk, but symbol noise fails the quality gate.
	f.writePDF(t, "noise.pdf", strings.Repeat("--- ||| --- ||| ", 100))

	report, err := f.indexer.Sync(context.Background(), f.dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, f.embedder.count())
}
