package service

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pdf-chat-bot/internal/config"
	"pdf-chat-bot/internal/dto"
	"pdf-chat-bot/internal/entity"
	"pdf-chat-bot/internal/pkg/logger"
	"pdf-chat-bot/internal/repository/contract"
	"pdf-chat-bot/pkg/embedding"
	"pdf-chat-bot/pkg/extract"
	"pdf-chat-bot/pkg/utils"
)

type IIndexerService interface {
	// Sync reconciles the index with the PDF files in folder. It is
	// idempotent: a second run over unchanged files performs no writes.
	// Concurrent calls are serialized; the caller never observes two runs
	// writing the same document generation.
	Sync(ctx context.Context, folder string) (*dto.IndexReport, error)

	// Documents returns every tracked document, name-ordered.
	Documents(ctx context.Context) ([]*entity.Document, error)
}

type indexerService struct {
	documents contract.DocumentRepository
	vectors   contract.VectorStore
	extractor extract.Extractor
	embedder  embedding.Provider
	cfg       config.IndexConfig
	logger    logger.ILogger

	// syncMu serializes whole Sync runs. Two overlapping runs would read
	// the same document generation, both write generation G+1, and the
	// old-generation prune would then keep both chunk sets.
	syncMu sync.Mutex
}

func NewIndexerService(
	documents contract.DocumentRepository,
	vectors contract.VectorStore,
	extractor extract.Extractor,
	embedder embedding.Provider,
	cfg config.IndexConfig,
	sysLogger logger.ILogger,
) IIndexerService {
	return &indexerService{
		documents: documents,
		vectors:   vectors,
		extractor: extractor,
		embedder:  embedder,
		cfg:       cfg,
		logger:    sysLogger,
	}
}

type sourceFile struct {
	path    string
	name    string
	modTime time.Time
}

func (s *indexerService) Sync(ctx context.Context, folder string) (*dto.IndexReport, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	files, err := scanFolder(folder)
	if err != nil {
		return nil, fmt.Errorf("scan folder %s: %w", folder, err)
	}

	known, err := s.documents.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	report := dto.NewIndexReport()
	var mu sync.Mutex
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[documentId(f.path)] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.syncFile(gctx, f, report, &mu)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	// Documents whose source file disappeared get removed entirely.
	for _, doc := range known {
		if seen[doc.Id] {
			continue
		}
		if err := s.vectors.DeleteDocument(ctx, doc.Id, -1); err != nil {
			s.logger.Error("indexer", "failed to delete chunks of removed document", map[string]interface{}{
				"document": doc.Name, "error": err.Error(),
			})
			continue
		}
		if err := s.documents.Delete(ctx, doc.Id); err != nil {
			s.logger.Error("indexer", "failed to delete removed document", map[string]interface{}{
				"document": doc.Name, "error": err.Error(),
			})
			continue
		}
		report.Removed++
		s.logger.Info("indexer", "removed stale document", map[string]interface{}{"document": doc.Name})
	}

	s.logger.Info("indexer", "sync finished", map[string]interface{}{
		"indexed": report.Indexed, "skipped": report.Skipped,
		"failed": report.Failed, "removed": report.Removed,
	})
	return report, nil
}

func (s *indexerService) Documents(ctx context.Context) ([]*entity.Document, error) {
	return s.documents.FindAll(ctx)
}

// syncFile indexes one file if its fingerprint changed. A failure marks the
// document failed and is recorded in the report; it never aborts the run.
func (s *indexerService) syncFile(ctx context.Context, f sourceFile, report *dto.IndexReport, mu *sync.Mutex) {
	id := documentId(f.path)

	fingerprint, err := fileFingerprint(f.path, f.modTime)
	if err != nil {
		s.recordFailure(ctx, report, mu, nil, f, id, err)
		return
	}

	existing, err := s.documents.FindById(ctx, id)
	if err != nil {
		s.recordFailure(ctx, report, mu, nil, f, id, err)
		return
	}

	if existing != nil && existing.Fingerprint == fingerprint && existing.Status == entity.DocumentStatusIndexed {
		mu.Lock()
		report.Skipped++
		mu.Unlock()
		return
	}

	doc := existing
	if doc == nil {
		doc = &entity.Document{
			Id:        id,
			Name:      f.name,
			Path:      f.path,
			CreatedAt: time.Now(),
		}
	}
	doc.Name = f.name
	doc.Path = f.path
	doc.Fingerprint = fingerprint

	if err := s.indexDocument(ctx, doc); err != nil {
		s.recordFailure(ctx, report, mu, doc, f, id, err)
		return
	}

	mu.Lock()
	report.Indexed++
	mu.Unlock()
	s.logger.Info("indexer", "indexed document", map[string]interface{}{
		"document": doc.Name, "chunks": doc.ChunkCount, "generation": doc.Generation,
	})
}

// indexDocument writes the new chunk generation, flips the document record to
// it, then drops the previous generation. Readers filter on the recorded
// generation, so they see the old set or the new set but never both.
func (s *indexerService) indexDocument(ctx context.Context, doc *entity.Document) error {
	text, err := s.extractor.Extract(ctx, doc.Path)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	overlap := int(float64(s.cfg.ChunkSize) * s.cfg.OverlapFraction)
	spans := utils.SplitTextSpans(text, s.cfg.ChunkSize, overlap)

	generation := doc.Generation + 1
	records := make([]contract.ChunkRecord, 0, len(spans))
	ordinal := 0
	for _, span := range spans {
		if !utils.PassesQualityCheck(span.Text, s.cfg.MinChunkChars, s.cfg.MinChunkWords) {
			continue
		}
		vector, err := s.embedder.Embed(ctx, span.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", ordinal, err)
		}
		records = append(records, contract.ChunkRecord{
			Chunk: entity.Chunk{
				DocumentId:   doc.Id,
				DocumentName: doc.Name,
				Ordinal:      ordinal,
				Start:        span.Start,
				End:          span.End,
				Text:         span.Text,
			},
			Generation: generation,
			Embedding:  vector,
		})
		ordinal++
	}

	if len(records) == 0 {
		return fmt.Errorf("no chunk passed the quality gate")
	}

	if err := s.vectors.Upsert(ctx, records); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	doc.Status = entity.DocumentStatusIndexed
	doc.ChunkCount = len(records)
	doc.Generation = generation
	now := time.Now()
	doc.UpdatedAt = &now
	if err := s.documents.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	// Old generations are invisible already; removing them is cleanup, not
	// correctness, so a failure here only logs.
	if err := s.vectors.DeleteDocument(ctx, doc.Id, generation); err != nil {
		s.logger.Warn("indexer", "failed to prune old chunk generation", map[string]interface{}{
			"document": doc.Name, "error": err.Error(),
		})
	}
	return nil
}

func (s *indexerService) recordFailure(ctx context.Context, report *dto.IndexReport, mu *sync.Mutex, doc *entity.Document, f sourceFile, id string, cause error) {
	mu.Lock()
	report.Failed++
	report.Failures[f.name] = cause.Error()
	mu.Unlock()

	s.logger.Error("indexer", "failed to index document", map[string]interface{}{
		"document": f.name, "error": cause.Error(),
	})

	if doc == nil {
		doc = &entity.Document{Id: id, Name: f.name, Path: f.path, CreatedAt: time.Now()}
	}
	doc.Status = entity.DocumentStatusFailed
	now := time.Now()
	doc.UpdatedAt = &now
	if err := s.documents.Save(ctx, doc); err != nil {
		s.logger.Error("indexer", "failed to record document failure", map[string]interface{}{
			"document": f.name, "error": err.Error(),
		})
	}
}

func scanFolder(folder string) ([]sourceFile, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var files []sourceFile
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(filepath.Join(folder, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, sourceFile{path: abs, name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// documentId derives a short stable id from the absolute path. Telegram
// callback payloads are limited to 64 bytes, so the full path cannot be used.
func documentId(path string) string {
	sum := sha1.Sum([]byte(path))
	return fmt.Sprintf("%x", sum)[:12]
}

// fileFingerprint hashes content and mtime; either changing triggers a
// re-index on the next sync.
func fileFingerprint(path string, modTime time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := sha1.New()
	h.Write(data)
	fmt.Fprintf(h, "|%d", modTime.UnixNano())
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
