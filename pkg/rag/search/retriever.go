package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"pdf-chat-bot/internal/repository/contract"
	"pdf-chat-bot/pkg/embedding"
	"pdf-chat-bot/pkg/store"
)

// ErrRetrievalUnavailable wraps embedding or store failures. An empty
// result is NOT this error: finding nothing relevant is a valid outcome.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// Config encapsulates retrieval parameters
type Config struct {
	TopK          int
	Threshold     float64 // minimum similarity to count as relevant
	DedupWindow   int     // ordinal distance treated as near-duplicate
	ContextBudget int     // soft budget in runes
	HardCap       int     // absolute cap in runes
}

// DefaultConfig returns default retrieval configuration
func DefaultConfig() Config {
	return Config{
		TopK:          5,
		Threshold:     0.15,
		DedupWindow:   1,
		ContextBudget: 4000,
		HardCap:       8000,
	}
}

// RetrievalResult is the assembled grounding context: chunks in
// descending-score order, deduplicated and truncated to the budget.
type RetrievalResult struct {
	Chunks []contract.ScoredChunk
}

func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Chunks) == 0
}

// SourceNames returns the distinct document names in rank order, for
// citation display.
func (r *RetrievalResult) SourceNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, c := range r.Chunks {
		if !seen[c.Chunk.DocumentName] {
			seen[c.Chunk.DocumentName] = true
			names = append(names, c.Chunk.DocumentName)
		}
	}
	return names
}

// Retriever embeds the query, asks the vector store for candidates
// restricted to the current document generations, and assembles a bounded
// grounding context.
type Retriever struct {
	provider  embedding.Provider
	vectors   contract.VectorStore
	documents contract.DocumentRepository
	config    Config
	logger    *log.Logger
}

func NewRetriever(
	provider embedding.Provider,
	vectors contract.VectorStore,
	documents contract.DocumentRepository,
	config Config,
	logger *log.Logger,
) *Retriever {
	return &Retriever{
		provider:  provider,
		vectors:   vectors,
		documents: documents,
		config:    config,
		logger:    logger,
	}
}

// Retrieve runs a similarity search for query limited to documentFilter
// (a document id, or store.SelectionAll). The returned chunks are ranked
// by similarity, ties broken by lower ordinal for determinism.
func (r *Retriever) Retrieve(ctx context.Context, query string, documentFilter string) (*RetrievalResult, error) {
	filter, err := r.buildFilter(ctx, documentFilter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}
	if len(filter.Generations) == 0 {
		// Nothing indexed under this filter; a valid empty outcome.
		return &RetrievalResult{}, nil
	}

	vector, err := r.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query embedding: %v", ErrRetrievalUnavailable, err)
	}

	// Over-fetch so threshold filtering and dedup still leave topK.
	candidates, err := r.vectors.Search(ctx, vector, filter, r.config.TopK*2)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", ErrRetrievalUnavailable, err)
	}

	ranked := rankCandidates(candidates)
	relevant := r.filterByThreshold(ranked)
	deduped := r.deduplicate(relevant)
	if len(deduped) > r.config.TopK {
		deduped = deduped[:r.config.TopK]
	}
	final := r.truncateToBudget(deduped)

	r.logger.Printf("[DEBUG] Retrieve %q filter=%s: %d candidates -> %d relevant -> %d in context",
		query, documentFilter, len(candidates), len(relevant), len(final))

	return &RetrievalResult{Chunks: final}, nil
}

// buildFilter maps the selection onto the current generation of every
// visible document, the versioned view that makes re-indexing atomic.
func (r *Retriever) buildFilter(ctx context.Context, documentFilter string) (contract.SearchFilter, error) {
	docs, err := r.documents.FindAll(ctx)
	if err != nil {
		return contract.SearchFilter{}, err
	}

	generations := make(map[string]int)
	for _, doc := range docs {
		if !doc.Selectable() {
			continue
		}
		if documentFilter != store.SelectionAll && doc.Id != documentFilter {
			continue
		}
		generations[doc.Id] = doc.Generation
	}
	return contract.SearchFilter{Generations: generations}, nil
}

// rankCandidates sorts by score descending; ties break by lower ordinal
// (earlier text wins), then by document id, so the order is total.
func rankCandidates(candidates []contract.ScoredChunk) []contract.ScoredChunk {
	ranked := make([]contract.ScoredChunk, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		if ranked[i].Chunk.Ordinal != ranked[j].Chunk.Ordinal {
			return ranked[i].Chunk.Ordinal < ranked[j].Chunk.Ordinal
		}
		return ranked[i].Chunk.DocumentId < ranked[j].Chunk.DocumentId
	})
	return ranked
}

func (r *Retriever) filterByThreshold(ranked []contract.ScoredChunk) []contract.ScoredChunk {
	var out []contract.ScoredChunk
	for _, c := range ranked {
		if c.Similarity >= r.config.Threshold {
			out = append(out, c)
		}
	}
	return out
}

// deduplicate drops candidates within DedupWindow ordinals of an already
// selected chunk of the same document; overlapping chunks carry mostly the
// same text.
func (r *Retriever) deduplicate(ranked []contract.ScoredChunk) []contract.ScoredChunk {
	var out []contract.ScoredChunk
	selected := make(map[string][]int) // document id -> kept ordinals
	for _, c := range ranked {
		near := false
		for _, ord := range selected[c.Chunk.DocumentId] {
			if abs(ord-c.Chunk.Ordinal) <= r.config.DedupWindow {
				near = true
				break
			}
		}
		if near {
			continue
		}
		selected[c.Chunk.DocumentId] = append(selected[c.Chunk.DocumentId], c.Chunk.Ordinal)
		out = append(out, c)
	}
	return out
}

// truncateToBudget keeps chunks greedily by rank until the context budget
// is reached. The top-ranked chunk is always kept even if it alone exceeds
// the soft budget; the hard cap clips it as a last resort.
func (r *Retriever) truncateToBudget(ranked []contract.ScoredChunk) []contract.ScoredChunk {
	var out []contract.ScoredChunk
	used := 0
	for i, c := range ranked {
		size := len([]rune(c.Chunk.Text))
		if i == 0 {
			if r.config.HardCap > 0 && size > r.config.HardCap {
				runes := []rune(c.Chunk.Text)
				c.Chunk.Text = string(runes[:r.config.HardCap])
				size = r.config.HardCap
			}
			out = append(out, c)
			used += size
			continue
		}
		if used+size > r.config.ContextBudget {
			break
		}
		out = append(out, c)
		used += size
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
