package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/telemetry"
)

const (
	DefaultVectorWeight     = 0.7
	DefaultKeywordWeight    = 0.3
	DefaultKeywordScore     = 0.5
	DefaultRetrieveLimit    = 8
	DefaultRetrieveMinScore = 0.7
)

// ChunkCandidate is a stored chunk with its parent item metadata and vector.
type ChunkCandidate struct {
	Result    domain.RetrievedResult
	Embedding []float32
}

// RetrievalRepositoryInterface defines the read queries used by retrieval
type RetrievalRepositoryInterface interface {
	// ListTrendingChunks returns every chunk of a trending item, optionally
	// restricted to the given source handles.
	ListTrendingChunks(ctx context.Context, sources []string) ([]*ChunkCandidate, error)
	// KeywordSearch returns chunks where every word occurs in the chunk text
	// or the caption, most viewed first.
	KeywordSearch(ctx context.Context, words []string, sources []string, limit int) ([]*domain.RetrievedResult, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

// RetrievalConfig holds the scoring parameters.
type RetrievalConfig struct {
	VectorWeight    float64
	KeywordWeight   float64
	KeywordScore    float64
	DefaultLimit    int
	DefaultMinScore float64
}

// DefaultRetrievalConfig returns the stock scoring parameters.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		VectorWeight:    DefaultVectorWeight,
		KeywordWeight:   DefaultKeywordWeight,
		KeywordScore:    DefaultKeywordScore,
		DefaultLimit:    DefaultRetrieveLimit,
		DefaultMinScore: DefaultRetrieveMinScore,
	}
}

// RetrieveInput represents the input for a retrieval
type RetrieveInput struct {
	Query   string
	Sources []string
	Limit   int
	// MinScore overrides the configured floor when set.
	MinScore *float64
}

// RetrievalService serves hybrid retrieval over stored chunks. It holds no
// mutable state and is safe for concurrent use.
type RetrievalService struct {
	repo   RetrievalRepositoryInterface
	client EmbeddingClient
	cfg    RetrievalConfig
}

// NewRetrievalService creates a new RetrievalService. A nil client makes every
// retrieval use the keyword path.
func NewRetrievalService(repo RetrievalRepositoryInterface, client EmbeddingClient, cfg RetrievalConfig) *RetrievalService {
	defaults := DefaultRetrievalConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaults.DefaultLimit
	}
	if cfg.VectorWeight == 0 && cfg.KeywordWeight == 0 {
		cfg.VectorWeight = defaults.VectorWeight
		cfg.KeywordWeight = defaults.KeywordWeight
	}
	return &RetrievalService{repo: repo, client: client, cfg: cfg}
}

// Retrieve ranks chunks against query. When the query cannot be embedded the
// keyword path is used instead and results carry the placeholder score.
func (s *RetrievalService) Retrieve(ctx context.Context, input RetrieveInput) ([]*domain.RetrievedResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	sources := domain.NormalizeHandles(input.Sources)
	limit := input.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	minScore := s.cfg.DefaultMinScore
	if input.MinScore != nil {
		minScore = *input.MinScore
	}

	if s.client == nil {
		log.Printf("retrieval: %v, using keyword search", ErrEmbeddingUnavailable)
		return s.keywordSearch(ctx, query, sources, limit)
	}

	queryEmbedding, err := s.client.GenerateEmbedding(ctx, query)
	if err != nil {
		log.Printf("retrieval: query embedding failed (%s), using keyword search: %v", domain.KindOf(err), err)
		telemetry.AddBreadcrumb(ctx, "retrieval", "keyword fallback")
		return s.keywordSearch(ctx, query, sources, limit)
	}

	candidates, err := s.repo.ListTrendingChunks(ctx, sources)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	return s.rank(query, queryEmbedding, candidates, limit, minScore), nil
}

func (s *RetrievalService) rank(query string, queryEmbedding []float32, candidates []*ChunkCandidate, limit int, minScore float64) []*domain.RetrievedResult {
	results := make([]*domain.RetrievedResult, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		vector := CosineSimilarity(queryEmbedding, c.Embedding)
		overlap := KeywordOverlap(query, c.Result.Text, c.Result.Caption)
		score := clampScore(s.cfg.VectorWeight*vector + s.cfg.KeywordWeight*overlap)
		if score < minScore {
			continue
		}

		r := c.Result
		r.Score = score
		r.Method = domain.RetrievalMethodHybrid
		results = append(results, &r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (s *RetrievalService) keywordSearch(ctx context.Context, query string, sources []string, limit int) ([]*domain.RetrievedResult, error) {
	words := QueryWords(query)
	results, err := s.repo.KeywordSearch(ctx, words, sources, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}

	out := make([]*domain.RetrievedResult, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		r.Score = s.cfg.KeywordScore
		r.Method = domain.RetrievalMethodKeyword
		out = append(out, r)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats summarizes the stored corpus.
func (s *RetrievalService) Stats(ctx context.Context) (*domain.Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	if stats.ItemsPerSource == nil {
		stats.ItemsPerSource = map[string]int64{}
	}
	return stats, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
