package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/ratelimit"
	"github.com/cloo-solutions/reelrag/internal/telemetry"
)

// ErrEmbeddingUnavailable is returned when no embedding client is configured.
var ErrEmbeddingUnavailable = errors.New("embedding client not configured")

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// IndexerItemRepository lists items waiting for chunks.
type IndexerItemRepository interface {
	ListUnchunkedTrending(ctx context.Context) ([]*domain.ContentItem, error)
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	// InsertChunksOnce stores the full chunk set of an item in one transaction.
	// It returns domain.ErrItemAlreadyChunked if the item already has chunks.
	InsertChunksOnce(ctx context.Context, itemID string, chunks []domain.Chunk) error
}

// ItemError is a failure attributed to one item.
type ItemError struct {
	ItemURL string
	Err     error
}

// IndexResult summarizes one indexing pass.
type IndexResult struct {
	Candidates int
	Indexed    int
	Skipped    int
	Chunks     int
	Errors     []ItemError
}

// IndexerService chunks trending items and stores an embedding per chunk.
type IndexerService struct {
	client   EmbeddingClient
	items    IndexerItemRepository
	chunks   ChunkRepositoryInterface
	pacer    *ratelimit.Pacer
	chunkCfg ChunkConfig
	uuidGen  UUIDGenerator
	now      func() time.Time
}

// NewIndexerService creates a new IndexerService instance. embedDelay spaces
// consecutive embedding calls.
func NewIndexerService(
	client EmbeddingClient,
	items IndexerItemRepository,
	chunks ChunkRepositoryInterface,
	chunkCfg ChunkConfig,
	embedDelay time.Duration,
) *IndexerService {
	return NewIndexerServiceWithUUIDGen(client, items, chunks, chunkCfg, embedDelay, &DefaultUUIDGenerator{})
}

// NewIndexerServiceWithUUIDGen creates a new IndexerService with custom UUID generator (for testing)
func NewIndexerServiceWithUUIDGen(
	client EmbeddingClient,
	items IndexerItemRepository,
	chunks ChunkRepositoryInterface,
	chunkCfg ChunkConfig,
	embedDelay time.Duration,
	uuidGen UUIDGenerator,
) *IndexerService {
	if chunkCfg.TargetTokens <= 0 {
		chunkCfg = DefaultChunkConfig()
	}
	return &IndexerService{
		client:   client,
		items:    items,
		chunks:   chunks,
		pacer:    ratelimit.NewPacer(embedDelay),
		chunkCfg: chunkCfg,
		uuidGen:  uuidGen,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IndexPending embeds every trending item that has no chunks yet. Items that
// fail are recorded in the result and left for the next run. The returned
// error covers failures that stop the whole pass.
func (s *IndexerService) IndexPending(ctx context.Context) (*IndexResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexerService.IndexPending", telemetry.SpanAttributes{
		Stage: string(domain.RunStageEmbed),
	})
	defer span.End()

	result := &IndexResult{Errors: make([]ItemError, 0)}

	if s.client == nil {
		return result, domain.Config("embed", ErrEmbeddingUnavailable)
	}

	items, err := s.items.ListUnchunkedTrending(ctx)
	if err != nil {
		span.SetError(err)
		return result, domain.Transient("embed", fmt.Errorf("failed to list unchunked items: %w", err))
	}
	result.Candidates = len(items)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, domain.Transient("embed", err)
		}

		n, err := s.indexItem(ctx, item)
		switch {
		case errors.Is(err, domain.ErrItemAlreadyChunked):
			result.Skipped++
		case err != nil:
			log.Printf("indexer: item %s failed: %v", item.URL, err)
			result.Errors = append(result.Errors, ItemError{ItemURL: item.URL, Err: err})
		default:
			result.Indexed++
			result.Chunks += n
		}
	}

	log.Printf("indexer: %d candidates, %d indexed (%d chunks), %d skipped, %d failed",
		result.Candidates, result.Indexed, result.Chunks, result.Skipped, len(result.Errors))

	return result, nil
}

func (s *IndexerService) indexItem(ctx context.Context, item *domain.ContentItem) (int, error) {
	segments := ChunkText(BuildCompositeText(item), s.chunkCfg.TargetTokens)
	if len(segments) == 0 {
		return 0, domain.DataShape("embed", errors.New("item has no text to index"))
	}

	createdAt := s.now()
	chunks := make([]domain.Chunk, 0, len(segments))
	for i, segment := range segments {
		content := strings.TrimSpace(segment)

		if err := s.pacer.Wait(ctx); err != nil {
			return 0, domain.Transient("embed", err)
		}

		embedding, err := s.client.GenerateEmbedding(ctx, content)
		if err != nil {
			return 0, fmt.Errorf("chunk %d: %w", i, err)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         s.uuidGen.NewString(),
			ItemID:     item.ID,
			ChunkIndex: i,
			Content:    content,
			Embedding:  embedding,
			TokenCount: ApproxTokens(content),
			CreatedAt:  createdAt,
		})
	}

	if err := domain.ValidateChunkSet(item.ID, chunks); err != nil {
		return 0, domain.DataShape("embed", err)
	}

	if err := s.chunks.InsertChunksOnce(ctx, item.ID, chunks); err != nil {
		if errors.Is(err, domain.ErrItemAlreadyChunked) {
			return 0, err
		}
		return 0, domain.Transient("embed", fmt.Errorf("failed to store chunks: %w", err))
	}

	return len(chunks), nil
}

// BuildCompositeText joins the labeled hook, caption and transcript of an
// item, skipping empty fields.
func BuildCompositeText(item *domain.ContentItem) string {
	parts := make([]string, 0, 3)
	if hook := strings.TrimSpace(item.Hook); hook != "" {
		parts = append(parts, "Hook: "+hook)
	}
	if caption := strings.TrimSpace(item.Caption); caption != "" {
		parts = append(parts, "Caption: "+caption)
	}
	if transcript := strings.TrimSpace(item.Transcript); transcript != "" {
		parts = append(parts, "Transcript: "+transcript)
	}
	return strings.Join(parts, "\n\n")
}
