//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func createSource(ctx context.Context, t *testing.T, repo *SourceRepository, handle string) *domain.Source {
	s := domain.NewSource(uuid.NewString(), handle, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Upsert(ctx, s))
	return s
}

func createItem(ctx context.Context, t *testing.T, repo *ItemRepository, source *domain.Source, url string, views int64, trending bool) *domain.ContentItem {
	item := &domain.ContentItem{
		ID:           uuid.NewString(),
		SourceID:     source.ID,
		SourceHandle: source.Handle,
		URL:          url,
		MediaURL:     url + ".mp4",
		Caption:      "caption for " + url,
		Hashtags:     []string{"business"},
		ViewCount:    views,
		LikeCount:    views / 10,
		IsTrending:   trending,
	}
	require.NoError(t, repo.Upsert(ctx, item))
	return item
}

func makeChunks(itemID string, texts ...string) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewString(),
			ItemID:     itemID,
			ChunkIndex: i,
			Content:    text,
			Embedding:  []float32{float32(i + 1), 0.5, 0.25},
			TokenCount: 3,
		})
	}
	return chunks
}
