//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrievalRepository(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	sources := NewSourceRepository(pool)
	items := NewItemRepository(pool)
	chunks := NewChunkRepository(pool)
	retrieval := NewRetrievalRepository(pool)

	alice := createSource(ctx, t, sources, "alice")
	bob := createSource(ctx, t, sources, "bob")
	createSource(ctx, t, sources, "carol")

	popular := createItem(ctx, t, items, alice, "https://example.com/reel/1", 1000, true)
	quiet := createItem(ctx, t, items, bob, "https://example.com/reel/2", 10, true)
	hidden := createItem(ctx, t, items, bob, "https://example.com/reel/3", 5000, false)

	require.NoError(t, chunks.InsertChunksOnce(ctx, popular.ID, makeChunks(popular.ID, "Business scaling tips", "more on hiring")))
	require.NoError(t, chunks.InsertChunksOnce(ctx, quiet.ID, makeChunks(quiet.ID, "scaling a BUSINESS slowly")))
	require.NoError(t, chunks.InsertChunksOnce(ctx, hidden.ID, makeChunks(hidden.ID, "business scaling secrets")))

	t.Run("trending chunks ordered by popularity", func(t *testing.T) {
		got, err := retrieval.ListTrendingChunks(ctx, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, popular.URL, got[0].Result.ItemURL)
		assert.Equal(t, 0, got[0].Result.ChunkIndex)
		assert.Equal(t, 1, got[1].Result.ChunkIndex)
		assert.Equal(t, quiet.URL, got[2].Result.ItemURL)
		assert.Equal(t, "bob", got[2].Result.SourceHandle)
		assert.Len(t, got[0].Embedding, 3)
	})

	t.Run("trending chunks filtered by source", func(t *testing.T) {
		got, err := retrieval.ListTrendingChunks(ctx, []string{"bob"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, quiet.ID, got[0].Result.ItemID)
	})

	t.Run("keyword search requires every word", func(t *testing.T) {
		got, err := retrieval.KeywordSearch(ctx, []string{"business", "scaling"}, nil, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, popular.URL, got[0].ItemURL)
		assert.Equal(t, quiet.URL, got[1].ItemURL)
	})

	t.Run("keyword search matches caption", func(t *testing.T) {
		got, err := retrieval.KeywordSearch(ctx, []string{"reel/2"}, nil, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, quiet.URL, got[0].ItemURL)
	})

	t.Run("keyword search honors limit and sources", func(t *testing.T) {
		got, err := retrieval.KeywordSearch(ctx, []string{"business"}, nil, 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = retrieval.KeywordSearch(ctx, []string{"business"}, []string{"carol"}, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := retrieval.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalItems)
		assert.Equal(t, int64(2), stats.TrendingItems)
		assert.Equal(t, int64(4), stats.TotalChunks)
		assert.Equal(t, map[string]int64{"alice": 1, "bob": 2, "carol": 0}, stats.ItemsPerSource)
		assert.Nil(t, stats.LatestItemAt)
	})
}
