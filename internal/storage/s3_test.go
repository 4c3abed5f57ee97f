//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Client_RawArchive(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "reelrag-raw",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.EnsureBucket(ctx))

	archive := NewRawArchive(client)
	items := []domain.RawItem{{SourceHandle: "alice", URL: "https://example.com/reel/1", MediaURL: "https://cdn.example.com/1.mp4"}}
	require.NoError(t, archive.ArchiveFetch(ctx, "run-1", "apify", items))

	meta, err := client.HeadObject(ctx, RawFetchKey("run-1", "apify"))
	require.NoError(t, err)
	assert.Equal(t, "application/json", meta.ContentType)
	assert.Positive(t, meta.ContentLength)

	fetch, err := archive.LoadFetch(ctx, "run-1", "apify")
	require.NoError(t, err)
	assert.Equal(t, items, fetch.Items)

	_, err = client.GetObject(ctx, "raw/missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
