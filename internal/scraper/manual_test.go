package scraper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manualFixture = `{
	"Hormozi": [
		{"url":"https://www.instagram.com/reel/h1/","media_url":"https://cdn.example.com/h1.mp4","caption":"How I went from $0 to $100M.","hashtags":["#business"],"view_count":2500000,"like_count":125000,"timestamp":"2025-01-15"},
		{"url":"https://www.instagram.com/reel/h2/","media_url":"https://cdn.example.com/h2.mp4","view_count":1800000,"like_count":95000},
		{"url":"https://www.instagram.com/reel/h3/","media_url":"https://cdn.example.com/h3.mp4","view_count":900000,"like_count":40000}
	],
	"vaibhav": [
		{"url":"https://www.instagram.com/reel/v1/","media_url":"https://cdn.example.com/v1.mp4","view_count":500000}
	]
}`

func writeManualFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "manual.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestManualSource_Fetch(t *testing.T) {
	src := NewManualSource(writeManualFile(t, manualFixture))
	assert.Equal(t, "manual", src.Name())

	items, err := src.Fetch(context.Background(), []string{"@hormozi"}, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "hormozi", items[0].SourceHandle)
	assert.Equal(t, "https://www.instagram.com/reel/h1/", items[0].URL)

	item, err := items[0].Normalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"business"}, item.Hashtags)
}

func TestManualSource_AllHandles(t *testing.T) {
	src := NewManualSource(writeManualFile(t, manualFixture))

	items, err := src.Fetch(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "hormozi", items[0].SourceHandle)
	assert.Equal(t, "vaibhav", items[3].SourceHandle)
}

func TestManualSource_UnknownHandle(t *testing.T) {
	src := NewManualSource(writeManualFile(t, manualFixture))

	items, err := src.Fetch(context.Background(), []string{"nobody"}, 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestManualSource_Errors(t *testing.T) {
	_, err := NewManualSource(filepath.Join(t.TempDir(), "missing.json")).Fetch(context.Background(), nil, 5)
	assert.Equal(t, domain.ErrorKindConfig, domain.KindOf(err))

	_, err = NewManualSource(writeManualFile(t, `[not json`)).Fetch(context.Background(), nil, 5)
	assert.Equal(t, domain.ErrorKindDataShape, domain.KindOf(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewManualSource(writeManualFile(t, manualFixture)).Fetch(ctx, nil, 5)
	assert.Equal(t, domain.ErrorKindTransient, domain.KindOf(err))
}
