package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockEmbeddingClient mocks the OpenAI client
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockIndexerItemRepo struct {
	mock.Mock
}

func (m *MockIndexerItemRepo) ListUnchunkedTrending(ctx context.Context) ([]*domain.ContentItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ContentItem), args.Error(1)
}

type MockChunkRepo struct {
	mock.Mock
}

func (m *MockChunkRepo) InsertChunksOnce(ctx context.Context, itemID string, chunks []domain.Chunk) error {
	args := m.Called(ctx, itemID, chunks)
	return args.Error(0)
}

type MockRetrievalRepo struct {
	mock.Mock
}

func (m *MockRetrievalRepo) ListTrendingChunks(ctx context.Context, sources []string) ([]*ChunkCandidate, error) {
	args := m.Called(ctx, sources)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ChunkCandidate), args.Error(1)
}

func (m *MockRetrievalRepo) KeywordSearch(ctx context.Context, words []string, sources []string, limit int) ([]*domain.RetrievedResult, error) {
	args := m.Called(ctx, words, sources, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RetrievedResult), args.Error(1)
}

func (m *MockRetrievalRepo) Stats(ctx context.Context) (*domain.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Stats), args.Error(1)
}

type MockSourceRepo struct {
	mock.Mock
}

func (m *MockSourceRepo) Upsert(ctx context.Context, s *domain.Source) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSourceRepo) GetByHandle(ctx context.Context, handle string) (*domain.Source, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

type MockItemRepo struct {
	mock.Mock
}

func (m *MockItemRepo) Upsert(ctx context.Context, item *domain.ContentItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockItemRepo) GetByURL(ctx context.Context, url string) (*domain.ContentItem, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentItem), args.Error(1)
}

type MockContentSource struct {
	mock.Mock
	name string
}

func (m *MockContentSource) Name() string {
	return m.name
}

func (m *MockContentSource) Fetch(ctx context.Context, handles []string, perSource int) ([]domain.RawItem, error) {
	args := m.Called(ctx, handles, perSource)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawItem), args.Error(1)
}

type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	args := m.Called(ctx, mediaURL)
	return args.String(0), args.Error(1)
}

type MockRawArchive struct {
	mock.Mock
}

func (m *MockRawArchive) ArchiveFetch(ctx context.Context, runID, source string, items []domain.RawItem) error {
	args := m.Called(ctx, runID, source, items)
	return args.Error(0)
}

type MockPendingIndexer struct {
	mock.Mock
}

func (m *MockPendingIndexer) IndexPending(ctx context.Context) (*IndexResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*IndexResult), args.Error(1)
}

type sequenceUUIDGen struct {
	n int
}

func (g *sequenceUUIDGen) NewString() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}
