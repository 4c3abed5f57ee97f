package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	primary     *MockContentSource
	fallback    *MockContentSource
	transcriber *MockTranscriber
	sources     *MockSourceRepo
	items       *MockItemRepo
	indexer     *MockPendingIndexer
	archive     *MockRawArchive
	tx          *testTxRunner
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		primary:     &MockContentSource{name: "apify"},
		fallback:    &MockContentSource{name: "manual"},
		transcriber: new(MockTranscriber),
		sources:     new(MockSourceRepo),
		items:       new(MockItemRepo),
		indexer:     new(MockPendingIndexer),
		archive:     new(MockRawArchive),
	}
	f.tx = &testTxRunner{repos: &testTxRepos{sources: f.sources, items: f.items}}
	return f
}

func (f *pipelineFixture) orchestrator(cap int) *Orchestrator {
	return NewOrchestrator(OrchestratorDeps{
		Primary:     f.primary,
		Fallback:    f.fallback,
		Selector:    NewTrendingSelector(cap),
		Transcriber: f.transcriber,
		TxRunner:    f.tx,
		Items:       f.items,
		Indexer:     f.indexer,
		Archive:     f.archive,
		UUIDGen:     &sequenceUUIDGen{},
	}, PipelineConfig{Sources: []string{"alice"}, FetchPerSource: 10})
}

func (f *pipelineFixture) storeSucceeds() {
	f.sources.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.items.On("Upsert", mock.Anything, mock.Anything).Return(nil)
}

func raw(url string, views int64) domain.RawItem {
	return domain.RawItem{
		SourceHandle: "alice",
		URL:          url,
		MediaURL:     url + ".mp4",
		Caption:      "This is how I grew my audience. #growth",
		ViewCount:    views,
		Timestamp:    "2025-01-10T12:00:00Z",
	}
}

func TestOrchestrator_Run_AliceScenario(t *testing.T) {
	f := newPipelineFixture()
	pool := []domain.RawItem{
		raw("https://example.com/r/100", 100),
		raw("https://example.com/r/50", 50),
		raw("https://example.com/r/10", 10),
	}

	f.primary.On("Fetch", mock.Anything, []string{"alice"}, 10).Return(pool, nil)
	f.archive.On("ArchiveFetch", mock.Anything, mock.Anything, "apify", pool).Return(nil)
	f.items.On("GetByURL", mock.Anything, mock.Anything).Return(nil, domain.ErrItemNotFound)
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything).Return("Today we talk about audience growth.", nil)
	f.indexer.On("IndexPending", mock.Anything).Return(&IndexResult{Candidates: 2, Indexed: 2, Chunks: 2}, nil)
	f.sources.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	var storedItems []*domain.ContentItem
	f.items.On("Upsert", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { storedItems = append(storedItems, args.Get(1).(*domain.ContentItem)) }).
		Return(nil)

	report := f.orchestrator(2).Run(context.Background())

	require.NotNil(t, report)
	assert.Equal(t, domain.RunStatusSucceeded, report.Status)
	assert.Equal(t, []domain.RunStage{
		domain.RunStageScrape, domain.RunStageRank, domain.RunStageTranscribe,
		domain.RunStageStore, domain.RunStageEmbed, domain.RunStageDone,
	}, report.Stages)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 2, report.Kept)
	assert.Equal(t, 2, report.Transcribed)
	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, 2, report.Chunked)
	assert.Empty(t, report.Errors)
	assert.False(t, report.UsedFallbackSource)

	require.Len(t, storedItems, 2)
	assert.Equal(t, int64(100), storedItems[0].ViewCount)
	assert.Equal(t, int64(50), storedItems[1].ViewCount)
	for _, it := range storedItems {
		assert.True(t, it.IsTrending)
		assert.Equal(t, "This is how I grew my audience", it.Hook)
		assert.Equal(t, "Today we talk about audience growth.", it.Transcript)
		assert.NotEmpty(t, it.SourceID)
	}
	f.transcriber.AssertNumberOfCalls(t, "Transcribe", 2)
	f.fallback.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_Run_FallsBackToManualSource(t *testing.T) {
	f := newPipelineFixture()
	manual := []domain.RawItem{raw("https://example.com/r/m1", 5)}

	f.primary.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.Transient("apify", errors.New("actor run timed out")))
	f.fallback.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(manual, nil)
	f.archive.On("ArchiveFetch", mock.Anything, mock.Anything, "manual", manual).Return(nil)
	f.items.On("GetByURL", mock.Anything, mock.Anything).Return(nil, domain.ErrItemNotFound)
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything).Return("", nil)
	f.storeSucceeds()
	f.indexer.On("IndexPending", mock.Anything).Return(&IndexResult{Indexed: 1}, nil)

	report := f.orchestrator(5).Run(context.Background())

	assert.Equal(t, domain.RunStatusSucceeded, report.Status)
	assert.True(t, report.UsedFallbackSource)
	assert.Equal(t, 1, report.Fetched)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, domain.RunStageScrape, report.Errors[0].Stage)
	assert.Equal(t, domain.ErrorKindTransient, report.Errors[0].Kind)
}

func TestOrchestrator_Run_FailsWhenNothingFetched(t *testing.T) {
	f := newPipelineFixture()
	f.primary.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return([]domain.RawItem{}, nil)
	f.fallback.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return([]domain.RawItem{}, nil)

	report := f.orchestrator(5).Run(context.Background())

	require.NotNil(t, report)
	assert.True(t, report.Failed())
	assert.Equal(t, []domain.RunStage{domain.RunStageScrape, domain.RunStageFailed}, report.Stages)
	require.NotEmpty(t, report.Errors)
	last := report.Errors[len(report.Errors)-1]
	assert.Equal(t, domain.ErrorKindFatal, last.Kind)
	f.transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
	f.indexer.AssertNotCalled(t, "IndexPending", mock.Anything)
	assert.False(t, report.FinishedAt.IsZero())
}

func TestOrchestrator_Run_NoSourcesConfigured(t *testing.T) {
	report := NewOrchestrator(OrchestratorDeps{}, PipelineConfig{}).Run(context.Background())

	assert.True(t, report.Failed())
	require.Len(t, report.Errors, 2)
	assert.Equal(t, domain.ErrorKindConfig, report.Errors[0].Kind)
	assert.Equal(t, domain.ErrorKindFatal, report.Errors[1].Kind)
}

func TestOrchestrator_Run_MalformedItemsAreDroppedAndRecorded(t *testing.T) {
	f := newPipelineFixture()
	good := raw("https://example.com/r/ok", 10)
	noMedia := raw("https://example.com/r/nomedia", 20)
	noMedia.MediaURL = ""
	dup := raw("https://example.com/r/ok", 30)

	f.primary.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return([]domain.RawItem{good, noMedia, dup}, nil)
	f.archive.On("ArchiveFetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.items.On("GetByURL", mock.Anything, mock.Anything).Return(nil, domain.ErrItemNotFound)
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything).Return("", nil)
	f.storeSucceeds()
	f.indexer.On("IndexPending", mock.Anything).Return(&IndexResult{}, nil)

	report := f.orchestrator(5).Run(context.Background())

	assert.Equal(t, domain.RunStatusSucceeded, report.Status)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Kept)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, domain.ErrorKindDataShape, report.Errors[0].Kind)
	assert.Equal(t, "https://example.com/r/nomedia", report.Errors[0].Item)
}

func TestOrchestrator_Run_TranscriptionFailureContinues(t *testing.T) {
	f := newPipelineFixture()
	pool := []domain.RawItem{raw("https://example.com/r/a", 20), raw("https://example.com/r/b", 10)}

	f.primary.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(pool, nil)
	f.archive.On("ArchiveFetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.items.On("GetByURL", mock.Anything, mock.Anything).Return(nil, domain.ErrItemNotFound)
	f.transcriber.On("Transcribe", mock.Anything, "https://example.com/r/a.mp4").Return("", domain.Transient("transcribe", errors.New("assemblyai: error status")))
	f.transcriber.On("Transcribe", mock.Anything, "https://example.com/r/b.mp4").Return("spoken words", nil)
	f.storeSucceeds()
	f.indexer.On("IndexPending", mock.Anything).Return(&IndexResult{Indexed: 2}, nil)

	report := f.orchestrator(5).Run(context.Background())

	assert.Equal(t, domain.RunStatusSucceeded, report.Status)
	assert.Equal(t, 1, report.Transcribed)
	assert.Equal(t, 2, report.Stored)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, domain.RunStageTranscribe, report.Errors[0].Stage)
	assert.Equal(t, "https://example.com/r/a", report.Errors[0].Item)
}

func TestOrchestrator_Run_ReusesStoredTranscript(t *testing.T) {
	f := newPipelineFixture()
	pool := []domain.RawItem{raw("https://example.com/r/a", 20)}

	f.primary.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(pool, nil)
	f.archive.On("ArchiveFetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.items.On("GetByURL", mock.Anything, "https://example.com/r/a").Return(&domain.ContentItem{Transcript: "already done"}, nil)
	f.storeSucceeds()
	f.indexer.On("IndexPending", mock.Anything).Return(&IndexResult{}, nil)

	report := f.orchestrator(5).Run(context.Background())

	assert.Equal(t, 1, report.Transcribed)
	f.transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
}

func TestOrchestrator_Run_StoreFailureIsPerItem(t *testing.T) {
	f := newPipelineFixture()
	pool := []domain.RawItem{raw("https://example.com/r/a", 20), raw("https://example.com/r/b", 10)}

	f.primary.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(pool, nil)
	f.archive.On("ArchiveFetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket missing"))
	f.items.On("GetByURL", mock.Anything, mock.Anything).Return(nil, domain.ErrItemNotFound)
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything).Return("", nil)
	f.sources.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.items.On("Upsert", mock.Anything, mock.MatchedBy(func(i *domain.ContentItem) bool { return i.URL == "https://example.com/r/a" })).Return(errors.New("deadlock"))
	f.items.On("Upsert", mock.Anything, mock.MatchedBy(func(i *domain.ContentItem) bool { return i.URL == "https://example.com/r/b" })).Return(nil)
	f.indexer.On("IndexPending", mock.Anything).Return(&IndexResult{Indexed: 1}, nil)

	report := f.orchestrator(5).Run(context.Background())

	assert.Equal(t, domain.RunStatusSucceeded, report.Status)
	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 2, f.tx.called)
	strs := report.ErrorStrings()
	require.Len(t, strs, 2)
	assert.Contains(t, strs[0], "[scrape/transient]")
	assert.Contains(t, strs[1], "[store/transient] https://example.com/r/a")
}

func TestOrchestrator_Run_UnconfiguredStagesAreRecorded(t *testing.T) {
	f := newPipelineFixture()
	pool := []domain.RawItem{raw("https://example.com/r/a", 20)}
	f.primary.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(pool, nil)
	f.items.On("GetByURL", mock.Anything, mock.Anything).Return(nil, domain.ErrItemNotFound)
	f.storeSucceeds()

	o := NewOrchestrator(OrchestratorDeps{
		Primary:  f.primary,
		TxRunner: f.tx,
		Items:    f.items,
	}, PipelineConfig{Sources: []string{"alice"}})

	report := o.Run(context.Background())

	assert.Equal(t, domain.RunStatusSucceeded, report.Status)
	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 2, report.CountErrors(domain.ErrorKindConfig))
}

func TestOrchestrator_Run_IndexerErrorsAreRecorded(t *testing.T) {
	f := newPipelineFixture()
	pool := []domain.RawItem{raw("https://example.com/r/a", 20)}
	f.primary.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(pool, nil)
	f.archive.On("ArchiveFetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.items.On("GetByURL", mock.Anything, mock.Anything).Return(nil, domain.ErrItemNotFound)
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything).Return("", nil)
	f.storeSucceeds()
	f.indexer.On("IndexPending", mock.Anything).Return(&IndexResult{
		Candidates: 1,
		Errors:     []ItemError{{ItemURL: "https://example.com/r/a", Err: domain.DataShape("embed", errors.New("bad vector"))}},
	}, nil)

	report := f.orchestrator(5).Run(context.Background())

	assert.Equal(t, 0, report.Chunked)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, domain.RunStageEmbed, report.Errors[0].Stage)
	assert.Equal(t, domain.ErrorKindDataShape, report.Errors[0].Kind)
}

func TestOrchestrator_Run_RecoversFromPanic(t *testing.T) {
	f := newPipelineFixture()
	pool := []domain.RawItem{raw("https://example.com/r/a", 20)}
	f.primary.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(pool, nil)
	f.archive.On("ArchiveFetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.items.On("GetByURL", mock.Anything, mock.Anything).Return(nil, domain.ErrItemNotFound)
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("transcriber exploded")
	}).Return("", nil)

	var report *domain.RunReport
	assert.NotPanics(t, func() {
		report = f.orchestrator(5).Run(context.Background())
	})

	require.NotNil(t, report)
	assert.True(t, report.Failed())
	last := report.Errors[len(report.Errors)-1]
	assert.Equal(t, domain.ErrorKindFatal, last.Kind)
	assert.Equal(t, domain.RunStageTranscribe, last.Stage)
	assert.Contains(t, last.Message, "transcriber exploded")
}
