package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/ratelimit"
	"github.com/cloo-solutions/reelrag/internal/telemetry"
)

// DefaultFetchPerSource is how many raw items are requested per source.
const DefaultFetchPerSource = 120

var (
	// ErrNoItemsFetched halts a run whose scrape produced nothing usable.
	ErrNoItemsFetched = errors.New("no items fetched from any content source")
	// ErrNoContentSource is recorded when neither source is configured.
	ErrNoContentSource = errors.New("no content source configured")
	// ErrTranscriberUnavailable is recorded when transcription is not configured.
	ErrTranscriberUnavailable = errors.New("transcriber not configured")
)

// ContentSource delivers raw items for a set of source handles.
type ContentSource interface {
	Name() string
	Fetch(ctx context.Context, handles []string, perSource int) ([]domain.RawItem, error)
}

// Transcriber converts a media URL to spoken text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (string, error)
}

// RawArchive keeps every fetched raw item, including those not kept.
type RawArchive interface {
	ArchiveFetch(ctx context.Context, runID, source string, items []domain.RawItem) error
}

// PendingIndexer embeds items that have no chunks yet.
type PendingIndexer interface {
	IndexPending(ctx context.Context) (*IndexResult, error)
}

// ItemLookup finds a stored item by URL.
type ItemLookup interface {
	GetByURL(ctx context.Context, url string) (*domain.ContentItem, error)
}

// PipelineConfig holds the tuning for a pipeline run.
type PipelineConfig struct {
	Sources         []string
	FetchPerSource  int
	TranscribeDelay time.Duration
}

// OrchestratorDeps are the collaborators of an Orchestrator. Primary, Fallback,
// Transcriber, Indexer and Archive may be nil.
type OrchestratorDeps struct {
	Primary     ContentSource
	Fallback    ContentSource
	Selector    *TrendingSelector
	Transcriber Transcriber
	TxRunner    TxRunner
	Items       ItemLookup
	Indexer     PendingIndexer
	Archive     RawArchive
	UUIDGen     UUIDGenerator
}

// Orchestrator runs Scrape, Rank, Transcribe, Store and Embed in order.
type Orchestrator struct {
	deps  OrchestratorDeps
	cfg   PipelineConfig
	pacer *ratelimit.Pacer
	now   func() time.Time
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(deps OrchestratorDeps, cfg PipelineConfig) *Orchestrator {
	if deps.Selector == nil {
		deps.Selector = NewTrendingSelector(DefaultTrendingPerSource)
	}
	if deps.UUIDGen == nil {
		deps.UUIDGen = &DefaultUUIDGenerator{}
	}
	if cfg.FetchPerSource <= 0 {
		cfg.FetchPerSource = DefaultFetchPerSource
	}
	cfg.Sources = domain.NormalizeHandles(cfg.Sources)
	return &Orchestrator{
		deps:  deps,
		cfg:   cfg,
		pacer: ratelimit.NewPacer(cfg.TranscribeDelay),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one pipeline run. It always returns a report; failures are
// recorded in it rather than returned.
func (o *Orchestrator) Run(ctx context.Context) (report *domain.RunReport) {
	report = domain.NewRunReport(o.deps.UUIDGen.NewString(), o.now())
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Run", telemetry.SpanAttributes{
		RunID: report.RunID,
	})
	defer span.End()

	stage := domain.RunStageScrape
	defer func() {
		if r := recover(); r != nil {
			err := domain.Fatal("pipeline", fmt.Errorf("panic: %v", r))
			report.AddError(stage, "", err)
			report.Finish(domain.RunStatusFailed, o.now())
			span.SetError(err)
			log.Printf("pipeline: run %s aborted in %s: %v", report.RunID, stage, err)
		}
	}()

	log.Printf("pipeline: run %s started", report.RunID)

	report.Enter(stage)
	items := o.scrape(ctx, report)
	if len(items) == 0 {
		report.AddError(stage, "", domain.Fatal("scrape", ErrNoItemsFetched))
		report.Finish(domain.RunStatusFailed, o.now())
		telemetry.CaptureError(ctx, ErrNoItemsFetched)
		log.Printf("pipeline: run %s failed: %v", report.RunID, ErrNoItemsFetched)
		return report
	}

	stage = domain.RunStageRank
	report.Enter(stage)
	kept := o.deps.Selector.Select(items)
	report.Kept = len(kept)

	stage = domain.RunStageTranscribe
	report.Enter(stage)
	o.transcribe(ctx, report, kept)

	stage = domain.RunStageStore
	report.Enter(stage)
	stored := o.store(ctx, report, kept)
	report.Stored = len(stored)

	stage = domain.RunStageEmbed
	report.Enter(stage)
	o.embed(ctx, report)

	report.Finish(domain.RunStatusSucceeded, o.now())
	log.Printf("pipeline: run %s done in %s: fetched=%d kept=%d transcribed=%d stored=%d chunked=%d errors=%d",
		report.RunID, report.Elapsed, report.Fetched, report.Kept, report.Transcribed, report.Stored, report.Chunked, len(report.Errors))
	return report
}

func (o *Orchestrator) scrape(ctx context.Context, report *domain.RunReport) []*domain.ContentItem {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.scrape", telemetry.SpanAttributes{
		RunID: report.RunID,
		Stage: string(domain.RunStageScrape),
	})
	defer span.End()

	if o.deps.Primary == nil && o.deps.Fallback == nil {
		report.AddError(domain.RunStageScrape, "", domain.Config("scrape", ErrNoContentSource))
		return nil
	}

	var raw []domain.RawItem
	if o.deps.Primary != nil {
		var err error
		raw, err = o.fetch(ctx, report, o.deps.Primary)
		if err != nil {
			report.AddError(domain.RunStageScrape, "", err)
		}
	}

	if len(raw) == 0 && o.deps.Fallback != nil {
		log.Printf("pipeline: primary source returned nothing, using %s", o.deps.Fallback.Name())
		telemetry.AddBreadcrumb(ctx, "pipeline", "fallback content source")
		fallbackRaw, err := o.fetch(ctx, report, o.deps.Fallback)
		if err != nil {
			report.AddError(domain.RunStageScrape, "", err)
		}
		if len(fallbackRaw) > 0 {
			report.UsedFallbackSource = true
			raw = fallbackRaw
		}
	}

	report.Fetched = len(raw)

	items := make([]*domain.ContentItem, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		item, err := r.Normalize()
		if err != nil {
			report.AddError(domain.RunStageScrape, r.URL, domain.DataShape("normalize", err))
			continue
		}
		// The same URL can show up twice in one fetch; the first wins.
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		items = append(items, item)
	}

	return items
}

func (o *Orchestrator) fetch(ctx context.Context, report *domain.RunReport, source ContentSource) ([]domain.RawItem, error) {
	raw, err := source.Fetch(ctx, o.cfg.Sources, o.cfg.FetchPerSource)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source.Name(), err)
	}
	log.Printf("pipeline: %s returned %d raw items", source.Name(), len(raw))

	if o.deps.Archive != nil && len(raw) > 0 {
		if err := o.deps.Archive.ArchiveFetch(ctx, report.RunID, source.Name(), raw); err != nil {
			report.AddError(domain.RunStageScrape, "", domain.Transient("archive", err))
		}
	}
	return raw, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, report *domain.RunReport, items []*domain.ContentItem) {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.transcribe", telemetry.SpanAttributes{
		RunID: report.RunID,
		Stage: string(domain.RunStageTranscribe),
	})
	defer span.End()

	if o.deps.Transcriber == nil {
		report.AddError(domain.RunStageTranscribe, "", domain.Config("transcribe", ErrTranscriberUnavailable))
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			report.AddError(domain.RunStageTranscribe, "", domain.Transient("transcribe", err))
			break
		}

		item.Transcript = o.transcriptFor(ctx, report, item)
		if item.Transcript != "" {
			report.Transcribed++
		}
	}

	// Hooks are derived even when transcription is unavailable.
	for _, item := range items {
		item.Hook = ExtractHook(item.Caption, item.Transcript)
	}
}

func (o *Orchestrator) transcriptFor(ctx context.Context, report *domain.RunReport, item *domain.ContentItem) string {
	if o.deps.Items != nil {
		stored, err := o.deps.Items.GetByURL(ctx, item.URL)
		switch {
		case err == nil && stored.Transcript != "":
			return stored.Transcript
		case err != nil && !errors.Is(err, domain.ErrItemNotFound):
			log.Printf("pipeline: transcript lookup for %s failed: %v", item.URL, err)
		}
	}

	if o.deps.Transcriber == nil {
		return ""
	}

	if err := o.pacer.Wait(ctx); err != nil {
		report.AddError(domain.RunStageTranscribe, item.URL, domain.Transient("transcribe", err))
		return ""
	}

	text, err := o.deps.Transcriber.Transcribe(ctx, item.MediaURL)
	if err != nil {
		report.AddError(domain.RunStageTranscribe, item.URL, err)
		return ""
	}
	return text
}

func (o *Orchestrator) store(ctx context.Context, report *domain.RunReport, items []*domain.ContentItem) []*domain.ContentItem {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.store", telemetry.SpanAttributes{
		RunID: report.RunID,
		Stage: string(domain.RunStageStore),
	})
	defer span.End()

	stored := make([]*domain.ContentItem, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			report.AddError(domain.RunStageStore, "", domain.Transient("store", err))
			break
		}

		if err := o.storeItem(ctx, item); err != nil {
			report.AddError(domain.RunStageStore, item.URL, err)
			continue
		}
		stored = append(stored, item)
	}
	return stored
}

func (o *Orchestrator) storeItem(ctx context.Context, item *domain.ContentItem) error {
	if err := domain.ValidateContentItem(item); err != nil {
		return domain.DataShape("store", err)
	}

	err := o.deps.TxRunner.WithTx(ctx, func(repos TxRepositories) error {
		source := &domain.Source{
			ID:     o.deps.UUIDGen.NewString(),
			Handle: item.SourceHandle,
		}
		if err := repos.Sources().Upsert(ctx, source); err != nil {
			return fmt.Errorf("failed to upsert source %s: %w", item.SourceHandle, err)
		}

		item.SourceID = source.ID
		if item.ID == "" {
			item.ID = o.deps.UUIDGen.NewString()
		}
		if err := repos.Items().Upsert(ctx, item); err != nil {
			return fmt.Errorf("failed to upsert item: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Transient("store", err)
	}
	return nil
}

func (o *Orchestrator) embed(ctx context.Context, report *domain.RunReport) {
	if o.deps.Indexer == nil {
		report.AddError(domain.RunStageEmbed, "", domain.Config("embed", ErrEmbeddingUnavailable))
		return
	}

	result, err := o.deps.Indexer.IndexPending(ctx)
	if err != nil {
		report.AddError(domain.RunStageEmbed, "", err)
	}
	if result == nil {
		return
	}

	report.Chunked = result.Indexed
	for _, ie := range result.Errors {
		report.AddError(domain.RunStageEmbed, ie.ItemURL, ie.Err)
	}
}
