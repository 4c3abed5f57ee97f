package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
)

// ObjectStore is the subset of S3Client used by RawArchive.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// RawFetch is the archived output of one source fetch within a run.
type RawFetch struct {
	RunID     string           `json:"run_id"`
	Source    string           `json:"source"`
	FetchedAt time.Time        `json:"fetched_at"`
	Items     []domain.RawItem `json:"items"`
}

// RawArchive keeps every fetched item, including those not selected as
// trending, as JSON objects under raw/<run>/<source>.json.
type RawArchive struct {
	store ObjectStore
	now   func() time.Time
}

func NewRawArchive(store ObjectStore) *RawArchive {
	return &RawArchive{store: store, now: time.Now}
}

// RawFetchKey returns the object key for a run's fetch from source.
func RawFetchKey(runID, source string) string {
	return path.Join("raw", sanitizeSegment(runID), sanitizeSegment(source)+".json")
}

// ArchiveFetch stores the raw items fetched from source during runID.
func (a *RawArchive) ArchiveFetch(ctx context.Context, runID, source string, items []domain.RawItem) error {
	if items == nil {
		items = []domain.RawItem{}
	}
	body, err := json.Marshal(RawFetch{
		RunID:     runID,
		Source:    source,
		FetchedAt: a.now().UTC(),
		Items:     items,
	})
	if err != nil {
		return domain.DataShape("archive", fmt.Errorf("failed to encode raw fetch: %w", err))
	}

	if err := a.store.PutObject(ctx, RawFetchKey(runID, source), body, "application/json"); err != nil {
		return domain.Transient("archive", err)
	}
	return nil
}

// LoadFetch reads back an archived fetch.
func (a *RawArchive) LoadFetch(ctx context.Context, runID, source string) (*RawFetch, error) {
	body, err := a.store.GetObject(ctx, RawFetchKey(runID, source))
	if err != nil {
		return nil, err
	}
	var fetch RawFetch
	if err := json.Unmarshal(body, &fetch); err != nil {
		return nil, domain.DataShape("archive", fmt.Errorf("failed to decode raw fetch: %w", err))
	}
	return &fetch, nil
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
