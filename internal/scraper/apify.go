package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/restclient"
)

const (
	DefaultApifyURL      = "https://api.apify.com"
	DefaultApifyActor    = "apify/instagram-scraper"
	DefaultPollInterval  = 10 * time.Second
	DefaultScrapeTimeout = 10 * time.Minute
)

// Apify actor run states.
const (
	runSucceeded = "SUCCEEDED"
	runFailed    = "FAILED"
	runAborted   = "ABORTED"
	runTimedOut  = "TIMED-OUT"
	runReady     = "READY"
	runRunning   = "RUNNING"
	runAborting  = "ABORTING"
	runTimingOut = "TIMING-OUT"
)

var (
	ErrRunFailed     = errors.New("scrape run did not succeed")
	ErrMissingRunIDs = errors.New("scrape run response is missing run or dataset id")
	ErrNoHandles     = errors.New("no source handles requested")
)

// ApifyConfig configures the Apify content source.
type ApifyConfig struct {
	Token        string
	Actor        string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// ApifySource fetches recent posts by running a scraping actor and reading
// its dataset.
type ApifySource struct {
	client       *restclient.Client
	token        string
	actor        string
	pollInterval time.Duration
	timeout      time.Duration
}

type actorInput struct {
	DirectURLs   []string `json:"directUrls"`
	ResultsType  string   `json:"resultsType"`
	ResultsLimit int      `json:"resultsLimit"`
}

type actorRun struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type actorRunEnvelope struct {
	Data actorRun `json:"data"`
}

// apifyItem is one dataset record. Alternative field names seen across actor
// versions are all accepted.
type apifyItem struct {
	URL            string          `json:"url"`
	ReelURL        string          `json:"reelUrl"`
	PostURL        string          `json:"postUrl"`
	VideoURL       string          `json:"videoUrl"`
	Caption        string          `json:"caption"`
	Hashtags       []string        `json:"hashtags"`
	VideoViewCount *int64          `json:"videoViewCount"`
	VideoPlayCount *int64          `json:"videoPlayCount"`
	ViewCount      *int64          `json:"viewCount"`
	LikesCount     *int64          `json:"likesCount"`
	LikeCount      *int64          `json:"likeCount"`
	Timestamp      json.RawMessage `json:"timestamp"`
	TakenAt        json.RawMessage `json:"takenAt"`
	OwnerUsername  string          `json:"ownerUsername"`
	Username       string          `json:"username"`
}

// NewApifySource creates an ApifySource. Zero values use the defaults.
func NewApifySource(cfg ApifyConfig, opts ...restclient.Option) *ApifySource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultApifyURL
	}
	if cfg.Actor == "" {
		cfg.Actor = DefaultApifyActor
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultScrapeTimeout
	}
	return &ApifySource{
		client:       restclient.New(cfg.BaseURL, nil, opts...),
		token:        cfg.Token,
		actor:        cfg.Actor,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
	}
}

func (s *ApifySource) Name() string {
	return "apify"
}

// Fetch runs the actor for the given handles and returns at most perSource
// items per handle. Records without a post or media URL are dropped.
func (s *ApifySource) Fetch(ctx context.Context, handles []string, perSource int) ([]domain.RawItem, error) {
	handles = domain.NormalizeHandles(handles)
	if len(handles) == 0 {
		return nil, domain.Config("apify", ErrNoHandles)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	directURLs := make([]string, 0, len(handles))
	for _, h := range handles {
		directURLs = append(directURLs, "https://www.instagram.com/"+h+"/")
	}

	// The actor addresses use "~" in place of "/".
	actorPath := "/v2/acts/" + strings.ReplaceAll(s.actor, "/", "~") + "/runs"

	var started actorRunEnvelope
	err := s.client.Post(ctx, actorPath, s.auth(), actorInput{
		DirectURLs:   directURLs,
		ResultsType:  "posts",
		ResultsLimit: perSource,
	}, &started)
	if err != nil {
		return nil, err
	}
	run := started.Data
	if run.ID == "" || run.DefaultDatasetID == "" {
		return nil, domain.DataShape("apify", ErrMissingRunIDs)
	}
	log.Printf("apify: run %s started for %d handles", run.ID, len(handles))

	if err := s.waitForRun(ctx, &run); err != nil {
		return nil, err
	}

	query := s.auth()
	query.Set("clean", "true")
	query.Set("format", "json")
	var records []apifyItem
	if err := s.client.Get(ctx, "/v2/datasets/"+run.DefaultDatasetID+"/items", query, &records); err != nil {
		return nil, err
	}

	items := mapItems(records, handles, perSource)
	log.Printf("apify: run %s returned %d records, kept %d", run.ID, len(records), len(items))
	return items, nil
}

func (s *ApifySource) waitForRun(ctx context.Context, run *actorRun) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		switch run.Status {
		case runSucceeded:
			return nil
		case runFailed, runAborted, runTimedOut:
			return domain.Transient("apify", fmt.Errorf("%w: run %s is %s", ErrRunFailed, run.ID, run.Status))
		case runReady, runRunning, runAborting, runTimingOut, "":
		default:
			return domain.DataShape("apify", fmt.Errorf("%w: unknown status %q", ErrRunFailed, run.Status))
		}

		select {
		case <-ctx.Done():
			return domain.Transient("apify", fmt.Errorf("run %s did not finish: %w", run.ID, ctx.Err()))
		case <-ticker.C:
		}

		var polled actorRunEnvelope
		if err := s.client.Get(ctx, "/v2/actor-runs/"+run.ID, s.auth(), &polled); err != nil {
			return err
		}
		run.Status = polled.Data.Status
		if polled.Data.DefaultDatasetID != "" {
			run.DefaultDatasetID = polled.Data.DefaultDatasetID
		}
	}
}

func (s *ApifySource) auth() url.Values {
	return url.Values{"token": {s.token}}
}

func mapItems(records []apifyItem, handles []string, perSource int) []domain.RawItem {
	wanted := make(map[string]int, len(handles))
	for _, h := range handles {
		wanted[h] = 0
	}

	items := make([]domain.RawItem, 0, len(records))
	for _, rec := range records {
		raw, ok := rec.toRaw()
		if !ok {
			continue
		}
		handle := domain.NormalizeHandle(raw.SourceHandle)
		count, ok := wanted[handle]
		if !ok {
			continue
		}
		if perSource > 0 && count >= perSource {
			continue
		}
		wanted[handle] = count + 1
		items = append(items, raw)
	}
	return items
}

func (r apifyItem) toRaw() (domain.RawItem, bool) {
	itemURL := firstNonEmpty(r.URL, r.ReelURL, r.PostURL)
	if itemURL == "" || r.VideoURL == "" {
		return domain.RawItem{}, false
	}
	return domain.RawItem{
		SourceHandle: firstNonEmpty(r.OwnerUsername, r.Username),
		URL:          itemURL,
		MediaURL:     r.VideoURL,
		Caption:      r.Caption,
		Hashtags:     r.Hashtags,
		ViewCount:    firstCount(r.VideoViewCount, r.VideoPlayCount, r.ViewCount),
		LikeCount:    firstCount(r.LikesCount, r.LikeCount),
		Timestamp:    firstTimestamp(r.Timestamp, r.TakenAt),
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstCount(values ...*int64) int64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// firstTimestamp accepts ISO strings and unix seconds.
func firstTimestamp(values ...json.RawMessage) string {
	for _, raw := range values {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		if secs, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return time.Unix(secs, 0).UTC().Format(time.RFC3339)
		}
	}
	return ""
}
