package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/reelrag/internal/api"
	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/service"
)

// RetrievalService defines the interface for retrieval operations
type RetrievalService interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) ([]*domain.RetrievedResult, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

// RetrievalHandler handles retrieval HTTP requests
type RetrievalHandler struct {
	svc RetrievalService
}

// NewRetrievalHandler creates a new RetrievalHandler
func NewRetrievalHandler(svc RetrievalService) *RetrievalHandler {
	return &RetrievalHandler{svc: svc}
}

// RetrieveRequest represents the request body for retrieval
type RetrieveRequest struct {
	Query    string   `json:"query"`
	Sources  []string `json:"sources,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
}

// ResultResponse represents one retrieved chunk in API responses
type ResultResponse struct {
	ChunkID      string   `json:"chunk_id"`
	ItemID       string   `json:"item_id"`
	ItemURL      string   `json:"item_url"`
	ChunkIndex   int      `json:"chunk_index"`
	Text         string   `json:"text"`
	Hook         string   `json:"hook,omitempty"`
	Caption      string   `json:"caption,omitempty"`
	Hashtags     []string `json:"hashtags"`
	ViewCount    int64    `json:"view_count"`
	LikeCount    int64    `json:"like_count"`
	PostedAt     string   `json:"posted_at,omitempty"`
	SourceHandle string   `json:"source"`
	Score        float64  `json:"score"`
	Method       string   `json:"method"`
}

// RetrieveResponse represents the response body for retrieval
type RetrieveResponse struct {
	Query   string            `json:"query"`
	Results []*ResultResponse `json:"results"`
	Count   int               `json:"count"`
}

// StatsResponse represents corpus statistics in API responses
type StatsResponse struct {
	TotalItems     int64            `json:"total_items"`
	TrendingItems  int64            `json:"trending_items"`
	TotalChunks    int64            `json:"total_chunks"`
	ItemsPerSource map[string]int64 `json:"items_per_source"`
	LatestItemAt   string           `json:"latest_item_at,omitempty"`
}

// Retrieve ranks stored chunks against a query.
func (h *RetrievalHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit < 0 {
		api.Error(w, http.StatusBadRequest, "limit must not be negative")
		return
	}
	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 1) {
		api.Error(w, http.StatusBadRequest, "min_score must be within [0,1]")
		return
	}

	results, err := h.svc.Retrieve(r.Context(), service.RetrieveInput{
		Query:    req.Query,
		Sources:  req.Sources,
		Limit:    req.Limit,
		MinScore: req.MinScore,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ResultResponse, 0, len(results))
	for _, result := range results {
		if result == nil {
			continue
		}
		responses = append(responses, NewResultResponse(result))
	}

	api.Success(w, http.StatusOK, RetrieveResponse{
		Query:   req.Query,
		Results: responses,
		Count:   len(responses),
	})
}

// Stats returns corpus statistics.
func (h *RetrievalHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, NewStatsResponse(stats))
}

// NewStatsResponse converts corpus statistics to their API shape.
func NewStatsResponse(stats *domain.Stats) *StatsResponse {
	resp := &StatsResponse{
		TotalItems:     stats.TotalItems,
		TrendingItems:  stats.TrendingItems,
		TotalChunks:    stats.TotalChunks,
		ItemsPerSource: stats.ItemsPerSource,
		LatestItemAt:   formatTime(stats.LatestItemAt),
	}
	if resp.ItemsPerSource == nil {
		resp.ItemsPerSource = map[string]int64{}
	}
	return resp
}

// NewResultResponse converts a retrieved chunk to its API shape.
func NewResultResponse(result *domain.RetrievedResult) *ResultResponse {
	hashtags := result.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return &ResultResponse{
		ChunkID:      result.ChunkID,
		ItemID:       result.ItemID,
		ItemURL:      result.ItemURL,
		ChunkIndex:   result.ChunkIndex,
		Text:         result.Text,
		Hook:         result.Hook,
		Caption:      result.Caption,
		Hashtags:     hashtags,
		ViewCount:    result.ViewCount,
		LikeCount:    result.LikeCount,
		PostedAt:     formatTime(result.PostedAt),
		SourceHandle: result.SourceHandle,
		Score:        result.Score,
		Method:       string(result.Method),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
