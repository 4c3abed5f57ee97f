package domain

import "time"

// RetrievalMethod records which path produced a result.
type RetrievalMethod string

const (
	RetrievalMethodHybrid  RetrievalMethod = "hybrid"
	RetrievalMethodKeyword RetrievalMethod = "keyword"
)

// RetrievedResult is a chunk joined with its parent item's metadata and a
// relevance score in [0,1]. It is never persisted.
type RetrievedResult struct {
	ChunkID      string
	ItemID       string
	ItemURL      string
	ChunkIndex   int
	Text         string
	Hook         string
	Caption      string
	Hashtags     []string
	ViewCount    int64
	LikeCount    int64
	PostedAt     *time.Time
	SourceHandle string
	Score        float64
	Method       RetrievalMethod
}

// Stats summarizes the stored corpus.
type Stats struct {
	TotalItems     int64
	TrendingItems  int64
	TotalChunks    int64
	ItemsPerSource map[string]int64
	LatestItemAt   *time.Time
}
