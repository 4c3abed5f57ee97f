package service

import (
	"sort"

	"github.com/cloo-solutions/reelrag/internal/domain"
)

// DefaultTrendingPerSource is the number of items kept per source.
const DefaultTrendingPerSource = 5

// TrendingSelector keeps the most viewed items of each source.
type TrendingSelector struct {
	perSourceCap int
}

// NewTrendingSelector creates a selector keeping perSourceCap items per
// source. A cap of zero or less uses DefaultTrendingPerSource.
func NewTrendingSelector(perSourceCap int) *TrendingSelector {
	if perSourceCap <= 0 {
		perSourceCap = DefaultTrendingPerSource
	}
	return &TrendingSelector{perSourceCap: perSourceCap}
}

// Cap returns the per-source cap.
func (s *TrendingSelector) Cap() int {
	return s.perSourceCap
}

// Select groups items by source handle, ranks each group by view count then
// like count (both descending, fetch order on ties) and keeps the top items of
// each group. Kept items are marked trending, discarded ones are not. Groups
// are returned in the order their source first appears.
func (s *TrendingSelector) Select(items []*domain.ContentItem) []*domain.ContentItem {
	groups := make(map[string][]*domain.ContentItem)
	order := make([]string, 0)
	for _, item := range items {
		if item == nil {
			continue
		}
		if _, ok := groups[item.SourceHandle]; !ok {
			order = append(order, item.SourceHandle)
		}
		groups[item.SourceHandle] = append(groups[item.SourceHandle], item)
	}

	kept := make([]*domain.ContentItem, 0, len(order)*s.perSourceCap)
	for _, handle := range order {
		group := groups[handle]
		sort.SliceStable(group, func(i, j int) bool {
			return rankBefore(group[i], group[j])
		})
		for i, item := range group {
			item.IsTrending = i < s.perSourceCap
			if item.IsTrending {
				kept = append(kept, item)
			}
		}
	}

	return kept
}

func rankBefore(a, b *domain.ContentItem) bool {
	av, bv := max(a.ViewCount, 0), max(b.ViewCount, 0)
	if av != bv {
		return av > bv
	}
	return max(a.LikeCount, 0) > max(b.LikeCount, 0)
}
