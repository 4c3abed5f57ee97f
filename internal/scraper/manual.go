package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cloo-solutions/reelrag/internal/domain"
)

// ManualSource serves hand-curated items from a JSON file shaped as
// {"handle": [RawItem, ...], ...}. It is the fallback when scraping fails.
type ManualSource struct {
	path string
}

func NewManualSource(path string) *ManualSource {
	return &ManualSource{path: path}
}

func (s *ManualSource) Name() string {
	return "manual"
}

// Fetch returns the curated items for handles (all handles when empty), at
// most perSource per handle. The file is re-read on every call.
func (s *ManualSource) Fetch(ctx context.Context, handles []string, perSource int) ([]domain.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Transient("manual source", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, domain.Config("manual source", fmt.Errorf("failed to read %s: %w", s.path, err))
	}

	var curated map[string][]domain.RawItem
	if err := json.Unmarshal(data, &curated); err != nil {
		return nil, domain.DataShape("manual source", fmt.Errorf("failed to parse %s: %w", s.path, err))
	}

	byHandle := make(map[string][]domain.RawItem, len(curated))
	order := make([]string, 0, len(curated))
	for key, items := range curated {
		h := domain.NormalizeHandle(key)
		if _, ok := byHandle[h]; !ok {
			order = append(order, h)
		}
		for _, item := range items {
			if item.SourceHandle == "" {
				item.SourceHandle = h
			}
			byHandle[h] = append(byHandle[h], item)
		}
	}

	wanted := domain.NormalizeHandles(handles)
	if len(wanted) == 0 {
		sort.Strings(order)
		wanted = order
	}

	var out []domain.RawItem
	for _, h := range wanted {
		items := byHandle[h]
		if perSource > 0 && len(items) > perSource {
			items = items[:perSource]
		}
		out = append(out, items...)
	}
	return out, nil
}
