package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ContentItem is one ingested post or reel.
type ContentItem struct {
	ID           string
	SourceID     string
	SourceHandle string
	URL          string // stable external identifier
	MediaURL     string
	Caption      string
	Hashtags     []string
	ViewCount    int64
	LikeCount    int64
	PostedAt     *time.Time
	IsTrending   bool
	Hook         string
	Transcript   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RawItem is an item as delivered by a content source, before validation.
type RawItem struct {
	SourceHandle string   `json:"source"`
	URL          string   `json:"url"`
	MediaURL     string   `json:"media_url"`
	Caption      string   `json:"caption"`
	Hashtags     []string `json:"hashtags"`
	ViewCount    int64    `json:"view_count"`
	LikeCount    int64    `json:"like_count"`
	Timestamp    string   `json:"timestamp"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize validates a raw item and converts it into a ContentItem.
// Missing identifiers reject the item; missing or negative counts become 0 and
// an unparseable timestamp leaves PostedAt nil.
func (r RawItem) Normalize() (*ContentItem, error) {
	handle := NormalizeHandle(r.SourceHandle)
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}

	itemURL := strings.TrimSpace(r.URL)
	if !isHTTPURL(itemURL) {
		return nil, ErrInvalidItemURL
	}

	mediaURL := strings.TrimSpace(r.MediaURL)
	if mediaURL == "" {
		return nil, ErrInvalidMediaURL
	}

	return &ContentItem{
		SourceHandle: handle,
		URL:          itemURL,
		MediaURL:     mediaURL,
		Caption:      strings.TrimSpace(r.Caption),
		Hashtags:     NormalizeHashtags(r.Hashtags),
		ViewCount:    nonNegative(r.ViewCount),
		LikeCount:    nonNegative(r.LikeCount),
		PostedAt:     ParseTimestamp(r.Timestamp),
	}, nil
}

// ParseTimestamp parses the timestamp formats seen from content sources.
func ParseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// NormalizeHashtags strips "#" prefixes and blanks, keeping order.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#"))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ValidateContentItem validates a ContentItem instance before it is stored
func ValidateContentItem(item *ContentItem) error {
	if item == nil {
		return fmt.Errorf("content item cannot be nil")
	}
	if err := ValidateHandle(item.SourceHandle); err != nil {
		return err
	}
	if !isHTTPURL(item.URL) {
		return ErrInvalidItemURL
	}
	if item.MediaURL == "" {
		return ErrInvalidMediaURL
	}
	if item.ViewCount < 0 || item.LikeCount < 0 {
		return fmt.Errorf("content item counts cannot be negative")
	}
	return nil
}

func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
