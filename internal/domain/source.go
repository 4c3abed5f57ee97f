package domain

import (
	"fmt"
	"strings"
	"time"
)

const maxHandleLength = 64

// Source is a creator account being tracked. The handle is its identity.
type Source struct {
	ID            string
	Handle        string
	DisplayName   string
	FollowerCount *int64
	CreatedAt     time.Time
}

// NewSource creates a new Source instance with a normalized handle
func NewSource(id, handle string, createdAt time.Time) *Source {
	return &Source{
		ID:        id,
		Handle:    NormalizeHandle(handle),
		CreatedAt: createdAt,
	}
}

// NormalizeHandle trims whitespace and a leading "@" and lower-cases the handle.
func NormalizeHandle(handle string) string {
	h := strings.TrimSpace(handle)
	h = strings.TrimPrefix(h, "@")
	return strings.ToLower(strings.TrimSpace(h))
}

// NormalizeHandles normalizes and de-duplicates a handle list, dropping blanks.
func NormalizeHandles(handles []string) []string {
	if len(handles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(handles))
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		n := NormalizeHandle(h)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ValidateSource validates a Source instance
func ValidateSource(s *Source) error {
	if s == nil {
		return fmt.Errorf("source cannot be nil")
	}
	if s.ID == "" {
		return fmt.Errorf("source ID is required")
	}
	return ValidateHandle(s.Handle)
}

// ValidateHandle checks a normalized handle.
func ValidateHandle(handle string) error {
	if handle == "" || len(handle) > maxHandleLength {
		return ErrInvalidHandle
	}
	if strings.ContainsAny(handle, " \t\r\n/") {
		return ErrInvalidHandle
	}
	return nil
}
