package domain

import (
	"fmt"
	"time"
)

// Chunk is a token-bounded slice of an item's combined text with its embedding.
type Chunk struct {
	ID         string
	ItemID     string
	ChunkIndex int
	Content    string
	Embedding  []float32
	TokenCount int
	CreatedAt  time.Time
}

// ValidateChunkSet checks that chunks belong to itemID, carry embeddings, and
// have indices 0..n-1 in order.
func ValidateChunkSet(itemID string, chunks []Chunk) error {
	if itemID == "" {
		return fmt.Errorf("chunk set item ID is required")
	}
	for i, c := range chunks {
		if c.ItemID != itemID {
			return fmt.Errorf("chunk %d belongs to item %q, expected %q", i, c.ItemID, itemID)
		}
		if c.ChunkIndex != i {
			return ErrNonContiguousChunks
		}
		if c.Content == "" {
			return fmt.Errorf("chunk %d has empty content", i)
		}
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %d has no embedding", i)
		}
	}
	return nil
}
