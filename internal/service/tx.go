package service

import (
	"context"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/google/uuid"
)

// SourceRepositoryInterface defines the repository interface for source persistence
type SourceRepositoryInterface interface {
	// Upsert creates the source on first reference and fills in its ID.
	Upsert(ctx context.Context, s *domain.Source) error
	GetByHandle(ctx context.Context, handle string) (*domain.Source, error)
}

// ItemRepositoryInterface defines the repository interface for content item persistence
type ItemRepositoryInterface interface {
	// Upsert inserts or overwrites the item keyed by URL and fills in its ID.
	Upsert(ctx context.Context, item *domain.ContentItem) error
	GetByURL(ctx context.Context, url string) (*domain.ContentItem, error)
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Sources() SourceRepositoryInterface
	Items() ItemRepositoryInterface
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
