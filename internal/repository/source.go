package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

// Upsert inserts the source or, when the handle is already known, keeps the
// stored row and refreshes its optional profile fields. s.ID and s.CreatedAt
// are overwritten with the stored values.
func (r *SourceRepository) Upsert(ctx context.Context, s *domain.Source) error {
	if err := domain.ValidateSource(s); err != nil {
		return err
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO sources (id, handle, display_name, follower_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (handle) DO UPDATE SET
			display_name = COALESCE(EXCLUDED.display_name, sources.display_name),
			follower_count = COALESCE(EXCLUDED.follower_count, sources.follower_count)
		 RETURNING id, created_at`,
		s.ID, s.Handle, nullableString(s.DisplayName), s.FollowerCount, createdAt,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *SourceRepository) GetByHandle(ctx context.Context, handle string) (*domain.Source, error) {
	var s domain.Source
	var displayName *string
	err := r.db.QueryRow(ctx,
		`SELECT id, handle, display_name, follower_count, created_at
		 FROM sources WHERE handle = $1`,
		domain.NormalizeHandle(handle),
	).Scan(&s.ID, &s.Handle, &displayName, &s.FollowerCount, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	if displayName != nil {
		s.DisplayName = *displayName
	}
	return &s, nil
}

// List returns all sources ordered by handle.
func (r *SourceRepository) List(ctx context.Context) ([]*domain.Source, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, handle, display_name, follower_count, created_at
		 FROM sources ORDER BY handle`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Source
	for rows.Next() {
		var s domain.Source
		var displayName *string
		if err := rows.Scan(&s.ID, &s.Handle, &displayName, &s.FollowerCount, &s.CreatedAt); err != nil {
			return nil, err
		}
		if displayName != nil {
			s.DisplayName = *displayName
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
