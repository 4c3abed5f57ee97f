package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ItemRepository struct {
	db dbtx
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{db: pool}
}

func NewItemRepositoryWithTx(tx pgx.Tx) *ItemRepository {
	return &ItemRepository{db: tx}
}

const itemColumns = `i.id, i.source_id, s.handle, i.url, i.media_url, i.caption, i.hashtags,
	i.view_count, i.like_count, i.posted_at, i.is_trending, i.hook, i.transcript, i.created_at, i.updated_at`

// Upsert stores the item keyed by URL. On conflict the latest metrics and
// trending flag win, while an empty hook or transcript never erases a stored
// one. item.ID is overwritten with the stored identifier.
func (r *ItemRepository) Upsert(ctx context.Context, item *domain.ContentItem) error {
	if err := domain.ValidateContentItem(item); err != nil {
		return err
	}
	if item.SourceID == "" || item.ID == "" {
		return domain.ErrMissingRequiredField
	}

	hashtags := item.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	now := time.Now().UTC()
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO items
			(id, source_id, url, media_url, caption, hashtags, view_count, like_count, posted_at, is_trending, hook, transcript, created_at, updated_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (url) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			media_url = EXCLUDED.media_url,
			caption = EXCLUDED.caption,
			hashtags = EXCLUDED.hashtags,
			view_count = EXCLUDED.view_count,
			like_count = EXCLUDED.like_count,
			posted_at = COALESCE(EXCLUDED.posted_at, items.posted_at),
			is_trending = EXCLUDED.is_trending,
			hook = COALESCE(EXCLUDED.hook, items.hook),
			transcript = COALESCE(EXCLUDED.transcript, items.transcript),
			updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at, updated_at`,
		item.ID,
		item.SourceID,
		item.URL,
		item.MediaURL,
		item.Caption,
		hashtags,
		item.ViewCount,
		item.LikeCount,
		item.PostedAt,
		item.IsTrending,
		nullableString(item.Hook),
		nullableString(item.Transcript),
		createdAt,
		now,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

func (r *ItemRepository) GetByURL(ctx context.Context, url string) (*domain.ContentItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+itemColumns+`
		 FROM items i JOIN sources s ON s.id = i.source_id
		 WHERE i.url = $1`,
		url,
	)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// ListUnchunkedTrending returns trending items that have no chunks yet,
// oldest first.
func (r *ItemRepository) ListUnchunkedTrending(ctx context.Context) ([]*domain.ContentItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+`
		 FROM items i JOIN sources s ON s.id = i.source_id
		 WHERE i.is_trending
		   AND NOT EXISTS (SELECT 1 FROM chunks c WHERE c.item_id = i.id)
		 ORDER BY i.created_at, i.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row) (*domain.ContentItem, error) {
	var item domain.ContentItem
	var hook, transcript *string
	err := row.Scan(
		&item.ID, &item.SourceID, &item.SourceHandle, &item.URL, &item.MediaURL, &item.Caption, &item.Hashtags,
		&item.ViewCount, &item.LikeCount, &item.PostedAt, &item.IsTrending, &hook, &transcript, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if hook != nil {
		item.Hook = *hook
	}
	if transcript != nil {
		item.Transcript = *transcript
	}
	return &item, nil
}
