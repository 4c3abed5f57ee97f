package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence of embedded item chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// InsertChunksOnce stores the full chunk set for an item, or nothing. An item
// that already has chunks is rejected with domain.ErrItemAlreadyChunked, so
// concurrent indexers cannot produce duplicate or interleaved sets.
func (r *ChunkRepository) InsertChunksOnce(ctx context.Context, itemID string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := domain.ValidateChunkSet(itemID, chunks); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, itemID); err != nil {
		return err
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chunks WHERE item_id = $1)`, itemID,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrItemAlreadyChunked
	}

	now := time.Now().UTC()
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, item_id, chunk_index, content, embedding, token_count, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.ItemID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), c.TokenCount, createdAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrItemAlreadyChunked
			}
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListByItem returns an item's chunks in index order.
func (r *ChunkRepository) ListByItem(ctx context.Context, itemID string) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, item_id, chunk_index, content, embedding, token_count, created_at
		 FROM chunks WHERE item_id = $1 ORDER BY chunk_index`,
		itemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ID, &c.ItemID, &c.ChunkIndex, &c.Content, &embedding, &c.TokenCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		out = append(out, c)
	}
	return out, rows.Err()
}
