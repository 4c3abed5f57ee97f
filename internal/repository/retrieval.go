package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// RetrievalRepository reads chunks joined with their item and source for
// ranking.
type RetrievalRepository struct {
	db dbtx
}

func NewRetrievalRepository(pool *pgxpool.Pool) *RetrievalRepository {
	return &RetrievalRepository{db: pool}
}

const resultColumns = `c.id, c.item_id, i.url, c.chunk_index, c.content, i.hook, i.caption, i.hashtags,
	i.view_count, i.like_count, i.posted_at, s.handle`

const resultJoins = `FROM chunks c
	JOIN items i ON i.id = c.item_id
	JOIN sources s ON s.id = i.source_id`

// ListTrendingChunks returns every chunk of a trending item, optionally
// restricted to the given source handles.
func (r *RetrievalRepository) ListTrendingChunks(ctx context.Context, sources []string) ([]*service.ChunkCandidate, error) {
	query := `SELECT ` + resultColumns + `, c.embedding ` + resultJoins + ` WHERE i.is_trending`
	args := []any{}
	if len(sources) > 0 {
		args = append(args, sources)
		query += ` AND s.handle = ANY($1)`
	}
	query += ` ORDER BY i.view_count DESC, i.like_count DESC, c.item_id, c.chunk_index`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*service.ChunkCandidate
	for rows.Next() {
		var cand service.ChunkCandidate
		var hook *string
		var embedding pgvector.Vector
		res := &cand.Result
		if err := rows.Scan(
			&res.ChunkID, &res.ItemID, &res.ItemURL, &res.ChunkIndex, &res.Text, &hook, &res.Caption, &res.Hashtags,
			&res.ViewCount, &res.LikeCount, &res.PostedAt, &res.SourceHandle, &embedding,
		); err != nil {
			return nil, err
		}
		if hook != nil {
			res.Hook = *hook
		}
		cand.Embedding = embedding.Slice()
		out = append(out, &cand)
	}
	return out, rows.Err()
}

// KeywordSearch returns chunks of trending items whose text or parent caption
// contains every word, most popular first. Words are matched as lower-case
// substrings.
func (r *RetrievalRepository) KeywordSearch(ctx context.Context, words []string, sources []string, limit int) ([]*domain.RetrievedResult, error) {
	if limit <= 0 {
		limit = service.DefaultRetrieveLimit
	}

	conditions := []string{"i.is_trending"}
	args := []any{}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		args = append(args, w)
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(strpos(lower(c.content), $%d) > 0 OR strpos(lower(i.caption), $%d) > 0)", n, n))
	}
	if len(sources) > 0 {
		args = append(args, sources)
		conditions = append(conditions, fmt.Sprintf("s.handle = ANY($%d)", len(args)))
	}
	args = append(args, limit)

	query := `SELECT ` + resultColumns + ` ` + resultJoins +
		` WHERE ` + strings.Join(conditions, " AND ") +
		fmt.Sprintf(` ORDER BY i.view_count DESC, i.like_count DESC, c.item_id, c.chunk_index LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RetrievedResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Stats summarizes the stored corpus.
func (r *RetrievalRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{ItemsPerSource: map[string]int64{}}
	err := r.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM items),
			(SELECT COUNT(*) FROM items WHERE is_trending),
			(SELECT COUNT(*) FROM chunks),
			(SELECT MAX(posted_at) FROM items)`,
	).Scan(&stats.TotalItems, &stats.TrendingItems, &stats.TotalChunks, &stats.LatestItemAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT s.handle, COUNT(i.id)
		 FROM sources s LEFT JOIN items i ON i.source_id = s.id
		 GROUP BY s.handle`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var handle string
		var count int64
		if err := rows.Scan(&handle, &count); err != nil {
			return nil, err
		}
		stats.ItemsPerSource[handle] = count
	}
	return stats, rows.Err()
}

func scanResult(row pgx.Row) (*domain.RetrievedResult, error) {
	var res domain.RetrievedResult
	var hook *string
	if err := row.Scan(
		&res.ChunkID, &res.ItemID, &res.ItemURL, &res.ChunkIndex, &res.Text, &hook, &res.Caption, &res.Hashtags,
		&res.ViewCount, &res.LikeCount, &res.PostedAt, &res.SourceHandle,
	); err != nil {
		return nil, err
	}
	if hook != nil {
		res.Hook = *hook
	}
	return &res, nil
}
