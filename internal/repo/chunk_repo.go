package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/finwise/internal/model"
	"github.com/xxxsen/finwise/internal/pkg/dbutil"
)

const deleteBatchSize = 500

var chunkColumns = []string{"id", "content_hash", "ordinal", "file_name", "content", "ctime"}

type chunkRow struct {
	ID          string  `db:"id"`
	ContentHash string  `db:"content_hash"`
	Ordinal     int     `db:"ordinal"`
	FileName    string  `db:"file_name"`
	Content     string  `db:"content"`
	Ctime       int64   `db:"ctime"`
	Score       float64 `db:"score"`
}

func (r chunkRow) entry() model.IndexEntry {
	return model.IndexEntry{
		ID:      r.ID,
		Text:    r.Content,
		Ordinal: r.Ordinal,
		Ctime:   r.Ctime,
		Score:   float32(r.Score),
		Metadata: model.IndexMetadata{
			ContentHash: r.ContentHash,
			FileName:    r.FileName,
		},
	}
}

// ChunkRepo is the pgvector backed vector index.
type ChunkRepo struct {
	db *sqlx.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: sqlx.NewDb(db, "postgres")}
}

// Upsert writes all entries in one transaction; existing ids are replaced.
func (r *ChunkRepo) Upsert(ctx context.Context, entries []model.IndexEntry) (err error) {
	if len(entries) == 0 {
		return nil
	}
	const query = `
		INSERT INTO chunks (id, content_hash, ordinal, file_name, content, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			ordinal = EXCLUDED.ordinal,
			file_name = EXCLUDED.file_name,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, e := range entries {
		if _, err = tx.ExecContext(ctx, query,
			e.ID,
			e.Metadata.ContentHash,
			e.Ordinal,
			e.Metadata.FileName,
			e.Text,
			pgvector.NewVector(e.Embedding),
			e.Ctime,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ChunkRepo) Query(ctx context.Context, embedding []float32, k int) ([]model.IndexEntry, error) {
	if k <= 0 {
		return nil, nil
	}
	const query = `
		SELECT id, content_hash, ordinal, file_name, content, ctime, 1 - (embedding <=> $1) AS score
		FROM chunks
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`
	var rows []chunkRow
	if err := r.db.SelectContext(ctx, &rows, query, pgvector.NewVector(embedding), k); err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

// ListAll returns every entry without its embedding.
func (r *ChunkRepo) ListAll(ctx context.Context) ([]model.IndexEntry, error) {
	where := map[string]interface{}{
		"_orderby": "file_name asc, content_hash asc, ordinal asc",
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, chunkColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var rows []chunkRow
	if err := r.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

func (r *ChunkRepo) Delete(ctx context.Context, ids []string) error {
	for _, batch := range dbutil.Chunk(ids, deleteBatchSize) {
		sqlStr, args, err := builder.BuildDelete("chunks", map[string]interface{}{"id in": batch})
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChunkRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM chunks"); err != nil {
		return 0, err
	}
	return count, nil
}

func toEntries(rows []chunkRow) []model.IndexEntry {
	out := make([]model.IndexEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entry())
	}
	return out
}
