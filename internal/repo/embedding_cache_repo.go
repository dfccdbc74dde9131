package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/finwise/internal/model"
	"github.com/xxxsen/finwise/internal/pkg/dbutil"
)

// EmbeddingCacheRepo persists embeddings keyed by model, task type and
// text hash so re-ingesting a file does not pay for embedding twice.
type EmbeddingCacheRepo struct {
	db *sqlx.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: sqlx.NewDb(db, "postgres")}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	where := map[string]interface{}{
		"model_name":   modelName,
		"task_type":    taskType,
		"content_hash": contentHash,
	}
	sqlStr, args, err := builder.BuildSelect("embedding_cache", where, []string{"embedding"})
	if err != nil {
		return nil, false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var embedding pgvector.Vector
	if err := r.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&embedding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return embedding.Slice(), true, nil
}

func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	const query = `
		INSERT INTO embedding_cache (model_name, task_type, content_hash, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (model_name, task_type, content_hash) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ModelName,
		item.TaskType,
		item.ContentHash,
		pgvector.NewVector(item.Embedding),
		item.Ctime,
	)
	return err
}

func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("embedding_cache", map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
