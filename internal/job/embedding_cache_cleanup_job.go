package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type embeddingCachePurger interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// EmbeddingCacheCleanupJob drops cached embeddings older than maxAgeDays.
// Entries are keyed by model name, so rows of a retired embedding model
// only ever leave through this job.
type EmbeddingCacheCleanupJob struct {
	repo       embeddingCachePurger
	maxAgeDays int
	now        func() time.Time
}

func NewEmbeddingCacheCleanupJob(repo embeddingCachePurger, maxAgeDays int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{repo: repo, maxAgeDays: maxAgeDays, now: time.Now}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	cutoff := j.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour).Unix()
	n, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding cache cleaned", zap.Int64("removed", n))
	return nil
}
