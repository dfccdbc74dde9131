package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type idleSessionPurger interface {
	DeleteIdleBefore(ctx context.Context, cutoff int64) (int64, error)
}

// SessionCleanupJob removes chat sessions untouched for longer than
// maxIdle, including any turn still waiting for consent.
type SessionCleanupJob struct {
	repo    idleSessionPurger
	maxIdle time.Duration
	now     func() time.Time
}

func NewSessionCleanupJob(repo idleSessionPurger, maxIdle time.Duration) *SessionCleanupJob {
	return &SessionCleanupJob{repo: repo, maxIdle: maxIdle, now: time.Now}
}

func (j *SessionCleanupJob) Name() string {
	return "session_cleanup"
}

func (j *SessionCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	maxIdle := j.maxIdle
	if maxIdle <= 0 {
		maxIdle = 24 * time.Hour
	}
	// session mtime is in milliseconds
	cutoff := j.now().Add(-maxIdle).UnixMilli()
	n, err := j.repo.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("idle sessions removed", zap.Int64("removed", n))
	return nil
}
