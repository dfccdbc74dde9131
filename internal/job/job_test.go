package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingPurger struct {
	cutoff int64
	err    error
}

func (p *recordingPurger) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	p.cutoff = cutoff
	return 2, p.err
}

func (p *recordingPurger) DeleteIdleBefore(ctx context.Context, cutoff int64) (int64, error) {
	p.cutoff = cutoff
	return 1, p.err
}

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := &recordingPurger{}
	j := NewEmbeddingCacheCleanupJob(p, 0)
	j.now = func() time.Time { return now }

	require.Equal(t, "embedding_cache_cleanup", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-30*24*time.Hour).Unix(), p.cutoff)

	p.err = errors.New("db down")
	require.Error(t, j.Run(context.Background()))
}

func TestSessionCleanupJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := &recordingPurger{}
	j := NewSessionCleanupJob(p, 2*time.Hour)
	j.now = func() time.Time { return now }

	require.Equal(t, "session_cleanup", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-2*time.Hour).UnixMilli(), p.cutoff)
}

func TestNilRepoIsNoop(t *testing.T) {
	require.NoError(t, NewSessionCleanupJob(nil, time.Hour).Run(context.Background()))
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 1).Run(context.Background()))
}
