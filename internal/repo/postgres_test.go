package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/finwise/internal/model"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
	"github.com/xxxsen/finwise/test/testutil"
)

func TestChunkRepoRoundTrip(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	r := NewChunkRepo(conn)

	require.NoError(t, r.Upsert(ctx, []model.IndexEntry{
		entry("h1_0", "h1", "a.txt", 0, 1, 0, 0),
		entry("h1_1", "h1", "a.txt", 1, 0, 1, 0),
		entry("h2_0", "h2", "b.txt", 0, 0, 0, 1),
	}))
	n, err := r.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	got, err := r.Query(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "h1_1", got[0].ID)
	require.Equal(t, "a.txt", got[0].Metadata.FileName)

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "h1_0", all[0].ID)

	require.NoError(t, r.Delete(ctx, []string{"h1_0", "h1_1"}))
	n, err = r.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSessionRepoRoundTrip(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	r := NewSessionRepo(conn)

	_, err := r.Get(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	s := model.NewSession("s1", 10)
	s.PendingQuery = "gold"
	s.WebPermission = model.PermissionGranted
	s.ForceWeb = true
	s.State = model.StateForcedWeb
	s.Category = model.CategoryGeneral
	require.NoError(t, r.Save(ctx, s))

	got, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, *s, *got)

	removed, err := r.DeleteIdleBefore(ctx, 11)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestEmbeddingCacheRepo(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	r := NewEmbeddingCacheRepo(conn)

	_, ok, err := r.Get(ctx, "m", "RETRIEVAL_DOCUMENT", "hash")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Save(ctx, &model.EmbeddingCache{
		ModelName: "m", TaskType: "RETRIEVAL_DOCUMENT", ContentHash: "hash",
		Embedding: []float32{0.5, 0.25}, Ctime: 5,
	}))
	vec, ok, err := r.Get(ctx, "m", "RETRIEVAL_DOCUMENT", "hash")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{0.5, 0.25}, vec)

	removed, err := r.DeleteBefore(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}
