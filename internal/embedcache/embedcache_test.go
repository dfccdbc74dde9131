package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/finwise/internal/model"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string { return "m" }

type mapStore struct {
	items map[string][]float32
	saves int
}

func (m *mapStore) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	v, ok := m.items[modelName+taskType+contentHash]
	return v, ok, nil
}

func (m *mapStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	m.saves++
	m.items[item.ModelName+item.TaskType+item.ContentHash] = item.Embedding
	return nil
}

func TestLRUTierAvoidsSecondCall(t *testing.T) {
	inner := &countingEmbedder{}
	e := Wrap(inner, Options{LRUSize: 10, LRUTTL: time.Minute})
	a, err := e.Embed(context.Background(), "hello", "Q")
	require.NoError(t, err)
	a[0] = 99
	b, err := e.Embed(context.Background(), "hello", "Q")
	require.NoError(t, err)
	require.Equal(t, float32(5), b[0])
	require.Equal(t, 1, inner.calls)

	_, err = e.Embed(context.Background(), "hello", "D")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestStoreTierSurvivesNewWrapper(t *testing.T) {
	store := &mapStore{items: map[string][]float32{}}
	inner := &countingEmbedder{}
	_, err := Wrap(inner, Options{Store: store}).Embed(context.Background(), "abc", "Q")
	require.NoError(t, err)
	_, err = Wrap(inner, Options{Store: store}).Embed(context.Background(), "abc", "Q")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)
	require.Equal(t, 1, store.saves)
}

func TestErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	e := Wrap(inner, Options{LRUSize: 10, LRUTTL: time.Minute})
	_, err := e.Embed(context.Background(), "x", "")
	require.Error(t, err)
	_, err = e.Embed(context.Background(), "x", "")
	require.Error(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestWrapWithoutTiersIsIdentity(t *testing.T) {
	inner := &countingEmbedder{}
	require.Same(t, inner, Wrap(inner, Options{}))
	require.Nil(t, Wrap(nil, Options{}))
}
