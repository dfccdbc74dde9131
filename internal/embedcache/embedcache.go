// Package embedcache puts read-through caches in front of an embedder.
// Identical (model, task, text) triples always map to the same vector, so a
// document re-ingested after a partial failure does not pay for its
// embeddings twice.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/ai"
	"github.com/xxxsen/finwise/internal/model"
)

// Store is a durable embedding cache.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

type Options struct {
	LRUSize int
	LRUTTL  time.Duration
	Store   Store
}

// Wrap layers an in-process LRU over an optional durable store. Either tier
// is skipped when not configured.
func Wrap(e ai.IEmbedder, opts Options) ai.IEmbedder {
	if e == nil {
		return nil
	}
	if opts.Store != nil {
		e = &storeEmbedder{next: e, store: opts.Store}
	}
	if opts.LRUSize > 0 && opts.LRUTTL > 0 {
		e = &lruEmbedder{next: e, cache: expirable.NewLRU[string, []float32](opts.LRUSize, nil, opts.LRUTTL)}
	}
	return e
}

type storeEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (d *storeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := newCacheKey(d.next.ModelName(), taskType, text)
	values, ok, err := d.store.Get(ctx, key.model, taskType, key.contentHash)
	if err != nil {
		logutil.GetLogger(ctx).Warn("embedding cache read failed", zap.Error(err))
	} else if ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (store)", zap.String("task_type", taskType))
		return values, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.store.Save(ctx, &model.EmbeddingCache{
		ModelName:   key.model,
		TaskType:    taskType,
		ContentHash: key.contentHash,
		Embedding:   res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
	}
	return res, nil
}

func (d *storeEmbedder) ModelName() string {
	return d.next.ModelName()
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := newCacheKey(l.next.ModelName(), taskType, text).String()
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.String("task_type", taskType))
		return cloneEmbedding(cached), nil
	}
	res, err := l.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

type cacheKey struct {
	model       string
	taskType    string
	contentHash string
}

func newCacheKey(modelName, taskType, text string) cacheKey {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	sum := sha256.Sum256([]byte(text))
	return cacheKey{model: modelName, taskType: taskType, contentHash: hex.EncodeToString(sum[:])}
}

func (k cacheKey) String() string {
	return "embed:" + k.model + ":" + k.taskType + ":" + k.contentHash
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
