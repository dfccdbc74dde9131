package repo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/finwise/internal/model"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

// MemoryIndex is a process local vector index. It is used when no
// database is configured and by tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]model.IndexEntry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]model.IndexEntry)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, entries []model.IndexEntry) error {
	for _, e := range entries {
		if e.ID == "" || len(e.Embedding) == 0 {
			return fmt.Errorf("%w: entry without id or embedding", appErr.ErrInvalid)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		e.Embedding = append([]float32(nil), e.Embedding...)
		e.Score = 0
		m.entries[e.ID] = e
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, embedding []float32, k int) ([]model.IndexEntry, error) {
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.IndexEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if len(e.Embedding) != len(embedding) {
			return nil, fmt.Errorf("%w: dimension mismatch %d != %d", appErr.ErrInvalid, len(e.Embedding), len(embedding))
		}
		e.Score = cosineSimilarity(embedding, e.Embedding)
		e.Embedding = nil
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *MemoryIndex) ListAll(ctx context.Context) ([]model.IndexEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.IndexEntry, 0, len(m.entries))
	for _, e := range m.entries {
		e.Embedding = nil
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Metadata.FileName != b.Metadata.FileName {
			return a.Metadata.FileName < b.Metadata.FileName
		}
		if a.Metadata.ContentHash != b.Metadata.ContentHash {
			return a.Metadata.ContentHash < b.Metadata.ContentHash
		}
		return a.Ordinal < b.Ordinal
	})
	return out, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Reset drops every entry.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]model.IndexEntry)
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
