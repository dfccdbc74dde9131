package repo

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xxxsen/finwise/internal/model"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

// MemorySessionStore keeps sessions in an expiring LRU. Idle sessions
// fall out after ttl, so it needs no cleanup job.
type MemorySessionStore struct {
	cache *expirable.LRU[string, model.Session]
}

func NewMemorySessionStore(size int, ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{cache: expirable.NewLRU[string, model.Session](size, nil, ttl)}
}

func (m *MemorySessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &s, nil
}

func (m *MemorySessionStore) Save(ctx context.Context, s *model.Session) error {
	m.cache.Add(s.ID, *s)
	return nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, id string) error {
	m.cache.Remove(id)
	return nil
}

func (m *MemorySessionStore) Len() int {
	return m.cache.Len()
}
