package filestore

import (
	"context"
	"io"

	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

// noneStore discards uploads; it is the default when archiving is off.
type noneStore struct{}

func init() {
	Register("none", func(args interface{}) (Store, error) {
		return noneStore{}, nil
	})
}

func (noneStore) Type() string { return "none" }

func (noneStore) Save(ctx context.Context, key string, r ReadSeekCloser, size int64) error {
	return nil
}

func (noneStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, appErr.ErrNotFound
}

func (noneStore) Delete(ctx context.Context, key string) error {
	return nil
}
