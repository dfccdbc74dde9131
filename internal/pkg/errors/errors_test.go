package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromBackend(t *testing.T) {
	require.NoError(t, FromBackend(nil))

	timeout := FromBackend(fmt.Errorf("call: %w", context.DeadlineExceeded))
	require.ErrorIs(t, timeout, ErrTimeout)
	require.True(t, IsRetryable(timeout))

	down := FromBackend(errors.New("connection refused"))
	require.ErrorIs(t, down, ErrUnavailable)
	require.NotErrorIs(t, down, ErrTimeout)

	already := fmt.Errorf("wrapped: %w", ErrTimeout)
	require.Equal(t, already, FromBackend(already))
}
