package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	token, err := GenerateToken("sess-1", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "sess-1", claims.SessionID)

	_, err = ParseToken(token, []byte("other"))
	require.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("sess-1", []byte("k"), -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("k"))
	require.Error(t, err)
}
