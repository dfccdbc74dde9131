package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAICompatibleRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/chat/completions":
			var req openAIChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "m1", req.Model)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" hi "}}]}`))
		case "/embeddings":
			_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.25]}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p, err := NewProvider("openai", map[string]interface{}{"api_key": "key", "base_url": srv.URL})
	require.NoError(t, err)
	out, err := p.Generate(context.Background(), "m1", "hello")
	require.NoError(t, err)
	require.Equal(t, "hi", out)

	ep, err := NewEmbedProvider("openai", map[string]interface{}{"api_key": "key", "base_url": srv.URL})
	require.NoError(t, err)
	vec, err := ep.Embed(context.Background(), "e1", "text", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestOpenAIRequiresKey(t *testing.T) {
	p, err := NewProvider("openai", map[string]interface{}{})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "m", "x")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream"))
	}))
	defer srv.Close()
	p, err := NewProvider("ollama", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "m", "x")
	require.ErrorContains(t, err, "upstream")
}
