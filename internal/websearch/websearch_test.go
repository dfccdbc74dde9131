package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

const resultsPage = `<html><body>
<div class="result results_links">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FParis&rut=abc">Paris - Wikipedia</a></h2>
  <a class="result__snippet">Paris is the capital of France.</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="https://www.britannica.com/place/Paris">Paris | Britannica</a></h2>
  <a class="result__snippet">Capital city of France.</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FParis">Paris - Wikipedia</a></h2>
  <a class="result__snippet">Duplicate.</a>
</div>
<div class="result"><a class="result__snippet">no link</a></div>
</body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "capital of France" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	results, err := NewDuckDuckGo(DuckDuckGoConfig{Endpoint: srv.URL + "/html/"}).Search(context.Background(), "capital of France")
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "https://en.wikipedia.org/wiki/Paris", results[0].URL)
	require.Equal(t, "Paris - Wikipedia", results[0].Title)
	require.Equal(t, "Paris is the capital of France.", results[0].Snippet)
	require.Equal(t, "https://www.britannica.com/place/Paris", results[1].URL)

	limited, err := NewDuckDuckGo(DuckDuckGoConfig{Endpoint: srv.URL + "/html/", MaxResults: 1}).Search(context.Background(), "capital of France")
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestDuckDuckGoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	_, err := NewDuckDuckGo(DuckDuckGoConfig{Endpoint: srv.URL}).Search(context.Background(), "q")
	require.ErrorIs(t, err, appErr.ErrUnavailable)
}

type fakeSearcher struct {
	results []Result
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	return f.results, f.err
}

type fakeSummarizer struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeSummarizer) SummarizeWeb(ctx context.Context, question string, results string) (string, error) {
	f.prompt = results
	return f.reply, f.err
}

func TestAdapterAnswer(t *testing.T) {
	s := &fakeSearcher{results: []Result{
		{Title: "Paris - Wikipedia", URL: "https://en.wikipedia.org/wiki/Paris", Snippet: "Paris is the capital."},
		{Title: "Britannica", URL: "https://www.britannica.com/place/Paris", Snippet: "See https://en.wikipedia.org/wiki/Paris too."},
	}}
	sum := &fakeSummarizer{reply: "Paris is the capital of France."}
	ans := NewAdapter(s, sum).Answer(context.Background(), "capital of France")

	require.False(t, ans.Degraded)
	require.Equal(t, "Paris is the capital of France.", ans.Text)
	require.Equal(t, []string{"https://en.wikipedia.org/wiki/Paris", "https://www.britannica.com/place/Paris"}, ans.Sources)
	require.Equal(t, []string{"Paris - Wikipedia", "Britannica"}, ans.Titles)
	require.True(t, strings.HasPrefix(sum.prompt, "[Paris - Wikipedia](https://en.wikipedia.org/wiki/Paris)"))
}

func TestAdapterSearchFailureStillSummarizes(t *testing.T) {
	sum := &fakeSummarizer{reply: "Please try again later."}
	ans := NewAdapter(&fakeSearcher{err: errors.New("timeout")}, sum).Answer(context.Background(), "q")
	require.True(t, ans.Degraded)
	require.Equal(t, Apology, sum.prompt)
	require.Equal(t, "Please try again later.", ans.Text)
	require.Empty(t, ans.Sources)
}

func TestAdapterSummaryFailure(t *testing.T) {
	ans := NewAdapter(&fakeSearcher{}, &fakeSummarizer{err: errors.New("down")}).Answer(context.Background(), "q")
	require.True(t, ans.Degraded)
	require.Equal(t, Apology, ans.Text)
}
