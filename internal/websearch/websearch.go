// Package websearch answers a query from live web results.
package websearch

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const Apology = "I encountered a timeout while searching the web. This might be a temporary connectivity issue. Please try again or rephrase your question."

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s\)]+`)
	sourcePattern = regexp.MustCompile(`\[([^\]]+)\]\s*\(https?://[^\)]+\)`)
)

type Summarizer interface {
	SummarizeWeb(ctx context.Context, question string, results string) (string, error)
}

type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
	Titles  []string `json:"titles"`
	// Degraded is set when the search or the summary failed and Text
	// is an apology.
	Degraded bool `json:"degraded"`
}

// Adapter never returns an error: failures degrade to an apology.
type Adapter struct {
	searcher   Searcher
	summarizer Summarizer
}

func NewAdapter(searcher Searcher, summarizer Summarizer) *Adapter {
	return &Adapter{searcher: searcher, summarizer: summarizer}
}

func (a *Adapter) Answer(ctx context.Context, query string) *Answer {
	logger := logutil.GetLogger(ctx).With(zap.String("query", query))
	var (
		raw      string
		degraded bool
	)
	results, err := a.searcher.Search(ctx, query)
	switch {
	case err != nil:
		logger.Error("web search failed", zap.Error(err))
		raw = Apology
		degraded = true
	case len(results) == 0:
		raw = "No live web results found."
	default:
		raw = FormatResults(results)
	}
	logger.Info("web search finished", zap.Int("results", len(results)), zap.Int("chars", len(raw)))

	ans := &Answer{Degraded: degraded}
	if !degraded {
		ans.Sources = ExtractURLs(raw)
		ans.Titles = ExtractTitles(raw)
	}
	text, err := a.summarizer.SummarizeWeb(ctx, query, raw)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Error("summarize web results failed", zap.Error(err))
		ans.Text = Apology
		ans.Degraded = true
		return ans
	}
	ans.Text = text
	return ans
}

func FormatResults(results []Result) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%s](%s)\n%s\n", r.Title, r.URL, r.Snippet)
	}
	return sb.String()
}

// ExtractURLs returns the urls in text, de-duplicated in first-seen order.
func ExtractURLs(text string) []string {
	return dedup(urlPattern.FindAllString(text, -1))
}

func ExtractTitles(text string) []string {
	var titles []string
	for _, m := range sourcePattern.FindAllStringSubmatch(text, -1) {
		titles = append(titles, m[1])
	}
	return dedup(titles)
}

func dedup(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
