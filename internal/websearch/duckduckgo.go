package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

const defaultEndpoint = "https://html.duckduckgo.com/html/"

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

type DuckDuckGoConfig struct {
	Endpoint   string
	MaxResults int
	Timeout    time.Duration
	RatePerSec float64
}

// DuckDuckGo scrapes the html endpoint, which needs no api key.
type DuckDuckGo struct {
	endpoint   string
	maxResults int
	timeout    time.Duration
	client     *http.Client
	limiter    *rate.Limiter
}

func NewDuckDuckGo(cfg DuckDuckGoConfig) *DuckDuckGo {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 8
	}
	d := &DuckDuckGo{
		endpoint:   cfg.Endpoint,
		maxResults: cfg.MaxResults,
		timeout:    cfg.Timeout,
		client:     &http.Client{},
	}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return d
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, appErr.FromBackend(err)
		}
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	u := d.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, appErr.FromBackend(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d: %w", resp.StatusCode, appErr.ErrUnavailable)
	}
	return parseResults(io.LimitReader(resp.Body, 1<<20), d.maxResults)
}

func parseResults(r io.Reader, max int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	var out []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		res := Result{
			Title:   strings.TrimSpace(link.Text()),
			URL:     resolveRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		}
		if res.URL == "" || res.Title == "" {
			return true
		}
		out = append(out, res)
		return len(out) < max
	})
	return out, nil
}

// resolveRedirect unwraps duckduckgo's "/l/?uddg=" click tracking links.
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	if !strings.Contains(href, "uddg=") {
		if strings.HasPrefix(href, "//") {
			return "https:" + href
		}
		return href
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("uddg")
}
