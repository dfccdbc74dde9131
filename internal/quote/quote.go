// Package quote looks up live prices from the Yahoo Finance chart API.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

const defaultEndpoint = "https://query1.finance.yahoo.com/v8/finance/chart"

type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Exchange      string    `json:"exchange"`
	Currency      string    `json:"currency"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	High52        float64   `json:"high_52w"`
	Low52         float64   `json:"low_52w"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (q *Quote) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s - Real-time Stock Data\n", q.Symbol)
	if q.Name != "" {
		fmt.Fprintf(&sb, "Name: %s\n", q.Name)
	}
	trend := "up"
	if q.Change < 0 {
		trend = "down"
	}
	fmt.Fprintf(&sb, "Current Price: %.2f %s (%s %+.2f, %+.2f%%)\n", q.Price, q.Currency, trend, q.Change, q.ChangePercent)
	fmt.Fprintf(&sb, "Previous Close: %s\n", optional(q.PreviousClose))
	fmt.Fprintf(&sb, "52-Week High: %s\n", optional(q.High52))
	fmt.Fprintf(&sb, "52-Week Low: %s\n", optional(q.Low52))
	fmt.Fprintf(&sb, "Last Updated: %s", q.UpdatedAt.Format("2006-01-02 15:04:05"))
	return sb.String()
}

func optional(v float64) string {
	if v == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", v)
}

type Config struct {
	Endpoint   string
	Timeout    time.Duration
	CacheTTL   time.Duration
	CacheSize  int
	RatePerSec float64
	Aliases    map[string]string
}

type Client struct {
	endpoint string
	timeout  time.Duration
	aliases  map[string]string
	http     *http.Client
	cache    *expirable.LRU[string, Quote]
	limiter  *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	c := &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		timeout:  cfg.Timeout,
		aliases:  MergeAliases(cfg.Aliases),
		http:     &http.Client{},
		cache:    expirable.NewLRU[string, Quote](cfg.CacheSize, nil, cfg.CacheTTL),
	}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return c
}

// Lookup resolves the ticker in a free-form query and fetches its
// quote. Any failure is reported as absent; a missing quote is a normal
// outcome.
func (c *Client) Lookup(ctx context.Context, query string) (*Quote, bool) {
	symbol := ResolveTicker(query, c.aliases)
	if symbol == "" {
		logutil.GetLogger(ctx).Info("no ticker in price query", zap.String("query", query))
		return nil, false
	}
	q, err := c.Fetch(ctx, symbol)
	if err != nil {
		logutil.GetLogger(ctx).Warn("fetch quote failed", zap.String("symbol", symbol), zap.Error(err))
		return nil, false
	}
	return q, true
}

func (c *Client) Fetch(ctx context.Context, symbol string) (*Quote, error) {
	if q, ok := c.cache.Get(symbol); ok {
		return &q, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, appErr.FromBackend(err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	u := fmt.Sprintf("%s/%s?range=1d&interval=1d", c.endpoint, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; finwise)")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, appErr.FromBackend(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("symbol %s: %w", symbol, appErr.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote status %d: %w", resp.StatusCode, appErr.ErrUnavailable)
	}
	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	q, err := payload.quote(symbol)
	if err != nil {
		return nil, err
	}
	c.cache.Add(symbol, *q)
	logutil.GetLogger(ctx).Debug("quote fetched", zap.String("symbol", q.Symbol), zap.Float64("price", q.Price))
	return q, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta chartMeta `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	ExchangeName       string  `json:"exchangeName"`
	LongName           string  `json:"longName"`
	ShortName          string  `json:"shortName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	PreviousClose      float64 `json:"previousClose"`
	FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
}

func (r chartResponse) quote(symbol string) (*Quote, error) {
	if r.Chart.Error != nil {
		return nil, fmt.Errorf("symbol %s: %s: %w", symbol, r.Chart.Error.Description, appErr.ErrNotFound)
	}
	if len(r.Chart.Result) == 0 || r.Chart.Result[0].Meta.RegularMarketPrice == 0 {
		return nil, fmt.Errorf("symbol %s: no price: %w", symbol, appErr.ErrNotFound)
	}
	m := r.Chart.Result[0].Meta
	q := &Quote{
		Symbol:        m.Symbol,
		Name:          m.LongName,
		Exchange:      m.ExchangeName,
		Currency:      m.Currency,
		Price:         m.RegularMarketPrice,
		PreviousClose: m.PreviousClose,
		High52:        m.FiftyTwoWeekHigh,
		Low52:         m.FiftyTwoWeekLow,
		UpdatedAt:     time.Unix(m.RegularMarketTime, 0).UTC(),
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	if q.Name == "" {
		q.Name = m.ShortName
	}
	if q.PreviousClose == 0 {
		q.PreviousClose = m.ChartPreviousClose
	}
	if q.PreviousClose != 0 {
		q.Change = q.Price - q.PreviousClose
		q.ChangePercent = q.Change / q.PreviousClose * 100
	}
	return q, nil
}
