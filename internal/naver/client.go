// Package naver implements a paginated client for the Naver news search API.
package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jmpark/stocknews-collector/internal/metrics"
	"github.com/jmpark/stocknews-collector/internal/news"
)

// Config controls pagination, pacing and retry behavior of the client.
type Config struct {
	BaseURL         string
	ClientID        string
	ClientSecret    string
	ItemsPerRequest int
	MaxItems        int
	RequestInterval time.Duration
	RetryDelay      time.Duration
	MaxRetries      int
	Timeout         time.Duration
}

// Client fetches news search results page by page.
type Client struct {
	httpClient *http.Client
	cfg        Config
	pacer      *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a search client. A nil logger falls back to a no-op.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.RequestInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		pacer:      rate.NewLimiter(rate.Every(interval), 1),
		logger:     logger,
	}
}

type searchResponse struct {
	Total   int            `json:"total"`
	Start   int            `json:"start"`
	Display int            `json:"display"`
	Items   []news.RawItem `json:"items"`
}

// FetchAll retrieves up to MaxItems results for the query, newest first.
// Transport faults and non-retryable status codes end the walk with the
// pages collected so far. Exhausting rate-limit retries returns the partial
// results alongside news.ErrRateLimitExhausted.
func (c *Client) FetchAll(ctx context.Context, query string) ([]news.RawItem, error) {
	var items []news.RawItem
	retries := 0

	for start := 1; start <= c.cfg.MaxItems; {
		if err := c.pacer.Wait(ctx); err != nil {
			return items, err
		}

		page, code, err := c.search(ctx, query, start)
		if err != nil {
			if ctx.Err() != nil {
				return items, ctx.Err()
			}
			c.logger.Warn("search request failed",
				zap.String("query", query),
				zap.Int("start", start),
				zap.Error(err))
			return items, nil
		}

		metrics.ObserveFetchRequest(code)

		if code == http.StatusTooManyRequests {
			retries++
			if retries > c.cfg.MaxRetries {
				return items, fmt.Errorf("query %q at start %d: %w", query, start, news.ErrRateLimitExhausted)
			}
			c.logger.Warn("rate limited, backing off",
				zap.String("query", query),
				zap.Int("start", start),
				zap.Duration("delay", c.cfg.RetryDelay),
				zap.Int("attempt", retries))
			metrics.ObserveRateLimitWait(query, c.cfg.RetryDelay)
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return items, ctx.Err()
			}
			continue
		}

		if code != http.StatusOK {
			c.logger.Warn("search returned non-ok status",
				zap.String("query", query),
				zap.Int("start", start),
				zap.Int("status", code))
			return items, nil
		}

		retries = 0

		if len(page.Items) == 0 {
			break
		}
		items = append(items, page.Items...)
		if len(page.Items) < c.cfg.ItemsPerRequest {
			break
		}
		start += c.cfg.ItemsPerRequest
	}

	return items, nil
}

func (c *Client) search(ctx context.Context, query string, start int) (*searchResponse, int, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("start", strconv.Itoa(start))
	q.Set("display", strconv.Itoa(c.cfg.ItemsPerRequest))
	q.Set("sort", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.cfg.ClientID)
	req.Header.Set("X-Naver-Client-Secret", c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var page searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return &page, resp.StatusCode, nil
}
