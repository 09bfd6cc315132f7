package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmpark/stocknews-collector/internal/metrics"
	"github.com/jmpark/stocknews-collector/internal/news"
)

func init() {
	metrics.Init()
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		ClientID:        "id",
		ClientSecret:    "secret",
		ItemsPerRequest: 2,
		MaxItems:        6,
		RequestInterval: time.Millisecond,
		RetryDelay:      time.Millisecond,
		MaxRetries:      2,
		Timeout:         time.Second,
	}
}

func pageOf(start, count int) searchResponse {
	items := make([]news.RawItem, count)
	for i := range items {
		items[i] = news.RawItem{
			Title:   fmt.Sprintf("기사 %d", start+i),
			Link:    fmt.Sprintf("https://news.example.com/%d", start+i),
			PubDate: "Mon, 01 Jan 2024 09:30:00 +0900",
		}
	}
	return searchResponse{Total: 100, Start: start, Display: count, Items: items}
}

func TestFetchAllPaginatesUntilShortPage(t *testing.T) {
	var starts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "id", r.Header.Get("X-Naver-Client-Id"))
		require.Equal(t, "secret", r.Header.Get("X-Naver-Client-Secret"))
		require.Equal(t, "date", r.URL.Query().Get("sort"))

		start := r.URL.Query().Get("start")
		starts = append(starts, start)

		count := 2
		if start == "5" {
			count = 1
		}
		var s int
		fmt.Sscanf(start, "%d", &s)
		require.NoError(t, json.NewEncoder(w).Encode(pageOf(s, count)))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	items, err := c.FetchAll(context.Background(), "코스피")
	require.NoError(t, err)
	require.Len(t, items, 5)
	require.Equal(t, []string{"1", "3", "5"}, starts)
	require.Equal(t, "기사 1", items[0].Title)
}

func TestFetchAllStopsAtMaxItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s int
		fmt.Sscanf(r.URL.Query().Get("start"), "%d", &s)
		require.NoError(t, json.NewEncoder(w).Encode(pageOf(s, 2)))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	items, err := c.FetchAll(context.Background(), "코스피")
	require.NoError(t, err)
	require.Len(t, items, 6)
}

func TestFetchAllRetriesSamePageOnRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var s int
		fmt.Sscanf(r.URL.Query().Get("start"), "%d", &s)
		count := 2
		if s == 3 {
			count = 0
		}
		require.NoError(t, json.NewEncoder(w).Encode(pageOf(s, count)))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	items, err := c.FetchAll(context.Background(), "코스피")
	require.NoError(t, err)
	// Page at start=3 was rate limited once, then retried and found empty.
	require.Len(t, items, 2)
	require.Equal(t, 3, calls)
}

func TestFetchAllSurfacesRateLimitExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "1" {
			var s int
			fmt.Sscanf(r.URL.Query().Get("start"), "%d", &s)
			require.NoError(t, json.NewEncoder(w).Encode(pageOf(s, 2)))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	items, err := c.FetchAll(context.Background(), "코스피")
	require.ErrorIs(t, err, news.ErrRateLimitExhausted)
	require.Len(t, items, 2)
}

func TestFetchAllKeepsPartialResultsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "1" {
			var s int
			fmt.Sscanf(r.URL.Query().Get("start"), "%d", &s)
			require.NoError(t, json.NewEncoder(w).Encode(pageOf(s, 2)))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	items, err := c.FetchAll(context.Background(), "코스피")
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestFetchAllHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	c := NewClient(cfg, nil)
	_, err := c.FetchAll(ctx, "코스피")
	require.ErrorIs(t, err, context.Canceled)
}
