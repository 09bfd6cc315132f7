package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	// Observe helpers must not panic once initialized.
	ObserveRun("success")
	ObserveArticles("주식", 3)
	ObserveArticles("주식", 0)
	ObserveFetchRequest(200)
	ObserveRateLimitWait("코스피", 2*time.Second)
	ObserveHTTPRequest(http.MethodGet, "/healthz", http.StatusOK, 10*time.Millisecond)
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/scheduler/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/scheduler/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
