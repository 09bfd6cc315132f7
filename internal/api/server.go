// Package api exposes the HTTP control surface for the collector service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmpark/stocknews-collector/internal/config"
	"github.com/jmpark/stocknews-collector/internal/metrics"
	"github.com/jmpark/stocknews-collector/internal/news"
	"github.com/jmpark/stocknews-collector/internal/scheduler"
)

// SchedulerControl is the scheduler surface the API drives.
type SchedulerControl interface {
	Start(runImmediately bool) (scheduler.StartResult, error)
	Stop() (scheduler.StopResult, error)
	Status() scheduler.Status
	TriggerRun(date time.Time)
}

// Server wires HTTP handlers to the scheduler.
type Server struct {
	router chi.Router
	sched  SchedulerControl
	clock  news.Clock
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(sched SchedulerControl, clock news.Clock, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sched:  sched,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(metrics.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/collector/run", s.triggerRun)
		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", s.schedulerStatus)
			r.Post("/start", s.startScheduler)
			r.Post("/stop", s.stopScheduler)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type runRequest struct {
	Date string `json:"date"`
}

// triggerRun kicks off one collection run in the background. The date is
// "YYYYMMDD"; an empty body or date means today in KST.
func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	date := s.clock.Now().In(news.KST)
	if req.Date != "" {
		parsed, err := time.ParseInLocation("20060102", req.Date, news.KST)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "date must be YYYYMMDD")
			return
		}
		date = parsed
	}

	s.sched.TriggerRun(date)
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{
		"status": "started",
		"date":   date.Format("2006-01-02"),
	})
}

func (s *Server) schedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, s.sched.Status())
}

type startRequest struct {
	RunImmediately bool `json:"run_immediately"`
}

func (s *Server) startScheduler(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	result, err := s.sched.Start(req.RunImmediately)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": string(result)})
}

func (s *Server) stopScheduler(w http.ResponseWriter, _ *http.Request) {
	result, err := s.sched.Stop()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": string(result)})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeJSON(zap.NewNop(), w, http.StatusForbidden, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(s.logger, w, status, map[string]string{"error": msg})
}
