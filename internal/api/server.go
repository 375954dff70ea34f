package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pbaille/mandalart/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures a Server
type Options struct {
	Addr           string
	AllowedOrigins []string
	Logger         *log.Logger
	// Registry receives the server's metrics; a private one is created when nil
	Registry *prometheus.Registry
	// RateLimit is requests per second per client address; zero disables limiting
	RateLimit float64
	RateBurst int
}

// Server handles HTTP requests for the mandalart API
type Server struct {
	store   *store.Store
	addr    string
	origins []string
	logger  *log.Logger
	metrics *metrics
	limiter *rateLimiter
	handler http.Handler
}

// New creates a new API server
func New(s *store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	srv := &Server{
		store:   s,
		addr:    opts.Addr,
		origins: opts.AllowedOrigins,
		logger:  logger,
		metrics: newMetrics(reg),
	}

	mux := http.NewServeMux()

	// Epics
	mux.HandleFunc("GET /api/epic", srv.listEpics)
	mux.HandleFunc("POST /api/epic", srv.createEpic)
	mux.HandleFunc("DELETE /api/epic", srv.deleteAllEpics)
	mux.HandleFunc("GET /api/epic/{id}", srv.getEpic)
	mux.HandleFunc("PUT /api/epic/{id}", srv.updateEpic)
	mux.HandleFunc("DELETE /api/epic/{id}", srv.deleteEpic)
	mux.HandleFunc("GET /api/epic/{id}/subs", srv.listSubEpics)

	// Habits; the collection answers with and without the trailing slash
	mux.HandleFunc("GET /api/habit", srv.listHabits)
	mux.HandleFunc("GET /api/habit/{$}", srv.listHabits)
	mux.HandleFunc("POST /api/habit", srv.createHabit)
	mux.HandleFunc("POST /api/habit/{$}", srv.createHabit)
	mux.HandleFunc("GET /api/habit/{id}", srv.getHabit)
	mux.HandleFunc("PUT /api/habit/{id}", srv.updateHabit)
	mux.HandleFunc("DELETE /api/habit/{id}", srv.deleteHabit)
	mux.HandleFunc("PATCH /api/habit/{id}/status", srv.updateHabitStatus)
	mux.HandleFunc("POST /api/habit/{id}/commit", srv.createCommit)
	mux.HandleFunc("GET /api/habit/{id}/commits", srv.listCommits)

	// Health check
	mux.HandleFunc("GET /api/hello", srv.hello)
	mux.HandleFunc("GET /health", srv.health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	var h http.Handler = mux
	if opts.RateLimit > 0 {
		srv.limiter = newRateLimiter(opts.RateLimit, opts.RateBurst, logger)
		h = srv.limiter.handler(h)
	}
	srv.handler = srv.instrument(srv.withCORS(h))
	return srv
}

// Handler returns the fully wrapped handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.limiter != nil {
		sweepCtx, stop := context.WithCancel(ctx)
		defer stop()
		go s.limiter.sweep(sweepCtx, limiterSweep, limiterIdle)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Shutting down server")
		return httpServer.Shutdown(shutdownCtx)
	}
}

// withCORS allows the configured frontend origins
func (s *Server) withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			// credentials only for origins that were listed by name
			if slices.Contains(s.origins, origin) {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags each request with an id, then logs and counts it
func (s *Server) instrument(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(requestIDHeader, requestID)
		}
		w.Header().Set(requestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)

		// the mux records the matched pattern on the request it was given
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.metrics.observe(route, rec.status, elapsed)

		logFn := s.logger.Info
		if rec.status >= http.StatusInternalServerError {
			logFn = s.logger.Error
		}
		logFn("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
			"request_id", requestID,
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello from mandalart!"})
}

// storeError maps store sentinels onto statuses; notFound is the 404 detail
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("store failure", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
