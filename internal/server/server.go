// Package server exposes the record collection over REST. It is the remote
// store the client queue drains against.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"spesesync/internal/core"
	"spesesync/internal/log"
	"spesesync/internal/middleware/ratelimit"
	"spesesync/internal/middleware/security"
	"spesesync/internal/middleware/trace"
	"spesesync/internal/remote"
)

// Records is the persistence the handlers need.
type Records interface {
	Upsert(ctx context.Context, r core.Record) (created bool, err error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, q remote.ListQuery) (remote.ListResult, error)
	Ping(ctx context.Context) error
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	// MaxPageSize caps the limit query parameter.
	MaxPageSize int
	// Logger is handed to every API request; nil uses the slog default.
	Logger *log.Logger
}

type Server struct {
	http.Server
	records     Records
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	maxPageSize int
	now         func() time.Time

	shutdownOnce sync.Once
}

// New wires routes and middleware and returns a server ready for
// ListenAndServe.
func New(cfg Config, records Records) *Server {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 500
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		records:     records,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		tracer:      trace.NewMiddleware(detector.ExtractClientIP),
		maxPageSize: cfg.MaxPageSize,
		now:         time.Now,
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /expenses", s.handleList)
	api.HandleFunc("POST /expenses", s.handleCreate)
	api.HandleFunc("PUT /expenses/{id}", s.handleReplace)
	api.HandleFunc("DELETE /expenses/{id}", s.handleDelete)

	var apiHandler http.Handler = api
	apiHandler = s.rateLimiter.Middleware(detector.ExtractClientIP)(apiHandler)
	apiHandler = security.Headers(security.DefaultHeadersConfig())(apiHandler)
	apiHandler = log.Middleware(logger, trace.GetRequestID)(apiHandler)
	apiHandler = s.tracer.Middleware(apiHandler)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/expenses", apiHandler)
	mux.Handle("/expenses/", apiHandler)

	s.Addr = cfg.Addr
	s.Handler = mux
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 15 * time.Second
	s.WriteTimeout = 15 * time.Second
	s.IdleTimeout = 60 * time.Second
	return s
}

// Shutdown stops the rate limiter sweep and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
		m := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server stopped",
			"requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"rate_limited", s.rateLimiter.Rejected())
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.records.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
