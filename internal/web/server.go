// Package web provides the HTTP API for loading flat files into PostgreSQL.
package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/loader"
	mw "github.com/JonMunkholm/flatload/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LoadService is the loader API the handlers drive. Satisfied by
// *loader.Service.
type LoadService interface {
	DescribeTable(ctx context.Context, schema, name string) (loader.Table, error)
	StartLoad(ctx context.Context, req loader.LoadRequest, body io.ReadCloser) (string, error)
	Progress(id string) (loader.LoadProgress, error)
	Result(ctx context.Context, id string) (*loader.LoadResult, error)
	Cancel(id string) error
	Preview(ctx context.Context, req loader.PreviewRequest, body io.Reader) (*loader.PreviewResult, error)
	LimiterStatus() loader.LimiterStatus
}

// Pinger checks database reachability. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the load API.
type Server struct {
	svc           LoadService
	db            Pinger // nil skips the database health check
	cfg           *config.Config
	defaultFormat loader.Format

	router   *chi.Mux
	server   *http.Server
	limiters []*mw.RateLimiter
}

// NewServer creates a new Server instance. defaultFormat is used when a
// request names no format and the file extension is not recognised.
func NewServer(svc LoadService, db Pinger, cfg *config.Config, defaultFormat loader.Format) *Server {
	s := &Server{
		svc:           svc,
		db:            db,
		cfg:           cfg,
		defaultFormat: defaultFormat,
		router:        chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}
}

// setupRoutes configures all HTTP routes.
//
// Uploads and the progress stream run without the request timeout: they
// last as long as the client's transfer or the load.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Get("/formats", s.handleListFormats)
			r.Get("/status", s.handleStatus)
			r.Get("/tables/{table}", s.handleDescribeTable)

			r.Get("/loads/{loadID}", s.handleLoadProgress)
			r.Get("/loads/{loadID}/result", s.handleLoadResult)
			r.Post("/loads/{loadID}/cancel", s.handleCancelLoad)
			r.Get("/loads/{loadID}/rejected", s.handleExportRejected)
		})

		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(s.newRateLimiter(s.cfg.Rate.LoadLimit).Middleware)
			}
			r.Post("/preview", s.handlePreview)
			r.Post("/tables/{table}/loads", s.handleStartLoad)
		})

		r.Get("/loads/{loadID}/events", s.handleLoadEvents)
	})
}

func (s *Server) newRateLimiter(perMinute int) *mw.RateLimiter {
	rl := mw.NewRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if s.cfg.Security.EnableCSP {
			// JSON and CSV only; nothing here should ever load resources.
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}
