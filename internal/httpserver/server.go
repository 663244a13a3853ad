// Package httpserver exposes the registry Service over HTTP/JSON.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"conduit-registry/internal/config"
	"conduit-registry/internal/registry"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Gate         *registry.Gate
	Logger       registry.Logger
	MaxBodyBytes int64
}

// Server routes HTTP requests to a registry Service.
type Server struct {
	svc     *registry.Service
	gate    *registry.Gate
	logger  registry.Logger
	maxBody int64
	router  chi.Router
}

// New builds a Server and its routes.
func New(svc *registry.Service, opts Options) *Server {
	s := &Server{
		svc:     svc,
		gate:    opts.Gate,
		logger:  opts.Logger,
		maxBody: opts.MaxBodyBytes,
	}
	if s.logger == nil {
		s.logger = registry.NewNopLogger()
	}
	if s.gate == nil {
		s.gate = registry.NewGate("")
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(cors)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r.Get("/health", s.handleHealth)

	r.Get("/api/listings", s.handleListListings)
	r.Post("/api/listings", s.handleRegisterListing)
	r.Get("/api/listings/{content_hash}", s.handleGetListing)
	r.Get("/api/search", s.handleSearch)

	r.Get("/api/seeders", s.handleListSeeders)
	r.Post("/api/seeders", s.handleAnnounceSeeder)
	r.Get("/api/discover/{content_hash}", s.handleDiscover)

	r.Get("/api/manufacturers", s.handleListManufacturers)
	r.Get("/api/manufacturers/{pk_hex}", s.handleGetManufacturer)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Delete("/api/listings", s.handleClearListings)
		r.Delete("/api/seeders", s.handleClearSeeders)
		r.Post("/api/manufacturers", s.handleRegisterManufacturer)
		r.Delete("/api/manufacturers", s.handleClearManufacturers)
		r.Delete("/api/manufacturers/{pk_hex}", s.handleDeleteManufacturer)
		r.Get("/api/admin/operations", s.handleAdminHistory)
	})

	return r
}

// Run listens on cfg.Listen and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Listen, err)
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within cfg.ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout.Duration,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout.Duration,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
