// Package webserver serves the classification page and a small JSON API over HTTP.
package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/YuminosukeSato/binclass/internal/app"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/pkg/log"
)

const DefaultAddr = "127.0.0.1:8501"

// Pager builds the page for a selection.
type Pager interface {
	Page(ctx context.Context, sel app.Selection) (*app.Page, error)
}

// Config holds the HTTP server configuration.
type Config struct {
	Addr   string
	Pager  Pager
	Logger log.Logger
}

// Server wraps the HTTP server with configuration.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger log.Logger
}

// New creates a new HTTP server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Pager == nil {
		return nil, errors.NewValueError("webserver.New", "a page controller is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.GetLoggerWithName("webserver")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	mux := http.NewServeMux()
	h, err := newHandlers(cfg.Pager, cfg.Logger)
	if err != nil {
		return nil, err
	}
	h.register(mux)

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           gzhttp.GzipHandler(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("HTTP server starting", "address", s.srv.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", err)
		}
	}()

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Handler returns the underlying http.Handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
