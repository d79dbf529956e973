package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nvandessel/journeygraph/internal/journey"
)

// DefaultGraphPath is where the journey graph endpoint is mounted.
const DefaultGraphPath = "/api/journey-graph"

// DefaultMaxBodyBytes caps PUT bodies.
const DefaultMaxBodyBytes = 10 << 20

const shutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	Addr         string
	GraphPath    string
	MaxBodyBytes int64
}

// Server serves the journey graph endpoint.
type Server struct {
	repo       *journey.Repository
	logger     *zap.Logger
	cfg        Config
	httpServer *http.Server
}

// New creates a Server. A nil logger disables logging.
func New(repo *journey.Repository, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GraphPath == "" {
		cfg.GraphPath = DefaultGraphPath
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{repo: repo, logger: logger, cfg: cfg}
}

// Handler returns the full route table wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle(s.cfg.GraphPath, &graphHandler{
		repo:         s.repo,
		logger:       s.logger,
		maxBodyBytes: s.cfg.MaxBodyBytes,
	})
	return withRequestLogging(s.logger, mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// Run listens on cfg.Addr and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Journey graph server starting",
			zap.String("address", ln.Addr().String()),
			zap.String("path", s.cfg.GraphPath))
		// ErrServerClosed is the normal result of Shutdown.
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("journey graph server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down journey graph server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("journey graph server shutdown failed: %w", err)
	}
	s.logger.Debug("Journey graph server shut down gracefully")
	return nil
}
