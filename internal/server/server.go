// Package server exposes the latest compile result of a project over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/internal/server/notifier"
	"github.com/leapstack-labs/leapcheck/internal/state"
	"github.com/leapstack-labs/leapcheck/internal/watch"
)

// CompileFunc loads and compiles the project.
type CompileFunc func(ctx context.Context) (*compile.Result, error)

// ErrNoResult is returned while no compile has finished yet.
var ErrNoResult = errors.New("no compile result available")

// Config holds configuration for the server.
type Config struct {
	Addr    string
	Compile CompileFunc
	// Store, when set, receives every run.
	Store *state.Store
	// WatchDirs are watched for changes when Serve runs. Empty disables
	// watching.
	WatchDirs []string
	Logger    *slog.Logger
}

// Server serves compile results.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	notifier *notifier.Notifier

	compileMu sync.Mutex

	mu     sync.RWMutex
	result *compile.Result
	err    error
}

// New creates a new server. No compile happens until Recompile or Serve is
// called.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		notifier: notifier.New(),
	}
}

// Result returns the latest result, or nil with the error of the last
// failed compile.
func (s *Server) Result() (*compile.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil && s.err == nil {
		return nil, ErrNoResult
	}
	return s.result, s.err
}

// Recompile runs one compile, saves it to the store and notifies
// listeners. Concurrent calls are serialized.
func (s *Server) Recompile(ctx context.Context) (*compile.Result, error) {
	s.compileMu.Lock()
	defer s.compileMu.Unlock()

	res, err := s.cfg.Compile(ctx)
	if err != nil {
		s.mu.Lock()
		s.result, s.err = nil, err
		s.mu.Unlock()
		s.logger.Error("compile failed", slog.Any("error", err))
		return nil, err
	}

	if s.cfg.Store != nil {
		if _, err := s.cfg.Store.SaveRun(ctx, res); err != nil {
			s.logger.Warn("failed to save run", slog.String("run_id", res.RunID), slog.Any("error", err))
		}
	}

	s.mu.Lock()
	s.result, s.err = res, nil
	s.mu.Unlock()

	summary := res.Summary()
	s.logger.Info("compiled",
		slog.String("run_id", res.RunID),
		slog.Int("nodes", summary.Nodes),
		slog.Int("errors", summary.Errors),
		slog.Int("warnings", summary.Warnings),
		slog.Duration("duration", res.Duration))
	s.notifier.Broadcast(res.RunID)
	return res, nil
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Get("/catalog", s.handleCatalog)
		r.Get("/catalog/{node}", s.handleCatalogNode)
		r.Get("/order", s.handleOrder)
		r.Get("/lineage/{node}", s.handleLineage)
		r.Get("/qualified/{node}", s.handleQualified)
		r.Post("/compile", s.handleCompile)
		r.Get("/runs", s.handleRuns)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// Serve compiles once, then serves HTTP until ctx is cancelled. When
// WatchDirs is set, file changes trigger a recompile. A failed first
// compile does not stop the server: its error is served with 503 until a
// later compile succeeds.
func (s *Server) Serve(ctx context.Context) error {
	if _, err := s.Recompile(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.logger.Info("serving", slog.String("addr", "http://"+ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if len(s.cfg.WatchDirs) > 0 {
		w, err := watch.New(watch.Options{Dirs: s.cfg.WatchDirs, Logger: s.logger})
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		eg.Go(func() error {
			defer func() { _ = w.Close() }()
			return w.Run(egctx, func(ctx context.Context, changed []string) {
				s.logger.Debug("recompiling", slog.Any("files", changed))
				_, _ = s.Recompile(ctx)
			})
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
