// Package worker provides the HTTP service around the correlation engine.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/coursetrace/coursetrace/internal/archive"
	"github.com/coursetrace/coursetrace/internal/config"
	"github.com/coursetrace/coursetrace/internal/engine"
	"github.com/coursetrace/coursetrace/internal/watcher"
)

// DefaultHTTPTimeout bounds every request, including synchronous
// correlation of a full activity list.
const DefaultHTTPTimeout = 30 * time.Second

// Service wires the correlation engine, the results archive, and the
// corpus watcher behind a chi router.
type Service struct {
	version string
	config  *config.Config
	engine  *engine.Engine

	// Results archive, nil when no archive path is configured.
	store *archive.Store

	// Corpus file watcher, nil unless watching is enabled.
	corpusWatcher *watcher.Watcher

	router *chi.Mux
	server *http.Server

	// Initialization state for deferred corpus load.
	ready   atomic.Bool
	initErr atomic.Pointer[initFailure]
}

type initFailure struct{ err error }

// NewService creates the worker service. The health endpoint is available
// immediately; corpus load, archive open, and watcher start run in the
// background so a large corpus never delays startup.
func NewService(version string, cfg *config.Config, eng *engine.Engine) *Service {
	svc := &Service{
		version: version,
		config:  cfg,
		engine:  eng,
		router:  chi.NewRouter(),
	}

	svc.setupMiddleware()
	svc.setupRoutes()

	go svc.initializeAsync()

	return svc
}

func (s *Service) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(middleware.RealIP)
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	// Health and version respond during initialization so the UI can poll.
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)

	// Routes that require the corpus to be loaded.
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Get("/api/status", s.handleStatus)
		r.Post("/api/corpus/load", s.handleCorpusLoad)
		r.Post("/api/correlate", s.handleCorrelate)
		r.Post("/api/correlate/background", s.handleCorrelateBackground)
		r.Get("/api/correlations/{activityID}", s.handleCorrelationsFor)
		r.Get("/api/runs/{runID}", s.handleRunResults)
		r.Post("/api/export", s.handleExport)
	})
}

// initializeAsync performs the slow parts of startup: corpus load from
// disk, archive open, and corpus watcher start.
func (s *Service) initializeAsync() {
	if s.config.CorpusPath != "" {
		if err := s.engine.LoadFile(s.config.CorpusPath); err != nil {
			s.initErr.Store(&initFailure{err: fmt.Errorf("load corpus: %w", err)})
			return
		}
	}

	if s.config.ArchivePath != "" {
		store, err := archive.Open(s.config.ArchivePath)
		if err != nil {
			// The archive is a convenience, not a dependency of scoring.
			log.Warn().Err(err).Str("path", s.config.ArchivePath).Msg("Results archive unavailable")
		} else {
			s.store = store
		}
	}

	if s.config.WatchCorpus && s.config.CorpusPath != "" {
		s.startCorpusWatcher()
	}

	s.ready.Store(true)
	log.Info().Msg("Async initialization complete - service ready")
}

// startCorpusWatcher reloads the corpus whenever the file changes on disk.
func (s *Service) startCorpusWatcher() {
	path := s.config.CorpusPath
	w, err := watcher.New(path, func() {
		log.Info().Str("path", path).Msg("Corpus file changed - reloading")
		if err := s.engine.LoadFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Corpus reload failed - keeping previous corpus")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create corpus watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start corpus watcher")
		return
	}
	s.corpusWatcher = w
	log.Info().Str("path", path).Msg("Corpus file watcher started")
}

func (s *Service) initError() error {
	if e := s.initErr.Load(); e != nil {
		return e.err
	}
	return nil
}

// requireReady is middleware that returns 503 until initialization finishes.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			if err := s.initError(); err != nil {
				http.Error(w, "service initialization failed: "+err.Error(), http.StatusInternalServerError)
				return
			}
			http.Error(w, "service initializing", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server. It returns once the listener goroutine is
// running; initialization continues in the background.
func (s *Service) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.WorkerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Int("port", s.config.WorkerPort).
		Msg("Worker HTTP server started (initialization in progress)")
	return nil
}

// Shutdown gracefully shuts down the service.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.corpusWatcher != nil {
		_ = s.corpusWatcher.Stop()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Error().Err(err).Msg("Archive close error")
		}
	}

	log.Info().Msg("Worker service shutdown complete")
	return nil
}
