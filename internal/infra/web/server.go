package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/metrics"
	"imagegen-dashboard/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// CSVMirror is the in-memory CSV copy of the generation log.
type CSVMirror interface {
	Export(w io.Writer) (bool, error)
	Import(r io.Reader) (int, error)
}

type Config struct {
	Port       int
	RateLimit  int // requests per window per client and route, 0 = off
	RateWindow time.Duration
}

// Deps are the use cases served by the API. RowReader, CSV and Limiter may be nil.
type Deps struct {
	Generation usecase.GenerationUseCase
	Library    usecase.LibraryUseCase
	Uploader   usecase.UploaderUseCase
	Resolver   *usecase.Resolver
	Metadata   usecase.MetadataStore
	Stats      usecase.StatsUseCase
	CSV        CSVMirror
	RowReader  adapter.RowReader
	Limiter    RateLimiter
}

type Server struct {
	cfg     Config
	deps    Deps
	auth    *AuthManager
	limiter RateLimiter
	log     *zerolog.Logger
	server  *http.Server
}

func NewServer(cfg Config, deps Deps, auth *AuthManager, logger *zerolog.Logger) *Server {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	l := logger.With().Str("component", "http").Logger()
	return &Server{cfg: cfg, deps: deps, auth: auth, limiter: deps.Limiter, log: &l}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(s.recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimit)

		r.Post("/auth/token", s.handleMintToken)

		r.Post("/jobs", s.handleSubmitJob)
		r.Post("/jobs:generate", s.handleGenerate)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/jobs/{id}/cancel", s.handleCancelJob)

		r.Get("/artifacts", s.handleListArtifacts)
		r.Post("/artifacts", s.handleUploadArtifact)
		r.Delete("/artifacts/{id}", s.handleDeleteArtifact)
		r.Get("/artifacts/{id}/preview", s.handlePreview)
		r.Put("/artifacts/{id}/tags/{tag}", s.handleAddTag)
		r.Delete("/artifacts/{id}/tags/{tag}", s.handleRemoveTag)
		r.Put("/artifacts/{id}/favorite", s.handleSetFavorite(true))
		r.Delete("/artifacts/{id}/favorite", s.handleSetFavorite(false))

		r.Get("/stats", s.handleStats)
		r.Get("/log", s.handleLogRows)
		r.Get("/log.csv", s.handleExportCSV)
		r.Post("/log.csv", s.handleImportCSV)
	})
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if !s.auth.Enabled() {
		s.log.Warn().Msg("api authentication disabled: no api_key or jwt_secret configured")
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// synchronous generation waits for the whole poll budget
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.cfg.Port).Msg("http server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}
