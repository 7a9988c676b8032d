// Package server provides the HTTP server and routing for VeraScore.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/config"
	"github.com/cbottock-ai/VeraScore/internal/database"
	"github.com/cbottock-ai/VeraScore/internal/llm"
	"github.com/cbottock-ai/VeraScore/internal/metrics"
	"github.com/cbottock-ai/VeraScore/internal/modules/chat"
	chathandlers "github.com/cbottock-ai/VeraScore/internal/modules/chat/handlers"
	"github.com/cbottock-ai/VeraScore/internal/modules/portfolios"
	portfolioshandlers "github.com/cbottock-ai/VeraScore/internal/modules/portfolios/handlers"
	scoringhandlers "github.com/cbottock-ai/VeraScore/internal/modules/scoring/handlers"
	"github.com/cbottock-ai/VeraScore/internal/modules/stocks"
	stockshandlers "github.com/cbottock-ai/VeraScore/internal/modules/stocks/handlers"
	systemhandlers "github.com/cbottock-ai/VeraScore/internal/modules/system/handlers"
	"github.com/cbottock-ai/VeraScore/internal/modules/transcripts"
	transcriptshandlers "github.com/cbottock-ai/VeraScore/internal/modules/transcripts/handlers"
	"github.com/cbottock-ai/VeraScore/internal/scoring"
)

// Config holds server configuration and the services the handlers expose.
type Config struct {
	Log     zerolog.Logger
	AppDB   *database.DB
	CacheDB *database.DB
	Config  *config.Config
	Port    int
	DevMode bool
	Metrics *metrics.Registry

	Stocks      *stocks.Service
	Engine      *scoring.Engine
	Configs     *scoring.Loader
	Portfolios  *portfolios.Service
	Chat        *chat.Service
	LLM         *llm.Registry
	Transcripts *transcripts.Service
}

// Server represents the HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	cfg     Config
	metrics *metrics.Registry
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		cfg:     cfg,
		metrics: cfg.Metrics,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Prometheus instrumentation
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes mounts all module handlers under /api plus the bare
// health and metrics endpoints.
func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	stocksHandler := stockshandlers.NewHandler(s.cfg.Stocks, s.cfg.Log)
	scoringHandler := scoringhandlers.NewHandler(s.cfg.Engine, s.cfg.Stocks, s.cfg.Configs, s.cfg.Log)
	portfoliosHandler := portfolioshandlers.NewHandler(s.cfg.Portfolios, s.cfg.Log)
	chatHandler := chathandlers.NewHandler(s.cfg.Chat, s.cfg.LLM, s.cfg.Log)
	transcriptsHandler := transcriptshandlers.NewHandler(s.cfg.Transcripts, s.cfg.Log)
	systemHandler := systemhandlers.NewHandler(s.cfg.AppDB, s.cfg.CacheDB, s.cfg.Log)

	s.router.Route("/api", func(r chi.Router) {
		stocksHandler.RegisterRoutes(r)
		scoringHandler.RegisterRoutes(r)
		portfoliosHandler.RegisterRoutes(r)
		chatHandler.RegisterRoutes(r)
		transcriptsHandler.RegisterRoutes(r)
		systemHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the chi router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs every request with status, size and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
