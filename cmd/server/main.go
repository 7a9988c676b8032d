// Package main is the entry point for the VeraScore research backend.
// It wires the data providers, the scoring engine, the portfolio and chat
// services, and the transcript search subsystem into one HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cbottock-ai/VeraScore/internal/clientdata"
	"github.com/cbottock-ai/VeraScore/internal/clients/fmp"
	"github.com/cbottock-ai/VeraScore/internal/clients/secedgar"
	"github.com/cbottock-ai/VeraScore/internal/clients/yahoo"
	"github.com/cbottock-ai/VeraScore/internal/config"
	"github.com/cbottock-ai/VeraScore/internal/database"
	"github.com/cbottock-ai/VeraScore/internal/llm"
	"github.com/cbottock-ai/VeraScore/internal/metrics"
	"github.com/cbottock-ai/VeraScore/internal/modules/chat"
	"github.com/cbottock-ai/VeraScore/internal/modules/portfolios"
	"github.com/cbottock-ai/VeraScore/internal/modules/stocks"
	"github.com/cbottock-ai/VeraScore/internal/modules/transcripts"
	"github.com/cbottock-ai/VeraScore/internal/rag"
	"github.com/cbottock-ai/VeraScore/internal/scheduler"
	"github.com/cbottock-ai/VeraScore/internal/scoring"
	"github.com/cbottock-ai/VeraScore/internal/server"
	"github.com/cbottock-ai/VeraScore/pkg/logger"
)

// compositeScorer adapts the stocks service and scoring engine into the
// narrow score lookup the portfolios service enriches holdings with.
type compositeScorer struct {
	stocks *stocks.Service
	engine *scoring.Engine
}

func (c *compositeScorer) CompositeScore(ctx context.Context, ticker string) (*float64, error) {
	fundamentals, err := c.stocks.GetFundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}
	info, err := c.stocks.GetStockInfo(ctx, ticker)
	if err != nil {
		return nil, err
	}
	result, err := c.engine.ScoreComposite(fundamentals, info, "")
	if err != nil {
		return nil, err
	}
	return result.OverallScore, nil
}

// unconfiguredEmbedder stands in when no Gemini key is present. Transcript
// ingestion still stores chunks; semantic search reports the missing key.
type unconfiguredEmbedder struct{}

func (unconfiguredEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("Gemini API key not configured")
}

func (unconfiguredEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	return nil, fmt.Errorf("Gemini API key not configured")
}

// main orchestrates the startup sequence:
//  1. Load configuration from environment variables (.env supported)
//  2. Initialize structured logging
//  3. Open the app and cache databases and apply schemas
//  4. Build the market data clients over the shared TTL cache
//  5. Build the scoring engine from the YAML config directory
//  6. Assemble the module services and the chat tool registry
//  7. Start the HTTP server and the background scheduler
//  8. Wait for a shutdown signal and stop everything gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting VeraScore")

	appDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open app database")
	}
	defer appDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	if err := appDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate app database")
	}
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	// Market data clients share one TTL-cached blob store.
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	yahooClient := yahoo.NewClient(cacheRepo, log)
	fmpClient := fmp.NewClient(cfg.FMPAPIKey, cacheRepo, log)
	secClient := secedgar.NewClient(cacheRepo, log)

	// Scoring engine over the YAML factor configs.
	loader := scoring.NewLoader(cfg.ScoringDir)
	engine := scoring.NewEngine(loader, log)

	stocksRepo := stocks.NewRepository(appDB.Conn())
	stocksService := stocks.NewService(yahooClient, fmpClient, cacheRepo, stocksRepo, log)

	portfolioRepo := portfolios.NewRepository(appDB.Conn())
	scorer := &compositeScorer{stocks: stocksService, engine: engine}
	portfolioService := portfolios.NewService(portfolioRepo, stocksService, scorer, log)

	// Transcript search: chunker, embedder and chunk store.
	chunker := rag.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	var embedder rag.Embedder = unconfiguredEmbedder{}
	if cfg.GeminiAPIKey != "" {
		geminiEmbedder, err := rag.NewGeminiEmbedder(context.Background(), cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create embedder, transcript search disabled")
		} else {
			embedder = geminiEmbedder
		}
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, transcript embedding disabled")
	}
	chunkStore := rag.NewStore(appDB.Conn())
	transcriptsService := transcripts.NewService(chunker, embedder, chunkStore, log)

	// Chat: LLM provider registry plus the tool registry over the services.
	llmRegistry := llm.NewRegistry(cfg, log)
	toolRegistry := chat.NewToolRegistry(stocksService, portfolioService, engine, transcriptsService, secClient, log)
	chatRepo := chat.NewRepository(appDB.Conn())
	chatService := chat.NewService(chatRepo, llmRegistry, toolRegistry, log)

	metricsRegistry := metrics.NewRegistry()

	srv := server.New(server.Config{
		Log:         log,
		AppDB:       appDB,
		CacheDB:     cacheDB,
		Config:      cfg,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		Metrics:     metricsRegistry,
		Stocks:      stocksService,
		Engine:      engine,
		Configs:     loader,
		Portfolios:  portfolioService,
		Chat:        chatService,
		LLM:         llmRegistry,
		Transcripts: transcriptsService,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Background scheduler: hourly expired-cache cleanup.
	sched := scheduler.New(log, metricsRegistry)
	cleanupJob := clientdata.NewCleanupJob(cacheRepo, log)
	if err := sched.AddJob("@hourly", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cleanup job")
	}
	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
