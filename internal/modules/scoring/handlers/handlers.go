// Package handlers exposes the scoring engine over HTTP: composite scores,
// per-factor breakdowns and the config inspection endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/scoring"
)

// FundamentalsSource supplies the data records that get scored.
type FundamentalsSource interface {
	GetFundamentals(ctx context.Context, ticker string) (map[string]interface{}, error)
	GetStockInfo(ctx context.Context, ticker string) (map[string]interface{}, error)
}

// ConfigLister enumerates available factor configs.
type ConfigLister interface {
	ListConfigs() ([]scoring.ConfigSummary, error)
}

// Handler handles scoring HTTP requests.
type Handler struct {
	engine  *scoring.Engine
	data    FundamentalsSource
	configs ConfigLister
	log     zerolog.Logger
}

// NewHandler creates a new scoring handler.
func NewHandler(engine *scoring.Engine, data FundamentalsSource, configs ConfigLister, log zerolog.Logger) *Handler {
	return &Handler{
		engine:  engine,
		data:    data,
		configs: configs,
		log:     log.With().Str("handler", "scoring").Logger(),
	}
}

// RegisterRoutes registers all scoring routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scoring", func(r chi.Router) {
		r.Get("/stocks/{ticker}/scores", h.HandleGetScores)
		r.Get("/stocks/{ticker}/scores/{factor}", h.HandleGetFactorScore)
		r.Get("/configs", h.HandleListConfigs)
	})
}

// HandleGetScores returns the composite score for a ticker. An optional
// ?profile= selects a non-default weighting profile.
func (h *Handler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	profile := r.URL.Query().Get("profile")

	fundamentals, stockInfo, ok := h.fetchData(w, r, ticker)
	if !ok {
		return
	}

	result, err := h.engine.ScoreComposite(fundamentals, stockInfo, profile)
	if err != nil {
		h.scoringError(w, err, ticker)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":        ticker,
		"overall_score": result.OverallScore,
		"factors":       result.Factors,
		"profile_used":  result.ProfileUsed,
	})
}

// HandleGetFactorScore returns one factor's score and explanation. The
// factor path segment maps onto the "<factor>_v1" config.
func (h *Handler) HandleGetFactorScore(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	factor := chi.URLParam(r, "factor")

	fundamentals, stockInfo, ok := h.fetchData(w, r, ticker)
	if !ok {
		return
	}

	result, err := h.engine.ScoreFactor(factor+"_v1", fundamentals, stockInfo)
	if err != nil {
		h.scoringError(w, err, ticker)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"factor": result,
	})
}

// HandleListConfigs enumerates the factor configs on disk.
func (h *Handler) HandleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configs.ListConfigs()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list scoring configs")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if configs == nil {
		configs = []scoring.ConfigSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"configs": configs})
}

func (h *Handler) fetchData(w http.ResponseWriter, r *http.Request, ticker string) (map[string]interface{}, map[string]interface{}, bool) {
	fundamentals, err := h.data.GetFundamentals(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Fundamentals fetch failed")
		h.writeError(w, http.StatusBadGateway, "fundamentals provider unavailable")
		return nil, nil, false
	}

	stockInfo, err := h.data.GetStockInfo(r.Context(), ticker)
	if err != nil {
		// Analyst fallbacks lose their price anchor, scoring still works.
		h.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote fetch failed, scoring without stock info")
		stockInfo = nil
	}
	return fundamentals, stockInfo, true
}

func (h *Handler) scoringError(w http.ResponseWriter, err error, ticker string) {
	if errors.Is(err, scoring.ErrConfigNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Error().Err(err).Str("ticker", ticker).Msg("Scoring failed")
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
