// Package handlers provides HTTP handlers for stock search, detail and
// fundamentals endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/modules/stocks"
)

// Handler handles stock HTTP requests.
type Handler struct {
	service *stocks.Service
	log     zerolog.Logger
}

// NewHandler creates a new stocks handler.
func NewHandler(service *stocks.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "stocks").Logger(),
	}
}

// RegisterRoutes registers all stock routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/search", h.HandleSearch)
		r.Get("/{ticker}", h.HandleGetStock)
		r.Get("/{ticker}/fundamentals", h.HandleGetFundamentals)
	})
}

// HandleSearch finds tickers matching ?q=.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = parsed
	}

	result, err := h.service.Search(r.Context(), query, limit)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("Search failed")
		h.writeError(w, http.StatusBadGateway, "search provider unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetStock returns the profile and quote snapshot for a ticker.
func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	detail, err := h.service.GetStock(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Stock fetch failed")
		h.writeError(w, http.StatusBadGateway, "quote provider unavailable")
		return
	}
	if detail == nil {
		h.writeError(w, http.StatusNotFound, "stock not found: "+ticker)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// HandleGetFundamentals returns the categorized fundamentals record.
func (h *Handler) HandleGetFundamentals(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))

	record, err := h.service.GetFundamentals(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Fundamentals fetch failed")
		h.writeError(w, http.StatusBadGateway, "fundamentals provider unavailable")
		return
	}

	response := map[string]interface{}{"ticker": ticker}
	for category, data := range record {
		response[category] = data
	}
	h.writeJSON(w, http.StatusOK, response)
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
