// Package handlers exposes portfolio management over HTTP: CRUD for
// portfolios and holdings plus CSV import and export.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/modules/portfolios"
)

// Handler handles portfolio HTTP requests.
type Handler struct {
	service *portfolios.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolios handler.
func NewHandler(service *portfolios.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolios").Logger(),
	}
}

// RegisterRoutes registers all portfolio routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Get("/{id}/holdings", h.HandleListHoldings)
		r.Post("/{id}/holdings", h.HandleAddHolding)
		r.Put("/holdings/{id}", h.HandleUpdateHolding)
		r.Delete("/holdings/{id}", h.HandleDeleteHolding)
		r.Post("/{id}/import", h.HandleImportCSV)
		r.Get("/{id}/export", h.HandleExportCSV)
	})
}

type portfolioRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type holdingRequest struct {
	Ticker       string   `json:"ticker"`
	Shares       *float64 `json:"shares"`
	CostBasis    *float64 `json:"cost_basis"`
	PurchaseDate *string  `json:"purchase_date"`
	Notes        *string  `json:"notes"`
}

// HandleList returns all portfolios with holdings counts.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list portfolios")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// HandleCreate creates a new portfolio.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == nil || *req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Portfolio name is required")
		return
	}

	portfolio, err := h.service.Create(*req.Name, req.Description)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create portfolio")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, portfolio)
}

// HandleGet returns a portfolio with enriched holdings and metrics.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to get portfolio")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if detail == nil {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// HandleUpdate renames or re-describes a portfolio.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	portfolio, err := h.service.Update(id, req.Name, req.Description)
	if err != nil {
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to update portfolio")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if portfolio == nil {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	h.writeJSON(w, http.StatusOK, portfolio)
}

// HandleDelete removes a portfolio and its holdings.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(id)
	if err != nil {
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to delete portfolio")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListHoldings returns a portfolio's enriched holdings.
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	holdings, err := h.service.Holdings(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to list holdings")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if holdings == nil {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	h.writeJSON(w, http.StatusOK, holdings)
}

// HandleAddHolding adds a holding to a portfolio.
func (h *Handler) HandleAddHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Ticker == "" {
		h.writeError(w, http.StatusBadRequest, "Ticker is required")
		return
	}
	if req.Shares == nil || req.CostBasis == nil {
		h.writeError(w, http.StatusBadRequest, "Shares and cost_basis are required")
		return
	}

	holding, err := h.service.AddHolding(id, portfolios.Holding{
		Ticker:       req.Ticker,
		Shares:       *req.Shares,
		CostBasis:    *req.CostBasis,
		PurchaseDate: req.PurchaseDate,
		Notes:        req.Notes,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to add holding")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if holding == nil {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	h.writeJSON(w, http.StatusCreated, holding)
}

// HandleUpdateHolding updates a holding's position fields.
func (h *Handler) HandleUpdateHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var update portfolios.HoldingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	holding, err := h.service.UpdateHolding(id, update)
	if err != nil {
		h.log.Error().Err(err).Int64("holding_id", id).Msg("Failed to update holding")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if holding == nil {
		h.writeError(w, http.StatusNotFound, "Holding not found")
		return
	}
	h.writeJSON(w, http.StatusOK, holding)
}

// HandleDeleteHolding removes a holding.
func (h *Handler) HandleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteHolding(id)
	if err != nil {
		h.log.Error().Err(err).Int64("holding_id", id).Msg("Failed to delete holding")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "Holding not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleImportCSV parses the request body as CSV and inserts the holdings.
func (h *Handler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	result, err := h.service.ImportCSV(id, string(body))
	if err != nil {
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to import CSV")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if result == nil {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleExportCSV renders a portfolio's holdings as a CSV download.
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	content, found, err := h.service.ExportCSV(id)
	if err != nil {
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to export CSV")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		h.writeError(w, http.StatusNotFound, "Portfolio not found")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=portfolio_%d.csv", id))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
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
