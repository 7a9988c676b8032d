// Package handlers exposes transcript ingestion, search and summaries over
// HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/modules/transcripts"
)

// Handler handles transcript HTTP requests.
type Handler struct {
	service *transcripts.Service
	log     zerolog.Logger
}

// NewHandler creates a new transcripts handler.
func NewHandler(service *transcripts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "transcripts").Logger(),
	}
}

// RegisterRoutes registers all transcript routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/transcripts", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/search", h.HandleSearch)
		r.Post("/{ticker}/{year}/{quarter}", h.HandleIngest)
		r.Get("/{ticker}/{year}/{quarter}/summary", h.HandleSummary)
	})
}

// HandleList returns the stored earnings calls.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	refs, err := h.service.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transcripts")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, refs)
}

// HandleSearch runs a semantic query over stored transcripts. ?ticker=
// restricts the search; ?top_k= bounds the result count.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "Query parameter 'query' is required")
		return
	}
	ticker := strings.ToUpper(r.URL.Query().Get("ticker"))
	topK, _ := strconv.Atoi(r.URL.Query().Get("top_k"))

	response, err := h.service.Search(r.Context(), query, ticker, topK)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("Transcript search failed")
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleIngest parses, embeds and stores a transcript supplied in the
// request body.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ticker, year, quarter, ok := h.pathCall(w, r)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "Transcript text is required")
		return
	}

	result, err := h.service.Ingest(r.Context(), ticker, year, quarter, req.Text)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to ingest transcript")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// HandleSummary describes one stored earnings call.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ticker, year, quarter, ok := h.pathCall(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summarize(ticker, year, quarter)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to summarize transcript")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary == nil {
		h.writeError(w, http.StatusNotFound, "Transcript not found")
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) pathCall(w http.ResponseWriter, r *http.Request) (string, int, int, bool) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid year")
		return "", 0, 0, false
	}
	quarter, err := strconv.Atoi(chi.URLParam(r, "quarter"))
	if err != nil || quarter < 1 || quarter > 4 {
		h.writeError(w, http.StatusBadRequest, "Quarter must be between 1 and 4")
		return "", 0, 0, false
	}
	return ticker, year, quarter, true
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
