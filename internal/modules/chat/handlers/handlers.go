// Package handlers exposes the chat assistant over HTTP: conversation CRUD,
// the SSE message stream and the provider toggle.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/llm"
	"github.com/cbottock-ai/VeraScore/internal/modules/chat"
)

// Handler handles chat HTTP requests.
type Handler struct {
	service  *chat.Service
	registry *llm.Registry
	log      zerolog.Logger
}

// NewHandler creates a new chat handler.
func NewHandler(service *chat.Service, registry *llm.Registry, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		registry: registry,
		log:      log.With().Str("handler", "chat").Logger(),
	}
}

// RegisterRoutes registers all chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Get("/conversations", h.HandleListConversations)
		r.Post("/conversations", h.HandleCreateConversation)
		r.Get("/conversations/{id}", h.HandleGetConversation)
		r.Delete("/conversations/{id}", h.HandleDeleteConversation)
		r.Post("/conversations/{id}/messages", h.HandleSendMessage)
		r.Get("/provider", h.HandleGetProvider)
		r.Put("/provider", h.HandleSetProvider)
	})
}

// HandleListConversations returns all conversations, most recent first.
func (h *Handler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.service.ListConversations()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list conversations")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, conversations)
}

// HandleCreateConversation starts a new conversation.
func (h *Handler) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conversation, err := h.service.CreateConversation(req.Title)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create conversation")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, conversation)
}

// HandleGetConversation returns a conversation with its messages.
func (h *Handler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetConversation(id)
	if err != nil {
		h.log.Error().Err(err).Int64("conversation_id", id).Msg("Failed to get conversation")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if detail == nil {
		h.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// HandleDeleteConversation removes a conversation.
func (h *Handler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteConversation(id)
	if err != nil {
		h.log.Error().Err(err).Int64("conversation_id", id).Msg("Failed to delete conversation")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSendMessage saves a user message and streams the assistant response
// as server-sent events.
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		h.writeError(w, http.StatusBadRequest, "Message content is required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	h.service.SendMessage(r.Context(), id, req.Content, func(frame string) {
		if _, err := w.Write([]byte(frame)); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	})
}

// HandleGetProvider reports the active model provider.
func (h *Handler) HandleGetProvider(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.registry.Info())
}

// HandleSetProvider switches the active model provider at runtime.
func (h *Handler) HandleSetProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Provider != "gemini" && req.Provider != "openai" {
		h.writeError(w, http.StatusBadRequest, "Provider must be 'gemini' or 'openai'")
		return
	}

	h.registry.SetProvider(req.Provider, req.Model)
	h.writeJSON(w, http.StatusOK, h.registry.Info())
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
