package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/llm"
)

// titleLimit caps auto-generated conversation titles.
const titleLimit = 50

// ProviderSource resolves the active chat model provider.
type ProviderSource interface {
	Provider(ctx context.Context) (llm.Provider, error)
}

// Service coordinates conversation persistence with streaming completions.
type Service struct {
	repo      *Repository
	providers ProviderSource
	tools     llm.ToolExecutor
	log       zerolog.Logger
}

// NewService creates a new chat service.
func NewService(repo *Repository, providers ProviderSource, tools llm.ToolExecutor, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		providers: providers,
		tools:     tools,
		log:       log.With().Str("service", "chat").Logger(),
	}
}

// CreateConversation starts a new conversation.
func (s *Service) CreateConversation(title string) (*Conversation, error) {
	return s.repo.CreateConversation(title)
}

// ListConversations returns all conversations, most recent first.
func (s *Service) ListConversations() ([]Conversation, error) {
	return s.repo.ListConversations()
}

// GetConversation returns a conversation with its messages.
func (s *Service) GetConversation(id int64) (*ConversationDetail, error) {
	return s.repo.GetConversation(id)
}

// DeleteConversation removes a conversation.
func (s *Service) DeleteConversation(id int64) (bool, error) {
	return s.repo.DeleteConversation(id)
}

// SendMessage saves the user message and streams the assistant response as
// server-sent events through send. Each text chunk is JSON-encoded to
// preserve newlines; the stream ends with a [DONE] marker. Errors are
// reported in-stream and saved as assistant messages so the conversation
// history stays coherent.
func (s *Service) SendMessage(ctx context.Context, conversationID int64, content string, send func(frame string)) {
	conversation, err := s.repo.GetConversation(conversationID)
	if err != nil {
		s.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("Failed to load conversation")
		send("data: {\"error\": \"Conversation not found\"}\n\n")
		return
	}
	if conversation == nil {
		send("data: {\"error\": \"Conversation not found\"}\n\n")
		return
	}

	if err := s.repo.SaveMessage(conversationID, "user", content); err != nil {
		s.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("Failed to save user message")
		send("data: {\"error\": \"Failed to save message\"}\n\n")
		return
	}

	// Auto-title on the first message.
	if conversation.Title == DefaultTitle && len(conversation.Messages) == 0 {
		title := content
		if runes := []rune(title); len(runes) > titleLimit {
			title = string(runes[:titleLimit]) + "..."
		}
		if err := s.repo.SetTitle(conversationID, title); err != nil {
			s.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("Failed to auto-title conversation")
		}
	}

	history := make([]llm.Message, 0, len(conversation.Messages)+1)
	for _, msg := range conversation.Messages {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	history = append(history, llm.Message{Role: "user", Content: content})

	provider, err := s.providers.Provider(ctx)
	if err != nil {
		s.streamError(conversationID, err, send)
		return
	}

	var full string
	err = provider.StreamResponse(ctx, history, s.tools, func(chunk string) {
		full += chunk
		encoded, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		send(fmt.Sprintf("data: %s\n\n", encoded))
	})
	if err != nil {
		s.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("Streaming failed")
		s.streamError(conversationID, err, send)
		return
	}

	if full != "" {
		if err := s.repo.SaveMessage(conversationID, "assistant", full); err != nil {
			s.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("Failed to save assistant message")
		}
	}
	send("data: [DONE]\n\n")
}

func (s *Service) streamError(conversationID int64, err error, send func(frame string)) {
	message := fmt.Sprintf("Sorry, I encountered an error: %v", err)
	if saveErr := s.repo.SaveMessage(conversationID, "assistant", message); saveErr != nil {
		s.log.Error().Err(saveErr).Int64("conversation_id", conversationID).Msg("Failed to save error message")
	}
	send(fmt.Sprintf("data: %s\n\n", message))
	send("data: [DONE]\n\n")
}
