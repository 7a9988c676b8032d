package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbottock-ai/VeraScore/internal/database"
	"github.com/cbottock-ai/VeraScore/internal/llm"
)

// setupRepo opens an app database with the shipped schema so the tests run
// against the exact tables production migrates.
func setupRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='messages'").Scan(&name)
	require.NoError(t, err, "shipped app schema must create the chat tables")

	return NewRepository(db.Conn())
}

type stubProvider struct {
	chunks []string
	err    error
	seen   []llm.Message
}

func (p *stubProvider) StreamResponse(ctx context.Context, messages []llm.Message, tools llm.ToolExecutor, onChunk func(string)) error {
	p.seen = messages
	if p.err != nil {
		return p.err
	}
	for _, chunk := range p.chunks {
		onChunk(chunk)
	}
	return nil
}

type stubSource struct {
	provider llm.Provider
	err      error
}

func (s *stubSource) Provider(ctx context.Context) (llm.Provider, error) {
	return s.provider, s.err
}

type noTools struct{}

func (noTools) Definitions() []llm.ToolDefinition { return nil }
func (noTools) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	return "{}"
}

func newService(t *testing.T, provider llm.Provider, providerErr error) *Service {
	t.Helper()
	return NewService(setupRepo(t), &stubSource{provider: provider, err: providerErr}, noTools{}, zerolog.Nop())
}

func TestRepositoryConversationCRUD(t *testing.T) {
	repo := setupRepo(t)

	created, err := repo.CreateConversation("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, created.Title)

	require.NoError(t, repo.SaveMessage(created.ID, "user", "hello"))
	require.NoError(t, repo.SaveMessage(created.ID, "assistant", "hi there"))

	detail, err := repo.GetConversation(created.ID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "user", detail.Messages[0].Role)
	assert.Equal(t, "hi there", detail.Messages[1].Content)

	conversations, err := repo.ListConversations()
	require.NoError(t, err)
	require.Len(t, conversations, 1)

	deleted, err := repo.DeleteConversation(created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	detail, err = repo.GetConversation(created.ID)
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestSendMessageStreams(t *testing.T) {
	provider := &stubProvider{chunks: []string{"Hello", " world"}}
	svc := newService(t, provider, nil)

	conversation, err := svc.CreateConversation("")
	require.NoError(t, err)

	var frames []string
	svc.SendMessage(context.Background(), conversation.ID, "hi", func(frame string) {
		frames = append(frames, frame)
	})

	require.Len(t, frames, 3)
	assert.Equal(t, "data: \"Hello\"\n\n", frames[0])
	assert.Equal(t, "data: \" world\"\n\n", frames[1])
	assert.Equal(t, "data: [DONE]\n\n", frames[2])

	// History passed to the provider includes the new user message.
	require.Len(t, provider.seen, 1)
	assert.Equal(t, "hi", provider.seen[0].Content)

	detail, err := svc.GetConversation(conversation.ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "Hello world", detail.Messages[1].Content)
}

func TestSendMessageAutoTitle(t *testing.T) {
	svc := newService(t, &stubProvider{chunks: []string{"ok"}}, nil)

	conversation, err := svc.CreateConversation("")
	require.NoError(t, err)

	long := strings.Repeat("x", 60)
	svc.SendMessage(context.Background(), conversation.ID, long, func(string) {})

	detail, err := svc.GetConversation(conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 50)+"...", detail.Title)

	// A second message must not retitle.
	svc.SendMessage(context.Background(), conversation.ID, "short follow-up", func(string) {})
	detail, err = svc.GetConversation(conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 50)+"...", detail.Title)
}

func TestSendMessageConversationNotFound(t *testing.T) {
	svc := newService(t, &stubProvider{}, nil)

	var frames []string
	svc.SendMessage(context.Background(), 999, "hi", func(frame string) {
		frames = append(frames, frame)
	})
	require.Len(t, frames, 1)
	assert.Contains(t, frames[0], "Conversation not found")
}

func TestSendMessageProviderError(t *testing.T) {
	svc := newService(t, nil, errors.New("Gemini API key not configured"))

	conversation, err := svc.CreateConversation("")
	require.NoError(t, err)

	var frames []string
	svc.SendMessage(context.Background(), conversation.ID, "hi", func(frame string) {
		frames = append(frames, frame)
	})

	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], "Sorry, I encountered an error")
	assert.Equal(t, "data: [DONE]\n\n", frames[1])

	// The error is kept in history as an assistant message.
	detail, err := svc.GetConversation(conversation.ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "assistant", detail.Messages[1].Role)
	assert.Contains(t, detail.Messages[1].Content, "Gemini API key not configured")
}

func TestSendMessageStreamError(t *testing.T) {
	svc := newService(t, &stubProvider{err: errors.New("upstream timeout")}, nil)

	conversation, err := svc.CreateConversation("")
	require.NoError(t, err)

	var frames []string
	svc.SendMessage(context.Background(), conversation.ID, "hi", func(frame string) {
		frames = append(frames, frame)
	})
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], "upstream timeout")
	assert.Equal(t, "data: [DONE]\n\n", frames[1])
}
