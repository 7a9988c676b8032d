// Package chat persists conversations and streams assistant responses,
// delegating model calls to the llm provider registry and data lookups to
// the tool registry.
package chat

import (
	"database/sql"
	"fmt"
	"time"
)

// DefaultTitle is the title given to freshly created conversations until
// the first message renames them.
const DefaultTitle = "New Conversation"

// Conversation is a stored conversation row.
type Conversation struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// StoredMessage is a stored message row.
type StoredMessage struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// ConversationDetail is a conversation with its full message history.
type ConversationDetail struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Messages []StoredMessage `json:"messages"`
}

// Repository provides conversation persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new chat repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateConversation inserts a conversation with the given title.
func (r *Repository) CreateConversation(title string) (*Conversation, error) {
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now().Unix()
	result, err := r.db.Exec(
		"INSERT INTO conversations (title, created_at, updated_at) VALUES (?, ?, ?)",
		title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation id: %w", err)
	}
	return &Conversation{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// ListConversations returns all conversations, most recently updated first.
func (r *Repository) ListConversations() ([]Conversation, error) {
	rows, err := r.db.Query(
		"SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// GetConversation returns a conversation with its messages, or nil when it
// does not exist.
func (r *Repository) GetConversation(id int64) (*ConversationDetail, error) {
	var detail ConversationDetail
	err := r.db.QueryRow(
		"SELECT id, title FROM conversations WHERE id = ?", id,
	).Scan(&detail.ID, &detail.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %d: %w", id, err)
	}

	rows, err := r.db.Query(
		"SELECT id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	detail.Messages = []StoredMessage{}
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		detail.Messages = append(detail.Messages, m)
	}
	return &detail, rows.Err()
}

// DeleteConversation removes a conversation and its messages. Returns
// false when it does not exist.
func (r *Repository) DeleteConversation(id int64) (bool, error) {
	result, err := r.db.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// SaveMessage appends a message and bumps the conversation's updated_at.
func (r *Repository) SaveMessage(conversationID int64, role, content string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(
		"INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)",
		conversationID, role, content, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	_, err = r.db.Exec("UPDATE conversations SET updated_at = ? WHERE id = ?", now, conversationID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// SetTitle renames a conversation.
func (r *Repository) SetTitle(conversationID int64, title string) error {
	_, err := r.db.Exec("UPDATE conversations SET title = ? WHERE id = ?", title, conversationID)
	if err != nil {
		return fmt.Errorf("failed to set conversation title: %w", err)
	}
	return nil
}
