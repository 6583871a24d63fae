package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"travel-concierge/internal/models"
)

type ChatStore struct {
	db *sql.DB
}

func NewChatStore(db *sql.DB) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) CreateConversation(ctx context.Context, c *models.ChatConversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_conversations (id, profile_id, agent_name, created_at)
		VALUES ($1, $2, $3, $4)`,
		c.ID, nullable(c.ProfileID), c.AgentName, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *ChatStore) GetConversation(ctx context.Context, id string) (*models.ChatConversation, error) {
	var c models.ChatConversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(profile_id::text, ''), agent_name, created_at
		FROM chat_conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.ProfileID, &c.AgentName, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit of the newest messages, oldest first.
func (s *ChatStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			m    models.ChatMessage
			role string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Role = models.ChatRole(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
