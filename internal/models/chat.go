package models

import "time"

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatConversation struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId,omitempty"`
	AgentName string    `json:"agentName"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           ChatRole  `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}
