// internal/workers/concierge/concierge-reply/models.go
package conciergereply

type Input struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

type Output struct {
	ReplyMessageID string   `json:"replyMessageId"`
	Reply          string   `json:"reply"`
	Confidence     float64  `json:"confidence"`
	Sources        []string `json:"sources,omitempty"`
}
