// Package concierge answers traveler chat messages through the GenAI function.
package concierge

import (
	"context"
	"strings"
	"time"

	commonhttp "travel-concierge/internal/common/http"
)

const GeneratePath = "/api/ai/generate"

type GenerateRequest struct {
	Prompt      string                 `json:"prompt"`
	Context     map[string]interface{} `json:"context,omitempty"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature float64                `json:"temperature"`
}

type GenerateResponse struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenAIClient posts a single generation request; it never retries.
type GenAIClient struct {
	client *commonhttp.Client
}

func NewGenAIClient(baseURL, apiKey string, timeout time.Duration) *GenAIClient {
	c := commonhttp.NewClient(timeout).WithBaseURL(strings.TrimSuffix(baseURL, "/"))
	if apiKey != "" {
		c = c.WithHeader("Authorization", "Bearer "+apiKey)
	}
	return &GenAIClient{client: c}
}

func (g *GenAIClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var out GenerateResponse
	if err := g.client.PostJSON(ctx, GeneratePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
