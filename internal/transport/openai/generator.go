package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/domain"
)

const generationTemperature = 0.3

// Generator produces free text via the OpenAI-compatible chat API.
type Generator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewGenerator creates a chat-completion text generator.
func NewGenerator(client *openai.Client, cfg *Config) *Generator {
	return &Generator{client: client, model: cfg.GenerationModel, logger: cfg.Logger}
}

// GenerateContent sends a single-user-message prompt and returns the raw
// completion text with surrounding whitespace trimmed.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: generationTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrUpstreamProvider)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("blank completion response: %w", domain.ErrUpstreamProvider)
	}
	return text, nil
}
