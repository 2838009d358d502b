package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"molmind-rag/internal/config"
)

// Generator produces a free-text answer for a fully composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat completion endpoint (Groq in the
// default configuration).
type Client struct {
	llm *openai.LLM
}

func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, err
	}
	return &Client{llm: llm}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	res, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return res.Choices[0].Content, nil
}
