package embedding

import (
	"context"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"molmind-rag/internal/config"
)

// NewOllamaEmbedder builds a langchaingo embedder backed by a local Ollama
// server.
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Initializing embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// ChromemFunc adapts a langchaingo embedder to the chromem-go embedding
// function signature.
func ChromemFunc(embedder *embeddings.EmbedderImpl) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
