package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig describes one OpenAI- or Ollama-compatible model endpoint.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

// RAGConfig controls chunking, retrieval and index persistence.
type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	PersistDir   string `yaml:"persist_dir"`
	Collection   string `yaml:"collection"`
}

// DatabaseConfig configures the optional Postgres ingestion registry.
// An empty DSN disables the registry.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8000"},
		EmbedLLM: LLMConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama2",
		},
		ChatLLM: LLMConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama3-8b-8192",
		},
		RAG: RAGConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			TopK:         5,
			PersistDir:   "./chromem_index",
			Collection:   "molmind",
		},
	}
}

// LoadConfig reads the YAML config at path on top of the defaults. A missing
// file is not an error. GROQ_API_KEY and PERSIST_DIRECTORY environment
// variables override whatever the file says.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		cfg.ChatLLM.Key = key
	}
	if dir := os.Getenv("PERSIST_DIRECTORY"); dir != "" {
		cfg.RAG.PersistDir = dir
	}

	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap < 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 5
	}
	return cfg, nil
}
