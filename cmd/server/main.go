package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"molmind-rag/internal/config"
	"molmind-rag/internal/embedding"
	"molmind-rag/internal/llm"
	"molmind-rag/internal/loader"
	"molmind-rag/internal/rag"
	"molmind-rag/internal/registry"
	"molmind-rag/internal/server"
	"molmind-rag/internal/splitter"
	"molmind-rag/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Parse()

	// Missing .env is fine; env vars may come from the environment itself.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file loaded")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	embedder, err := embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	generator, err := llm.NewClient(&cfg.ChatLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM client")
	}

	store := vectorstore.NewStore(cfg.RAG.PersistDir, cfg.RAG.Collection, embedding.ChromemFunc(embedder))
	sp := splitter.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	orch := rag.NewOrchestrator(loader.NewLoader(), sp, store, generator, cfg.RAG.TopK)

	reg, err := registry.Connect(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to registry database")
	}
	if reg.Enabled() {
		if err := reg.Init(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Error initializing registry database")
		}
		defer reg.Close()
	} else {
		log.Info().Msg("Document registry disabled (no database DSN configured)")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(orch, store, reg).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", cfg.Server.Addr).Msg("Starting MolMind RAG API")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
