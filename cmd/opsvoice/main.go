package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"opsvoice/internal/chunker"
	"opsvoice/internal/config"
	"opsvoice/internal/domain"
	"opsvoice/internal/embedding/openai"
	"opsvoice/internal/logger"
	"opsvoice/internal/server"
	"opsvoice/internal/service"
	"opsvoice/internal/session"
	"opsvoice/internal/vectorstore/memory"
	"opsvoice/internal/vectorstore/pgvector"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/opsvoice/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store domain.VectorStore
	switch cfg.VectorStore.Type {
	case "memory", "":
		store = memory.NewStore()
	case "postgres":
		store, err = pgvector.New(ctx, pgvector.Config{
			DatabaseURL: cfg.VectorStore.ResolveDatabaseURL(),
			VectorDim:   cfg.VectorStore.VectorDim,
			MaxConns:    cfg.VectorStore.MaxConns,
			Migrate:     cfg.VectorStore.MigrateOnBoot,
		}, logg)
		if err != nil {
			logg.Fatal("vector store init failed", "error", err)
		}
	default:
		logg.Fatal("unknown vector store type", "type", cfg.VectorStore.Type)
	}
	defer store.Close()

	emb, err := openai.NewClient(openai.Config{
		BaseURL:    cfg.Embedder.BaseURL,
		APIKeyEnv:  cfg.Embedder.APIKeyEnv,
		Model:      cfg.Embedder.Model,
		Timeout:    time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Embedder.MaxRetries,
	}, logg)
	if err != nil {
		logg.Fatal("embedder init failed", "error", err)
	}

	split := chunker.NewHeadingChunker(cfg.Chunker.MaxChunkChars, cfg.Chunker.MinAlnumChars)
	ingestor := service.NewIngestionService(split, emb, store, cfg.Ingest.MinRawChars, logg)
	retriever := service.NewRetrievalService(emb, store, logg)

	srv := server.New(server.Config{
		Mode:       cfg.Server.Mode,
		AdminToken: cfg.Server.AdminToken(),
		Ingestor:   ingestor,
		Retriever:  retriever,
		Store:      store,
		Responder:  session.NewTemplateResponder(),
		Session: session.Config{
			TypedTopK:   cfg.Retrieval.TopK,
			TypedMinSim: cfg.Retrieval.MinSimilarity,
			VoiceTopK:   cfg.Retrieval.VoiceTopK,
			VoiceMinSim: cfg.Retrieval.VoiceMinSim,
			Patience:    time.Duration(cfg.Session.PatienceSecs) * time.Second,
		},
		Log: logg,
	})

	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		logg.Fatal("server stopped", "error", err)
	}
	logg.Info("shutdown complete")
}
