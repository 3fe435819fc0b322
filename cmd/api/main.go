package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mediflow/internal/config"
	"mediflow/internal/coordinator"
	"mediflow/internal/llmclient"
	"mediflow/internal/orchestrator"
	"mediflow/internal/server"
	"mediflow/internal/store/archive"
	"mediflow/internal/store/metrics"
	"mediflow/internal/store/patient"
	"mediflow/internal/store/session"
	"mediflow/internal/watch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var (
		sessions session.Store
		metricsS metrics.Store
		patients patient.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		sessions = session.NewPostgresStore(db)
		metricsS = metrics.NewPostgresStore(db)
		patients = patient.NewPostgresStore(db)
		log.Printf("stores: postgres")
	} else {
		sessions = session.NewMemoryStore()
		metricsS = metrics.NewMemoryStore()
		patients = patient.NewMemoryStore()
		log.Printf("stores: in-memory (DATABASE_URL is not set)")
	}

	cached, err := patient.NewCachedStore(patients, 0)
	if err != nil {
		log.Fatalf("patient cache: %v", err)
	}
	patients = cached

	llm := buildClient(ctx, cfg.LLM)
	log.Printf("llm client: %s (configured=%t)", llm.Name(), llm.Configured())
	defer llm.Close()

	var archiver coordinator.Archiver
	if cfg.Archive.Enabled {
		s3, err := archive.NewS3Store(archive.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			log.Printf("report archive disabled: %v", err)
		} else {
			archiver = s3
			log.Printf("report archive: s3 bucket %s", cfg.Archive.Bucket)
		}
	}

	hub := watch.NewHub()
	orch := orchestrator.New(sessions, metricsS, hub)
	coord := coordinator.New(llm, sessions, patients, orch, hub, archiver, coordinator.Models{
		Translator:      cfg.LLM.GeminiModel,
		SymptomAnalyzer: cfg.LLM.GeminiModel,
		Researcher:      cfg.LLM.GeminiModel,
		RiskAssessor:    cfg.LLM.GeminiModel,
		Aggregator:      cfg.LLM.GeminiModel,
	})

	srv := &server.Server{
		Coordinator: coord,
		Sessions:    sessions,
		Metrics:     metricsS,
		Orch:        orch,
		Hub:         hub,
	}

	log.Printf("Starting API server on %s", cfg.Port)
	if err := server.Run(ctx, cfg.Port, srv.Handler()); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// buildClient prefers Gemini, falls back to the OpenAI-compatible chat API,
// and otherwise returns an unconfigured client so every agent degrades to its
// deterministic fallback.
func buildClient(ctx context.Context, cfg config.LLMConfig) llmclient.Client {
	if cfg.GeminiAPIKey != "" {
		c, err := llmclient.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err == nil {
			return llmclient.WithTimeout(c, cfg.CallTimeout)
		}
		log.Printf("gemini client unavailable: %v", err)
	}
	if cfg.ChatAPIKey != "" {
		c, err := llmclient.NewChatClient(cfg.ChatAPIKey, cfg.ChatModel, cfg.ChatBaseURL)
		if err == nil {
			return llmclient.WithTimeout(c, cfg.CallTimeout)
		}
		log.Printf("chat client unavailable: %v", err)
	}
	return llmclient.Unconfigured("no LLM API key is set")
}
