package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"discord-persona-bot/internal/ai"
	"discord-persona-bot/internal/bot"
	"discord-persona-bot/internal/database"
	"discord-persona-bot/internal/knowledge"
	"discord-persona-bot/internal/memory"
	"discord-persona-bot/internal/moderation"
	"discord-persona-bot/internal/rag"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const embeddingDim = 3072 // gemini-embedding-001

func main() {
	// Load environment variables before anything reads them
	envErr := godotenv.Load()

	config := zap.NewProductionConfig()
	if os.Getenv("DEBUG") != "" {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Debug("no .env file found, using process environment")
	}

	// Initialize database
	db, err := database.NewDB(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		envInt("DB_PORT", 5432),
	)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Gemini-backed AI service (per-persona key overrides handled inside)
	aiService := ai.NewAIService(os.Getenv("GEMINI_API_KEY"))

	// Knowledge store and retrieval scoping policy
	store := knowledge.NewPostgresStore(db.DB, embeddingDim)
	retriever := rag.NewRetriever(store, aiService, logger)

	// Moderation escalation over the durable violation counter
	decay := time.Duration(envInt("VIOLATION_DECAY_MINUTES", 0)) * time.Minute
	tracker := &bot.ViolationTracker{DB: db, Decay: decay}
	violations := moderation.NewHandler(tracker, logger)

	// Rolling per-channel conversation memory
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	memTTL := time.Duration(envInt("MEMORY_TTL_MINUTES", 30)) * time.Minute
	mem := memory.NewStore(memTTL, logger)
	mem.StartSweeper(ctx, 5*time.Minute)

	// Connect every active persona
	registry := bot.NewRegistry(db, aiService, retriever, violations, mem, logger)
	if err := registry.StartAll(); err != nil {
		logger.Fatal("failed to start personas", zap.Error(err))
	}

	logger.Info("persona platform is running")

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	registry.StopAll()
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
