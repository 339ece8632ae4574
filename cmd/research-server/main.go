// Command research-server runs the deep-research orchestration HTTP
// service.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/codeready-toolchain/deepresearch/pkg/api"
	"github.com/codeready-toolchain/deepresearch/pkg/cache"
	"github.com/codeready-toolchain/deepresearch/pkg/config"
	"github.com/codeready-toolchain/deepresearch/pkg/database"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/logging"
	"github.com/codeready-toolchain/deepresearch/pkg/orchestrator"
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

func main() {
	envFile := flag.String("env-file", getEnv("ENV_FILE", ".env"), "Path to a .env file to load")
	flag.Parse()

	bootLogger, _ := zap.NewDevelopment()
	if err := godotenv.Load(*envFile); err != nil {
		bootLogger.Warn("could not load env file, continuing with existing environment", zap.String("path", *envFile), zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Production)
	if err != nil {
		bootLogger.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting research-server", zap.String("hostname", logging.Hostname()), zap.Int("port", cfg.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		logger.Fatal("failed to load database config", zap.Error(err))
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("error closing database client", zap.Error(err))
		}
	}()
	logger.Info("connected to database and applied migrations")

	store := database.NewPostgresStore(dbClient, logger)

	llmClient := llm.NewOpenAIClient(cfg.OpenAIAPIKey, "", llm.ModelConfig{
		EconomyModel:        cfg.LLM.EconomyModel,
		HighCapabilityModel: cfg.LLM.HighCapabilityModel,
	}, logger)

	searchClient := search.NewTavilyClient(cfg.TavilyAPIKey, "", logger)

	resultCache := cache.New(cfg.CacheTTL.Sweep)
	defer resultCache.Close()

	orch := orchestrator.New(llmClient, searchClient, resultCache, store, logger)

	server := api.NewServer(api.Config{
		Port:                  cfg.Port,
		Production:            cfg.Production,
		ResearchRatePerMinute: cfg.RateLimit.ResearchPerMinute,
		HistoryRatePerMinute:  cfg.RateLimit.HistoryPerMinute,
	}, orch, store, dbClient.DB(), logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("error during graceful shutdown", zap.Error(err))
	}

	logger.Info("research-server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
