package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/tally/src/app/games"
	leaderboardsvc "github.com/bryanwahyu/tally/src/app/leaderboard"
	"github.com/bryanwahyu/tally/src/domain/analysis"
	"github.com/bryanwahyu/tally/src/domain/game"
	analysisinfra "github.com/bryanwahyu/tally/src/infra/analysis"
	"github.com/bryanwahyu/tally/src/infra/config"
	gameinfra "github.com/bryanwahyu/tally/src/infra/game"
	"github.com/bryanwahyu/tally/src/infra/logging"
)

func main() {
	cfg, err := config.Load(getEnv("TALLY_CONFIG", ""))
	if err != nil {
		panic(err)
	}
	logger, err := logging.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	baseCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	var (
		sink   game.SnapshotSink = gameinfra.NopSink{}
		source game.SnapshotSource
	)
	if cfg.Database.URL != "" {
		pg, err := gameinfra.NewPostgresSink(baseCtx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		if cfg.Database.Migrate {
			if err := pg.Migrate(baseCtx); err != nil {
				logger.Fatal("failed to migrate postgres", zap.Error(err))
			}
		}
		sink = pg
		source = pg
	}

	var generator analysis.Generator
	if cfg.Analysis.URL != "" {
		generator = analysisinfra.NewHTTPGenerator(cfg.Analysis.APIKey, cfg.Analysis.URL, cfg.Analysis.Timeout)
	}

	repo := gameinfra.NewMemoryRepository()
	gameService := games.NewService(repo, sink, generator, logger)
	leaderboardService := leaderboardsvc.NewService(repo)
	if source != nil {
		if _, err := gameService.RestoreGames(baseCtx, source); err != nil {
			logger.Fatal("failed to restore games", zap.Error(err))
		}
	}

	server := NewServer(ServerConfig{
		Logger:             logger,
		GameService:        gameService,
		LeaderboardService: leaderboardService,
		CORSOrigins:        cfg.HTTP.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("tally API listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-baseCtx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
