package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/arnavshah/shift-solver-api/pkg/app"
	"github.com/arnavshah/shift-solver-api/pkg/config"
	"github.com/arnavshah/shift-solver-api/pkg/logging"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	r, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("could not build server", zap.Error(err))
	}

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("could not run server", zap.Error(err))
	}
}
