package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/avetrano/matrixflow/internal/client/cli"
	"github.com/avetrano/matrixflow/internal/client/config"
	"github.com/avetrano/matrixflow/internal/logging"
)

func main() {
	ctx := context.Background()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "err", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
