package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"retailpulse/internal/app"
)

func main() {
	// Load the optional .env file before configuration is read.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}

	ctx := context.Background()

	application, err := app.NewApplication(ctx)
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
