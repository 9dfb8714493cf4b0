package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"retailpulse/internal/config"
	"retailpulse/internal/features"
	"retailpulse/internal/infrastructure"
	"retailpulse/internal/ingest"
	"retailpulse/internal/store"
)

func main() {
	file := flag.String("file", "", "path to the sales CSV file (required)")
	promos := flag.String("promos", "", "comma separated promotion dates (YYYY-MM-DD), or @path to a file with one date per line")
	name := flag.String("name", "", "dataset name (defaults to the file name)")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: ingestcsv -file sales.csv [-promos 2023-03-04,2023-03-11] [-name march-sales]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}

	ctx := context.Background()

	promoDates, err := features.ParsePromoDates(readPromoValues(*promos))
	if err != nil {
		logger.Error("invalid promotion dates", slog.String("error", err.Error()))
		os.Exit(1)
	}

	recordStore, err := store.NewPostgresStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to record store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer recordStore.Close()

	engine := features.NewEngine(logger, features.Options{
		SortByDateBeforeCumSum: cfg.Ingest.SortByDateBeforeCumSum,
	})
	coordinator := ingest.NewCoordinator(engine, recordStore, logger)

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("cannot open input file",
			slog.String("path", *file),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer f.Close()

	datasetName := *name
	if datasetName == "" {
		datasetName = filepath.Base(*file)
	}

	dataset, err := coordinator.Ingest(ctx, f, promoDates, datasetName)
	if err != nil {
		logger.Error("ingest failed",
			slog.String("path", *file),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("ingest completed",
		slog.Int64("dataset_id", dataset.ID),
		slog.String("name", dataset.Name))
	fmt.Printf("ingested dataset %d (%s)\n", dataset.ID, dataset.Name)
}

// readPromoValues parses the -promos flag. A value starting with @ is
// treated as a file with one date per line, otherwise as a comma
// separated list.
func readPromoValues(raw string) []string {
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "@") {
		data, err := os.ReadFile(raw[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot read promo dates file %s: %v\n", raw[1:], err)
			os.Exit(1)
		}
		return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	}
	return strings.Split(raw, ",")
}
