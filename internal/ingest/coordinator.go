// Package ingest orchestrates one-shot batch ingestion: parse the
// uploaded CSV, derive features, persist the batch as a new dataset.
package ingest

import (
	"context"
	"io"
	"log/slog"
	"time"

	"retailpulse/internal/features"
	"retailpulse/internal/store"
	"retailpulse/pkg/contracts/domain"
)

// Coordinator runs the ingest pipeline. Each call creates a new,
// independent dataset; re-ingesting the same file is never deduplicated.
type Coordinator struct {
	engine *features.Engine
	store  store.RecordStore
	logger *slog.Logger
}

// NewCoordinator creates an ingest coordinator.
func NewCoordinator(engine *features.Engine, recordStore store.RecordStore, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		engine: engine,
		store:  recordStore,
		logger: logger.With(slog.String("component", "ingest_coordinator")),
	}
}

// Ingest parses raw CSV input, derives features and persists the batch.
// Dataset creation and row insertion happen in one store transaction;
// on any failure nothing becomes visible to readers.
func (c *Coordinator) Ingest(ctx context.Context, r io.Reader, promoDates []time.Time, name string) (domain.Dataset, error) {
	rows, err := features.ParseCSV(r)
	if err != nil {
		return domain.Dataset{}, err
	}
	return c.IngestRows(ctx, rows, promoDates, name)
}

// IngestRows runs the pipeline over already-parsed raw rows.
func (c *Coordinator) IngestRows(ctx context.Context, rows []domain.RawSaleRecord, promoDates []time.Time, name string) (domain.Dataset, error) {
	if name == "" {
		name = "upload-" + time.Now().UTC().Format("20060102-150405")
	}

	c.logger.InfoContext(ctx, "starting ingest",
		slog.String("name", name),
		slog.Int("row_count", len(rows)),
		slog.Int("promo_dates", len(promoDates)))

	records, err := c.engine.BuildFeatures(ctx, rows, promoDates)
	if err != nil {
		return domain.Dataset{}, err
	}

	dataset, err := c.store.SaveBatch(ctx, name, records)
	if err != nil {
		c.logger.ErrorContext(ctx, "ingest rolled back",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return domain.Dataset{}, err
	}

	c.logger.InfoContext(ctx, "ingest complete",
		slog.Int64("dataset_id", dataset.ID),
		slog.String("name", dataset.Name),
		slog.Int("row_count", len(records)))

	return dataset, nil
}
