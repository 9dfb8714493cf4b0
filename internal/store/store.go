// Package store is the record-store boundary of the pipeline: durable
// storage of feature-augmented batches keyed by dataset id. The rest of
// the system treats it as opaque; only the contract below is relied on.
package store

import (
	"context"

	"retailpulse/pkg/contracts/domain"
)

// RecordStore persists and serves feature-augmented datasets.
//
// SaveBatch composes dataset creation and row insertion in a single
// transaction: either the dataset and every row become visible
// together, or nothing does. Readers can never observe a partially
// populated dataset.
type RecordStore interface {
	// SaveBatch atomically creates a dataset and persists its rows,
	// returning the created dataset with its assigned id.
	SaveBatch(ctx context.Context, name string, rows []domain.FeatureRecord) (domain.Dataset, error)

	// ListDatasets returns all datasets, newest first.
	ListDatasets(ctx context.Context) ([]domain.Dataset, error)

	// LatestDataset returns the most recently uploaded dataset, or nil
	// when no dataset has been ingested yet.
	LatestDataset(ctx context.Context) (*domain.Dataset, error)

	// Rows returns a dataset's feature records in their original ingest
	// order.
	Rows(ctx context.Context, datasetID int64) ([]domain.FeatureRecord, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
