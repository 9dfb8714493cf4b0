package store

import (
	"context"
	"sync"
	"time"

	"retailpulse/pkg/contracts/domain"
)

// MemoryStore is an in-memory RecordStore used in tests and for running
// the pipeline without a database. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	datasets []domain.Dataset
	rows     map[int64][]domain.FeatureRecord

	// FailInsert forces SaveBatch to fail after dataset creation, for
	// exercising rollback behavior in tests.
	FailInsert error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		rows:   make(map[int64][]domain.FeatureRecord),
	}
}

// SaveBatch stores the dataset and rows together, or nothing at all.
func (s *MemoryStore) SaveBatch(_ context.Context, name string, rows []domain.FeatureRecord) (domain.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsert != nil {
		return domain.Dataset{}, s.FailInsert
	}

	dataset := domain.Dataset{
		ID:         s.nextID,
		Name:       name,
		UploadedAt: time.Now().UTC(),
	}
	s.nextID++

	stored := make([]domain.FeatureRecord, len(rows))
	copy(stored, rows)
	for i := range stored {
		stored[i].DatasetID = dataset.ID
	}

	s.datasets = append(s.datasets, dataset)
	s.rows[dataset.ID] = stored
	return dataset, nil
}

// ListDatasets returns all datasets, newest first.
func (s *MemoryStore) ListDatasets(_ context.Context) ([]domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Dataset, len(s.datasets))
	for i, d := range s.datasets {
		out[len(s.datasets)-1-i] = d
	}
	return out, nil
}

// LatestDataset returns the most recent dataset, or nil when empty.
func (s *MemoryStore) LatestDataset(_ context.Context) (*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.datasets) == 0 {
		return nil, nil
	}
	latest := s.datasets[len(s.datasets)-1]
	return &latest, nil
}

// Rows returns a dataset's records in ingest order.
func (s *MemoryStore) Rows(_ context.Context, datasetID int64) ([]domain.FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.rows[datasetID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.FeatureRecord, len(stored))
	copy(out, stored)
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
