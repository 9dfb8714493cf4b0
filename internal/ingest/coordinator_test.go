package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "retailpulse/internal/errors"
	"retailpulse/internal/features"
	"retailpulse/internal/store"
)

const sampleCSV = "Date,Store,Sales\n" +
	"2023-03-04,1,1200\n" +
	"2023-03-05,1,800\n" +
	"2023-03-04,2,600\n"

func newCoordinator(recordStore store.RecordStore) *Coordinator {
	engine := features.NewEngine(nil, features.Options{})
	return NewCoordinator(engine, recordStore, nil)
}

func TestIngest_EndToEnd(t *testing.T) {
	memStore := store.NewMemoryStore()
	c := newCoordinator(memStore)
	ctx := context.Background()

	promos := []time.Time{time.Date(2023, time.March, 4, 0, 0, 0, 0, time.UTC)}

	dataset, err := c.Ingest(ctx, strings.NewReader(sampleCSV), promos, "march")
	require.NoError(t, err)
	assert.Equal(t, "march", dataset.Name)
	assert.Positive(t, dataset.ID)

	rows, err := memStore.Rows(ctx, dataset.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.True(t, rows[0].PromoDay)
	assert.False(t, rows[1].PromoDay)
	assert.True(t, rows[2].PromoDay)

	// Per-store running sums in ingest order.
	assert.Equal(t, 1200.0, rows[0].CumulativeSales)
	assert.Equal(t, 2000.0, rows[1].CumulativeSales)
	assert.Equal(t, 600.0, rows[2].CumulativeSales)

	for _, row := range rows {
		assert.Equal(t, dataset.ID, row.DatasetID)
	}
}

func TestIngest_ParseFailureStoresNothing(t *testing.T) {
	memStore := store.NewMemoryStore()
	c := newCoordinator(memStore)
	ctx := context.Background()

	bad := "Date,Store,Sales\n2023-03-04,1,100\nnot-a-date,1,200\n"
	_, err := c.Ingest(ctx, strings.NewReader(bad), nil, "bad")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDateParse))

	datasets, err := memStore.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestIngest_StoreFailurePropagates(t *testing.T) {
	memStore := store.NewMemoryStore()
	memStore.FailInsert = errors.New("connection reset")
	c := newCoordinator(memStore)

	_, err := c.Ingest(context.Background(), strings.NewReader(sampleCSV), nil, "doomed")
	require.Error(t, err)

	datasets, listErr := memStore.ListDatasets(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, datasets)
}

func TestIngest_DefaultName(t *testing.T) {
	memStore := store.NewMemoryStore()
	c := newCoordinator(memStore)

	dataset, err := c.Ingest(context.Background(), strings.NewReader(sampleCSV), nil, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataset.Name, "upload-"))
}

func TestIngest_ReingestCreatesNewDataset(t *testing.T) {
	memStore := store.NewMemoryStore()
	c := newCoordinator(memStore)
	ctx := context.Background()

	first, err := c.Ingest(ctx, strings.NewReader(sampleCSV), nil, "same")
	require.NoError(t, err)
	second, err := c.Ingest(ctx, strings.NewReader(sampleCSV), nil, "same")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)

	datasets, err := memStore.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Len(t, datasets, 2)
}
