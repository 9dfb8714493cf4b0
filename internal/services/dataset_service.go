// Package services wires the pipeline core to the HTTP transport. Each
// query loads the target dataset's rows fresh from the record store, so
// results can never be stale; cost is proportional to dataset size,
// which is acceptable for single-file batch uploads.
package services

import (
	"context"
	"log/slog"

	"retailpulse/internal/analytics"
	apperrors "retailpulse/internal/errors"
	"retailpulse/internal/forecast"
	"retailpulse/internal/store"
	"retailpulse/pkg/contracts/domain"
)

// DatasetService provides dataset reads, aggregations and forecasts.
type DatasetService struct {
	store      store.RecordStore
	forecaster *forecast.Forecaster
	logger     *slog.Logger
}

// NewDatasetService creates a dataset service.
func NewDatasetService(recordStore store.RecordStore, forecaster *forecast.Forecaster, logger *slog.Logger) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetService{
		store:      recordStore,
		forecaster: forecaster,
		logger:     logger.With(slog.String("component", "dataset_service")),
	}
}

// ListDatasets returns all ingested datasets, newest first.
func (s *DatasetService) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	return s.store.ListDatasets(ctx)
}

// LatestDataset returns the most recently uploaded dataset.
func (s *DatasetService) LatestDataset(ctx context.Context) (*domain.Dataset, error) {
	dataset, err := s.store.LatestDataset(ctx)
	if err != nil {
		return nil, err
	}
	if dataset == nil {
		return nil, apperrors.NewNotFoundError("dataset")
	}
	return dataset, nil
}

// FeatureTable returns a dataset's feature records in ingest order.
func (s *DatasetService) FeatureTable(ctx context.Context, datasetID int64) ([]domain.FeatureRecord, error) {
	records, err := s.store.Rows(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NewNotFoundError("dataset").
			WithContext("dataset_id", datasetID)
	}
	return records, nil
}

// StoreTotals returns total sales per store.
func (s *DatasetService) StoreTotals(ctx context.Context, datasetID int64) ([]analytics.StoreTotal, error) {
	records, err := s.FeatureTable(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return analytics.TotalByStore(records), nil
}

// MonthAverages returns mean sales per month.
func (s *DatasetService) MonthAverages(ctx context.Context, datasetID int64) ([]analytics.MonthAverage, error) {
	records, err := s.FeatureTable(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return analytics.MonthAverages(records)
}

// WeekdayAverages returns mean sales per weekday.
func (s *DatasetService) WeekdayAverages(ctx context.Context, datasetID int64) ([]analytics.WeekdayAverage, error) {
	records, err := s.FeatureTable(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return analytics.WeekdayAverages(records), nil
}

// Rankings returns the monthly store ranking table.
func (s *DatasetService) Rankings(ctx context.Context, datasetID int64) ([]analytics.StoreRank, error) {
	records, err := s.FeatureTable(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return analytics.RankStoresByMonth(records)
}

// PromoImpact compares mean sales on promo days versus regular days.
func (s *DatasetService) PromoImpact(ctx context.Context, datasetID int64) ([]analytics.PromoImpact, error) {
	records, err := s.FeatureTable(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return analytics.PromoImpactSummary(records), nil
}

// TopStores returns the n best-selling stores.
func (s *DatasetService) TopStores(ctx context.Context, datasetID int64, n int) ([]analytics.StoreTotal, error) {
	records, err := s.FeatureTable(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return analytics.TopStores(records, n), nil
}

// Anomalies returns the rows flagged anomalous at ingest time.
func (s *DatasetService) Anomalies(ctx context.Context, datasetID int64) ([]domain.FeatureRecord, error) {
	records, err := s.FeatureTable(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return analytics.Anomalies(records), nil
}

// DailySeries returns the daily sales series for one store, or the sum
// across all stores when storeID <= 0.
func (s *DatasetService) DailySeries(ctx context.Context, datasetID, storeID int64) ([]domain.SeriesPoint, error) {
	records, err := s.FeatureTable(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return analytics.DailySeries(records, storeID), nil
}

// RollingAverage returns the trailing mean of the daily series.
func (s *DatasetService) RollingAverage(ctx context.Context, datasetID, storeID int64, window int) ([]domain.SeriesPoint, error) {
	series, err := s.DailySeries(ctx, datasetID, storeID)
	if err != nil {
		return nil, err
	}
	return analytics.RollingAverage(series, window), nil
}

// Forecast projects the daily sales series periods days past its last
// observation. storeID <= 0 forecasts the all-store sum.
func (s *DatasetService) Forecast(ctx context.Context, datasetID, storeID int64, periods int) ([]domain.ForecastPoint, error) {
	series, err := s.DailySeries(ctx, datasetID, storeID)
	if err != nil {
		return nil, err
	}
	if storeID > 0 && len(series) == 0 {
		return nil, apperrors.NewNotFoundError("store").
			WithContext("store_id", storeID)
	}

	s.logger.InfoContext(ctx, "forecast requested",
		slog.Int64("dataset_id", datasetID),
		slog.Int64("store_id", storeID),
		slog.Int("periods", periods),
		slog.Int("observations", len(series)))

	return s.forecaster.Forecast(ctx, series, periods)
}
