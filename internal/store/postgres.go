package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retailpulse/internal/config"
	apperrors "retailpulse/internal/errors"
	"retailpulse/pkg/contracts/domain"
)

// schema is the bootstrap DDL for the record store. Applied at startup
// when database.apply_schema is enabled; idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sales (
	id               BIGSERIAL PRIMARY KEY,
	dataset_id       BIGINT NOT NULL REFERENCES datasets(id),
	date             DATE NOT NULL,
	store_id         BIGINT NOT NULL,
	sales            DOUBLE PRECISION NOT NULL,
	weekday          TEXT NOT NULL,
	month            INT NOT NULL,
	sales_category   TEXT NOT NULL,
	cumulative_sales DOUBLE PRECISION NOT NULL,
	promo_day        BOOLEAN NOT NULL DEFAULT FALSE,
	zscore           DOUBLE PRECISION NOT NULL,
	anomaly          TEXT NOT NULL,
	footfall_est     BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sales_dataset ON sales (dataset_id);
CREATE INDEX IF NOT EXISTS idx_sales_dataset_store ON sales (dataset_id, store_id);
`

var salesColumns = []string{
	"dataset_id", "date", "store_id", "sales", "weekday", "month",
	"sales_category", "cumulative_sales", "promo_day", "zscore",
	"anomaly", "footfall_est",
}

// PostgresStore is the pgx-backed record store.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to the database and optionally applies the
// bootstrap schema.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, apperrors.NewStorageError("invalid database URL", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to connect to database", err)
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger.With(slog.String("component", "postgres_store")),
	}

	if cfg.ApplySchema {
		if _, err := pool.Exec(ctx, schema); err != nil {
			pool.Close()
			return nil, apperrors.NewStorageError("failed to apply schema", err)
		}
	}

	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperrors.NewStorageError("database ping failed", err)
	}
	return nil
}

// SaveBatch creates the dataset and copies all rows inside one
// transaction. Any failure rolls the whole batch back so readers never
// see a partially populated dataset.
func (s *PostgresStore) SaveBatch(ctx context.Context, name string, rows []domain.FeatureRecord) (domain.Dataset, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Dataset{}, apperrors.NewIngestTransactionError("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var dataset domain.Dataset
	dataset.Name = name
	err = tx.QueryRow(ctx,
		`INSERT INTO datasets (name) VALUES ($1) RETURNING id, uploaded_at`,
		name,
	).Scan(&dataset.ID, &dataset.UploadedAt)
	if err != nil {
		return domain.Dataset{}, apperrors.NewIngestTransactionError("failed to create dataset", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"sales"},
		salesColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			r := rows[i]
			return []interface{}{
				dataset.ID, r.Date, r.StoreID, r.Sales, r.Weekday, r.Month,
				string(r.SalesCategory), r.CumulativeSales, r.PromoDay,
				r.Zscore, string(r.Anomaly), r.FootfallEst,
			}, nil
		}),
	)
	if err != nil {
		return domain.Dataset{}, apperrors.NewIngestTransactionError("failed to insert rows", err).
			WithContext("dataset_name", name).
			WithContext("row_count", len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Dataset{}, apperrors.NewIngestTransactionError("failed to commit ingest", err)
	}

	s.logger.InfoContext(ctx, "batch saved",
		slog.Int64("dataset_id", dataset.ID),
		slog.String("name", name),
		slog.Int("row_count", len(rows)))

	return dataset, nil
}

// ListDatasets returns all datasets, newest first.
func (s *PostgresStore) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, uploaded_at FROM datasets ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list datasets", err)
	}
	defer rows.Close()

	var datasets []domain.Dataset
	for rows.Next() {
		var d domain.Dataset
		if err := rows.Scan(&d.ID, &d.Name, &d.UploadedAt); err != nil {
			return nil, apperrors.NewStorageError("failed to scan dataset", err)
		}
		datasets = append(datasets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to read datasets", err)
	}
	return datasets, nil
}

// LatestDataset returns the most recently uploaded dataset, or nil when
// none exists.
func (s *PostgresStore) LatestDataset(ctx context.Context) (*domain.Dataset, error) {
	var d domain.Dataset
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, uploaded_at FROM datasets ORDER BY uploaded_at DESC, id DESC LIMIT 1`,
	).Scan(&d.ID, &d.Name, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query latest dataset", err)
	}
	return &d, nil
}

// Rows returns a dataset's feature records in ingest order. The serial
// primary key preserves the original batch order.
func (s *PostgresStore) Rows(ctx context.Context, datasetID int64) ([]domain.FeatureRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, store_id, sales, weekday, month, sales_category,
		        cumulative_sales, promo_day, zscore, anomaly, footfall_est
		   FROM sales WHERE dataset_id = $1 ORDER BY id`, datasetID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query rows", err)
	}
	defer rows.Close()

	var records []domain.FeatureRecord
	for rows.Next() {
		var (
			r        domain.FeatureRecord
			category string
			anomaly  string
		)
		if err := rows.Scan(&r.Date, &r.StoreID, &r.Sales, &r.Weekday, &r.Month,
			&category, &r.CumulativeSales, &r.PromoDay, &r.Zscore, &anomaly,
			&r.FootfallEst); err != nil {
			return nil, apperrors.NewStorageError("failed to scan row", err)
		}
		r.SalesCategory = domain.SalesCategory(category)
		r.Anomaly = domain.AnomalyFlag(anomaly)
		r.DatasetID = datasetID
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to read rows", err)
	}
	return records, nil
}
