package features

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	apperrors "retailpulse/internal/errors"
	"retailpulse/pkg/contracts/domain"
)

// AnomalyThreshold is the absolute z-score above which a row is flagged.
const AnomalyThreshold = 2.0

// AvgSpendPerCustomer is the assumed average basket value used for the
// footfall estimate.
const AvgSpendPerCustomer = 500.0

// Options configures feature derivation.
type Options struct {
	// SortByDateBeforeCumSum accumulates each store's cumulative sales in
	// chronological order instead of input order. The historical behavior
	// is input order; both are supported so the choice is deliberate.
	SortByDateBeforeCumSum bool
}

// Engine derives the analytical feature columns for one ingest batch.
// It is a pure transformation: same row count, same order, no I/O.
// Category boundaries, z-scores and anomaly flags are computed against
// the whole batch and are frozen once the batch is persisted.
type Engine struct {
	logger *slog.Logger
	opts   Options
}

// NewEngine creates a feature engine. A nil logger falls back to the
// default slog logger.
func NewEngine(logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger: logger.With(slog.String("component", "feature_engine")),
		opts:   opts,
	}
}

// BuildFeatures transforms raw sale rows into feature records. Output
// length and order match the input. promoDates are compared by calendar
// date only.
func (e *Engine) BuildFeatures(ctx context.Context, rows []domain.RawSaleRecord, promoDates []time.Time) ([]domain.FeatureRecord, error) {
	e.logger.InfoContext(ctx, "building features",
		slog.Int("row_count", len(rows)),
		slog.Int("promo_dates", len(promoDates)),
		slog.Bool("sort_by_date_before_cumsum", e.opts.SortByDateBeforeCumSum))

	if len(rows) == 0 {
		return []domain.FeatureRecord{}, nil
	}

	sales := make([]float64, len(rows))
	for i, row := range rows {
		if row.Date.IsZero() {
			return nil, apperrors.NewDateParseError("", i, nil)
		}
		sales[i] = row.Sales
	}

	q1 := Quantile(sales, 0.25)
	q3 := Quantile(sales, 0.75)
	mean := Mean(sales)
	stddev := PopulationStdDev(sales, mean)

	promoSet := make(map[string]struct{}, len(promoDates))
	for _, d := range promoDates {
		promoSet[d.Format("2006-01-02")] = struct{}{}
	}

	records := make([]domain.FeatureRecord, len(rows))
	for i, row := range rows {
		_, promo := promoSet[row.Date.Format("2006-01-02")]

		var zscore float64
		anomaly := domain.AnomalyNormal
		if stddev > 0 {
			zscore = (row.Sales - mean) / stddev
			if math.Abs(zscore) > AnomalyThreshold {
				anomaly = domain.AnomalyFlagged
			}
		}

		records[i] = domain.FeatureRecord{
			Date:          row.Date,
			StoreID:       row.StoreID,
			Sales:         row.Sales,
			Weekday:       row.Date.Weekday().String(),
			Month:         int(row.Date.Month()),
			SalesCategory: categorize(row.Sales, q1, q3),
			PromoDay:      promo,
			Zscore:        zscore,
			Anomaly:       anomaly,
			FootfallEst:   int64(math.Trunc(row.Sales / AvgSpendPerCustomer)),
		}
	}

	e.accumulate(records)

	e.logger.InfoContext(ctx, "features built",
		slog.Int("row_count", len(records)),
		slog.Float64("q1", q1),
		slog.Float64("q3", q3),
		slog.Float64("mean", mean),
		slog.Float64("stddev", stddev))

	return records, nil
}

// accumulate fills CumulativeSales as a running per-store sum, either in
// input order or chronological order per Options.
func (e *Engine) accumulate(records []domain.FeatureRecord) {
	byStore := make(map[int64][]int)
	for i, rec := range records {
		byStore[rec.StoreID] = append(byStore[rec.StoreID], i)
	}

	for _, indices := range byStore {
		if e.opts.SortByDateBeforeCumSum {
			sort.SliceStable(indices, func(a, b int) bool {
				return records[indices[a]].Date.Before(records[indices[b]].Date)
			})
		}
		var running float64
		for _, idx := range indices {
			running += records[idx].Sales
			records[idx].CumulativeSales = running
		}
	}
}

// categorize buckets a sale against the batch quantile boundaries.
// Intervals are right-closed: (-inf, q1] Low, (q1, q3] Medium, (q3, inf) High.
func categorize(sales, q1, q3 float64) domain.SalesCategory {
	switch {
	case sales <= q1:
		return domain.CategoryLow
	case sales <= q3:
		return domain.CategoryMedium
	default:
		return domain.CategoryHigh
	}
}

// Quantile returns the p-th quantile of values using linear
// interpolation between closest ranks. values must be non-empty.
func Quantile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Mean returns the arithmetic mean of values. Zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PopulationStdDev returns the population standard deviation
// (divisor N, not N-1) of values around the given mean.
func PopulationStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
