package features

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "retailpulse/internal/errors"
	"retailpulse/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func raw(date time.Time, store int64, sales float64) domain.RawSaleRecord {
	return domain.RawSaleRecord{Date: date, StoreID: store, Sales: sales}
}

func TestBuildFeatures_EmptyInput(t *testing.T) {
	engine := NewEngine(nil, Options{})

	records, err := engine.BuildFeatures(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBuildFeatures_ZeroDateRejected(t *testing.T) {
	engine := NewEngine(nil, Options{})

	_, err := engine.BuildFeatures(context.Background(), []domain.RawSaleRecord{
		{StoreID: 1, Sales: 100},
	}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDateParse))
}

func TestBuildFeatures_PreservesLengthAndOrder(t *testing.T) {
	engine := NewEngine(nil, Options{})

	rows := []domain.RawSaleRecord{
		raw(day(2023, time.March, 3), 2, 300),
		raw(day(2023, time.March, 1), 1, 100),
		raw(day(2023, time.March, 2), 1, 200),
	}

	records, err := engine.BuildFeatures(context.Background(), rows, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := range rows {
		assert.Equal(t, rows[i].Date, records[i].Date)
		assert.Equal(t, rows[i].StoreID, records[i].StoreID)
		assert.Equal(t, rows[i].Sales, records[i].Sales)
	}
}

func TestBuildFeatures_CalendarColumns(t *testing.T) {
	engine := NewEngine(nil, Options{})

	// 2023-03-04 was a Saturday.
	records, err := engine.BuildFeatures(context.Background(), []domain.RawSaleRecord{
		raw(day(2023, time.March, 4), 1, 100),
		raw(day(2023, time.December, 25), 1, 100),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Saturday", records[0].Weekday)
	assert.Equal(t, 3, records[0].Month)
	assert.Equal(t, "Monday", records[1].Weekday)
	assert.Equal(t, 12, records[1].Month)
}

func TestBuildFeatures_Categories(t *testing.T) {
	engine := NewEngine(nil, Options{})

	// Quartiles over [10 20 30 40]: q1=17.5, q3=32.5. The bins are
	// right-closed, so values on a boundary fall in the lower bucket.
	rows := []domain.RawSaleRecord{
		raw(day(2023, time.January, 1), 1, 10),
		raw(day(2023, time.January, 2), 1, 20),
		raw(day(2023, time.January, 3), 1, 30),
		raw(day(2023, time.January, 4), 1, 40),
	}

	records, err := engine.BuildFeatures(context.Background(), rows, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.CategoryLow, records[0].SalesCategory)
	assert.Equal(t, domain.CategoryMedium, records[1].SalesCategory)
	assert.Equal(t, domain.CategoryMedium, records[2].SalesCategory)
	assert.Equal(t, domain.CategoryHigh, records[3].SalesCategory)
}

func TestBuildFeatures_ZeroVariance(t *testing.T) {
	engine := NewEngine(nil, Options{})

	rows := []domain.RawSaleRecord{
		raw(day(2023, time.January, 1), 1, 500),
		raw(day(2023, time.January, 2), 1, 500),
		raw(day(2023, time.January, 3), 2, 500),
	}

	records, err := engine.BuildFeatures(context.Background(), rows, nil)
	require.NoError(t, err)

	for _, rec := range records {
		assert.Zero(t, rec.Zscore)
		assert.Equal(t, domain.AnomalyNormal, rec.Anomaly)
		// q1 == q3 == 500, so every row lands in the lowest bucket.
		assert.Equal(t, domain.CategoryLow, rec.SalesCategory)
	}
}

func TestBuildFeatures_AnomalyFlagging(t *testing.T) {
	engine := NewEngine(nil, Options{})

	rows := make([]domain.RawSaleRecord, 0, 8)
	for i := 0; i < 7; i++ {
		rows = append(rows, raw(day(2023, time.January, i+1), 1, 10))
	}
	rows = append(rows, raw(day(2023, time.January, 8), 1, 100))

	records, err := engine.BuildFeatures(context.Background(), rows, nil)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		assert.Equal(t, domain.AnomalyNormal, records[i].Anomaly)
		assert.Negative(t, records[i].Zscore)
	}
	outlier := records[7]
	assert.Equal(t, domain.AnomalyFlagged, outlier.Anomaly)
	assert.Greater(t, outlier.Zscore, AnomalyThreshold)
}

func TestBuildFeatures_PromoDay(t *testing.T) {
	engine := NewEngine(nil, Options{})

	rows := []domain.RawSaleRecord{
		raw(day(2023, time.March, 4), 1, 100),
		raw(day(2023, time.March, 5), 1, 100),
	}
	promos := []time.Time{day(2023, time.March, 4)}

	records, err := engine.BuildFeatures(context.Background(), rows, promos)
	require.NoError(t, err)

	assert.True(t, records[0].PromoDay)
	assert.False(t, records[1].PromoDay)
}

func TestBuildFeatures_FootfallTruncates(t *testing.T) {
	engine := NewEngine(nil, Options{})

	records, err := engine.BuildFeatures(context.Background(), []domain.RawSaleRecord{
		raw(day(2023, time.January, 1), 1, 1249),
		raw(day(2023, time.January, 2), 1, 499),
		raw(day(2023, time.January, 3), 1, 1500),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), records[0].FootfallEst)
	assert.Equal(t, int64(0), records[1].FootfallEst)
	assert.Equal(t, int64(3), records[2].FootfallEst)
}

func TestBuildFeatures_CumulativeSalesInputOrder(t *testing.T) {
	engine := NewEngine(nil, Options{})

	// Store 1 arrives out of chronological order; the running sum
	// follows input order by default.
	rows := []domain.RawSaleRecord{
		raw(day(2023, time.January, 3), 1, 30),
		raw(day(2023, time.January, 1), 1, 10),
		raw(day(2023, time.January, 2), 2, 100),
		raw(day(2023, time.January, 2), 1, 20),
	}

	records, err := engine.BuildFeatures(context.Background(), rows, nil)
	require.NoError(t, err)

	assert.Equal(t, 30.0, records[0].CumulativeSales)
	assert.Equal(t, 40.0, records[1].CumulativeSales)
	assert.Equal(t, 100.0, records[2].CumulativeSales)
	assert.Equal(t, 60.0, records[3].CumulativeSales)
}

func TestBuildFeatures_CumulativeSalesChronological(t *testing.T) {
	engine := NewEngine(nil, Options{SortByDateBeforeCumSum: true})

	rows := []domain.RawSaleRecord{
		raw(day(2023, time.January, 3), 1, 30),
		raw(day(2023, time.January, 1), 1, 10),
		raw(day(2023, time.January, 2), 1, 20),
	}

	records, err := engine.BuildFeatures(context.Background(), rows, nil)
	require.NoError(t, err)

	// Output order is unchanged, only the accumulation order differs.
	assert.Equal(t, 60.0, records[0].CumulativeSales)
	assert.Equal(t, 10.0, records[1].CumulativeSales)
	assert.Equal(t, 30.0, records[2].CumulativeSales)
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"single value", []float64{42}, 0.25, 42},
		{"interpolated q1", []float64{1, 2, 3, 4}, 0.25, 1.75},
		{"interpolated q3", []float64{1, 2, 3, 4}, 0.75, 3.25},
		{"median odd", []float64{3, 1, 2}, 0.5, 2},
		{"upper bound", []float64{1, 2, 3}, 1.0, 3},
		{"lower bound", []float64{1, 2, 3}, 0.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(tt.values, tt.p), 1e-9)
		})
	}
}

func TestMeanAndPopulationStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	mean := Mean(values)
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, PopulationStdDev(values, mean), 1e-9)

	assert.Zero(t, Mean(nil))
	assert.Zero(t, PopulationStdDev(nil, 0))
}
