// Package analytics provides the read-side rollups over a dataset's
// feature records: grouped totals and averages, monthly store rankings
// and the small derived tables shown on the dashboard. All functions
// are stateless and operate on an in-memory record slice loaded fresh
// per request.
package analytics

import (
	"sort"
	"time"

	apperrors "retailpulse/internal/errors"
	"retailpulse/pkg/contracts/domain"
)

// StoreTotal is the summed sales for one store.
type StoreTotal struct {
	StoreID    int64   `json:"store_id"`
	TotalSales float64 `json:"total_sales"`
}

// MonthAverage is the mean sales across all rows of one month.
type MonthAverage struct {
	Month     int     `json:"month"`
	MonthName string  `json:"month_name"`
	Average   float64 `json:"average"`
}

// WeekdayAverage is the mean sales across all rows of one weekday.
type WeekdayAverage struct {
	Weekday string  `json:"weekday"`
	Average float64 `json:"average"`
}

// StoreRank is one row of the monthly store ranking table.
type StoreRank struct {
	Month      int     `json:"month"`
	MonthName  string  `json:"month_name"`
	StoreID    int64   `json:"store_id"`
	TotalSales float64 `json:"total_sales"`
	Rank       int     `json:"rank"`
}

// PromoImpact compares mean sales on promo days against regular days.
type PromoImpact struct {
	Label        string  `json:"label"`
	PromoDay     bool    `json:"promo_day"`
	AverageSales float64 `json:"average_sales"`
	Rows         int     `json:"rows"`
}

// weekdayOrder fixes the calendar order of weekday rollups.
var weekdayOrder = map[string]int{
	"Monday": 0, "Tuesday": 1, "Wednesday": 2, "Thursday": 3,
	"Friday": 4, "Saturday": 5, "Sunday": 6,
}

// MonthName maps an integer month 1-12 to its 3-letter English
// abbreviation. Values outside 1-12 are an input error, never wrapped.
func MonthName(month int) (string, error) {
	if month < 1 || month > 12 {
		return "", apperrors.NewInvalidMonthError(month)
	}
	return time.Month(month).String()[:3], nil
}

// TotalByStore sums sales per store. Anomalous rows are not filtered.
// Results are sorted by store id.
func TotalByStore(records []domain.FeatureRecord) []StoreTotal {
	sums := make(map[int64]float64)
	for _, rec := range records {
		sums[rec.StoreID] += rec.Sales
	}

	totals := make([]StoreTotal, 0, len(sums))
	for storeID, sum := range sums {
		totals = append(totals, StoreTotal{StoreID: storeID, TotalSales: sum})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].StoreID < totals[j].StoreID })
	return totals
}

// MonthAverages computes mean sales per month. Months with no rows are
// absent from the result, not zero-filled.
func MonthAverages(records []domain.FeatureRecord) ([]MonthAverage, error) {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, rec := range records {
		sums[rec.Month] += rec.Sales
		counts[rec.Month]++
	}

	averages := make([]MonthAverage, 0, len(sums))
	for month, sum := range sums {
		name, err := MonthName(month)
		if err != nil {
			return nil, err
		}
		averages = append(averages, MonthAverage{
			Month:     month,
			MonthName: name,
			Average:   sum / float64(counts[month]),
		})
	}
	sort.Slice(averages, func(i, j int) bool { return averages[i].Month < averages[j].Month })
	return averages, nil
}

// WeekdayAverages computes mean sales per weekday name, in calendar
// order starting Monday. The result has at most 7 entries.
func WeekdayAverages(records []domain.FeatureRecord) []WeekdayAverage {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rec := range records {
		sums[rec.Weekday] += rec.Sales
		counts[rec.Weekday]++
	}

	averages := make([]WeekdayAverage, 0, len(sums))
	for weekday, sum := range sums {
		averages = append(averages, WeekdayAverage{
			Weekday: weekday,
			Average: sum / float64(counts[weekday]),
		})
	}
	sort.Slice(averages, func(i, j int) bool {
		return weekdayOrder[averages[i].Weekday] < weekdayOrder[averages[j].Weekday]
	})
	return averages
}

// RankStoresByMonth sums sales per (month, store) and ranks stores
// within each month, descending by total, with competition ("min") tie
// semantics: equal totals share the lower rank and the next distinct
// total skips the tied count. Results are sorted by month then rank.
func RankStoresByMonth(records []domain.FeatureRecord) ([]StoreRank, error) {
	type key struct {
		month   int
		storeID int64
	}
	sums := make(map[key]float64)
	for _, rec := range records {
		sums[key{rec.Month, rec.StoreID}] += rec.Sales
	}

	byMonth := make(map[int][]StoreRank)
	for k, sum := range sums {
		name, err := MonthName(k.month)
		if err != nil {
			return nil, err
		}
		byMonth[k.month] = append(byMonth[k.month], StoreRank{
			Month:      k.month,
			MonthName:  name,
			StoreID:    k.storeID,
			TotalSales: sum,
		})
	}

	months := make([]int, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Ints(months)

	var ranked []StoreRank
	for _, month := range months {
		rows := byMonth[month]
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].TotalSales != rows[j].TotalSales {
				return rows[i].TotalSales > rows[j].TotalSales
			}
			return rows[i].StoreID < rows[j].StoreID
		})
		for i := range rows {
			if i > 0 && rows[i].TotalSales == rows[i-1].TotalSales {
				rows[i].Rank = rows[i-1].Rank
			} else {
				rows[i].Rank = i + 1
			}
		}
		ranked = append(ranked, rows...)
	}
	return ranked, nil
}

// PromoImpactSummary computes mean sales on promo days versus regular
// days. Groups with no rows are omitted.
func PromoImpactSummary(records []domain.FeatureRecord) []PromoImpact {
	sums := make(map[bool]float64)
	counts := make(map[bool]int)
	for _, rec := range records {
		sums[rec.PromoDay] += rec.Sales
		counts[rec.PromoDay]++
	}

	var impacts []PromoImpact
	for _, promo := range []bool{false, true} {
		if counts[promo] == 0 {
			continue
		}
		label := "Normal"
		if promo {
			label = "Promo"
		}
		impacts = append(impacts, PromoImpact{
			Label:        label,
			PromoDay:     promo,
			AverageSales: sums[promo] / float64(counts[promo]),
			Rows:         counts[promo],
		})
	}
	return impacts
}

// TopStores returns the n stores with the highest total sales,
// descending. Ties break on the lower store id.
func TopStores(records []domain.FeatureRecord, n int) []StoreTotal {
	totals := TotalByStore(records)
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].TotalSales != totals[j].TotalSales {
			return totals[i].TotalSales > totals[j].TotalSales
		}
		return totals[i].StoreID < totals[j].StoreID
	})
	if n > 0 && n < len(totals) {
		totals = totals[:n]
	}
	return totals
}

// Anomalies returns the rows flagged as anomalous at ingest time.
func Anomalies(records []domain.FeatureRecord) []domain.FeatureRecord {
	var flagged []domain.FeatureRecord
	for _, rec := range records {
		if rec.Anomaly == domain.AnomalyFlagged {
			flagged = append(flagged, rec)
		}
	}
	return flagged
}

// DailySeries sums sales per calendar date, optionally filtered to one
// store (storeID <= 0 means all stores). Results are sorted by date.
func DailySeries(records []domain.FeatureRecord, storeID int64) []domain.SeriesPoint {
	sums := make(map[time.Time]float64)
	for _, rec := range records {
		if storeID > 0 && rec.StoreID != storeID {
			continue
		}
		day := rec.Date.Truncate(24 * time.Hour)
		sums[day] += rec.Sales
	}

	series := make([]domain.SeriesPoint, 0, len(sums))
	for date, sum := range sums {
		series = append(series, domain.SeriesPoint{Date: date, Value: sum})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series
}

// RollingAverage computes a trailing mean over the series with the given
// window, after zero-filling missing calendar days. A partial window at
// the start averages the points seen so far.
func RollingAverage(series []domain.SeriesPoint, window int) []domain.SeriesPoint {
	if window <= 0 || len(series) == 0 {
		return nil
	}

	filled := FillDaily(series)
	out := make([]domain.SeriesPoint, len(filled))
	var sum float64
	for i, p := range filled {
		sum += p.Value
		if i >= window {
			sum -= filled[i-window].Value
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = domain.SeriesPoint{Date: p.Date, Value: sum / float64(n)}
	}
	return out
}

// FillDaily reindexes a date-sorted series to continuous daily
// frequency across its observed range, filling missing calendar days
// with 0.0: the absence of a sale that day, not missing data.
func FillDaily(series []domain.SeriesPoint) []domain.SeriesPoint {
	if len(series) == 0 {
		return nil
	}

	observed := make(map[time.Time]float64, len(series))
	for _, p := range series {
		observed[p.Date] = p.Value
	}

	start := series[0].Date
	end := series[len(series)-1].Date

	var filled []domain.SeriesPoint
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		filled = append(filled, domain.SeriesPoint{Date: day, Value: observed[day]})
	}
	return filled
}
