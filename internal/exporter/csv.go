// Package exporter renders feature tables and summary tables as
// downloadable CSV and spreadsheet snapshots for the dashboard.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"retailpulse/internal/analytics"
	apperrors "retailpulse/internal/errors"
	"retailpulse/pkg/contracts/domain"
)

// featureHeaders is the column order of exported feature tables.
var featureHeaders = []string{
	"Date", "StoreID", "Sales", "Weekday", "Month", "SalesCategory",
	"CumulativeSales", "PromoDay", "Zscore", "Anomaly", "FootfallEst",
}

// WriteFeatureCSV writes a dataset's feature table as CSV. A UTF-8 BOM
// is prepended so Excel opens the download correctly.
func WriteFeatureCSV(w io.Writer, records []domain.FeatureRecord) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return apperrors.NewStorageError("failed to write BOM", err)
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(featureHeaders); err != nil {
		return apperrors.NewStorageError("failed to write CSV header", err)
	}

	for _, rec := range records {
		row := []string{
			rec.Date.Format("2006-01-02"),
			formatInt(rec.StoreID),
			formatFloat(rec.Sales),
			rec.Weekday,
			fmt.Sprintf("%d", rec.Month),
			string(rec.SalesCategory),
			formatFloat(rec.CumulativeSales),
			formatBool(rec.PromoDay),
			formatFloat(rec.Zscore),
			string(rec.Anomaly),
			formatInt(rec.FootfallEst),
		}
		if err := writer.Write(row); err != nil {
			return apperrors.NewStorageError("failed to write CSV row", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError("failed to flush CSV output", err)
	}
	return nil
}

// WriteStoreTotalsCSV writes the per-store totals summary as CSV.
func WriteStoreTotalsCSV(w io.Writer, totals []analytics.StoreTotal) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"StoreID", "TotalSales"}); err != nil {
		return apperrors.NewStorageError("failed to write CSV header", err)
	}
	for _, t := range totals {
		if err := writer.Write([]string{formatInt(t.StoreID), formatFloat(t.TotalSales)}); err != nil {
			return apperrors.NewStorageError("failed to write CSV row", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError("failed to flush CSV output", err)
	}
	return nil
}

// WriteWeekdayAveragesCSV writes the weekday averages summary as CSV.
func WriteWeekdayAveragesCSV(w io.Writer, averages []analytics.WeekdayAverage) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Weekday", "AverageSales"}); err != nil {
		return apperrors.NewStorageError("failed to write CSV header", err)
	}
	for _, a := range averages {
		if err := writer.Write([]string{a.Weekday, formatFloat(a.Average)}); err != nil {
			return apperrors.NewStorageError("failed to write CSV row", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError("failed to flush CSV output", err)
	}
	return nil
}
