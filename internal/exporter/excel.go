package exporter

import (
	"io"

	"github.com/xuri/excelize/v2"

	"retailpulse/internal/analytics"
	apperrors "retailpulse/internal/errors"
	"retailpulse/pkg/contracts/domain"
)

// WriteInsightsWorkbook writes the full analytical snapshot of a
// dataset as an xlsx workbook: the feature table plus the summary
// tables the dashboard shows.
func WriteInsightsWorkbook(w io.Writer, records []domain.FeatureRecord,
	totals []analytics.StoreTotal, months []analytics.MonthAverage,
	weekdays []analytics.WeekdayAverage, rankings []analytics.StoreRank) error {

	f := excelize.NewFile()
	defer f.Close()

	const insights = "Insights"
	f.SetSheetName("Sheet1", insights)

	if err := writeSheet(f, insights, featureHeaders, len(records), func(i int) []interface{} {
		rec := records[i]
		return []interface{}{
			rec.Date.Format("2006-01-02"), rec.StoreID, rec.Sales, rec.Weekday,
			rec.Month, string(rec.SalesCategory), rec.CumulativeSales,
			rec.PromoDay, rec.Zscore, string(rec.Anomaly), rec.FootfallEst,
		}
	}); err != nil {
		return err
	}

	if err := writeSheet(f, "Store Totals", []string{"StoreID", "TotalSales"}, len(totals), func(i int) []interface{} {
		return []interface{}{totals[i].StoreID, totals[i].TotalSales}
	}); err != nil {
		return err
	}

	if err := writeSheet(f, "Monthly Averages", []string{"Month", "MonthName", "AverageSales"}, len(months), func(i int) []interface{} {
		return []interface{}{months[i].Month, months[i].MonthName, months[i].Average}
	}); err != nil {
		return err
	}

	if err := writeSheet(f, "Weekday Averages", []string{"Weekday", "AverageSales"}, len(weekdays), func(i int) []interface{} {
		return []interface{}{weekdays[i].Weekday, weekdays[i].Average}
	}); err != nil {
		return err
	}

	if err := writeSheet(f, "Rankings", []string{"Month", "MonthName", "StoreID", "TotalSales", "Rank"}, len(rankings), func(i int) []interface{} {
		r := rankings[i]
		return []interface{}{r.Month, r.MonthName, r.StoreID, r.TotalSales, r.Rank}
	}); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return apperrors.NewStorageError("failed to write workbook", err)
	}
	return nil
}

// writeSheet fills one sheet with a header row and rows yielded by rowAt.
func writeSheet(f *excelize.File, sheet string, headers []string, rows int, rowAt func(i int) []interface{}) error {
	if sheet != "Insights" {
		if _, err := f.NewSheet(sheet); err != nil {
			return apperrors.NewStorageError("failed to create sheet", err)
		}
	}

	for col, name := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return apperrors.NewStorageError("failed to resolve cell", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return apperrors.NewStorageError("failed to write header cell", err)
		}
	}

	for i := 0; i < rows; i++ {
		for col, value := range rowAt(i) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return apperrors.NewStorageError("failed to resolve cell", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return apperrors.NewStorageError("failed to write cell", err)
			}
		}
	}
	return nil
}
