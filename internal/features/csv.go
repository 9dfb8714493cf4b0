package features

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	apperrors "retailpulse/internal/errors"
	"retailpulse/pkg/contracts/domain"
)

// Column synonyms accepted on ingest, matched case-insensitively against
// normalized header names. Columns outside this map are ignored.
var columnSynonyms = map[string]string{
	"date":     "date",
	"store":    "store",
	"storeid":  "store",
	"store_id": "store",
	"sales":    "sales",
	"sale":     "sales",
}

// dateLayouts are the date formats accepted for the date column,
// tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02-01-2006",
}

// ParseCSV reads raw sale rows from CSV input. The first record is the
// header; required columns are date, store id and sales amount. Any
// unparseable date rejects the whole batch rather than being coerced.
func ParseCSV(r io.Reader) ([]domain.RawSaleRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.NewParsingError("empty CSV input", nil)
	}
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read CSV header", err)
	}

	columns := mapColumns(header)
	for _, required := range []string{"date", "store", "sales"} {
		if _, ok := columns[required]; !ok {
			return nil, apperrors.NewMissingColumnError(required)
		}
	}

	var rows []domain.RawSaleRecord
	for rowNum := 1; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("malformed CSV row", err).
				WithContext("row", rowNum)
		}

		date, err := parseDate(field(record, columns["date"]))
		if err != nil {
			return nil, apperrors.NewDateParseError(field(record, columns["date"]), rowNum, err)
		}

		storeID, err := strconv.ParseInt(cleanNumber(field(record, columns["store"])), 10, 64)
		if err != nil {
			return nil, apperrors.NewParsingError("invalid store id", err).
				WithContext("row", rowNum).
				WithContext("value", field(record, columns["store"]))
		}

		sales, err := strconv.ParseFloat(cleanNumber(field(record, columns["sales"])), 64)
		if err != nil {
			return nil, apperrors.NewParsingError("invalid sales amount", err).
				WithContext("row", rowNum).
				WithContext("value", field(record, columns["sales"]))
		}

		rows = append(rows, domain.RawSaleRecord{
			Date:    date,
			StoreID: storeID,
			Sales:   sales,
		})
	}

	return rows, nil
}

// ParsePromoDates parses ISO-8601 YYYY-MM-DD promo date strings. Blank
// entries are skipped; anything else unparseable fails the request.
func ParsePromoDates(values []string) ([]time.Time, error) {
	dates := make([]time.Time, 0, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, apperrors.NewDateParseError(v, i, err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// mapColumns resolves header names to column indices using the synonym
// table. The first match wins for duplicated headers.
func mapColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for i, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		canonical, ok := columnSynonyms[normalized]
		if !ok {
			continue
		}
		if _, exists := columns[canonical]; !exists {
			columns[canonical] = i
		}
	}
	return columns
}

func parseDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		d, err := time.Parse(layout, value)
		if err == nil {
			// Normalize to midnight UTC; promo comparison is by calendar date.
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func cleanNumber(value string) string {
	return strings.ReplaceAll(value, ",", "")
}
