package domain

import (
	"time"
)

// RawSaleRecord is the minimal point-of-sale row accepted on ingest.
// Additional CSV columns are ignored by the parser.
type RawSaleRecord struct {
	Date    time.Time `json:"date" db:"date" validate:"required"`
	StoreID int64     `json:"store_id" db:"store_id" validate:"required"`
	Sales   float64   `json:"sales" db:"sales"`
}

// SalesCategory buckets a sale against the batch 25th/75th percentiles.
type SalesCategory string

const (
	CategoryLow    SalesCategory = "Low"
	CategoryMedium SalesCategory = "Medium"
	CategoryHigh   SalesCategory = "High"
)

// AnomalyFlag marks a row whose z-score exceeds the anomaly threshold.
type AnomalyFlag string

const (
	AnomalyNormal  AnomalyFlag = "Normal"
	AnomalyFlagged AnomalyFlag = "Anomaly"
)

// FeatureRecord is a RawSaleRecord extended with the derived analytical
// columns. One FeatureRecord is produced per input row, same order, and
// every record belongs to exactly one dataset once persisted.
type FeatureRecord struct {
	Date            time.Time     `json:"date" db:"date"`
	StoreID         int64         `json:"store_id" db:"store_id"`
	Sales           float64       `json:"sales" db:"sales"`
	Weekday         string        `json:"weekday" db:"weekday"`
	Month           int           `json:"month" db:"month"`
	SalesCategory   SalesCategory `json:"sales_category" db:"sales_category"`
	CumulativeSales float64       `json:"cumulative_sales" db:"cumulative_sales"`
	PromoDay        bool          `json:"promo_day" db:"promo_day"`
	Zscore          float64       `json:"zscore" db:"zscore"`
	Anomaly         AnomalyFlag   `json:"anomaly" db:"anomaly"`
	FootfallEst     int64         `json:"footfall_est" db:"footfall_est"`
	DatasetID       int64         `json:"dataset_id,omitempty" db:"dataset_id"`
}
