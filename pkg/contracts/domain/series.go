package domain

import (
	"time"
)

// SeriesPoint is one day of an observed daily sales series.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ForecastPoint is one forecast day produced by the smoothing model.
// Values are not clamped; a declining trend may forecast below zero.
type ForecastPoint struct {
	Date     time.Time `json:"date"`
	Forecast float64   `json:"forecast"`
}
