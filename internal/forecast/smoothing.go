// Package forecast produces short-horizon daily sales forecasts using
// additive-trend exponential smoothing with a damped trend. Smoothing
// parameters are optimized per call by minimizing one-step-ahead
// squared error over the observed series, so the model carries no
// state between requests.
package forecast

import (
	"context"
	"log/slog"
	"math"

	"retailpulse/internal/analytics"
	apperrors "retailpulse/internal/errors"
	"retailpulse/pkg/contracts/domain"
)

// parameter grids searched during fitting.
var (
	alphaGrid = grid(0.05, 0.95, 0.05)
	betaGrid  = grid(0.05, 0.95, 0.05)
	phiGrid   = []float64{0.80, 0.85, 0.90, 0.95, 0.98}
)

// Params are the smoothing parameters of a fitted model.
type Params struct {
	Alpha float64 `json:"alpha"` // level smoothing
	Beta  float64 `json:"beta"`  // trend smoothing
	Phi   float64 `json:"phi"`   // trend damping
}

// Forecaster fits a damped additive-trend exponential smoothing model
// to a daily sales series and projects it forward.
type Forecaster struct {
	logger *slog.Logger
}

// New creates a forecaster. A nil logger falls back to the default.
func New(logger *slog.Logger) *Forecaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forecaster{logger: logger.With(slog.String("component", "forecaster"))}
}

// Forecast reindexes the series to continuous daily frequency (missing
// calendar days count as 0.0 sales), fits the model with optimized
// parameters and returns point forecasts for the periods calendar days
// after the last observation. Values are not clamped to non-negative.
//
// A series with fewer than 2 distinct observed days cannot support a
// trend model and fails with an insufficient-data error.
func (f *Forecaster) Forecast(ctx context.Context, series []domain.SeriesPoint, periods int) ([]domain.ForecastPoint, error) {
	if periods < 1 {
		return nil, apperrors.NewValidationError("forecast horizon must be at least 1 day", nil).
			WithContext("periods", periods)
	}
	// Count observations after the daily reindex: duplicate dates
	// collapse to one point and cannot support a trend model.
	filled := analytics.FillDaily(series)
	if len(filled) < 2 {
		return nil, apperrors.NewInsufficientDataError(len(filled))
	}
	values := make([]float64, len(filled))
	for i, p := range filled {
		values[i] = p.Value
	}

	params, sse := fit(values)

	f.logger.InfoContext(ctx, "forecast model fitted",
		slog.Int("observations", len(values)),
		slog.Int("periods", periods),
		slog.Float64("alpha", params.Alpha),
		slog.Float64("beta", params.Beta),
		slog.Float64("phi", params.Phi),
		slog.Float64("sse", sse))

	level, trend := smooth(values, params)

	lastDate := filled[len(filled)-1].Date
	points := make([]domain.ForecastPoint, periods)
	dampSum := 0.0
	for h := 1; h <= periods; h++ {
		dampSum += math.Pow(params.Phi, float64(h))
		points[h-1] = domain.ForecastPoint{
			Date:     lastDate.AddDate(0, 0, h),
			Forecast: level + dampSum*trend,
		}
	}
	return points, nil
}

// fit searches the parameter grids for the combination minimizing the
// one-step-ahead sum of squared errors over the observed series.
func fit(values []float64) (Params, float64) {
	best := Params{Alpha: alphaGrid[0], Beta: betaGrid[0], Phi: phiGrid[0]}
	bestSSE := math.Inf(1)

	for _, alpha := range alphaGrid {
		for _, beta := range betaGrid {
			for _, phi := range phiGrid {
				p := Params{Alpha: alpha, Beta: beta, Phi: phi}
				sse := sumSquaredErrors(values, p)
				if sse < bestSSE {
					bestSSE = sse
					best = p
				}
			}
		}
	}
	return best, bestSSE
}

// sumSquaredErrors runs the smoothing recursion and accumulates the
// squared one-step-ahead forecast errors.
func sumSquaredErrors(values []float64, p Params) float64 {
	level := values[0]
	trend := values[1] - values[0]

	var sse float64
	for t := 1; t < len(values); t++ {
		predicted := level + p.Phi*trend
		err := values[t] - predicted
		sse += err * err

		prevLevel := level
		level = p.Alpha*values[t] + (1-p.Alpha)*(level+p.Phi*trend)
		trend = p.Beta*(level-prevLevel) + (1-p.Beta)*p.Phi*trend
	}
	return sse
}

// smooth runs the recursion over the full series and returns the final
// level and trend components.
func smooth(values []float64, p Params) (level, trend float64) {
	level = values[0]
	trend = values[1] - values[0]

	for t := 1; t < len(values); t++ {
		prevLevel := level
		level = p.Alpha*values[t] + (1-p.Alpha)*(level+p.Phi*trend)
		trend = p.Beta*(level-prevLevel) + (1-p.Beta)*p.Phi*trend
	}
	return level, trend
}

func grid(from, to, step float64) []float64 {
	var out []float64
	for v := from; v <= to+1e-9; v += step {
		out = append(out, math.Round(v*100)/100)
	}
	return out
}
