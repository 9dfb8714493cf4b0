// Package http contains the chi HTTP handlers consumed by the
// dashboard frontend. Handlers validate and decode requests, delegate
// to the ingest coordinator and dataset service, and render JSON; all
// error formatting goes through the central error handler.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "retailpulse/internal/errors"
	"retailpulse/internal/exporter"
	"retailpulse/internal/features"
	"retailpulse/internal/ingest"
	"retailpulse/internal/services"
)

// datasetIDKey is the context key for the dataset id URL parameter.
type datasetIDKey struct{}

// DefaultTopStores is the ranking size when ?n= is not supplied.
const DefaultTopStores = 5

// forecastQuery holds the validated forecast query parameters.
type forecastQuery struct {
	Periods int   `validate:"required,min=1,max=365"`
	StoreID int64 `validate:"min=0"`
}

// DatasetHandler handles dataset ingest and read requests.
type DatasetHandler struct {
	coordinator    *ingest.Coordinator
	service        *services.DatasetService
	errorHandler   *apperrors.ErrorHandler
	validate       *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewDatasetHandler creates a dataset handler.
func NewDatasetHandler(coordinator *ingest.Coordinator, service *services.DatasetService,
	errorHandler *apperrors.ErrorHandler, logger *slog.Logger, maxUploadBytes int64) *DatasetHandler {
	return &DatasetHandler{
		coordinator:    coordinator,
		service:        service,
		errorHandler:   errorHandler,
		validate:       validator.New(),
		logger:         logger.With(slog.String("component", "dataset_handler")),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the dataset routes.
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.Ingest)
	r.Get("/", h.List)
	r.Get("/latest", h.Latest)

	r.Route("/{datasetID}", func(r chi.Router) {
		r.Use(h.DatasetCtx)
		r.Get("/features", h.Features)
		r.Get("/series", h.Series)
		r.Get("/rolling-average", h.RollingAverage)
		r.Get("/forecast", h.Forecast)

		r.Route("/summary", func(r chi.Router) {
			r.Get("/stores", h.StoreTotals)
			r.Get("/monthly", h.MonthAverages)
			r.Get("/weekdays", h.WeekdayAverages)
			r.Get("/rankings", h.Rankings)
			r.Get("/promo-impact", h.PromoImpact)
			r.Get("/top", h.TopStores)
			r.Get("/anomalies", h.Anomalies)
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/csv", h.ExportCSV)
			r.Get("/xlsx", h.ExportExcel)
			r.Get("/store-totals.csv", h.ExportStoreTotalsCSV)
			r.Get("/weekday-averages.csv", h.ExportWeekdayAveragesCSV)
		})
	})

	return r
}

// DatasetCtx middleware parses and validates the dataset id parameter.
func (h *DatasetHandler) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "datasetID")
		datasetID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || datasetID < 1 {
			h.errorHandler.HandleError(w, r,
				apperrors.NewValidationError("dataset id must be a positive integer", err).
					WithContext("dataset_id", raw))
			return
		}

		ctx := context.WithValue(r.Context(), datasetIDKey{}, datasetID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Ingest handles POST /api/datasets: multipart CSV upload plus optional
// promo dates and dataset name. Returns the created dataset.
func (h *DatasetHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.errorHandler.HandleError(w, r,
			apperrors.NewParsingError("failed to parse multipart upload", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r,
			apperrors.NewValidationError("multipart field \"file\" is required", err))
		return
	}
	defer file.Close()

	promoDates, err := features.ParsePromoDates(splitPromoDates(r.FormValue("promo_dates")))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}

	dataset, err := h.coordinator.Ingest(r.Context(), file, promoDates, name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   dataset,
	})
}

// List handles GET /api/datasets.
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.service.ListDatasets(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   datasets,
		"count":  len(datasets),
	})
}

// Latest handles GET /api/datasets/latest.
func (h *DatasetHandler) Latest(w http.ResponseWriter, r *http.Request) {
	dataset, err := h.service.LatestDataset(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   dataset,
	})
}

// Features handles GET /api/datasets/{id}/features.
func (h *DatasetHandler) Features(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.FeatureTable(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   records,
		"count":  len(records),
	})
}

// Series handles GET /api/datasets/{id}/series?store=.
func (h *DatasetHandler) Series(w http.ResponseWriter, r *http.Request) {
	storeID, err := queryInt64(r, "store", 0)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	series, err := h.service.DailySeries(r.Context(), datasetID(r), storeID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   series,
		"count":  len(series),
	})
}

// RollingAverage handles GET /api/datasets/{id}/rolling-average?store=&window=.
func (h *DatasetHandler) RollingAverage(w http.ResponseWriter, r *http.Request) {
	storeID, err := queryInt64(r, "store", 0)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	window, err := queryInt(r, "window", 7)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if window < 1 || window > 90 {
		h.errorHandler.HandleError(w, r,
			apperrors.NewValidationError("window must be between 1 and 90 days", nil).
				WithContext("window", window))
		return
	}

	series, err := h.service.RollingAverage(r.Context(), datasetID(r), storeID, window)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   series,
		"window": window,
	})
}

// Forecast handles GET /api/datasets/{id}/forecast?store=&periods=.
func (h *DatasetHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	storeID, err := queryInt64(r, "store", 0)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	periods, err := queryInt(r, "periods", 14)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	query := forecastQuery{Periods: periods, StoreID: storeID}
	if err := h.validate.Struct(query); err != nil {
		h.errorHandler.HandleError(w, r,
			apperrors.NewValidationError("invalid forecast parameters", err).
				WithContext("periods", periods).
				WithContext("store", storeID))
		return
	}

	points, err := h.service.Forecast(r.Context(), datasetID(r), storeID, periods)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   points,
		"count":  len(points),
	})
}

// StoreTotals handles GET /api/datasets/{id}/summary/stores.
func (h *DatasetHandler) StoreTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.StoreTotals(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": totals})
}

// MonthAverages handles GET /api/datasets/{id}/summary/monthly.
func (h *DatasetHandler) MonthAverages(w http.ResponseWriter, r *http.Request) {
	averages, err := h.service.MonthAverages(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": averages})
}

// WeekdayAverages handles GET /api/datasets/{id}/summary/weekdays.
func (h *DatasetHandler) WeekdayAverages(w http.ResponseWriter, r *http.Request) {
	averages, err := h.service.WeekdayAverages(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": averages})
}

// Rankings handles GET /api/datasets/{id}/summary/rankings.
func (h *DatasetHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	rankings, err := h.service.Rankings(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": rankings})
}

// PromoImpact handles GET /api/datasets/{id}/summary/promo-impact.
func (h *DatasetHandler) PromoImpact(w http.ResponseWriter, r *http.Request) {
	impact, err := h.service.PromoImpact(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": impact})
}

// TopStores handles GET /api/datasets/{id}/summary/top?n=.
func (h *DatasetHandler) TopStores(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", DefaultTopStores)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if n < 1 || n > 100 {
		h.errorHandler.HandleError(w, r,
			apperrors.NewValidationError("n must be between 1 and 100", nil).
				WithContext("n", n))
		return
	}

	totals, err := h.service.TopStores(r.Context(), datasetID(r), n)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": totals})
}

// Anomalies handles GET /api/datasets/{id}/summary/anomalies.
func (h *DatasetHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	anomalies, err := h.service.Anomalies(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   anomalies,
		"count":  len(anomalies),
	})
}

// ExportCSV handles GET /api/datasets/{id}/export/csv.
func (h *DatasetHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	id := datasetID(r)
	records, err := h.service.FeatureTable(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="dataset_%d_features.csv"`, id))
	if err := exporter.WriteFeatureCSV(w, records); err != nil {
		h.logger.ErrorContext(r.Context(), "feature CSV export failed",
			slog.Int64("dataset_id", id),
			slog.String("error", err.Error()))
	}
}

// ExportExcel handles GET /api/datasets/{id}/export/xlsx.
func (h *DatasetHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	id := datasetID(r)
	records, err := h.service.FeatureTable(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	totals, err := h.service.StoreTotals(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	months, err := h.service.MonthAverages(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	weekdays, err := h.service.WeekdayAverages(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	rankings, err := h.service.Rankings(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="dataset_%d_insights.xlsx"`, id))
	if err := exporter.WriteInsightsWorkbook(w, records, totals, months, weekdays, rankings); err != nil {
		h.logger.ErrorContext(r.Context(), "workbook export failed",
			slog.Int64("dataset_id", id),
			slog.String("error", err.Error()))
	}
}

// ExportStoreTotalsCSV handles GET /api/datasets/{id}/export/store-totals.csv.
func (h *DatasetHandler) ExportStoreTotalsCSV(w http.ResponseWriter, r *http.Request) {
	id := datasetID(r)
	totals, err := h.service.StoreTotals(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="dataset_%d_store_totals.csv"`, id))
	if err := exporter.WriteStoreTotalsCSV(w, totals); err != nil {
		h.logger.ErrorContext(r.Context(), "store totals export failed",
			slog.Int64("dataset_id", id),
			slog.String("error", err.Error()))
	}
}

// ExportWeekdayAveragesCSV handles GET /api/datasets/{id}/export/weekday-averages.csv.
func (h *DatasetHandler) ExportWeekdayAveragesCSV(w http.ResponseWriter, r *http.Request) {
	id := datasetID(r)
	averages, err := h.service.WeekdayAverages(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="dataset_%d_weekday_averages.csv"`, id))
	if err := exporter.WriteWeekdayAveragesCSV(w, averages); err != nil {
		h.logger.ErrorContext(r.Context(), "weekday averages export failed",
			slog.Int64("dataset_id", id),
			slog.String("error", err.Error()))
	}
}

// datasetID returns the dataset id placed in context by DatasetCtx.
func datasetID(r *http.Request) int64 {
	id, _ := r.Context().Value(datasetIDKey{}).(int64)
	return id
}

// splitPromoDates splits the comma-separated promo_dates form value.
func splitPromoDates(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return strings.Split(value, ",")
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(
			fmt.Sprintf("query parameter %q must be an integer", name), err).
			WithContext(name, raw)
	}
	return v, nil
}

// queryInt64 reads an optional int64 query parameter.
func queryInt64(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError(
			fmt.Sprintf("query parameter %q must be an integer", name), err).
			WithContext(name, raw)
	}
	return v, nil
}
