package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "retailpulse/internal/errors"
	"retailpulse/internal/features"
	"retailpulse/internal/forecast"
	"retailpulse/internal/ingest"
	"retailpulse/internal/services"
	"retailpulse/internal/store"
)

const sampleCSV = "Date,Store,Sales\n" +
	"2023-03-01,1,100\n" +
	"2023-03-02,1,200\n" +
	"2023-03-03,2,300\n"

func newTestHandler(t *testing.T) (*DatasetHandler, *store.MemoryStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	memStore := store.NewMemoryStore()
	engine := features.NewEngine(logger, features.Options{})
	coordinator := ingest.NewCoordinator(engine, memStore, logger)
	service := services.NewDatasetService(memStore, forecast.New(logger), logger)
	errorHandler := apperrors.NewErrorHandler(logger, false)

	return NewDatasetHandler(coordinator, service, errorHandler, logger, 1<<20), memStore
}

func multipartUpload(t *testing.T, csvBody, promoDates, name string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvBody))
	require.NoError(t, err)
	if promoDates != "" {
		require.NoError(t, w.WriteField("promo_dates", promoDates))
	}
	if name != "" {
		require.NoError(t, w.WriteField("name", name))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func ingestSample(t *testing.T, h *DatasetHandler) int64 {
	t.Helper()

	body, contentType := multipartUpload(t, sampleCSV, "2023-03-02", "sample")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Positive(t, resp.Data.ID)
	return resp.Data.ID
}

func doGet(h *DatasetHandler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestIngestEndpoint(t *testing.T) {
	h, memStore := newTestHandler(t)

	id := ingestSample(t, h)

	rows, err := memStore.Rows(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[1].PromoDay)
}

func TestIngestEndpoint_MissingFile(t *testing.T) {
	h, _ := newTestHandler(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "nofile"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEndpoint_BadDateRejectsBatch(t *testing.T) {
	h, memStore := newTestHandler(t)

	bad := "Date,Store,Sales\n2023-03-01,1,100\nnot-a-date,1,200\n"
	body, contentType := multipartUpload(t, bad, "", "bad")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	datasets, err := memStore.ListDatasets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestListAndLatestEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	ingestSample(t, h)

	rec := doGet(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rec = doGet(h, "/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sample")
}

func TestLatestEndpoint_Empty(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doGet(h, "/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeaturesEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	id := ingestSample(t, h)

	rec := doGet(h, "/"+itoa(id)+"/features")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
}

func TestFeaturesEndpoint_UnknownDataset(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doGet(h, "/999/features")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDatasetCtx_InvalidID(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, path := range []string{"/abc/features", "/-1/features", "/0/features"} {
		rec := doGet(h, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestSeriesEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	id := ingestSample(t, h)

	rec := doGet(h, "/"+itoa(id)+"/series")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)

	rec = doGet(h, "/"+itoa(id)+"/series?store=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestRollingAverageEndpoint_WindowBounds(t *testing.T) {
	h, _ := newTestHandler(t)
	id := ingestSample(t, h)

	rec := doGet(h, "/"+itoa(id)+"/rolling-average?window=7")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(h, "/"+itoa(id)+"/rolling-average?window=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(h, "/"+itoa(id)+"/rolling-average?window=91")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(h, "/"+itoa(id)+"/rolling-average?window=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecastEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	id := ingestSample(t, h)

	rec := doGet(h, "/"+itoa(id)+"/forecast?periods=7")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Count)
}

func TestForecastEndpoint_Validation(t *testing.T) {
	h, _ := newTestHandler(t)
	id := ingestSample(t, h)

	rec := doGet(h, "/"+itoa(id)+"/forecast?periods=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(h, "/"+itoa(id)+"/forecast?periods=366")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(h, "/"+itoa(id)+"/forecast?store=999&periods=7")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummaryEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	id := ingestSample(t, h)

	paths := []string{
		"/summary/stores",
		"/summary/monthly",
		"/summary/weekdays",
		"/summary/rankings",
		"/summary/promo-impact",
		"/summary/top",
		"/summary/anomalies",
	}
	for _, p := range paths {
		rec := doGet(h, "/"+itoa(id)+p)
		assert.Equal(t, http.StatusOK, rec.Code, p)
		assert.Contains(t, rec.Body.String(), `"status":"success"`, p)
	}
}

func TestTopStoresEndpoint_Bounds(t *testing.T) {
	h, _ := newTestHandler(t)
	id := ingestSample(t, h)

	rec := doGet(h, "/"+itoa(id)+"/summary/top?n=1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(h, "/"+itoa(id)+"/summary/top?n=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(h, "/"+itoa(id)+"/summary/top?n=101")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	id := ingestSample(t, h)

	rec := doGet(h, "/"+itoa(id)+"/export/csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "features.csv")
	assert.True(t, strings.Contains(rec.Body.String(), "CumulativeSales"))

	rec = doGet(h, "/"+itoa(id)+"/export/xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")

	rec = doGet(h, "/"+itoa(id)+"/export/store-totals.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TotalSales")

	rec = doGet(h, "/"+itoa(id)+"/export/weekday-averages.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AverageSales")
}

func TestProblemResponseShape(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doGet(h, "/999/features")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.NotEmpty(t, problem["type"])
	assert.NotEmpty(t, problem["title"])
	assert.EqualValues(t, http.StatusNotFound, problem["status"])
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
