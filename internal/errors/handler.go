package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"

	"retailpulse/internal/infrastructure"
)

// ErrorHandler provides centralized error handling for the HTTP layer.
// Pipeline errors stay typed (AppError); the handler owns the mapping
// to problem details so handlers never format user-facing messages.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("stack", string(debug.Stack()))
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	if appErr, ok := AsAppError(err); ok {
		return h.appErrorToProblem(appErr, r)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	)
}

// appErrorToProblem maps typed pipeline errors to HTTP problem details.
func (h *ErrorHandler) appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	var (
		status      int
		problemType string
		title       string
	)

	switch appErr.Type {
	case ErrTypeMissingColumn:
		status, problemType, title = http.StatusBadRequest, TypeBadUpload, "Missing Required Column"
	case ErrTypeDateParse:
		status, problemType, title = http.StatusBadRequest, TypeDateParse, "Unparseable Date"
	case ErrTypeParsing:
		status, problemType, title = http.StatusBadRequest, TypeBadUpload, "Malformed Upload"
	case ErrTypeValidation:
		status, problemType, title = http.StatusBadRequest, TypeValidation, "Validation Failed"
	case ErrTypeInvalidMonth:
		status, problemType, title = http.StatusBadRequest, TypeValidation, "Invalid Month"
	case ErrTypeInsufficientData:
		status, problemType, title = http.StatusUnprocessableEntity, TypeForecast, "Insufficient Data For Forecast"
	case ErrTypeNotFound:
		status, problemType, title = http.StatusNotFound, TypeDataNotFound, "Not Found"
	case ErrTypeIngestTx:
		status, problemType, title = http.StatusInternalServerError, TypeIngestFailed, "Ingest Failed"
	default:
		status, problemType, title = http.StatusInternalServerError, TypeInternal, "Internal Server Error"
	}

	problem := NewProblemDetails(status, problemType, title, appErr.Message, r.URL.Path)
	problem.WithExtension("error_code", string(appErr.Type))
	for k, v := range appErr.Context {
		problem.WithExtension(k, v)
	}
	return problem
}
