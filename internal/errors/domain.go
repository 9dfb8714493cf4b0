package errors

import (
	"fmt"
)

// ErrorType classifies pipeline errors so callers can map them to a
// policy (HTTP status, retry, user message) without string matching.
type ErrorType string

const (
	ErrTypeMissingColumn    ErrorType = "MISSING_COLUMN"
	ErrTypeDateParse        ErrorType = "DATE_PARSE"
	ErrTypeInsufficientData ErrorType = "INSUFFICIENT_DATA"
	ErrTypeInvalidMonth     ErrorType = "INVALID_MONTH"
	ErrTypeIngestTx         ErrorType = "INGEST_TRANSACTION"
	ErrTypeParsing          ErrorType = "PARSING"
	ErrTypeStorage          ErrorType = "STORAGE"
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeNotFound         ErrorType = "NOT_FOUND"
	ErrTypeConfig           ErrorType = "CONFIG"
)

// AppError is the application-specific error carried between the
// pipeline core and its callers.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err is (or wraps) an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == errType
}

// AsAppError unwraps err to an *AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			return appErr, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// NewMissingColumnError reports a required input column that could not
// be located in the uploaded file.
func NewMissingColumnError(column string) *AppError {
	return NewAppError(ErrTypeMissingColumn,
		fmt.Sprintf("required column %q not found in input", column), nil).
		WithContext("column", column)
}

// NewDateParseError reports an unparseable date value. The whole batch
// is rejected; rows are never silently coerced.
func NewDateParseError(value string, row int, cause error) *AppError {
	return NewAppError(ErrTypeDateParse,
		fmt.Sprintf("unparseable date %q at row %d", value, row), cause).
		WithContext("value", value).
		WithContext("row", row)
}

// NewInsufficientDataError reports a forecast request on a series with
// too few observed points.
func NewInsufficientDataError(observed int) *AppError {
	return NewAppError(ErrTypeInsufficientData,
		fmt.Sprintf("forecast requires at least 2 observed points, got %d", observed), nil).
		WithContext("observed", observed)
}

// NewInvalidMonthError reports a month outside 1-12 during name formatting.
func NewInvalidMonthError(month int) *AppError {
	return NewAppError(ErrTypeInvalidMonth,
		fmt.Sprintf("month %d outside 1-12", month), nil).
		WithContext("month", month)
}

// NewIngestTransactionError reports a persistence failure during ingest.
// The coordinator rolls the whole dataset back before returning it.
func NewIngestTransactionError(message string, cause error) *AppError {
	return NewAppError(ErrTypeIngestTx, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewValidationError creates a validation-related error
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil).
		WithContext("resource", resource)
}
