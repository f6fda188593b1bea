package errors

import "fmt"

// ErrorCode represents a chord error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrNoExportCallback  ErrorCode = "NO_EXPORT_CALLBACK"  // 422
	ErrNoRestoreProvider ErrorCode = "NO_RESTORE_PROVIDER" // 422
	ErrInternal          ErrorCode = "INTERNAL"            // 500
)

// ChordError represents a structured error with code, status, and details.
type ChordError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ChordError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ChordError {
	return &ChordError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a context that does not exist.
func NewNotFound(contextID string) *ChordError {
	return &ChordError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("context not found: %s", contextID),
		Details: map[string]any{"context_id": contextID},
	}
}

// NewNoExportCallback creates a 422 error for export without a configured callback.
func NewNoExportCallback() *ChordError {
	return &ChordError{
		Code:    ErrNoExportCallback,
		Status:  422,
		Message: "no export callback configured",
	}
}

// NewNoRestoreProvider creates a 422 error for restore without a configured provider.
func NewNoRestoreProvider() *ChordError {
	return &ChordError{
		Code:    ErrNoRestoreProvider,
		Status:  422,
		Message: "no restore provider configured",
	}
}

// NewInternal creates a 500 error wrapping an unexpected backend or I/O failure.
func NewInternal(err error) *ChordError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ChordError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a ChordError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*ChordError); ok {
		return cErr.Code == code
	}
	return false
}
