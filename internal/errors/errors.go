package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError carries a machine-readable code through the service layers. The
// HTTP surface turns the code into a status; per-cell data problems never
// become AppErrors.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeBusy            = "BUSY"           // workspace has an operation in flight
	CodePartialDelete   = "PARTIAL_DELETE" // deep delete stopped between steps
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap adds context to err, keeping the code of any AppError in its chain
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	code := CodeInternalError
	if appErr, ok := as(err); ok {
		code = appErr.Code
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WithCode sets the code of err. An AppError keeps its message and cause.
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError reports whether err has an AppError anywhere in its chain
func IsAppError(err error) bool {
	_, ok := as(err)
	return ok
}

// GetCode returns the code of the first AppError in err's chain, or "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := as(err); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func as(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// ExternalServiceError reports a failing upstream such as the sheet source
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeExternalService,
		Message: fmt.Sprintf("%s service error", service),
		Cause:   cause,
	}
}

// Busy reports an operation rejected because another one is in flight
func Busy(message string) *AppError {
	return New(CodeBusy, message)
}

// PartialDelete reports a multi-step delete that stopped at step. Steps
// before it have already been applied.
func PartialDelete(step string, cause error) *AppError {
	return &AppError{
		Code:    CodePartialDelete,
		Message: fmt.Sprintf("delete aborted at %s", step),
		Cause:   cause,
	}
}
