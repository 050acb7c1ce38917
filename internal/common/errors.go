package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrNoSession    = errors.New("no active session")
	ErrInvalidState = errors.New("operation not allowed in current state")
	ErrSuperseded   = errors.New("superseded by a newer document")
)

// Reconciliation error taxonomy.
var (
	ErrInputRejected          = errors.New("input rejected")
	ErrRecognitionUnavailable = errors.New("recognition unavailable")
	ErrRecognitionFailed      = errors.New("recognition failed")
	ErrValidation             = errors.New("validation failed")
	ErrMatchingAmbiguity      = errors.New("matching ambiguity")
	ErrCommitFailed           = errors.New("commit failed")
)

const (
	CodeInputRejected          = "INPUT_REJECTED"
	CodeRecognitionUnavailable = "RECOGNITION_UNAVAILABLE"
	CodeRecognitionFailed      = "RECOGNITION_FAILED"
	CodeValidation             = "VALIDATION_ERROR"
	CodeMatchingAmbiguity      = "MATCHING_AMBIGUITY"
	CodeCommitFailed           = "COMMIT_FAILED"
	CodeInvalidState           = "INVALID_STATE"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeNoSession              = "NO_SESSION"
	CodeSuperseded             = "SUPERSEDED"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func InputRejected(message string) *AppError {
	return NewAppError(CodeInputRejected, message, ErrInputRejected)
}

// RecognitionUnavailable joins the taxonomy sentinel with the transport error
// so both stay reachable through errors.Is.
func RecognitionUnavailable(err error) *AppError {
	return NewAppError(CodeRecognitionUnavailable, "primary recognition unavailable", errors.Join(ErrRecognitionUnavailable, err))
}

func RecognitionFailed(err error) *AppError {
	return NewAppError(CodeRecognitionFailed, "document text could not be produced", errors.Join(ErrRecognitionFailed, err))
}

func ValidationFailed(message string) *AppError {
	return NewAppError(CodeValidation, message, ErrValidation)
}

// MatchingAmbiguity signals that n items still need a product binding.
func MatchingAmbiguity(n int) *AppError {
	return NewAppError(CodeMatchingAmbiguity, fmt.Sprintf("%d item(s) need a product binding", n), ErrMatchingAmbiguity)
}

func CommitFailed(err error) *AppError {
	return NewAppError(CodeCommitFailed, "invoice could not be saved", errors.Join(ErrCommitFailed, err))
}

func InvalidState(message string) *AppError {
	return NewAppError(CodeInvalidState, message, ErrInvalidState)
}

func InvalidInput(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

func NotFound(message string) *AppError {
	return NewAppError(CodeNotFound, message, ErrNotFound)
}

func NoSession() *AppError {
	return NewAppError(CodeNoSession, "no invoice is being reconciled", ErrNoSession)
}

// Superseded is returned to a recognition whose result was dropped because
// a newer document replaced it.
func Superseded() *AppError {
	return NewAppError(CodeSuperseded, "a newer document replaced this one", ErrSuperseded)
}

// ErrorCode returns the AppError code in the chain, or "" when there is none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// StatusFromError maps the taxonomy onto gRPC status codes.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(grpcCode(err), err.Error())
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrInputRejected), errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrMatchingAmbiguity):
		return codes.FailedPrecondition
	case errors.Is(err, ErrSuperseded):
		return codes.Aborted
	case errors.Is(err, ErrRecognitionFailed), errors.Is(err, ErrRecognitionUnavailable), errors.Is(err, ErrCommitFailed):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// HTTPStatus maps the taxonomy onto HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInputRejected):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrMatchingAmbiguity), errors.Is(err, ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, ErrRecognitionFailed), errors.Is(err, ErrCommitFailed), errors.Is(err, ErrRecognitionUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
