package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable category of a failure returned to callers.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidState      Kind = "invalid_state"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindAlreadyUsed       Kind = "already_used"
	KindAlreadyScanned    Kind = "already_scanned"
	KindExpired           Kind = "expired"
	KindValidation        Kind = "validation_failed"
	KindConflict          Kind = "conflict"
	KindDuplicate         Kind = "duplicate"
	KindInternal          Kind = "internal"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrForbidden indicates that the caller is not the party allowed to perform the action.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidState indicates that the transition is not allowed from the current state.
var ErrInvalidState = errors.New("invalid state")

// ErrInsufficientFunds indicates that an account's available Valor is below the requested amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrAlreadyUsed indicates that a single-use secret has already been consumed.
var ErrAlreadyUsed = errors.New("already used")

// ErrAlreadyScanned indicates that a QR token was already presented.
var ErrAlreadyScanned = errors.New("already scanned")

// ErrExpired indicates that a time-bounded secret or window has elapsed.
var ErrExpired = errors.New("expired")

// ErrConflict indicates that a concurrent or repeated non-idempotent operation lost the race.
var ErrConflict = errors.New("conflict")

// ErrInternal indicates an unexpected infrastructure failure.
var ErrInternal = errors.New("internal error")

var sentinels = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindForbidden:         ErrForbidden,
	KindInvalidState:      ErrInvalidState,
	KindInsufficientFunds: ErrInsufficientFunds,
	KindAlreadyUsed:       ErrAlreadyUsed,
	KindAlreadyScanned:    ErrAlreadyScanned,
	KindExpired:           ErrExpired,
	KindValidation:        ErrValidation,
	KindConflict:          ErrConflict,
	KindDuplicate:         ErrDuplicate,
	KindInternal:          ErrInternal,
}

// AppError carries a kind, a human readable reason and optional details for the caller.
type AppError struct {
	Kind    Kind
	Code    int
	Reason  string
	Details map[string]any
	Err     error
}

// New creates an AppError of the given kind.
func New(kind Kind, reason string) *AppError {
	return &AppError{Kind: kind, Reason: reason}
}

// Newf creates an AppError with a formatted reason.
func Newf(kind Kind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// NewAppError wraps an infrastructure error with an HTTP code and message.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Code: code, Reason: message, Err: err}
}

// WithDetails attaches a details payload and returns the same error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an AppError against the sentinel of its kind.
func (e *AppError) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf reports the kind of err, falling back to sentinel matching and finally KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code returned by the API.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindConflict, KindAlreadyUsed, KindDuplicate:
		return http.StatusConflict
	case KindAlreadyScanned:
		return http.StatusOK
	case KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case KindExpired:
		return http.StatusGone
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
