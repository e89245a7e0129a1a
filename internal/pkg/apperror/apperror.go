package apperror

import "net/http"

// Stable machine-readable codes. Clients branch on these, never on messages.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL"
)

// AppError is a custom error type that carries the HTTP status code and a stable error code.
type AppError struct {
	Status  int    // HTTP Status Code (e.g., 400, 404)
	Code    string // Stable error code (e.g., SLOT_CONFLICT)
	Message string // User-facing error message
	Details any    // Optional structured payload (e.g., conflicting slots)
	Err     error  // The underlying error, if any (not exposed to user)

	origin *AppError // sentinel this error was derived from
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether e and target derive from the same sentinel. Copies made
// by WithDetails and WithMessage match their sentinel, while distinct
// sentinels sharing a status and code do not match each other.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.root() == t.root()
}

func (e *AppError) root() *AppError {
	if e.origin != nil {
		return e.origin
	}
	return e
}

// New creates a new AppError with a status code, error code and message.
func New(status int, code, message string) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, status int, code, message string) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails returns a copy of e carrying the given details.
func (e *AppError) WithDetails(details any) *AppError {
	cp := *e
	cp.Details = details
	cp.origin = e.root()
	return &cp
}

// WithMessage returns a copy of e with a more specific message, wrapping err.
func (e *AppError) WithMessage(message string, err error) *AppError {
	cp := *e
	cp.Message = message
	cp.Err = err
	cp.origin = e.root()
	return &cp
}

// BadRequest is a shorthand for 400 INVALID_REQUEST errors.
func BadRequest(message string) *AppError {
	return New(http.StatusBadRequest, CodeInvalidRequest, message)
}
