package user

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	ErrEmailAlreadyUsed   = apperror.New(http.StatusConflict, "EMAIL_TAKEN", "email already used")
	ErrInvalidCredentials = apperror.New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	ErrInactiveUser       = apperror.New(http.StatusForbidden, "USER_INACTIVE", "user is inactive")
	ErrEmailRequired      = apperror.New(http.StatusBadRequest, apperror.CodeInvalidRequest, "email is required")
	ErrPasswordTooShort   = apperror.New(http.StatusBadRequest, apperror.CodeInvalidRequest, "password is too short")
	ErrPasswordTooLong    = apperror.New(http.StatusBadRequest, apperror.CodeInvalidRequest, "password is too long")
)

// User is an account able to sign in. Only administrators sign in; the public
// booking flow is anonymous and identified by contact details.
type User struct {
	ID            string // UUID
	Email         string
	PasswordHash  string
	DisplayName   *string
	CreatedAt     time.Time
	LastLoginAt   *time.Time
	IsActive      bool
	IsSystemAdmin bool
}

// UserFilter defines filter options for listing users.
type UserFilter struct {
	Email    string
	IsActive *bool // Use pointer to distinguish between false and nil (not set)

	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
