package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/response"
)

var (
	ErrMissingToken = apperror.New(http.StatusUnauthorized, apperror.CodeUnauthorized, "missing Authorization header")
	ErrBadHeader    = apperror.New(http.StatusUnauthorized, apperror.CodeUnauthorized, "invalid Authorization header format")
	ErrInvalidToken = apperror.New(http.StatusUnauthorized, apperror.CodeUnauthorized, "invalid or expired token")
)

// AuthRequired is a Gin middleware that validates JWT from Authorization: Bearer <token>
func AuthRequired(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, ErrMissingToken)
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Abort(c, ErrBadHeader)
			return
		}

		claims, err := jwtManager.ParseAndValidate(parts[1])
		if err != nil {
			response.Abort(c, ErrInvalidToken)
			return
		}

		// Store user info into Gin context for later handlers.
		c.Set(userIDKey, claims.UserID)
		c.Set(userEmailKey, claims.Email)

		c.Next()
	}
}
