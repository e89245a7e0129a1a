package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/ground-booking-backend/internal/auth"
	"github.com/nekogravitycat/ground-booking-backend/internal/metrics"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/ground-booking-backend/internal/user"
)

var (
	errUnauthorized = apperror.New(http.StatusUnauthorized, apperror.CodeUnauthorized, "unauthorized")
	errAdminOnly    = apperror.New(http.StatusForbidden, apperror.CodeForbidden, "administrator access required")
)

// RequireSystemAdmin ensures the authenticated user is an active administrator.
// It MUST be used after auth.AuthRequired middleware.
func RequireSystemAdmin(userService user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.GetUserID(c)
		if userID == "" {
			response.Abort(c, errUnauthorized)
			return
		}

		u, err := userService.GetByID(c.Request.Context(), userID)
		if err != nil {
			response.Abort(c, errUnauthorized)
			return
		}

		if !u.IsActive || !u.IsSystemAdmin {
			response.Abort(c, errAdminOnly)
			return
		}

		c.Next()
	}
}

// RequestLogger writes one structured log line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("http request")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("http request")
		default:
			entry.Info("http request")
		}
	}
}

// Metrics records request counts and latency keyed by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}
