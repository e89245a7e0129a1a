package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the calendar, submission and administration routes.
// otpLimiter guards the endpoints that issue or check codes.
func RegisterRoutes(g *gin.RouterGroup, h *BookingHandler, authMiddleware, adminMiddleware, otpLimiter gin.HandlerFunc) {
	// === Public Routes ===
	g.GET("/grounds/:id/slots", h.Availability)
	g.GET("/held-slots", h.HeldSlots)

	group := g.Group("/bookings")
	group.POST("", otpLimiter, h.Submit)
	group.POST("/verify-otp", otpLimiter, h.VerifyOTP)
	group.POST("/resend-otp", otpLimiter, h.ResendOTP)

	// === Administrator Routes ===
	admin := group.Group("")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.GET("", h.List)
		admin.GET("/stats", h.Stats)
		admin.GET("/:id", h.Get)
		admin.POST("/:id/decision", h.Decide)
		admin.DELETE("/:id", h.Remove)
	}
}
