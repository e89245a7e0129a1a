package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers authentication and administrator account routes.
func RegisterRoutes(g *gin.RouterGroup, h *UserHandler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	authGroup := g.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.GET("/me", authMiddleware, h.Me)
	}

	admins := g.Group("/admins")
	admins.Use(authMiddleware, adminMiddleware)
	{
		admins.GET("", h.List)
		admins.POST("", h.CreateAdmin)
	}
}
