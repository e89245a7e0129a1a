package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nekogravitycat/ground-booking-backend/internal/auth"
	"github.com/nekogravitycat/ground-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/ground-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/ground-booking-backend/internal/ground"
	groundHttp "github.com/nekogravitycat/ground-booking-backend/internal/ground/http"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/validation"
	"github.com/nekogravitycat/ground-booking-backend/internal/user"
	userHttp "github.com/nekogravitycat/ground-booking-backend/internal/user/http"
)

// Config carries the services and settings the router is assembled from.
type Config struct {
	IsProduction bool
	ProdOrigins  string

	UserService    user.Service
	GroundService  ground.Service
	BookingService booking.Service
	JWTManager     *auth.JWTManager

	OTPRateLimitRPS   float64
	OTPRateLimitBurst int
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, logging, metrics, auth) and registering routes for each module.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	// - RequestLogger: Structured access log through logrus.
	// - Metrics: Request counters and latency histograms.
	r.Use(gin.Recovery(), RequestLogger(), Metrics())

	// Configure CORS (Cross-Origin Resource Sharing).
	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins(cfg)
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	validation.RegisterGinRules()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// sysAdminMiddleware: Further checks if the authenticated user is an administrator.
	sysAdminMiddleware := RequireSystemAdmin(cfg.UserService)
	// otpLimiter: Per-client throttle on the endpoints that issue or check codes.
	otpLimiter := NewRateLimiter(cfg.OTPRateLimitRPS, cfg.OTPRateLimitBurst, defaultVisitorTTL).Middleware()

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	userHandler := userHttp.NewHandler(cfg.UserService, cfg.JWTManager)
	groundHandler := groundHttp.NewHandler(cfg.GroundService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		userHttp.RegisterRoutes(v1, userHandler, authMiddleware, sysAdminMiddleware)
		groundHttp.RegisterRoutes(v1, groundHandler, authMiddleware, sysAdminMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware, sysAdminMiddleware, otpLimiter)
	}

	return r
}

func allowedOrigins(cfg Config) []string {
	if !cfg.IsProduction {
		return []string{"http://localhost:3000", "http://localhost:8081"}
	}
	var origins []string
	for _, o := range strings.Split(cfg.ProdOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
