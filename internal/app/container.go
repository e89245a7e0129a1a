package app

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/ground-booking-backend/internal/api"
	"github.com/nekogravitycat/ground-booking-backend/internal/auth"
	"github.com/nekogravitycat/ground-booking-backend/internal/booking"
	"github.com/nekogravitycat/ground-booking-backend/internal/ground"
	"github.com/nekogravitycat/ground-booking-backend/internal/otp"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/mq"
	"github.com/nekogravitycat/ground-booking-backend/internal/user"
)

// otpRetention keeps spent challenges around briefly so late verifies report
// OTP_EXPIRED instead of racing key eviction.
const otpRetention = time.Hour

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	DBPool       *pgxpool.Pool
	Redis        redis.Cmdable // nil selects the in-process OTP store
	Publisher    mq.Publisher
	Clock        clock.Clock
	Location     *time.Location

	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int

	HoldPolicy        booking.HoldPolicy
	OTPTTL            time.Duration
	OTPMaxHold        time.Duration
	OTPMaxAttempts    int
	OTPRateLimitRPS   float64
	OTPRateLimitBurst int
	ReclaimInterval   time.Duration
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	JWTManager     *auth.JWTManager
	UserService    user.Service
	GroundService  ground.Service
	BookingService booking.Service
	Reclaimer      *booking.Reclaimer
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) (*Container, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = mq.NopPublisher{}
	}

	// Init Components
	passwordHasher := auth.NewBcryptPasswordHasherWithCost(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// User Module
	userRepo := user.NewPgxRepository(cfg.DBPool)
	userService := user.NewService(userRepo, passwordHasher)

	// Ground Module
	bookingRepo := booking.NewPgxRepository(cfg.DBPool)
	groundRepo := ground.NewPgxRepository(cfg.DBPool)
	groundService := ground.NewService(groundRepo, booking.NewLiveCounter(bookingRepo, cfg.Clock, cfg.Location))

	// OTP Gate
	var store otp.Store
	if cfg.Redis != nil {
		store = otp.NewRedisStore(cfg.Redis, cfg.OTPMaxAttempts, otpRetention)
	} else {
		store = otp.NewMemoryStore(cfg.OTPMaxAttempts, otpRetention, cfg.Clock)
	}
	gate := otp.NewGate(store)

	// Booking Module
	bookingService := booking.NewService(bookingRepo, groundService, gate, cfg.Publisher, booking.Options{
		Clock:    cfg.Clock,
		Location: cfg.Location,
		Policy:   cfg.HoldPolicy,
		OTPTTL:   cfg.OTPTTL,
		MaxHold:  cfg.OTPMaxHold,
	})
	reclaimer, err := booking.NewReclaimer(bookingService, cfg.ReclaimInterval)
	if err != nil {
		return nil, fmt.Errorf("reclaimer: %w", err)
	}

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:      cfg.IsProduction,
		ProdOrigins:       cfg.ProdOrigins,
		UserService:       userService,
		GroundService:     groundService,
		BookingService:    bookingService,
		JWTManager:        jwtManager,
		OTPRateLimitRPS:   cfg.OTPRateLimitRPS,
		OTPRateLimitBurst: cfg.OTPRateLimitBurst,
	})

	return &Container{
		Router:         router,
		JWTManager:     jwtManager,
		UserService:    userService,
		GroundService:  groundService,
		BookingService: bookingService,
		Reclaimer:      reclaimer,
	}, nil
}
