package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/ground-booking-backend/internal/app"
	"github.com/nekogravitycat/ground-booking-backend/internal/booking"
	"github.com/nekogravitycat/ground-booking-backend/internal/config"
	"github.com/nekogravitycat/ground-booking-backend/internal/db"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/logger"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/mq"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/obs"
)

const serviceName = "ground-booking-backend"

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger.Init(cfg.IsProduction, cfg.LogLevel)

	// Tracing
	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, cfg.AppEnv)
	if err != nil {
		logrus.WithError(err).Fatal("failed to init tracer")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logrus.WithError(err).Warn("tracer shutdown")
		}
	}()

	// Schema
	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DBDSN); err != nil {
			logrus.WithError(err).Fatal("failed to run migrations")
		}
	}

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to db")
	}
	defer pool.Close()

	// OTP storage
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Fatal("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logrus.WithError(err).Fatal("failed to connect to redis")
		}
		defer rdb.Close()
	} else {
		logrus.Warn("REDIS_URL not set, verification codes are kept in memory")
	}

	// Event publisher
	var publisher mq.Publisher = mq.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		rp, err := mq.NewRabbitPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		publisher = rp
	} else {
		logrus.Warn("RABBITMQ_URL not set, booking events are dropped")
	}
	defer publisher.Close()

	appCfg := app.Config{
		IsProduction:      cfg.IsProduction,
		ProdOrigins:       cfg.ProdOrigins,
		DBPool:            pool,
		Publisher:         publisher,
		Location:          cfg.Location,
		JWTSecret:         cfg.JWTSecret,
		JWTTTL:            cfg.JWTAccessTokenTTL,
		BcryptCost:        cfg.BcryptCost,
		HoldPolicy:        booking.HoldPolicy(cfg.HoldPolicy),
		OTPTTL:            cfg.OTPTTL,
		OTPMaxHold:        cfg.OTPMaxHold,
		OTPMaxAttempts:    cfg.OTPMaxAttempts,
		OTPRateLimitRPS:   cfg.OTPRateLimitRPS,
		OTPRateLimitBurst: cfg.OTPRateLimitBurst,
		ReclaimInterval:   cfg.ReclaimInterval,
	}
	if rdb != nil {
		appCfg.Redis = rdb
	}

	container, err := app.NewContainer(appCfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build application")
	}

	if cfg.BootstrapAdminEmail != "" {
		if err := container.UserService.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
			logrus.WithError(err).Fatal("failed to bootstrap administrator")
		}
	}

	container.Reclaimer.Start()

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("server running")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	logrus.Info("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("server forced to shutdown")
	}
	if err := container.Reclaimer.Stop(); err != nil {
		logrus.WithError(err).Warn("reclaimer shutdown")
	}

	logrus.Info("server exited gracefully")
}
