package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paisape/internal/config"
	"paisape/internal/db"
	"paisape/internal/email"
	apihttp "paisape/internal/http"
	"paisape/internal/jobs"
	"paisape/internal/repository"
	"paisape/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	referralRepo := repository.NewPgReferralRepository(pool)

	var emailSender email.Sender = email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}
	dispatcher := email.NewDispatcher(logger, emailSender, 30*time.Second)
	templates := email.NewTemplates(cfg.AppName)

	otpLimiter := service.NewMemoryRateLimiter(cfg.OTPRequestWindow(), cfg.OTPRequestLimit)
	tokenStore := service.NewMemoryRefreshTokenStore()
	var spinLimiter service.RateLimiter
	if cfg.SpinLimitPerHour > 0 {
		spinLimiter = service.NewMemoryRateLimiter(time.Hour, cfg.SpinLimitPerHour)
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisRateLimiter(redisClient, "otp:rl:", cfg.OTPRequestWindow(), cfg.OTPRequestLimit)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			if cfg.SpinLimitPerHour > 0 {
				spinLimiter = service.NewRedisRateLimiter(redisClient, "spin:rl:", time.Hour, cfg.SpinLimitPerHour)
			}
		}
		cancel()
	}

	jwtSvc := service.NewJWTService(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	checkInLoc, err := cfg.CheckInLocation()
	if err != nil {
		logger.Fatal("checkin timezone", zap.Error(err))
	}
	wheel, err := service.NewSpinWheel(service.DefaultSpinTiers, nil)
	if err != nil {
		logger.Fatal("spin wheel", zap.Error(err))
	}

	referralSvc := service.NewReferralService(logger, userRepo, referralRepo, dispatcher, templates)
	userSvc := service.NewUserService(logger, userRepo, referralSvc, dispatcher, templates, otpLimiter, cfg.OTPTTL())
	earningsSvc := service.NewEarningsService(logger, userRepo, wheel, spinLimiter, checkInLoc)

	var pruners []service.Pruner
	for _, candidate := range []any{otpLimiter, spinLimiter, tokenStore} {
		if p, ok := candidate.(service.Pruner); ok {
			pruners = append(pruners, p)
		}
	}
	scheduler, err := jobs.NewScheduler(logger, referralSvc, cfg.ReconcileInterval(), pruners...)
	if err != nil {
		logger.Fatal("scheduler init", zap.Error(err))
	}
	scheduler.Start()

	router := apihttp.NewRouter(
		logger,
		jwtSvc,
		apihttp.NewUserHandler(logger, userSvc, jwtSvc),
		apihttp.NewReferralHandler(logger, referralSvc),
		apihttp.NewEarningsHandler(logger, earningsSvc),
		func(ctx context.Context) error { return db.Ping(ctx, pool) },
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Error("scheduler shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("email dispatcher drain", zap.Error(err))
	}
}
