package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paisape/internal/service"
)

// HealthChecker reporta si las dependencias críticas responden.
type HealthChecker func(ctx context.Context) error

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	referralH *ReferralHandler,
	earningsH *EarningsHandler,
	health HealthChecker,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", healthHandler(health))

	requireAuth := JWTAuthMiddleware(jwtSvc)

	auth := r.Group("/api/auth")
	auth.POST("/register", userH.Register)
	auth.POST("/verify-otp", userH.VerifyOTP)
	auth.POST("/resend-otp", userH.ResendOTP)
	auth.POST("/login", userH.Login)
	auth.POST("/refresh", userH.RefreshToken)
	auth.POST("/logout", userH.Logout)
	auth.POST("/forgot-password", userH.ForgotPassword)
	auth.POST("/verify-reset-otp", userH.VerifyResetOTP)
	auth.POST("/reset-password", userH.ResetPassword)
	auth.GET("/current-user", requireAuth, userH.CurrentUser)
	auth.GET("/referral-stats", requireAuth, referralH.Stats)
	auth.GET("/referrals", requireAuth, referralH.List)

	earn := r.Group("/api/earn", requireAuth)
	earn.POST("/daily-checkin", earningsH.DailyCheckIn)
	earn.GET("/checkin-stats", earningsH.CheckInStats)
	earn.POST("/spin-wheel", earningsH.SpinWheel)
	earn.GET("/spin-stats", earningsH.SpinStats)
	earn.GET("/summary", earningsH.Summary)

	return r
}

func healthHandler(check HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				respondError(c, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		respond(c, http.StatusOK, "ok", nil)
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
