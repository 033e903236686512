package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paisape/internal/domain"
	"paisape/internal/service"
)

// UserHandler mantiene dependencias para endpoints de autenticación.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	jwtServ  *service.JWTService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
	}
}

// userResponse agrega el total derivado a la vista pública del usuario.
type userResponse struct {
	domain.User
	TotalEarnings int64 `json:"totalEarnings"`
}

func newUserResponse(user domain.User) userResponse {
	return userResponse{User: user, TotalEarnings: user.TotalEarnings()}
}

// Register maneja POST /api/auth/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Name         string `json:"name" binding:"required"`
		Email        string `json:"email" binding:"required,email"`
		Password     string `json:"password" binding:"required"`
		ReferralCode string `json:"referralCode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "name, email and password are required")
		return
	}

	result, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		respondServiceError(c, h.logger, err, "could not register user")
		return
	}

	fields := gin.H{
		"user":            newUserResponse(result.User),
		"referralApplied": result.ReferralApplied,
		"otpSent":         result.OTPSent,
	}
	if result.ReferralError != nil {
		fields["referralMessage"] = result.ReferralError.Error()
	}
	message := "registered, verification code sent to email"
	if !result.OTPSent {
		message = "registered, request a new verification code via resend-otp"
	}
	respond(c, http.StatusCreated, message, fields)
}

// VerifyOTP maneja POST /api/auth/verify-otp.
func (h *UserHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		OTP   string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid otp verify request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "email and otp are required")
		return
	}

	user, err := h.userServ.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not verify otp")
		return
	}

	tokens, err := h.issueTokens(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	respond(c, http.StatusOK, "email verified", gin.H{"user": newUserResponse(user), "tokens": tokens})
}

// ResendOTP maneja POST /api/auth/resend-otp.
func (h *UserHandler) ResendOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid resend otp request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "email is required")
		return
	}

	if _, err := h.userServ.ResendOTP(c.Request.Context(), req.Email); err != nil {
		respondServiceError(c, h.logger, err, "could not resend otp")
		return
	}
	respond(c, http.StatusOK, "verification code sent", nil)
}

// Login maneja POST /api/auth/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not login")
		return
	}

	tokens, err := h.issueTokens(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	respond(c, http.StatusOK, "login successful", gin.H{"user": newUserResponse(user), "tokens": tokens})
}

// RefreshToken maneja POST /api/auth/refresh.
func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "refreshToken is required")
		return
	}
	if h.jwtServ == nil {
		respondError(c, http.StatusInternalServerError, "jwt not configured")
		return
	}
	tokens, err := h.jwtServ.Rotate(c.Request.Context(), req.RefreshToken, h.userServ.Profile)
	if err != nil {
		if errors.Is(err, service.ErrJWTInvalid) || errors.Is(err, service.ErrJWTExpired) || errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusUnauthorized, "invalid token")
			return
		}
		h.logger.Error("refresh token failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not refresh token")
		return
	}
	respond(c, http.StatusOK, "token refreshed", gin.H{"tokens": tokens})
}

// Logout maneja POST /api/auth/logout.
func (h *UserHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "refreshToken is required")
		return
	}
	if h.jwtServ == nil {
		respondError(c, http.StatusInternalServerError, "jwt not configured")
		return
	}
	_ = h.jwtServ.RevokeRefresh(c.Request.Context(), req.RefreshToken)
	respond(c, http.StatusOK, "logged out", nil)
}

// ForgotPassword maneja POST /api/auth/forgot-password.
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid forgot password request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "email is required")
		return
	}
	if err := h.userServ.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondServiceError(c, h.logger, err, "could not start password reset")
		return
	}
	respond(c, http.StatusOK, "password reset code sent", nil)
}

// VerifyResetOTP maneja POST /api/auth/verify-reset-otp.
func (h *UserHandler) VerifyResetOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		OTP   string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid verify reset otp request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "email and otp are required")
		return
	}
	if err := h.userServ.VerifyResetOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		respondServiceError(c, h.logger, err, "could not verify reset otp")
		return
	}
	respond(c, http.StatusOK, "otp verified, you can now reset your password", nil)
}

// ResetPassword maneja POST /api/auth/reset-password.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset password request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "email and newPassword are required")
		return
	}
	if err := h.userServ.ResetPassword(c.Request.Context(), req.Email, req.NewPassword); err != nil {
		respondServiceError(c, h.logger, err, "could not reset password")
		return
	}
	respond(c, http.StatusOK, "password reset successful", nil)
}

// CurrentUser maneja GET /api/auth/current-user.
func (h *UserHandler) CurrentUser(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	user, err := h.userServ.Profile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not load user")
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"user": newUserResponse(user)})
}

func (h *UserHandler) issueTokens(ctx context.Context, user domain.User) (service.TokenPair, error) {
	if h.jwtServ == nil {
		return service.TokenPair{}, errors.New("jwt not configured")
	}
	return h.jwtServ.GeneratePair(ctx, user)
}
