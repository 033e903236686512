package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paisape/internal/service"
)

// respond escribe el sobre {success, message, ...} con los campos extra.
func respond(c *gin.Context, status int, message string, fields gin.H) {
	body := gin.H{
		"success": status < http.StatusBadRequest,
		"message": message,
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

func respondError(c *gin.Context, status int, message string) {
	respond(c, status, message, nil)
}

// errorStatus traduce errores de servicio a códigos HTTP. ok=false indica un
// error no esperado que debe responderse como 500.
func errorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidReferralCode),
		errors.Is(err, service.ErrSelfReferralNotAllowed),
		errors.Is(err, service.ErrOTPMismatch),
		errors.Is(err, service.ErrOTPExpired),
		errors.Is(err, service.ErrNoActiveOTP),
		errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrAlreadyCheckedInToday):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAlreadyReferred),
		errors.Is(err, service.ErrNoPendingReferral):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrEmailNotVerified),
		errors.Is(err, service.ErrResetNotVerified):
		return http.StatusForbidden, true
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, true
	default:
		return http.StatusInternalServerError, false
	}
}

// respondServiceError responde con el mensaje del error conocido o con
// fallback, registrando los errores internos.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	status, known := errorStatus(err)
	if !known {
		logger.Error(fallback,
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, status, fallback)
		return
	}
	respondError(c, status, err.Error())
}
