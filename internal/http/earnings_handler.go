package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paisape/internal/service"
)

type EarningsHandler struct {
	logger      *zap.Logger
	earningsSvc *service.EarningsService
}

func NewEarningsHandler(logger *zap.Logger, earningsSvc *service.EarningsService) *EarningsHandler {
	return &EarningsHandler{logger: logger, earningsSvc: earningsSvc}
}

// DailyCheckIn maneja POST /api/earn/daily-checkin.
func (h *EarningsHandler) DailyCheckIn(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	result, err := h.earningsSvc.CheckIn(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not check in")
		return
	}
	respond(c, http.StatusOK, "daily check-in successful", gin.H{"checkIn": result})
}

// CheckInStats maneja GET /api/earn/checkin-stats.
func (h *EarningsHandler) CheckInStats(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	stats, err := h.earningsSvc.CheckInStats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not load check-in stats")
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"stats": stats})
}

// SpinWheel maneja POST /api/earn/spin-wheel.
func (h *EarningsHandler) SpinWheel(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	result, err := h.earningsSvc.Spin(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not spin the wheel")
		return
	}
	respond(c, http.StatusOK, "spin successful", gin.H{"spin": result})
}

// SpinStats maneja GET /api/earn/spin-stats.
func (h *EarningsHandler) SpinStats(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	spinEarnings, err := h.earningsSvc.SpinStats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not load spin stats")
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"spinEarnings": spinEarnings})
}

// Summary maneja GET /api/earn/summary.
func (h *EarningsHandler) Summary(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	earnings, err := h.earningsSvc.Summary(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not load earnings")
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"earnings": earnings})
}
