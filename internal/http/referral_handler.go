package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paisape/internal/service"
)

type ReferralHandler struct {
	logger      *zap.Logger
	referralSvc *service.ReferralService
}

func NewReferralHandler(logger *zap.Logger, referralSvc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{logger: logger, referralSvc: referralSvc}
}

// Stats maneja GET /api/auth/referral-stats.
func (h *ReferralHandler) Stats(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	stats, err := h.referralSvc.Stats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not load referral stats")
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"stats": stats})
}

// List maneja GET /api/auth/referrals?limit=&offset=.
func (h *ReferralHandler) List(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	referrals, err := h.referralSvc.ListReferrals(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(c, h.logger, err, "could not list referrals")
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"referrals": referrals})
}
