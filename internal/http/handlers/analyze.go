package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/cropyield-backend/internal/http/response"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
	"github.com/yungbote/cropyield-backend/internal/services"
)

type AnalyticsHandler struct {
	log       *logger.Logger
	analytics services.AnalyticsService
}

func NewAnalyticsHandler(log *logger.Logger, analytics services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{log: log.With("handler", "AnalyticsHandler"), analytics: analytics}
}

// POST /analyze returns {summary, images} with images as base64 PNG.
func (h *AnalyticsHandler) Analyze(c *gin.Context) {
	res, err := h.analytics.Analyze(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
