package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cropyield-backend/internal/http/response"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
	"github.com/yungbote/cropyield-backend/internal/services"
)

type ModelHandler struct {
	log    *logger.Logger
	models services.ModelService
}

func NewModelHandler(log *logger.Logger, models services.ModelService) *ModelHandler {
	return &ModelHandler{log: log.With("handler", "ModelHandler"), models: models}
}

// GET /models
func (h *ModelHandler) List(c *gin.Context) {
	limit, err := queryLimit(c, 50)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	list, err := h.models.List(c.Request.Context(), limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, list)
}

// POST /models/:version/activate
func (h *ModelHandler) Activate(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		response.RespondErr(c, domainerrors.Validation("version", "must be an integer, got %q", c.Param("version")))
		return
	}
	snap, err := h.models.Activate(c.Request.Context(), version)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"active_version": snap.Version, "model": snap})
}
