package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cropyield-backend/internal/http/response"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
	"github.com/yungbote/cropyield-backend/internal/services"
)

type PredictionHandler struct {
	log        *logger.Logger
	prediction services.PredictionService
}

func NewPredictionHandler(log *logger.Logger, prediction services.PredictionService) *PredictionHandler {
	return &PredictionHandler{log: log.With("handler", "PredictionHandler"), prediction: prediction}
}

type predictRequest struct {
	Record map[string]any `json:"record"`
}

// POST /predict {"record": {...}}
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req predictRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		response.RespondErr(c, domainerrors.Validation("body", "invalid JSON: %v", err))
		return
	}
	if len(req.Record) == 0 {
		response.RespondErr(c, domainerrors.Validation("record", "is required"))
		return
	}
	res, err := h.prediction.Predict(c.Request.Context(), req.Record)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
