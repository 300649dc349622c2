package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cropyield-backend/internal/http/response"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
	"github.com/yungbote/cropyield-backend/internal/services"
)

type TrainingHandler struct {
	log      *logger.Logger
	training services.TrainingService
}

func NewTrainingHandler(log *logger.Logger, training services.TrainingService) *TrainingHandler {
	return &TrainingHandler{log: log.With("handler", "TrainingHandler"), training: training}
}

// decodeOptionalJSON decodes the body into dst; an empty body leaves dst untouched.
func decodeOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil {
		return nil
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domainerrors.Validation("body", "invalid JSON: %v", err)
	}
	return nil
}

// POST /train
func (h *TrainingHandler) Train(c *gin.Context) {
	h.run(c, h.training.Train)
}

// POST /retrain
func (h *TrainingHandler) Retrain(c *gin.Context) {
	h.run(c, h.training.Retrain)
}

func (h *TrainingHandler) run(c *gin.Context, fn func(ctx context.Context, req services.TrainRequest) (*services.TrainResult, error)) {
	var req services.TrainRequest
	if err := decodeOptionalJSON(c, &req); err != nil {
		response.RespondErr(c, err)
		return
	}
	res, err := fn(c.Request.Context(), req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
