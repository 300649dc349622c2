package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cropyield-backend/internal/analytics"
	"github.com/yungbote/cropyield-backend/internal/http/response"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
	"github.com/yungbote/cropyield-backend/internal/services"
)

type DatasetHandler struct {
	log       *logger.Logger
	dataset   services.DatasetService
	analytics services.AnalyticsService
}

func NewDatasetHandler(log *logger.Logger, dataset services.DatasetService, analytics services.AnalyticsService) *DatasetHandler {
	return &DatasetHandler{
		log:       log.With("handler", "DatasetHandler"),
		dataset:   dataset,
		analytics: analytics,
	}
}

type uploadResponse struct {
	RowsSaved     int               `json:"rows_saved"`
	RowsRejected  int               `json:"rows_rejected"`
	InvalidValues map[string]int    `json:"invalid_values"`
	BatchID       string            `json:"batch_id"`
	Columns       map[string]string `json:"columns"`
	Summary       analytics.Summary `json:"summary"`
	Images        map[string][]byte `json:"images"`
}

// POST /upload_csv?mode=append|replace
func (h *DatasetHandler) UploadCSV(c *gin.Context) {
	mode := strings.ToLower(strings.TrimSpace(c.DefaultQuery("mode", "append")))
	if mode != "append" && mode != "replace" {
		response.RespondErr(c, domainerrors.Validation("mode", "must be append or replace, got %q", mode))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			msg := errors.New("upload exceeds the size limit")
			if mbe != nil {
				msg = fmt.Errorf("upload exceeds %d bytes", mbe.Limit)
			}
			response.RespondError(c, http.StatusRequestEntityTooLarge, "upload_too_large", msg)
			return
		}
		response.RespondErr(c, domainerrors.Validation("file", "multipart field \"file\" is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	defer f.Close()

	res, err := h.dataset.Upload(c.Request.Context(), services.UploadInput{
		Filename: fh.Filename,
		Body:     f,
		Replace:  mode == "replace",
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	analysis, err := h.analytics.Analyze(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, uploadResponse{
		RowsSaved:     res.RowsSaved,
		RowsRejected:  res.RowsRejected,
		InvalidValues: res.InvalidValues,
		BatchID:       res.Batch.ID.String(),
		Columns:       res.Columns,
		Summary:       analysis.Summary,
		Images:        analysis.Images,
	})
}

// GET /dataset/export?format=csv|xlsx
func (h *DatasetHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	info, err := h.dataset.Export(c.Request.Context(), c.Query("format"), &buf)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Filename))
	c.Data(http.StatusOK, info.ContentType, buf.Bytes())
}

// GET /dataset/uploads?limit=N
func (h *DatasetHandler) ListUploads(c *gin.Context) {
	limit, err := queryLimit(c, 50)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	uploads, err := h.dataset.ListUploads(c.Request.Context(), limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"uploads": uploads})
}

// queryLimit reads ?limit=N. Absent means def; anything but a non-negative integer is rejected.
func queryLimit(c *gin.Context, def int) (int, error) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domainerrors.Validation("limit", "must be a non-negative integer, got %q", raw)
	}
	return n, nil
}

// DELETE /dataset
func (h *DatasetHandler) Clear(c *gin.Context) {
	n, err := h.dataset.Clear(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rows_deleted": n})
}
