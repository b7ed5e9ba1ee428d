package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/service"
)

// TrainingHandler covers training-data export and export statistics.
type TrainingHandler struct {
	exporter *service.Exporter
	logger   *zap.Logger
}

func NewTrainingHandler(exporter *service.Exporter, logger *zap.Logger) *TrainingHandler {
	return &TrainingHandler{exporter: exporter, logger: logger}
}

func (h *TrainingHandler) Export(c *gin.Context) {
	var in models.ExportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errs.New(errs.KindValidation, "export_type is required"))
		return
	}

	result, err := h.exporter.Export(in)
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			h.logger.Error("export training data", zap.String("export_type", in.ExportType), zap.Error(err))
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *TrainingHandler) Stats(c *gin.Context) {
	stats, err := h.exporter.Stats()
	if err != nil {
		h.logger.Error("export stats", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Download re-materializes a stored export's corpus as a JSON attachment.
func (h *TrainingHandler) Download(c *gin.Context) {
	manifest, data, err := h.exporter.Download(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename="+manifest.ExportType+"-"+manifest.ID+".json")

	encoder := json.NewEncoder(c.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		// headers are already written; all we can do is record it
		h.logger.Error("stream export corpus",
			zap.String("export_id", manifest.ID), zap.Error(err))
	}
}
