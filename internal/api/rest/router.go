package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"leaf-doctor/internal/domain/entity"
)

// HeatmapRoute serves the most recent overlay.
const HeatmapRoute = "/heatmap"

// Diagnoser classifies one uploaded image.
type Diagnoser interface {
	Classify(ctx context.Context, data []byte) (*entity.Diagnosis, error)
}

type predictResponse struct {
	RequestID         string              `json:"request_id"`
	Label             string              `json:"label"`
	Confidence        float64             `json:"confidence"`
	ConfidencePercent string              `json:"confidence_percent"`
	Probabilities     []entity.LabelScore `json:"probabilities"`
	HeatmapURL        string              `json:"heatmap_url,omitempty"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, diagnoser Diagnoser, heatmapPath string, maxUpload int64, logger *zap.Logger) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/predict", func(c *gin.Context) {
		if c.Request.ContentLength > maxUpload {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)

		file, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		d, err := diagnoser.Classify(c.Request.Context(), data)
		if err != nil {
			kind := entity.ErrorKind(err)
			if errors.Is(err, entity.ErrInvalidImage) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "image could not be decoded", "kind": kind})
				return
			}
			logger.Error("predict failed", zap.String("kind", kind), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed", "kind": kind})
			return
		}

		resp := predictResponse{
			RequestID:         d.RequestID,
			Label:             d.Label,
			Confidence:        d.Confidence,
			ConfidencePercent: d.ConfidencePercent(),
			Probabilities:     d.Breakdown(),
		}
		if d.Heatmap != nil {
			resp.HeatmapURL = HeatmapRoute
		}
		c.JSON(http.StatusOK, resp)
	})

	router.GET(HeatmapRoute, func(c *gin.Context) {
		if _, err := os.Stat(heatmapPath); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no heatmap yet"})
			return
		}
		c.Header("Cache-Control", "no-store")
		c.File(heatmapPath)
	})
}
