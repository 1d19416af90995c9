// explain.go: XAI heatmap endpoints backed by the inference sidecar
package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/defect"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/imaging"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/inference"
)

// initExplanationRoutes registers explanation-related routes
func (c *Controller) initExplanationRoutes() {
	c.Group.POST("/explain", c.Explain)
	c.Group.GET("/explain/methods", c.ExplainMethods)
	c.Group.GET("/model", c.ModelInfo)
}

// HeatmapDTO is one heatmap in the explanation response.
type HeatmapDTO struct {
	Method          string  `json:"method"`
	HeatmapBase64   string  `json:"heatmap_base64"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ClassProbabilityDTO is one class probability in the explanation response.
type ClassProbabilityDTO struct {
	ClassID     int     `json:"class_id"`
	ClassName   string  `json:"class_name"`
	Probability float64 `json:"probability"`
}

// ExplainResponse carries heatmaps and the classifier verdict for an image.
type ExplainResponse struct {
	ImageID        string                `json:"image_id,omitempty"`
	Heatmaps       []HeatmapDTO          `json:"heatmaps"`
	ConsensusScore float64               `json:"consensus_score"`
	Probabilities  []ClassProbabilityDTO `json:"probabilities"`
	PredictedClass string                `json:"predicted_class"`
	Confidence     float64               `json:"confidence"`
	Severity       string                `json:"severity"`
	Timestamp      time.Time             `json:"timestamp"`
}

// Explain handles POST /api/v2/explain
func (c *Controller) Explain(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		return c.HandleError(ctx, err, "Missing image upload", http.StatusBadRequest)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to open upload", http.StatusBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest)
	}

	if _, err := imaging.Inspect(data); err != nil {
		return c.handleAnalysisError(ctx, err)
	}

	var methods []string
	if raw := ctx.FormValue("methods"); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			methods = append(methods, strings.TrimSpace(m))
		}
	}

	// associate with an existing analysis when requested
	imageID := ctx.FormValue("image_id")
	var analysis *datastore.Analysis
	if imageID != "" {
		analysis, err = c.DS.GetAnalysis(imageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.HandleError(ctx, err, "Analysis not found", http.StatusNotFound)
			}
			return c.HandleError(ctx, err, "Failed to get analysis", http.StatusInternalServerError)
		}
	}

	reqCtx := ctx.Request().Context()
	explained, err := c.Inference.Explain(reqCtx, data, methods)
	if err != nil {
		return c.handleAnalysisError(ctx, err)
	}

	classified, err := c.Inference.Classify(reqCtx, data)
	if err != nil {
		return c.handleAnalysisError(ctx, err)
	}

	response := c.buildExplainResponse(imageID, explained, classified)

	if analysis != nil {
		explanations := make([]datastore.Explanation, 0, len(explained.Heatmaps))
		for _, h := range explained.Heatmaps {
			explanations = append(explanations, datastore.Explanation{
				Method:          h.Method,
				ConfidenceScore: h.ConfidenceScore,
				HeatmapBase64:   h.HeatmapBase64,
			})
		}
		if err := c.DS.SaveExplanations(analysis.ID, explanations); err != nil {
			c.logAPIRequest(ctx, slog.LevelError, "Failed to persist explanations",
				"image_id", imageID, "error", err.Error())
		} else {
			c.recordAuditEvent(ctx, analysis.ID, "explanation", "system", map[string]any{
				"methods": len(explanations),
			})
		}
	}

	return ctx.JSON(http.StatusOK, response)
}

// buildExplainResponse reshapes sidecar output and applies the no-defect
// threshold rule to the classifier probabilities.
func (c *Controller) buildExplainResponse(imageID string, explained *inference.ExplainResult, classified *inference.ClassifyResult) *ExplainResponse {
	heatmaps := make([]HeatmapDTO, 0, len(explained.Heatmaps))
	for _, h := range explained.Heatmaps {
		heatmaps = append(heatmaps, HeatmapDTO{
			Method:          h.Method,
			HeatmapBase64:   h.HeatmapBase64,
			ConfidenceScore: h.ConfidenceScore,
		})
	}

	probabilities := make([]ClassProbabilityDTO, 0, len(classified.Probabilities))
	predictions := make([]defect.Prediction, 0, len(classified.Probabilities))
	for _, p := range classified.Probabilities {
		probabilities = append(probabilities, ClassProbabilityDTO{
			ClassID:     p.ClassID,
			ClassName:   defect.ClassByID(p.ClassID).Name,
			Probability: p.Probability,
		})
		predictions = append(predictions, defect.Prediction{
			ClassID:    p.ClassID,
			Confidence: p.Probability,
		})
	}

	verdict := defect.Reclassify(predictions, c.Settings.Inference.NDThreshold)
	severity := defect.SeverityNone
	if !defect.IsNoDefect(verdict.ClassID) {
		severity = defect.SeverityFromConfidence(verdict.Confidence)
	}

	return &ExplainResponse{
		ImageID:        imageID,
		Heatmaps:       heatmaps,
		ConsensusScore: explained.ConsensusScore,
		Probabilities:  probabilities,
		PredictedClass: defect.ClassByID(verdict.ClassID).Name,
		Confidence:     verdict.Confidence,
		Severity:       string(severity),
		Timestamp:      time.Now(),
	}
}

// ExplainMethods handles GET /api/v2/explain/methods
func (c *Controller) ExplainMethods(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"methods": inference.SupportedMethods(),
	})
}

// ModelInfo handles GET /api/v2/model
func (c *Controller) ModelInfo(ctx echo.Context) error {
	info, err := c.Inference.ModelInfo(ctx.Request().Context())
	if err != nil {
		return c.handleAnalysisError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, info)
}
