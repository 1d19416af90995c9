// detect.go: radiograph upload, model inference and analysis history
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/defect"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/imaging"
)

// maxBatchSize limits how many files a batch detection accepts.
const maxBatchSize = 16

// batchConcurrency limits parallel sidecar calls during batch detection.
const batchConcurrency = 4

// initDetectionRoutes registers detection-related routes
func (c *Controller) initDetectionRoutes() {
	c.Group.POST("/detect", c.Detect)
	c.Group.POST("/detect/batch", c.DetectBatch)
	c.Group.GET("/detections", c.ListDetections)
	c.Group.GET("/detections/:id", c.GetDetection)
	c.Group.DELETE("/detections/:id", c.DeleteDetection)
}

// DetectionDTO is one detection in API responses.
type DetectionDTO struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	DefectCode string  `json:"defect_code"`
	Severity   string  `json:"severity"`
}

// DetectResponse is the result of analyzing one radiograph.
type DetectResponse struct {
	ImageID         string         `json:"image_id"`
	Filename        string         `json:"filename"`
	Detections      []DetectionDTO `json:"detections"`
	NumDetections   int            `json:"num_detections"`
	HasDefects      bool           `json:"has_defects"`
	HighestSeverity string         `json:"highest_severity"`
	MeanConfidence  float64        `json:"mean_confidence"`
	InferenceTimeMs float64        `json:"inference_time_ms"`
	ModelVersion    string         `json:"model_version"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Detect handles POST /api/v2/detect
func (c *Controller) Detect(ctx echo.Context) error {
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

	response, err := c.analyzeImage(ctx, fileHeader.Filename, data)
	if err != nil {
		return c.handleAnalysisError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, response)
}

// BatchItemResult is the outcome for one file of a batch detection.
type BatchItemResult struct {
	Filename string          `json:"filename"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Result   *DetectResponse `json:"result,omitempty"`
}

// BatchDetectResponse is the result of a batch detection.
type BatchDetectResponse struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []BatchItemResult `json:"results"`
}

// DetectBatch handles POST /api/v2/detect/batch
func (c *Controller) DetectBatch(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return c.HandleError(ctx, err, "Invalid multipart form", http.StatusBadRequest)
	}

	files := form.File["images"]
	if len(files) == 0 {
		return c.HandleError(ctx, nil, "No images in upload", http.StatusBadRequest)
	}
	if len(files) > maxBatchSize {
		return c.HandleError(ctx, nil,
			fmt.Sprintf("Too many files, maximum is %d", maxBatchSize), http.StatusBadRequest)
	}

	results := make([]BatchItemResult, len(files))
	g, gctx := errgroup.WithContext(ctx.Request().Context())
	g.SetLimit(batchConcurrency)

	for i, fileHeader := range files {
		g.Go(func() error {
			results[i].Filename = fileHeader.Filename

			file, err := fileHeader.Open()
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}

			if err := gctx.Err(); err != nil {
				results[i].Error = err.Error()
				return nil
			}

			response, err := c.analyzeImage(ctx, fileHeader.Filename, data)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Success = true
			results[i].Result = response
			return nil
		})
	}
	_ = g.Wait()

	response := BatchDetectResponse{Total: len(files), Results: results}
	for i := range results {
		if results[i].Success {
			response.Succeeded++
		} else {
			response.Failed++
		}
	}
	return ctx.JSON(http.StatusOK, response)
}

// analyzeImage runs the full detection pipeline for one upload: validate the
// image, call the sidecar, map severities and persist the analysis. A
// persistence failure is logged but does not fail the detection response.
func (c *Controller) analyzeImage(ctx echo.Context, filename string, data []byte) (*DetectResponse, error) {
	info, err := imaging.Inspect(data)
	if err != nil {
		return nil, err
	}

	result, err := c.Inference.Detect(ctx.Request().Context(), data)
	if err != nil {
		return nil, err
	}

	imageID := uuid.New().String()
	modelVersion := result.ModelVersion
	if modelVersion == "" {
		modelVersion = c.Settings.Inference.ModelVersion
	}

	dtos := make([]DetectionDTO, 0, len(result.Detections))
	records := make([]datastore.Detection, 0, len(result.Detections))
	severities := make([]defect.Severity, 0, len(result.Detections))

	hasDefects := false
	var confidenceSum float64
	for _, d := range result.Detections {
		class := defect.ClassByID(d.ClassID)
		severity := defect.SeverityNone
		if !defect.IsNoDefect(d.ClassID) {
			severity = defect.SeverityFromConfidence(d.Confidence)
			severities = append(severities, severity)
			hasDefects = true
		}
		confidenceSum += d.Confidence

		dtos = append(dtos, DetectionDTO{
			X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2,
			Confidence: d.Confidence,
			ClassID:    d.ClassID,
			ClassName:  class.Name,
			DefectCode: class.Code,
			Severity:   string(severity),
		})
		records = append(records, datastore.Detection{
			X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2,
			Confidence: d.Confidence,
			Label:      d.ClassID,
			ClassName:  class.Name,
			Severity:   string(severity),
		})
	}

	meanConfidence := 0.0
	if len(result.Detections) > 0 {
		meanConfidence = confidenceSum / float64(len(result.Detections))
	}

	response := &DetectResponse{
		ImageID:         imageID,
		Filename:        filename,
		Detections:      dtos,
		NumDetections:   len(dtos),
		HasDefects:      hasDefects,
		HighestSeverity: string(defect.Highest(severities)),
		MeanConfidence:  meanConfidence,
		InferenceTimeMs: result.InferenceTimeMs,
		ModelVersion:    modelVersion,
		Timestamp:       time.Now(),
	}

	analysis := &datastore.Analysis{
		ImageID:         imageID,
		Filename:        filename,
		Checksum:        info.Checksum,
		ImageWidth:      info.Width,
		ImageHeight:     info.Height,
		ImageSizeBytes:  info.Size,
		NumDetections:   len(records),
		HasDefects:      hasDefects,
		HighestSeverity: response.HighestSeverity,
		MeanConfidence:  meanConfidence,
		InferenceTimeMs: result.InferenceTimeMs,
		ModelVersion:    modelVersion,
		Status:          "completed",
	}

	if err := c.DS.SaveAnalysis(analysis, records); err != nil {
		// detection result still goes back to the operator
		c.logAPIRequest(ctx, slog.LevelError, "Failed to persist analysis",
			"image_id", imageID, "error", err.Error())
	} else {
		c.recordAuditEvent(ctx, analysis.ID, "detection", "system", map[string]any{
			"num_detections": len(records),
			"has_defects":    hasDefects,
		})
	}

	return response, nil
}

// handleAnalysisError maps pipeline errors to HTTP responses.
func (c *Controller) handleAnalysisError(ctx echo.Context, err error) error {
	switch errors.CategoryOf(err) {
	case errors.CategoryImageDecode, errors.CategoryValidation:
		return c.HandleError(ctx, err, "Invalid image upload", http.StatusBadRequest)
	case errors.CategoryModelInference:
		return c.HandleError(ctx, err, "Inference sidecar unavailable", http.StatusBadGateway)
	default:
		return c.HandleError(ctx, err, "Detection failed", http.StatusInternalServerError)
	}
}

// recordAuditEvent appends an audit trail entry, logging failures.
func (c *Controller) recordAuditEvent(ctx echo.Context, analysisID uint, eventType, actor string, details map[string]any) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	event := &datastore.AuditEvent{
		AnalysisID: analysisID,
		EventType:  eventType,
		Actor:      actor,
		Details:    string(payload),
	}
	if err := c.DS.SaveAuditEvent(event); err != nil {
		c.logAPIRequest(ctx, slog.LevelError, "Failed to record audit event",
			"event_type", eventType, "error", err.Error())
	}
}

// AnalysisListResponse is a page of analysis history.
type AnalysisListResponse struct {
	Results []DetectResponse `json:"results"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// ListDetections handles GET /api/v2/detections
func (c *Controller) ListDetections(ctx echo.Context) error {
	filter := &datastore.AnalysisFilter{
		Status: ctx.QueryParam("status"),
		Limit:  50,
	}

	if v := ctx.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 500 {
			return c.HandleError(ctx, err, "Invalid limit parameter", http.StatusBadRequest)
		}
		filter.Limit = limit
	}
	if v := ctx.QueryParam("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return c.HandleError(ctx, err, "Invalid offset parameter", http.StatusBadRequest)
		}
		filter.Offset = offset
	}
	if v := ctx.QueryParam("has_defects"); v != "" {
		hasDefects, err := strconv.ParseBool(v)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid has_defects parameter", http.StatusBadRequest)
		}
		filter.HasDefects = &hasDefects
	}

	analyses, total, err := c.DS.ListAnalyses(filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list analyses", http.StatusInternalServerError)
	}

	results := make([]DetectResponse, 0, len(analyses))
	for i := range analyses {
		results = append(results, analysisToResponse(&analyses[i]))
	}

	return ctx.JSON(http.StatusOK, AnalysisListResponse{
		Results: results,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// GetDetection handles GET /api/v2/detections/:id
func (c *Controller) GetDetection(ctx echo.Context) error {
	imageID := ctx.Param("id")

	analysis, err := c.DS.GetAnalysis(imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Analysis not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get analysis", http.StatusInternalServerError)
	}

	response := analysisToResponse(analysis)
	detail := map[string]any{
		"analysis":     response,
		"explanations": analysis.Explanations,
		"reviews":      analysis.Reviews,
	}
	return ctx.JSON(http.StatusOK, detail)
}

// DeleteDetection handles DELETE /api/v2/detections/:id
func (c *Controller) DeleteDetection(ctx echo.Context) error {
	imageID := ctx.Param("id")

	if err := c.DS.DeleteAnalysis(imageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Analysis not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete analysis", http.StatusInternalServerError)
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Analysis deleted", "image_id", imageID)
	return ctx.NoContent(http.StatusNoContent)
}

// analysisToResponse maps a stored analysis to the API response shape.
func analysisToResponse(analysis *datastore.Analysis) DetectResponse {
	dtos := make([]DetectionDTO, 0, len(analysis.Detections))
	for _, d := range analysis.Detections {
		class := defect.ClassByID(d.Label)
		dtos = append(dtos, DetectionDTO{
			X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2,
			Confidence: d.Confidence,
			ClassID:    d.Label,
			ClassName:  d.ClassName,
			DefectCode: class.Code,
			Severity:   d.Severity,
		})
	}

	return DetectResponse{
		ImageID:         analysis.ImageID,
		Filename:        analysis.Filename,
		Detections:      dtos,
		NumDetections:   analysis.NumDetections,
		HasDefects:      analysis.HasDefects,
		HighestSeverity: analysis.HighestSeverity,
		MeanConfidence:  analysis.MeanConfidence,
		InferenceTimeMs: analysis.InferenceTimeMs,
		ModelVersion:    analysis.ModelVersion,
		Timestamp:       analysis.CreatedAt,
	}
}
