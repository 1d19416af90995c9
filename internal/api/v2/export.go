// export.go: CSV report generation and download
package api

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
)

// initExportRoutes registers export-related routes
func (c *Controller) initExportRoutes() {
	c.Group.POST("/export", c.ExportReport)
	c.Group.GET("/export/:filename", c.DownloadExport)
}

// exportFilenamePattern matches filenames generated by ExportReport. Download
// requests failing this pattern are rejected outright.
var exportFilenamePattern = regexp.MustCompile(`^export-\d{8}-\d{6}-[0-9a-f]{8}\.csv$`)

// ExportRequest selects the analyses to include in a report.
type ExportRequest struct {
	ImageIDs []string `json:"image_ids,omitempty"` // explicit selection, empty for all
	Status   string   `json:"status,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// ExportResponse describes a generated report.
type ExportResponse struct {
	Filename    string `json:"filename"`
	Rows        int    `json:"rows"`
	DownloadURL string `json:"download_url"`
}

// ExportReport handles POST /api/v2/export
func (c *Controller) ExportReport(ctx echo.Context) error {
	var req ExportRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	var analyses []datastore.Analysis
	if len(req.ImageIDs) > 0 {
		for _, imageID := range req.ImageIDs {
			analysis, err := c.DS.GetAnalysis(imageID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return c.HandleError(ctx, err,
						fmt.Sprintf("Analysis not found: %s", imageID), http.StatusNotFound)
				}
				return c.HandleError(ctx, err, "Failed to get analysis", http.StatusInternalServerError)
			}
			analyses = append(analyses, *analysis)
		}
	} else {
		limit := req.Limit
		if limit <= 0 {
			limit = 500
		}
		var err error
		analyses, _, err = c.DS.ListAnalyses(&datastore.AnalysisFilter{Status: req.Status, Limit: limit})
		if err != nil {
			return c.HandleError(ctx, err, "Failed to list analyses", http.StatusInternalServerError)
		}
	}

	filename := fmt.Sprintf("export-%s-%s.csv",
		time.Now().Format("20060102-150405"), uuid.New().String()[:8])
	fullPath := filepath.Join(c.exportPath, filename)

	if err := writeExportCSV(fullPath, analyses); err != nil {
		return c.HandleError(ctx, err, "Failed to write export", http.StatusInternalServerError)
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Export generated",
		"filename", filename, "rows", len(analyses))

	return ctx.JSON(http.StatusCreated, ExportResponse{
		Filename:    filename,
		Rows:        len(analyses),
		DownloadURL: "/api/v2/export/" + filename,
	})
}

// writeExportCSV writes the analysis report to disk.
func writeExportCSV(path string, analyses []datastore.Analysis) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryExport).
			Context("path", path).
			Build()
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{
		"image_id", "filename", "timestamp", "num_detections", "has_defects",
		"highest_severity", "mean_confidence", "inference_time_ms", "model_version", "status",
	}
	if err := w.Write(header); err != nil {
		return errors.New(err).Category(errors.CategoryExport).Build()
	}

	for i := range analyses {
		a := &analyses[i]
		record := []string{
			a.ImageID,
			a.Filename,
			a.CreatedAt.Format(time.RFC3339),
			strconv.Itoa(a.NumDetections),
			strconv.FormatBool(a.HasDefects),
			a.HighestSeverity,
			strconv.FormatFloat(a.MeanConfidence, 'f', 4, 64),
			strconv.FormatFloat(a.InferenceTimeMs, 'f', 2, 64),
			a.ModelVersion,
			a.Status,
		}
		if err := w.Write(record); err != nil {
			return errors.New(err).Category(errors.CategoryExport).Build()
		}
	}

	w.Flush()
	return w.Error()
}

// DownloadExport handles GET /api/v2/export/:filename
func (c *Controller) DownloadExport(ctx echo.Context) error {
	filename := ctx.Param("filename")

	// only server-generated names are downloadable, which also rules out
	// any path traversal
	if !exportFilenamePattern.MatchString(filename) {
		return c.HandleError(ctx, nil, "Invalid export filename", http.StatusBadRequest)
	}

	fullPath := filepath.Join(c.exportPath, filename)
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return c.HandleError(ctx, err, "Export not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to read export", http.StatusInternalServerError)
	}

	return ctx.Attachment(fullPath, filename)
}
