package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
)

func TestExportReport(t *testing.T) {
	controller, mockDS, e := setupTestController(t)

	mockDS.On("ListAnalyses", mock.AnythingOfType("*datastore.AnalysisFilter")).
		Return([]datastore.Analysis{
			{
				ImageID: "img-001", Filename: "weld-a.png", NumDetections: 2,
				HasDefects: true, HighestSeverity: "critical", MeanConfidence: 0.88,
				InferenceTimeMs: 74.5, ModelVersion: "yolov8s-1.0.0", Status: "completed",
				CreatedAt: time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
			},
			{
				ImageID: "img-002", Filename: "weld-b.png",
				HighestSeverity: "none", Status: "completed",
			},
		}, int64(2), nil)

	ctx, rec := postJSON(e, "/api/v2/export", `{}`)

	require.NoError(t, controller.ExportReport(ctx))
	require.Equal(t, http.StatusCreated, rec.Code)

	var response ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Regexp(t, `^export-\d{8}-\d{6}-[0-9a-f]{8}\.csv$`, response.Filename)
	assert.Equal(t, 2, response.Rows)
	assert.Equal(t, "/api/v2/export/"+response.Filename, response.DownloadURL)

	// the generated file downloads back with the same content
	req := httptest.NewRequest(http.MethodGet, response.DownloadURL, http.NoBody)
	downloadRec := httptest.NewRecorder()
	downloadCtx := e.NewContext(req, downloadRec)
	downloadCtx.SetParamNames("filename")
	downloadCtx.SetParamValues(response.Filename)

	require.NoError(t, controller.DownloadExport(downloadCtx))
	require.Equal(t, http.StatusOK, downloadRec.Code)

	records, err := csv.NewReader(downloadRec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows
	assert.Equal(t, "image_id", records[0][0])
	assert.Equal(t, "img-001", records[1][0])
	assert.Equal(t, "true", records[1][4])
	assert.Equal(t, "critical", records[1][5])
}

func TestExportReportByImageIDs(t *testing.T) {
	controller, mockDS, e := setupTestController(t)

	mockDS.On("GetAnalysis", "img-001").Return(&datastore.Analysis{
		ImageID: "img-001", Filename: "weld-a.png", Status: "completed",
	}, nil)

	ctx, rec := postJSON(e, "/api/v2/export", `{"image_ids":["img-001"]}`)

	require.NoError(t, controller.ExportReport(ctx))
	require.Equal(t, http.StatusCreated, rec.Code)

	var response ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Rows)
	mockDS.AssertNotCalled(t, "ListAnalyses", mock.Anything)
}

func TestExportReportUnknownImageID(t *testing.T) {
	controller, mockDS, e := setupTestController(t)

	mockDS.On("GetAnalysis", "missing").Return(nil, gorm.ErrRecordNotFound)

	ctx, rec := postJSON(e, "/api/v2/export", `{"image_ids":["missing"]}`)

	require.NoError(t, controller.ExportReport(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadExportInvalidFilename(t *testing.T) {
	controller, _, e := setupTestController(t)

	for _, filename := range []string{
		"../../etc/passwd",
		"export-20260830-120000-deadbeef.csv.exe",
		"report.csv",
		"export-20260830-120000-DEADBEEF.csv",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/export/"+filename, http.NoBody)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)
		ctx.SetParamNames("filename")
		ctx.SetParamValues(filename)

		require.NoError(t, controller.DownloadExport(ctx))
		assert.Equal(t, http.StatusBadRequest, rec.Code, filename)
	}
}

func TestDownloadExportNotFound(t *testing.T) {
	controller, _, e := setupTestController(t)

	filename := "export-20260830-120000-deadbeef.csv"
	req := httptest.NewRequest(http.MethodGet, "/api/v2/export/"+filename, http.NoBody)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("filename")
	ctx.SetParamValues(filename)

	require.NoError(t, controller.DownloadExport(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportReportInvalidBody(t *testing.T) {
	controller, _, e := setupTestController(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/export", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	require.NoError(t, controller.ExportReport(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
