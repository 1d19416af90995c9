package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/compliance"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
)

func TestCheckCompliance(t *testing.T) {
	controller, _, e := setupTestController(t)

	ctx, rec := postJSON(e, "/api/v2/compliance/check",
		`{"defect_type":"CR","confidence":0.95,"standard":"AWS D1.1",
		  "region_data":{"x":10,"y":10,"width":50,"height":8,"area":400}}`)

	require.NoError(t, controller.CheckCompliance(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var result compliance.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, compliance.StatusFail, result.ComplianceStatus)
	assert.Equal(t, compliance.LevelCritical, result.Severity)
	assert.False(t, result.PassFail)
	assert.NotEmpty(t, result.RepairRecommendation)
}

func TestCheckComplianceDefaultStandard(t *testing.T) {
	controller, _, e := setupTestController(t)

	// no standard in the request, the configured default applies
	ctx, rec := postJSON(e, "/api/v2/compliance/check",
		`{"defect_type":"PO","confidence":0.85}`)

	require.NoError(t, controller.CheckCompliance(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var result compliance.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "AWS D1.1", result.Standard)
}

func TestCheckComplianceLowConfidence(t *testing.T) {
	controller, _, e := setupTestController(t)

	ctx, rec := postJSON(e, "/api/v2/compliance/check",
		`{"defect_type":"PO","confidence":0.55}`)

	require.NoError(t, controller.CheckCompliance(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var result compliance.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, compliance.StatusReviewRequired, result.ComplianceStatus)
}

func TestCheckComplianceUnknownStandard(t *testing.T) {
	controller, _, e := setupTestController(t)

	ctx, rec := postJSON(e, "/api/v2/compliance/check",
		`{"defect_type":"CR","confidence":0.9,"standard":"DIN 8570"}`)

	require.NoError(t, controller.CheckCompliance(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckComplianceMissingDefectType(t *testing.T) {
	controller, _, e := setupTestController(t)

	ctx, rec := postJSON(e, "/api/v2/compliance/check", `{"confidence":0.9}`)

	require.NoError(t, controller.CheckCompliance(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckMultiStandard(t *testing.T) {
	controller, _, e := setupTestController(t)

	ctx, rec := postJSON(e, "/api/v2/compliance/check-multi",
		`{"defect_type":"CR","confidence":0.92,"standards":["AWS D1.1","API 1104"],
		  "region_data":{"x":10,"y":10,"width":50,"height":8,"area":400}}`)

	require.NoError(t, controller.CheckMultiStandard(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var result compliance.MultiResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.IndividualResults, 2)
	assert.Equal(t, compliance.StatusFail, result.FinalCompliance)
	assert.Equal(t, "AWS D1.1", result.MostRestrictiveStandard)
}

func TestCheckMultiStandardUnknown(t *testing.T) {
	controller, _, e := setupTestController(t)

	ctx, rec := postJSON(e, "/api/v2/compliance/check-multi",
		`{"defect_type":"CR","confidence":0.92,"standards":["EN 12345"]}`)

	require.NoError(t, controller.CheckMultiStandard(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListStandards(t *testing.T) {
	controller, _, e := setupTestController(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/compliance/standards", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	require.NoError(t, controller.ListStandards(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Standards []compliance.StandardInfo `json:"standards"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Standards, 6)
}

func TestGetAcceptanceCriteria(t *testing.T) {
	controller, _, e := setupTestController(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/compliance/criteria/LP?standard=ISO%205817-B", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("defectType")
	ctx.SetParamValues("LP")

	require.NoError(t, controller.GetAcceptanceCriteria(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var criteria compliance.Criteria
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &criteria))
	assert.Equal(t, "LP", criteria.DefectType)
	assert.Equal(t, "ISO 5817-B", criteria.Standard)
}

func TestGetAcceptanceCriteriaUnknownType(t *testing.T) {
	controller, _, e := setupTestController(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/compliance/criteria/XX", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("defectType")
	ctx.SetParamValues("XX")

	require.NoError(t, controller.GetAcceptanceCriteria(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateCertificate(t *testing.T) {
	controller, mockDS, e := setupTestController(t)

	mockDS.On("GetAnalysis", "img-001").Return(&datastore.Analysis{
		ID:      7,
		ImageID: "img-001",
		Detections: []datastore.Detection{
			{X1: 10, Y1: 10, X2: 60, Y2: 40, Confidence: 0.93, Label: 2, ClassName: "Difetto4"},
		},
	}, nil)
	mockDS.On("SaveCertificate", mock.AnythingOfType("*datastore.ComplianceCertificate")).Return(nil)
	mockDS.On("SaveAuditEvent", mock.Anything).Return(nil)

	ctx, rec := postJSON(e, "/api/v2/compliance/certificates",
		`{"analysis_id":"img-001","standard":"AWS D1.1","inspector_name":"J. Doe"}`)

	require.NoError(t, controller.GenerateCertificate(ctx))
	require.Equal(t, http.StatusCreated, rec.Code)

	var response CertificateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Regexp(t, `^CERT-[0-9a-f]{8}$`, response.CertificateID)
	assert.Equal(t, "FAIL", response.ComplianceStatus)
	assert.Equal(t, "J. Doe", response.InspectorName)
	mockDS.AssertExpectations(t)
}

func TestGenerateCertificateCleanWeld(t *testing.T) {
	controller, mockDS, e := setupTestController(t)

	mockDS.On("GetAnalysis", "img-002").Return(&datastore.Analysis{
		ID:      8,
		ImageID: "img-002",
		Detections: []datastore.Detection{
			{Confidence: 0.97, Label: 3, ClassName: "NoDifetto"},
		},
	}, nil)
	mockDS.On("SaveCertificate", mock.Anything).Return(nil)
	mockDS.On("SaveAuditEvent", mock.Anything).Return(nil)

	ctx, rec := postJSON(e, "/api/v2/compliance/certificates",
		`{"analysis_id":"img-002","inspector_name":"J. Doe"}`)

	require.NoError(t, controller.GenerateCertificate(ctx))
	require.Equal(t, http.StatusCreated, rec.Code)

	var response CertificateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "PASS", response.ComplianceStatus)
}

func TestGenerateCertificateAnalysisNotFound(t *testing.T) {
	controller, mockDS, e := setupTestController(t)

	mockDS.On("GetAnalysis", "missing").Return(nil, gorm.ErrRecordNotFound)

	ctx, rec := postJSON(e, "/api/v2/compliance/certificates",
		`{"analysis_id":"missing","inspector_name":"J. Doe"}`)

	require.NoError(t, controller.GenerateCertificate(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateCertificateMissingInspector(t *testing.T) {
	controller, _, e := setupTestController(t)

	ctx, rec := postJSON(e, "/api/v2/compliance/certificates",
		`{"analysis_id":"img-001"}`)

	require.NoError(t, controller.GenerateCertificate(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAuditTrail(t *testing.T) {
	controller, mockDS, e := setupTestController(t)

	mockDS.On("GetAuditTrail", "img-001").Return([]datastore.AuditEvent{
		{EventType: "detection", Actor: "system"},
		{EventType: "review", Actor: "insp-7"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/compliance/audit-trail/img-001", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("img-001")

	require.NoError(t, controller.GetAuditTrail(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		AnalysisID string                 `json:"analysis_id"`
		Events     []datastore.AuditEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "img-001", response.AnalysisID)
	assert.Len(t, response.Events, 2)
}
