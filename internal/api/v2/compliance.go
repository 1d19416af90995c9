// compliance.go: welding standard checks, certificates and audit trails
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/compliance"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/defect"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
)

// initComplianceRoutes registers compliance-related routes
func (c *Controller) initComplianceRoutes() {
	c.Group.POST("/compliance/check", c.CheckCompliance)
	c.Group.POST("/compliance/check-multi", c.CheckMultiStandard)
	c.Group.GET("/compliance/standards", c.ListStandards)
	c.Group.GET("/compliance/criteria/:defectType", c.GetAcceptanceCriteria)
	c.Group.POST("/compliance/certificates", c.GenerateCertificate)
	c.Group.GET("/compliance/audit-trail/:id", c.GetAuditTrail)
}

// ComplianceCheckRequest is the body of a single-standard compliance check.
type ComplianceCheckRequest struct {
	DefectType        string             `json:"defect_type"`
	Confidence        float64            `json:"confidence"`
	Region            *compliance.Region `json:"region_data,omitempty"`
	MaterialThickness float64            `json:"material_thickness,omitempty"`
	Standard          string             `json:"standard,omitempty"`
}

// resolveStandard parses a requested standard, falling back to the configured
// default when none is given.
func (c *Controller) resolveStandard(code string) (compliance.Standard, error) {
	if code == "" {
		code = c.Settings.Compliance.DefaultStandard
	}
	standard, ok := compliance.ParseStandard(code)
	if !ok {
		return "", fmt.Errorf("unknown welding standard: %s", code)
	}
	return standard, nil
}

// CheckCompliance handles POST /api/v2/compliance/check
func (c *Controller) CheckCompliance(ctx echo.Context) error {
	var req ComplianceCheckRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.DefectType == "" {
		return c.HandleError(ctx, nil, "defect_type is required", http.StatusBadRequest)
	}

	standard, err := c.resolveStandard(req.Standard)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid standard", http.StatusBadRequest)
	}

	classifier := compliance.NewClassifier(standard)
	result := classifier.Classify(req.DefectType, req.Confidence, req.Region, req.MaterialThickness)
	return ctx.JSON(http.StatusOK, result)
}

// MultiCheckRequest is the body of a multi-standard compliance check.
type MultiCheckRequest struct {
	DefectType string             `json:"defect_type"`
	Confidence float64            `json:"confidence"`
	Region     *compliance.Region `json:"region_data,omitempty"`
	Standards  []string           `json:"standards,omitempty"`
}

// CheckMultiStandard handles POST /api/v2/compliance/check-multi
func (c *Controller) CheckMultiStandard(ctx echo.Context) error {
	var req MultiCheckRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.DefectType == "" {
		return c.HandleError(ctx, nil, "defect_type is required", http.StatusBadRequest)
	}

	standards := make([]compliance.Standard, 0, len(req.Standards))
	for _, code := range req.Standards {
		standard, ok := compliance.ParseStandard(code)
		if !ok {
			return c.HandleError(ctx, nil,
				fmt.Sprintf("Unknown welding standard: %s", code), http.StatusBadRequest)
		}
		standards = append(standards, standard)
	}

	result := c.Checker.CheckMulti(req.DefectType, req.Confidence, req.Region, standards)
	return ctx.JSON(http.StatusOK, result)
}

// ListStandards handles GET /api/v2/compliance/standards
func (c *Controller) ListStandards(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"standards": compliance.Standards(),
	})
}

// GetAcceptanceCriteria handles GET /api/v2/compliance/criteria/:defectType
func (c *Controller) GetAcceptanceCriteria(ctx echo.Context) error {
	standard, err := c.resolveStandard(ctx.QueryParam("standard"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid standard", http.StatusBadRequest)
	}

	classifier := compliance.NewClassifier(standard)
	criteria, err := classifier.AcceptanceCriteria(ctx.Param("defectType"))
	if err != nil {
		return c.HandleError(ctx, err, "Unknown defect type", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, criteria)
}

// CertificateRequest is the body of a certificate generation request.
type CertificateRequest struct {
	AnalysisID         string `json:"analysis_id"`
	Standard           string `json:"standard"`
	InspectorName      string `json:"inspector_name"`
	InspectorSignature string `json:"inspector_signature,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// CertificateResponse is a generated compliance certificate.
type CertificateResponse struct {
	CertificateID      string     `json:"certificate_id"`
	AnalysisID         string     `json:"analysis_id"`
	Standard           string     `json:"standard"`
	ComplianceStatus   string     `json:"compliance_status"`
	InspectorName      string     `json:"inspector_name"`
	InspectorSignature string     `json:"inspector_signature,omitempty"`
	IssueDate          time.Time  `json:"issue_date"`
	ExpiryDate         *time.Time `json:"expiry_date,omitempty"`
	Notes              string     `json:"notes,omitempty"`
}

// GenerateCertificate handles POST /api/v2/compliance/certificates
func (c *Controller) GenerateCertificate(ctx echo.Context) error {
	var req CertificateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.AnalysisID == "" {
		return c.HandleError(ctx, nil, "analysis_id is required", http.StatusBadRequest)
	}
	if req.InspectorName == "" {
		return c.HandleError(ctx, nil, "inspector_name is required", http.StatusBadRequest)
	}

	standard, err := c.resolveStandard(req.Standard)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid standard", http.StatusBadRequest)
	}

	analysis, err := c.DS.GetAnalysis(req.AnalysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Analysis not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get analysis", http.StatusInternalServerError)
	}

	// certify against the worst defect found in the analysis
	status := compliance.StatusPass
	classifier := compliance.NewClassifier(standard)
	for i := range analysis.Detections {
		d := &analysis.Detections[i]
		if defect.IsNoDefect(d.Label) {
			continue
		}
		result := classifier.Classify(defect.ClassByID(d.Label).Code, d.Confidence, &compliance.Region{
			X: d.X1, Y: d.Y1,
			Width:  d.X2 - d.X1,
			Height: d.Y2 - d.Y1,
			Area:   (d.X2 - d.X1) * (d.Y2 - d.Y1),
		}, 0)
		if result.ComplianceStatus == compliance.StatusFail {
			status = compliance.StatusFail
			break
		}
		if result.ComplianceStatus == compliance.StatusReviewRequired {
			status = compliance.StatusReviewRequired
		}
	}

	cert := &datastore.ComplianceCertificate{
		CertificateID:      fmt.Sprintf("CERT-%s", uuid.New().String()[:8]),
		AnalysisID:         analysis.ID,
		Standard:           string(standard),
		ComplianceStatus:   string(status),
		InspectorName:      req.InspectorName,
		InspectorSignature: req.InspectorSignature,
		IssueDate:          time.Now(),
		Notes:              req.Notes,
	}
	if err := c.DS.SaveCertificate(cert); err != nil {
		return c.HandleError(ctx, err, "Failed to save certificate", http.StatusInternalServerError)
	}

	c.recordAuditEvent(ctx, analysis.ID, "certificate", req.InspectorName, map[string]any{
		"certificate_id": cert.CertificateID,
		"standard":       cert.Standard,
		"status":         cert.ComplianceStatus,
	})

	return ctx.JSON(http.StatusCreated, CertificateResponse{
		CertificateID:      cert.CertificateID,
		AnalysisID:         req.AnalysisID,
		Standard:           cert.Standard,
		ComplianceStatus:   cert.ComplianceStatus,
		InspectorName:      cert.InspectorName,
		InspectorSignature: cert.InspectorSignature,
		IssueDate:          cert.IssueDate,
		ExpiryDate:         cert.ExpiryDate,
		Notes:              cert.Notes,
	})
}

// GetAuditTrail handles GET /api/v2/compliance/audit-trail/:id
func (c *Controller) GetAuditTrail(ctx echo.Context) error {
	imageID := ctx.Param("id")

	events, err := c.DS.GetAuditTrail(imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Analysis not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get audit trail", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"analysis_id": imageID,
		"events":      events,
	})
}
