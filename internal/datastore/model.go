// model.go contains the database schema for radiograph analyses and the
// review, compliance and audit records attached to them.
package datastore

import (
	"time"
)

// Analysis is the main record, one per uploaded radiograph.
type Analysis struct {
	ID      uint   `gorm:"primaryKey"`
	ImageID string `gorm:"uniqueIndex;size:36;not null"` // uuid assigned at upload

	Filename  string    `gorm:"not null"`
	Checksum  string    `gorm:"index;size:64"` // sha-256 of the upload
	CreatedAt time.Time `gorm:"index"`

	// Image metadata
	ImageWidth     int
	ImageHeight    int
	ImageSizeBytes int64

	// Result summary
	NumDetections   int
	HasDefects      bool `gorm:"index"`
	HighestSeverity string
	MeanConfidence  float64

	// Processing info
	InferenceTimeMs float64
	ModelVersion    string
	Status          string `gorm:"index;default:completed"` // completed, failed, processing

	Detections   []Detection   `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
	Explanations []Explanation `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
	Reviews      []Review      `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
	AuditEvents  []AuditEvent  `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
}

// Detection is a single bounding box returned by the model.
type Detection struct {
	ID         uint `gorm:"primaryKey"`
	AnalysisID uint `gorm:"index;not null"`

	X1 float64 `gorm:"not null"`
	Y1 float64 `gorm:"not null"`
	X2 float64 `gorm:"not null"`
	Y2 float64 `gorm:"not null"`

	Confidence float64 `gorm:"not null"`
	Label      int     `gorm:"not null"` // model class index
	ClassName  string  `gorm:"not null"`
	Severity   string
}

// Explanation is one XAI heatmap attached to an analysis. The heatmap bytes
// come from the inference sidecar and are stored base64 encoded.
type Explanation struct {
	ID         uint `gorm:"primaryKey"`
	AnalysisID uint `gorm:"index;not null"`

	Method          string `gorm:"not null"` // gradcam, lime, shap, integrated_gradients
	ConfidenceScore float64
	HeatmapBase64   string `gorm:"type:text"`

	CreatedAt time.Time
}

// Review statuses accepted on submission.
const (
	ReviewApproved           = "approved"
	ReviewRejected           = "rejected"
	ReviewNeedsSecondOpinion = "needs_second_opinion"
)

// Review is an inspector's verdict on an analysis.
type Review struct {
	ID         uint `gorm:"primaryKey"`
	AnalysisID uint `gorm:"index;not null"`

	ReviewerID   string `gorm:"index"`
	ReviewerName string
	Status       string `gorm:"not null"` // approved, rejected, needs_second_opinion
	Comments     string
	Notes        string

	CreatedAt time.Time

	Annotations []ReviewAnnotation `gorm:"foreignKey:ReviewID;constraint:OnDelete:CASCADE"`
}

// ReviewAnnotation marks a region of the radiograph during review.
type ReviewAnnotation struct {
	ID       uint `gorm:"primaryKey"`
	ReviewID uint `gorm:"index;not null"`

	X      float64
	Y      float64
	Width  float64
	Height float64

	Note           string
	AnnotationType string // correction, highlight, question

	CreatedAt time.Time
}

// ComplianceCertificate documents a compliance verdict for an analysis.
type ComplianceCertificate struct {
	ID            uint   `gorm:"primaryKey"`
	CertificateID string `gorm:"uniqueIndex;size:64;not null"`
	AnalysisID    uint   `gorm:"index;not null"`

	Standard           string `gorm:"not null"`
	ComplianceStatus   string `gorm:"not null"`
	InspectorName      string
	InspectorSignature string
	IssueDate          time.Time
	ExpiryDate         *time.Time
	Notes              string
}

// AuditEvent is an append-only audit trail entry for an analysis.
type AuditEvent struct {
	ID         uint `gorm:"primaryKey"`
	AnalysisID uint `gorm:"index;not null"`

	EventType string `gorm:"not null"` // detection, review, certificate, export
	Actor     string
	Details   string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"index"`
}
