// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/conf"
)

// Interface abstracts the underlying database implementation and defines the
// operations available to the API layer.
type Interface interface {
	Open() error
	Close() error
	SetMetrics(m *Metrics)

	// analyses
	SaveAnalysis(analysis *Analysis, detections []Detection) error
	GetAnalysis(imageID string) (*Analysis, error)
	DeleteAnalysis(imageID string) error
	ListAnalyses(filter *AnalysisFilter) ([]Analysis, int64, error)
	UpdateAnalysisStatus(imageID, status string) error

	// explanations
	SaveExplanations(analysisID uint, explanations []Explanation) error

	// reviews
	ReviewQueue(limit int) ([]Analysis, error)
	SaveReview(review *Review) error
	GetReview(id uint) (*Review, error)
	GetReviewsForAnalysis(imageID string) ([]Review, error)
	SaveAnnotations(reviewID uint, annotations []ReviewAnnotation) error
	ReviewStats(reviewerID string) (*ReviewStats, error)

	// compliance & audit
	SaveCertificate(cert *ComplianceCertificate) error
	GetAuditTrail(imageID string) ([]AuditEvent, error)
	SaveAuditEvent(event *AuditEvent) error

	// analytics
	PeriodMetrics(start, end time.Time) (*PeriodMetrics, error)
	Trends(start, end time.Time, bucket time.Duration) ([]TrendBucket, error)
	OperatorStats(start, end time.Time) ([]OperatorStats, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance

	metrics *Metrics
}

// New creates a datastore instance based on the enabled output backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// AnalysisFilter narrows and pages analysis history queries.
type AnalysisFilter struct {
	Status     string // filter by processing status, empty for any
	HasDefects *bool  // filter by defect presence, nil for any
	Limit      int
	Offset     int
}

// ReviewStats summarizes review activity, optionally per reviewer.
type ReviewStats struct {
	TotalReviews   int64   `json:"total_reviews"`
	Approved       int64   `json:"approved"`
	Rejected       int64   `json:"rejected"`
	SecondOpinions int64   `json:"second_opinions"`
	ApprovalRate   float64 `json:"approval_rate"`
}

// createGormLogger returns a GORM logger that only reports problems.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// performAutoMigration runs GORM auto-migration for all models.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Analysis{},
		&Detection{},
		&Explanation{},
		&Review{},
		&ReviewAnnotation{},
		&ComplianceCertificate{},
		&AuditEvent{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}
	return nil
}

// SaveAnalysis stores an analysis and its detections as a single transaction.
func (ds *DataStore) SaveAnalysis(analysis *Analysis, detections []Detection) (err error) {
	start := time.Now()
	defer func() { ds.observe("save_analysis", start, err) }()

	tx := ds.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(analysis).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("saving analysis: %w", err)
	}

	for i := range detections {
		detections[i].AnalysisID = analysis.ID
		if err := tx.Create(&detections[i]).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("saving detection: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetAnalysis retrieves an analysis by its image ID with all relations loaded.
func (ds *DataStore) GetAnalysis(imageID string) (*Analysis, error) {
	start := time.Now()

	var analysis Analysis
	err := ds.DB.
		Preload("Detections").
		Preload("Explanations").
		Preload("Reviews").
		Preload("Reviews.Annotations").
		Where("image_id = ?", imageID).
		First(&analysis).Error
	ds.observe("get_analysis", start, err)
	if err != nil {
		return nil, fmt.Errorf("getting analysis %s: %w", imageID, err)
	}
	return &analysis, nil
}

// DeleteAnalysis removes an analysis and, through cascade constraints, its
// detections, explanations, reviews and audit events.
func (ds *DataStore) DeleteAnalysis(imageID string) error {
	result := ds.DB.Where("image_id = ?", imageID).Delete(&Analysis{})
	if result.Error != nil {
		return fmt.Errorf("deleting analysis %s: %w", imageID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListAnalyses returns a page of analysis history plus the unpaged total.
func (ds *DataStore) ListAnalyses(filter *AnalysisFilter) ([]Analysis, int64, error) {
	start := time.Now()

	query := ds.DB.Model(&Analysis{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.HasDefects != nil {
		query = query.Where("has_defects = ?", *filter.HasDefects)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting analyses: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var analyses []Analysis
	err := query.
		Preload("Detections").
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&analyses).Error
	ds.observe("list_analyses", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("listing analyses: %w", err)
	}
	return analyses, total, nil
}

// UpdateAnalysisStatus sets the processing status of an analysis.
func (ds *DataStore) UpdateAnalysisStatus(imageID, status string) error {
	result := ds.DB.Model(&Analysis{}).Where("image_id = ?", imageID).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("updating analysis status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SaveExplanations stores the heatmaps generated for an analysis.
func (ds *DataStore) SaveExplanations(analysisID uint, explanations []Explanation) error {
	if len(explanations) == 0 {
		return nil
	}
	for i := range explanations {
		explanations[i].AnalysisID = analysisID
	}
	if err := ds.DB.Create(&explanations).Error; err != nil {
		return fmt.Errorf("saving explanations: %w", err)
	}
	return nil
}

// ReviewQueue returns completed analyses that have no review yet, newest first.
func (ds *DataStore) ReviewQueue(limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	var analyses []Analysis
	err := ds.DB.
		Preload("Detections").
		Where("status = ?", "completed").
		Where("id NOT IN (?)", ds.DB.Model(&Review{}).Select("analysis_id")).
		Order("created_at DESC").
		Limit(limit).
		Find(&analyses).Error
	if err != nil {
		return nil, fmt.Errorf("getting review queue: %w", err)
	}
	return analyses, nil
}

// SaveReview stores a review.
func (ds *DataStore) SaveReview(review *Review) error {
	if err := ds.DB.Create(review).Error; err != nil {
		return fmt.Errorf("saving review: %w", err)
	}
	return nil
}

// GetReview retrieves a review by its ID with annotations loaded.
func (ds *DataStore) GetReview(id uint) (*Review, error) {
	var review Review
	if err := ds.DB.Preload("Annotations").First(&review, id).Error; err != nil {
		return nil, fmt.Errorf("getting review %d: %w", id, err)
	}
	return &review, nil
}

// GetReviewsForAnalysis returns all reviews for an analysis, newest first.
func (ds *DataStore) GetReviewsForAnalysis(imageID string) ([]Review, error) {
	var analysis Analysis
	if err := ds.DB.Select("id").Where("image_id = ?", imageID).First(&analysis).Error; err != nil {
		return nil, fmt.Errorf("getting analysis %s: %w", imageID, err)
	}

	var reviews []Review
	err := ds.DB.
		Preload("Annotations").
		Where("analysis_id = ?", analysis.ID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("getting reviews for analysis %s: %w", imageID, err)
	}
	return reviews, nil
}

// SaveAnnotations attaches annotations to an existing review.
func (ds *DataStore) SaveAnnotations(reviewID uint, annotations []ReviewAnnotation) error {
	if len(annotations) == 0 {
		return nil
	}

	var review Review
	if err := ds.DB.Select("id").First(&review, reviewID).Error; err != nil {
		return fmt.Errorf("getting review %d: %w", reviewID, err)
	}

	for i := range annotations {
		annotations[i].ReviewID = reviewID
	}
	if err := ds.DB.Create(&annotations).Error; err != nil {
		return fmt.Errorf("saving annotations: %w", err)
	}
	return nil
}

// ReviewStats aggregates review counts, scoped to one reviewer when given.
func (ds *DataStore) ReviewStats(reviewerID string) (*ReviewStats, error) {
	query := ds.DB.Model(&Review{})
	if reviewerID != "" {
		query = query.Where("reviewer_id = ?", reviewerID)
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := query.Select("status, COUNT(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregating review stats: %w", err)
	}

	stats := &ReviewStats{}
	for _, row := range rows {
		stats.TotalReviews += row.Count
		switch row.Status {
		case ReviewApproved:
			stats.Approved = row.Count
		case ReviewRejected:
			stats.Rejected = row.Count
		case ReviewNeedsSecondOpinion:
			stats.SecondOpinions = row.Count
		}
	}
	if stats.TotalReviews > 0 {
		stats.ApprovalRate = float64(stats.Approved) / float64(stats.TotalReviews) * 100
	}
	return stats, nil
}

// SaveCertificate stores a compliance certificate.
func (ds *DataStore) SaveCertificate(cert *ComplianceCertificate) error {
	if err := ds.DB.Create(cert).Error; err != nil {
		return fmt.Errorf("saving certificate: %w", err)
	}
	return nil
}

// SaveAuditEvent appends an audit trail entry.
func (ds *DataStore) SaveAuditEvent(event *AuditEvent) error {
	if err := ds.DB.Create(event).Error; err != nil {
		return fmt.Errorf("saving audit event: %w", err)
	}
	return nil
}

// GetAuditTrail returns the audit trail of an analysis in insertion order.
func (ds *DataStore) GetAuditTrail(imageID string) ([]AuditEvent, error) {
	var analysis Analysis
	if err := ds.DB.Select("id").Where("image_id = ?", imageID).First(&analysis).Error; err != nil {
		return nil, fmt.Errorf("getting analysis %s: %w", imageID, err)
	}

	var events []AuditEvent
	err := ds.DB.
		Where("analysis_id = ?", analysis.ID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("getting audit trail for analysis %s: %w", imageID, err)
	}
	return events, nil
}
