package api

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
)

// MockDataStore implements datastore.Interface for testing
type MockDataStore struct {
	mock.Mock
}

func (m *MockDataStore) Open() error  { return m.Called().Error(0) }
func (m *MockDataStore) Close() error { return m.Called().Error(0) }

func (m *MockDataStore) SetMetrics(dm *datastore.Metrics) {}

func (m *MockDataStore) SaveAnalysis(analysis *datastore.Analysis, detections []datastore.Detection) error {
	return m.Called(analysis, detections).Error(0)
}

func (m *MockDataStore) GetAnalysis(imageID string) (*datastore.Analysis, error) {
	args := m.Called(imageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*datastore.Analysis), args.Error(1)
}

func (m *MockDataStore) DeleteAnalysis(imageID string) error {
	return m.Called(imageID).Error(0)
}

func (m *MockDataStore) ListAnalyses(filter *datastore.AnalysisFilter) ([]datastore.Analysis, int64, error) {
	args := m.Called(filter)
	var analyses []datastore.Analysis
	if args.Get(0) != nil {
		analyses = args.Get(0).([]datastore.Analysis)
	}
	return analyses, args.Get(1).(int64), args.Error(2)
}

func (m *MockDataStore) UpdateAnalysisStatus(imageID, status string) error {
	return m.Called(imageID, status).Error(0)
}

func (m *MockDataStore) SaveExplanations(analysisID uint, explanations []datastore.Explanation) error {
	return m.Called(analysisID, explanations).Error(0)
}

func (m *MockDataStore) ReviewQueue(limit int) ([]datastore.Analysis, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.Analysis), args.Error(1)
}

func (m *MockDataStore) SaveReview(review *datastore.Review) error {
	return m.Called(review).Error(0)
}

func (m *MockDataStore) GetReview(id uint) (*datastore.Review, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*datastore.Review), args.Error(1)
}

func (m *MockDataStore) GetReviewsForAnalysis(imageID string) ([]datastore.Review, error) {
	args := m.Called(imageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.Review), args.Error(1)
}

func (m *MockDataStore) SaveAnnotations(reviewID uint, annotations []datastore.ReviewAnnotation) error {
	return m.Called(reviewID, annotations).Error(0)
}

func (m *MockDataStore) ReviewStats(reviewerID string) (*datastore.ReviewStats, error) {
	args := m.Called(reviewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*datastore.ReviewStats), args.Error(1)
}

func (m *MockDataStore) SaveCertificate(cert *datastore.ComplianceCertificate) error {
	return m.Called(cert).Error(0)
}

func (m *MockDataStore) GetAuditTrail(imageID string) ([]datastore.AuditEvent, error) {
	args := m.Called(imageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.AuditEvent), args.Error(1)
}

func (m *MockDataStore) SaveAuditEvent(event *datastore.AuditEvent) error {
	return m.Called(event).Error(0)
}

func (m *MockDataStore) PeriodMetrics(start, end time.Time) (*datastore.PeriodMetrics, error) {
	args := m.Called(start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*datastore.PeriodMetrics), args.Error(1)
}

func (m *MockDataStore) Trends(start, end time.Time, bucket time.Duration) ([]datastore.TrendBucket, error) {
	args := m.Called(start, end, bucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.TrendBucket), args.Error(1)
}

func (m *MockDataStore) OperatorStats(start, end time.Time) ([]datastore.OperatorStats, error) {
	args := m.Called(start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.OperatorStats), args.Error(1)
}
