package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/conf"
)

// newTestStore opens a SQLite store backed by a temp file.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleAnalysis(imageID string, hasDefects bool) *Analysis {
	return &Analysis{
		ImageID:         imageID,
		Filename:        "weld-042.png",
		ImageWidth:      640,
		ImageHeight:     480,
		ImageSizeBytes:  120_000,
		NumDetections:   1,
		HasDefects:      hasDefects,
		HighestSeverity: "high",
		MeanConfidence:  0.82,
		InferenceTimeMs: 74.5,
		ModelVersion:    "yolov8s-1.0.0",
		Status:          "completed",
	}
}

func TestSaveAndGetAnalysis(t *testing.T) {
	store := newTestStore(t)

	analysis := sampleAnalysis("img-001", true)
	detections := []Detection{
		{X1: 10, Y1: 20, X2: 110, Y2: 80, Confidence: 0.82, Label: 1, ClassName: "Difetto2", Severity: "high"},
	}
	require.NoError(t, store.SaveAnalysis(analysis, detections))
	assert.NotZero(t, analysis.ID)

	got, err := store.GetAnalysis("img-001")
	require.NoError(t, err)
	assert.Equal(t, "weld-042.png", got.Filename)
	require.Len(t, got.Detections, 1)
	assert.Equal(t, "Difetto2", got.Detections[0].ClassName)
	assert.Equal(t, analysis.ID, got.Detections[0].AnalysisID)
}

func TestGetAnalysisNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetAnalysis("missing")
	assert.Error(t, err)
}

func TestListAnalysesFilters(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveAnalysis(sampleAnalysis("img-001", true), nil))
	require.NoError(t, store.SaveAnalysis(sampleAnalysis("img-002", false), nil))
	failed := sampleAnalysis("img-003", false)
	failed.Status = "failed"
	require.NoError(t, store.SaveAnalysis(failed, nil))

	all, total, err := store.ListAnalyses(&AnalysisFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	completed, total, err := store.ListAnalyses(&AnalysisFilter{Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, completed, 2)

	defects := true
	withDefects, total, err := store.ListAnalyses(&AnalysisFilter{HasDefects: &defects})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, withDefects, 1)
	assert.Equal(t, "img-001", withDefects[0].ImageID)

	paged, total, err := store.ListAnalyses(&AnalysisFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, paged, 1)
}

func TestDeleteAnalysisCascades(t *testing.T) {
	store := newTestStore(t)

	analysis := sampleAnalysis("img-001", true)
	require.NoError(t, store.SaveAnalysis(analysis, []Detection{
		{X1: 1, Y1: 1, X2: 2, Y2: 2, Confidence: 0.9, Label: 2, ClassName: "Difetto4", Severity: "critical"},
	}))
	require.NoError(t, store.SaveExplanations(analysis.ID, []Explanation{
		{Method: "gradcam", ConfidenceScore: 0.88, HeatmapBase64: "aGVhdG1hcA=="},
	}))

	require.NoError(t, store.DeleteAnalysis("img-001"))

	_, err := store.GetAnalysis("img-001")
	assert.Error(t, err)

	var detCount, expCount int64
	require.NoError(t, store.DB.Model(&Detection{}).Count(&detCount).Error)
	require.NoError(t, store.DB.Model(&Explanation{}).Count(&expCount).Error)
	assert.Zero(t, detCount)
	assert.Zero(t, expCount)
}

func TestDeleteAnalysisNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.DeleteAnalysis("missing")
	assert.Error(t, err)
}

func TestUpdateAnalysisStatus(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveAnalysis(sampleAnalysis("img-001", false), nil))
	require.NoError(t, store.UpdateAnalysisStatus("img-001", "failed"))

	got, err := store.GetAnalysis("img-001")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)

	assert.Error(t, store.UpdateAnalysisStatus("missing", "failed"))
}

func TestReviewFlow(t *testing.T) {
	store := newTestStore(t)

	analysis := sampleAnalysis("img-001", true)
	require.NoError(t, store.SaveAnalysis(analysis, nil))

	queue, err := store.ReviewQueue(10)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "img-001", queue[0].ImageID)

	review := &Review{
		AnalysisID:   analysis.ID,
		ReviewerID:   "insp-7",
		ReviewerName: "Inspector Seven",
		Status:       ReviewApproved,
		Comments:     "agree with the model",
	}
	require.NoError(t, store.SaveReview(review))

	// reviewed analyses leave the queue
	queue, err = store.ReviewQueue(10)
	require.NoError(t, err)
	assert.Empty(t, queue)

	require.NoError(t, store.SaveAnnotations(review.ID, []ReviewAnnotation{
		{X: 5, Y: 5, Width: 20, Height: 10, Note: "check this edge", AnnotationType: "highlight"},
	}))

	got, err := store.GetReview(review.ID)
	require.NoError(t, err)
	require.Len(t, got.Annotations, 1)
	assert.Equal(t, "highlight", got.Annotations[0].AnnotationType)

	reviews, err := store.GetReviewsForAnalysis("img-001")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, ReviewApproved, reviews[0].Status)
}

func TestSaveAnnotationsMissingReview(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveAnnotations(999, []ReviewAnnotation{{Note: "x"}})
	assert.Error(t, err)
}

func TestReviewStats(t *testing.T) {
	store := newTestStore(t)

	analysis := sampleAnalysis("img-001", true)
	require.NoError(t, store.SaveAnalysis(analysis, nil))

	for _, status := range []string{ReviewApproved, ReviewApproved, ReviewRejected, ReviewNeedsSecondOpinion} {
		require.NoError(t, store.SaveReview(&Review{
			AnalysisID: analysis.ID,
			ReviewerID: "insp-7",
			Status:     status,
		}))
	}

	stats, err := store.ReviewStats("")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalReviews)
	assert.Equal(t, int64(2), stats.Approved)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(1), stats.SecondOpinions)
	assert.InDelta(t, 50.0, stats.ApprovalRate, 1e-9)

	none, err := store.ReviewStats("someone-else")
	require.NoError(t, err)
	assert.Zero(t, none.TotalReviews)
}

func TestAuditTrail(t *testing.T) {
	store := newTestStore(t)

	analysis := sampleAnalysis("img-001", true)
	require.NoError(t, store.SaveAnalysis(analysis, nil))

	require.NoError(t, store.SaveAuditEvent(&AuditEvent{
		AnalysisID: analysis.ID, EventType: "detection", Actor: "system", Details: "1 defect found",
	}))
	require.NoError(t, store.SaveAuditEvent(&AuditEvent{
		AnalysisID: analysis.ID, EventType: "review", Actor: "insp-7",
	}))

	trail, err := store.GetAuditTrail("img-001")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "detection", trail[0].EventType)
	assert.Equal(t, "review", trail[1].EventType)
}

func TestSaveCertificate(t *testing.T) {
	store := newTestStore(t)

	analysis := sampleAnalysis("img-001", false)
	require.NoError(t, store.SaveAnalysis(analysis, nil))

	cert := &ComplianceCertificate{
		CertificateID:    "CERT-0001",
		AnalysisID:       analysis.ID,
		Standard:         "AWS D1.1",
		ComplianceStatus: "PASS",
		InspectorName:    "Inspector Seven",
		IssueDate:        time.Now(),
	}
	require.NoError(t, store.SaveCertificate(cert))

	// certificate ids are unique
	dup := *cert
	dup.ID = 0
	assert.Error(t, store.SaveCertificate(&dup))
}

func TestPeriodMetrics(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	a1 := sampleAnalysis("img-001", true)
	a1.MeanConfidence = 0.9
	require.NoError(t, store.SaveAnalysis(a1, []Detection{
		{X1: 1, Y1: 1, X2: 2, Y2: 2, Confidence: 0.9, Label: 2, ClassName: "Difetto4", Severity: "critical"},
	}))
	a2 := sampleAnalysis("img-002", false)
	a2.MeanConfidence = 0.7
	require.NoError(t, store.SaveAnalysis(a2, []Detection{
		{X1: 1, Y1: 1, X2: 2, Y2: 2, Confidence: 0.95, Label: 3, ClassName: "NoDifetto", Severity: "none"},
	}))

	metrics, err := store.PeriodMetrics(now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), metrics.TotalInspections)
	assert.Equal(t, int64(1), metrics.DefectCount)
	assert.InDelta(t, 50.0, metrics.DefectRate, 1e-9)
	assert.InDelta(t, 0.8, metrics.AvgConfidence, 1e-9)

	// the clean weld label does not count towards the distribution
	assert.Equal(t, int64(1), metrics.DefectTypes["Difetto4"])
	_, hasND := metrics.DefectTypes["NoDifetto"]
	assert.False(t, hasND)
}

func TestPeriodMetricsEmpty(t *testing.T) {
	store := newTestStore(t)

	metrics, err := store.PeriodMetrics(time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Zero(t, metrics.TotalInspections)
	assert.Zero(t, metrics.DefectRate)
}

func TestTrendsBucketsByDay(t *testing.T) {
	store := newTestStore(t)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	dayOne := sampleAnalysis("img-001", true)
	dayOne.CreatedAt = start.Add(2 * time.Hour)
	require.NoError(t, store.SaveAnalysis(dayOne, nil))

	dayThree := sampleAnalysis("img-002", false)
	dayThree.CreatedAt = start.Add(50 * time.Hour)
	require.NoError(t, store.SaveAnalysis(dayThree, nil))

	trends, err := store.Trends(start, start.Add(72*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, int64(1), trends[0].TotalInspections)
	assert.InDelta(t, 100.0, trends[0].DefectRate, 1e-9)
	assert.InDelta(t, 0.0, trends[1].DefectRate, 1e-9)
}

func TestOperatorStats(t *testing.T) {
	store := newTestStore(t)

	analysis := sampleAnalysis("img-001", true)
	require.NoError(t, store.SaveAnalysis(analysis, nil))

	for _, r := range []struct {
		id, name, status string
	}{
		{"insp-1", "One", ReviewApproved},
		{"insp-1", "One", ReviewApproved},
		{"insp-1", "One", ReviewRejected},
		{"insp-2", "Two", ReviewApproved},
	} {
		require.NoError(t, store.SaveReview(&Review{
			AnalysisID: analysis.ID, ReviewerID: r.id, ReviewerName: r.name, Status: r.status,
		}))
	}

	stats, err := store.OperatorStats(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "insp-1", stats[0].OperatorID)
	assert.Equal(t, int64(3), stats[0].TotalReviews)
	assert.InDelta(t, 66.666, stats[0].ApprovalRate, 0.01)
	assert.Equal(t, "insp-2", stats[1].OperatorID)
}

func TestNewSelectsBackend(t *testing.T) {
	sqliteSettings := &conf.Settings{}
	sqliteSettings.Output.SQLite.Enabled = true
	assert.IsType(t, &SQLiteStore{}, New(sqliteSettings))

	mysqlSettings := &conf.Settings{}
	mysqlSettings.Output.MySQL.Enabled = true
	assert.IsType(t, &MySQLStore{}, New(mysqlSettings))

	assert.Nil(t, New(&conf.Settings{}))
}
