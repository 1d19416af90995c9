// analytics.go: aggregation queries behind the analytics endpoints
package datastore

import (
	"fmt"
	"time"
)

// noDefectLabels are detection class names excluded from defect distributions.
var noDefectLabels = []string{"ND", "NoDifetto", "No Defect"}

// PeriodMetrics summarizes inspection quality over a time window.
type PeriodMetrics struct {
	StartDate        time.Time        `json:"start_date"`
	EndDate          time.Time        `json:"end_date"`
	TotalInspections int64            `json:"total_inspections"`
	DefectCount      int64            `json:"defect_count"`
	DefectRate       float64          `json:"defect_rate"`
	DefectTypes      map[string]int64 `json:"defect_types"`
	AvgConfidence    float64          `json:"avg_confidence"`
}

// TrendBucket is one time bucket of the defect trend series.
type TrendBucket struct {
	Date             time.Time `json:"date"`
	TotalInspections int64     `json:"total_inspections"`
	DefectCount      int64     `json:"defect_count"`
	DefectRate       float64   `json:"defect_rate"`
	AvgConfidence    float64   `json:"avg_confidence"`
}

// OperatorStats aggregates review activity per reviewer.
type OperatorStats struct {
	OperatorID   string  `json:"operator_id"`
	OperatorName string  `json:"operator_name"`
	TotalReviews int64   `json:"total_reviews"`
	Approved     int64   `json:"approved"`
	Rejected     int64   `json:"rejected"`
	ApprovalRate float64 `json:"approval_rate"`
}

// PeriodMetrics computes inspection totals, defect rate, per-type defect
// distribution and mean confidence for completed analyses in [start, end].
func (ds *DataStore) PeriodMetrics(start, end time.Time) (*PeriodMetrics, error) {
	var summary struct {
		Total         int64
		Defects       int64
		AvgConfidence float64
	}
	err := ds.DB.Model(&Analysis{}).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Where("status = ?", "completed").
		Select("COUNT(*) as total, " +
			"COALESCE(SUM(CASE WHEN has_defects THEN 1 ELSE 0 END), 0) as defects, " +
			"COALESCE(AVG(mean_confidence), 0) as avg_confidence").
		Scan(&summary).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating period metrics: %w", err)
	}

	metrics := &PeriodMetrics{
		StartDate:        start,
		EndDate:          end,
		TotalInspections: summary.Total,
		DefectCount:      summary.Defects,
		AvgConfidence:    summary.AvgConfidence,
		DefectTypes:      make(map[string]int64),
	}
	if summary.Total > 0 {
		metrics.DefectRate = float64(summary.Defects) / float64(summary.Total) * 100
	}

	var typeRows []struct {
		ClassName string
		Count     int64
	}
	err = ds.DB.Model(&Detection{}).
		Joins("JOIN analyses ON analyses.id = detections.analysis_id").
		Where("analyses.created_at >= ? AND analyses.created_at <= ?", start, end).
		Where("analyses.status = ?", "completed").
		Where("detections.class_name NOT IN ?", noDefectLabels).
		Select("detections.class_name, COUNT(*) as count").
		Group("detections.class_name").
		Scan(&typeRows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating defect distribution: %w", err)
	}
	for _, row := range typeRows {
		metrics.DefectTypes[row.ClassName] = row.Count
	}

	return metrics, nil
}

// Trends buckets completed analyses in [start, end] into fixed-size windows
// and computes per-bucket totals. Empty buckets are omitted.
func (ds *DataStore) Trends(start, end time.Time, bucket time.Duration) ([]TrendBucket, error) {
	if bucket <= 0 {
		bucket = 24 * time.Hour
	}

	var analyses []Analysis
	err := ds.DB.
		Select("created_at, has_defects, mean_confidence").
		Where("created_at >= ? AND created_at <= ?", start, end).
		Where("status = ?", "completed").
		Order("created_at ASC").
		Find(&analyses).Error
	if err != nil {
		return nil, fmt.Errorf("querying trend analyses: %w", err)
	}

	var trends []TrendBucket
	for current := start; !current.After(end); current = current.Add(bucket) {
		next := current.Add(bucket)

		var total, defects int64
		var confidenceSum float64
		for i := range analyses {
			ts := analyses[i].CreatedAt
			if ts.Before(current) || !ts.Before(next) {
				continue
			}
			total++
			confidenceSum += analyses[i].MeanConfidence
			if analyses[i].HasDefects {
				defects++
			}
		}
		if total == 0 {
			continue
		}

		trends = append(trends, TrendBucket{
			Date:             current,
			TotalInspections: total,
			DefectCount:      defects,
			DefectRate:       float64(defects) / float64(total) * 100,
			AvgConfidence:    confidenceSum / float64(total),
		})
	}
	return trends, nil
}

// OperatorStats aggregates review activity per reviewer in [start, end].
func (ds *DataStore) OperatorStats(start, end time.Time) ([]OperatorStats, error) {
	var rows []struct {
		ReviewerID   string
		ReviewerName string
		Total        int64
		Approved     int64
		Rejected     int64
	}
	err := ds.DB.Model(&Review{}).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Select("reviewer_id, reviewer_name, COUNT(*) as total, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as approved, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as rejected",
			ReviewApproved, ReviewRejected).
		Group("reviewer_id, reviewer_name").
		Order("total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating operator stats: %w", err)
	}

	stats := make([]OperatorStats, 0, len(rows))
	for _, row := range rows {
		s := OperatorStats{
			OperatorID:   row.ReviewerID,
			OperatorName: row.ReviewerName,
			TotalReviews: row.Total,
			Approved:     row.Approved,
			Rejected:     row.Rejected,
		}
		if row.Total > 0 {
			s.ApprovalRate = float64(row.Approved) / float64(row.Total) * 100
		}
		stats = append(stats, s)
	}
	return stats, nil
}
