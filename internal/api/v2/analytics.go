// analytics.go: historical defect trends and quality comparisons
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
)

// initAnalyticsRoutes registers analytics-related routes
func (c *Controller) initAnalyticsRoutes() {
	c.Group.GET("/analytics/trends", c.GetTrends)
	c.Group.GET("/analytics/compare", c.ComparePeriods)
	c.Group.GET("/analytics/operators", c.GetOperatorPerformance)
}

// trendBuckets maps the group_by parameter to a bucket duration.
var trendBuckets = map[string]time.Duration{
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// TrendsResponse is the defect trend series over a date range.
type TrendsResponse struct {
	StartDate              time.Time               `json:"start_date"`
	EndDate                time.Time               `json:"end_date"`
	TotalInspections       int64                   `json:"total_inspections"`
	DefectRate             float64                 `json:"defect_rate"`
	Trends                 []datastore.TrendBucket `json:"trends"`
	DefectTypeDistribution map[string]int64        `json:"defect_type_distribution"`
	GroupBy                string                  `json:"group_by"`
}

// parseDateRange reads start_date/end_date query params, defaulting to the
// last 30 days.
func parseDateRange(ctx echo.Context, startParam, endParam string) (start, end time.Time, err error) {
	end = time.Now()
	start = end.AddDate(0, 0, -30)

	if v := ctx.QueryParam(startParam); v != "" {
		start, err = time.Parse("2006-01-02", v)
		if err != nil {
			return start, end, fmt.Errorf("invalid %s: %w", startParam, err)
		}
	}
	if v := ctx.QueryParam(endParam); v != "" {
		end, err = time.Parse("2006-01-02", v)
		if err != nil {
			return start, end, fmt.Errorf("invalid %s: %w", endParam, err)
		}
		// make the end date inclusive
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}

// GetTrends handles GET /api/v2/analytics/trends
func (c *Controller) GetTrends(ctx echo.Context) error {
	start, end, err := parseDateRange(ctx, "start_date", "end_date")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid date range", http.StatusBadRequest)
	}

	groupBy := ctx.QueryParam("group_by")
	if groupBy == "" {
		groupBy = "day"
	}
	bucket, ok := trendBuckets[groupBy]
	if !ok {
		return c.HandleError(ctx, nil, "Invalid group_by, expected day, week or month", http.StatusBadRequest)
	}

	metrics, err := c.DS.PeriodMetrics(start, end)
	if err != nil {
		return c.HandleError(ctx, err, "Trend analysis failed", http.StatusInternalServerError)
	}
	trends, err := c.DS.Trends(start, end, bucket)
	if err != nil {
		return c.HandleError(ctx, err, "Trend analysis failed", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, TrendsResponse{
		StartDate:              start,
		EndDate:                end,
		TotalInspections:       metrics.TotalInspections,
		DefectRate:             metrics.DefectRate,
		Trends:                 trends,
		DefectTypeDistribution: metrics.DefectTypes,
		GroupBy:                groupBy,
	})
}

// CompareResponse is the outcome of comparing two time periods.
type CompareResponse struct {
	Period1                   *datastore.PeriodMetrics `json:"period1"`
	Period2                   *datastore.PeriodMetrics `json:"period2"`
	DefectRateChange          float64                  `json:"defect_rate_change"`
	QualityImprovementPercent float64                  `json:"quality_improvement_percent"`
	SignificantChanges        []string                 `json:"significant_changes"`
}

// ComparePeriods handles GET /api/v2/analytics/compare
func (c *Controller) ComparePeriods(ctx echo.Context) error {
	parse := func(param string) (time.Time, error) {
		v := ctx.QueryParam(param)
		if v == "" {
			return time.Time{}, fmt.Errorf("missing required parameter %s", param)
		}
		return time.Parse("2006-01-02", v)
	}

	p1Start, err := parse("period1_start")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid period parameters", http.StatusBadRequest)
	}
	p1End, err := parse("period1_end")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid period parameters", http.StatusBadRequest)
	}
	p2Start, err := parse("period2_start")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid period parameters", http.StatusBadRequest)
	}
	p2End, err := parse("period2_end")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid period parameters", http.StatusBadRequest)
	}

	period1, err := c.DS.PeriodMetrics(p1Start, p1End.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		return c.HandleError(ctx, err, "Comparison failed", http.StatusInternalServerError)
	}
	period2, err := c.DS.PeriodMetrics(p2Start, p2End.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		return c.HandleError(ctx, err, "Comparison failed", http.StatusInternalServerError)
	}

	rateChange := period2.DefectRate - period1.DefectRate

	return ctx.JSON(http.StatusOK, CompareResponse{
		Period1:                   period1,
		Period2:                   period2,
		DefectRateChange:          rateChange,
		QualityImprovementPercent: -rateChange,
		SignificantChanges:        significantChanges(period1, period2),
	})
}

// significantChanges describes notable differences between two periods:
// a defect rate swing above 5 points, defect types only seen in the second
// period, and per-type count swings above 3 detections.
func significantChanges(period1, period2 *datastore.PeriodMetrics) []string {
	changes := []string{}

	rateChange := period2.DefectRate - period1.DefectRate
	if rateChange > 5 || rateChange < -5 {
		direction := "increased"
		magnitude := rateChange
		if rateChange < 0 {
			direction = "decreased"
			magnitude = -rateChange
		}
		changes = append(changes, fmt.Sprintf("Defect rate %s by %.1f%%", direction, magnitude))
	}

	for defectType := range period2.DefectTypes {
		if _, known := period1.DefectTypes[defectType]; !known {
			changes = append(changes, fmt.Sprintf("New defect type detected: %s", defectType))
		}
	}

	for defectType, p1Count := range period1.DefectTypes {
		p2Count, known := period2.DefectTypes[defectType]
		if !known {
			continue
		}
		delta := p2Count - p1Count
		if delta > 3 {
			changes = append(changes, fmt.Sprintf("%s: increase of %d detections", defectType, delta))
		} else if delta < -3 {
			changes = append(changes, fmt.Sprintf("%s: decrease of %d detections", defectType, -delta))
		}
	}

	return changes
}

// GetOperatorPerformance handles GET /api/v2/analytics/operators
func (c *Controller) GetOperatorPerformance(ctx echo.Context) error {
	start, end, err := parseDateRange(ctx, "start_date", "end_date")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid date range", http.StatusBadRequest)
	}

	stats, err := c.DS.OperatorStats(start, end)
	if err != nil {
		return c.HandleError(ctx, err, "Operator analysis failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, stats)
}
