// reviews.go: collaborative review of model predictions
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
)

// initReviewRoutes registers review-related routes
func (c *Controller) initReviewRoutes() {
	c.Group.GET("/reviews/queue", c.GetReviewQueue)
	c.Group.POST("/reviews", c.SubmitReview)
	c.Group.POST("/reviews/:id/annotations", c.AddAnnotations)
	c.Group.GET("/reviews/analysis/:id", c.GetReviewHistory)
	c.Group.GET("/reviews/stats", c.GetReviewStats)
}

// validReviewStatuses are the statuses accepted on review submission.
var validReviewStatuses = map[string]bool{
	datastore.ReviewApproved:           true,
	datastore.ReviewRejected:           true,
	datastore.ReviewNeedsSecondOpinion: true,
}

// ReviewQueueItem is one entry of the pending review queue.
type ReviewQueueItem struct {
	AnalysisID      string    `json:"analysis_id"`
	ImageName       string    `json:"image_name"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
	DefectType      string    `json:"defect_type,omitempty"`
	Severity        string    `json:"severity,omitempty"`
	Confidence      float64   `json:"confidence"`
}

// GetReviewQueue handles GET /api/v2/reviews/queue
func (c *Controller) GetReviewQueue(ctx echo.Context) error {
	limit := 50
	if v := ctx.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 500 {
			return c.HandleError(ctx, err, "Invalid limit parameter", http.StatusBadRequest)
		}
		limit = parsed
	}

	analyses, err := c.DS.ReviewQueue(limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get review queue", http.StatusInternalServerError)
	}

	items := make([]ReviewQueueItem, 0, len(analyses))
	for i := range analyses {
		item := ReviewQueueItem{
			AnalysisID:      analyses[i].ImageID,
			ImageName:       analyses[i].Filename,
			UploadTimestamp: analyses[i].CreatedAt,
			Severity:        analyses[i].HighestSeverity,
			Confidence:      analyses[i].MeanConfidence,
		}
		if len(analyses[i].Detections) > 0 {
			item.DefectType = analyses[i].Detections[0].ClassName
		}
		items = append(items, item)
	}
	return ctx.JSON(http.StatusOK, items)
}

// ReviewCreateRequest is the body of a review submission.
type ReviewCreateRequest struct {
	AnalysisID   string `json:"analysis_id"`
	Status       string `json:"status"`
	ReviewerID   string `json:"reviewer_id"`
	ReviewerName string `json:"reviewer_name"`
	Comments     string `json:"comments"`
	Notes        string `json:"reviewer_notes"`
}

// ReviewResponse is a stored review in API responses.
type ReviewResponse struct {
	ID           uint      `json:"id"`
	AnalysisID   string    `json:"analysis_id"`
	ReviewerID   string    `json:"reviewer_id"`
	ReviewerName string    `json:"reviewer_name"`
	Status       string    `json:"status"`
	Comments     string    `json:"comments,omitempty"`
	Notes        string    `json:"reviewer_notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubmitReview handles POST /api/v2/reviews
func (c *Controller) SubmitReview(ctx echo.Context) error {
	var req ReviewCreateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	if req.AnalysisID == "" {
		return c.HandleError(ctx, nil, "analysis_id is required", http.StatusBadRequest)
	}
	if !validReviewStatuses[req.Status] {
		return c.HandleError(ctx, nil,
			"Invalid review status, expected approved, rejected or needs_second_opinion",
			http.StatusBadRequest)
	}

	analysis, err := c.DS.GetAnalysis(req.AnalysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Analysis not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get analysis", http.StatusInternalServerError)
	}

	reviewerID := req.ReviewerID
	if reviewerID == "" {
		reviewerID = "system"
	}
	reviewerName := req.ReviewerName
	if reviewerName == "" {
		reviewerName = "System"
	}

	review := &datastore.Review{
		AnalysisID:   analysis.ID,
		ReviewerID:   reviewerID,
		ReviewerName: reviewerName,
		Status:       req.Status,
		Comments:     req.Comments,
		Notes:        req.Notes,
	}
	if err := c.DS.SaveReview(review); err != nil {
		return c.HandleError(ctx, err, "Failed to submit review", http.StatusInternalServerError)
	}

	c.recordAuditEvent(ctx, analysis.ID, "review", reviewerID, map[string]any{
		"review_id": review.ID,
		"status":    review.Status,
	})

	return ctx.JSON(http.StatusCreated, ReviewResponse{
		ID:           review.ID,
		AnalysisID:   req.AnalysisID,
		ReviewerID:   review.ReviewerID,
		ReviewerName: review.ReviewerName,
		Status:       review.Status,
		Comments:     review.Comments,
		Notes:        review.Notes,
		CreatedAt:    review.CreatedAt,
	})
}

// AnnotationRequest is one annotation in an annotation submission.
type AnnotationRequest struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Note           string  `json:"note"`
	AnnotationType string  `json:"annotation_type"`
}

// validAnnotationTypes are the accepted annotation kinds.
var validAnnotationTypes = map[string]bool{
	"correction": true,
	"highlight":  true,
	"question":   true,
}

// AddAnnotations handles POST /api/v2/reviews/:id/annotations
func (c *Controller) AddAnnotations(ctx echo.Context) error {
	reviewID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid review id", http.StatusBadRequest)
	}

	var req struct {
		Annotations []AnnotationRequest `json:"annotations"`
	}
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if len(req.Annotations) == 0 {
		return c.HandleError(ctx, nil, "No annotations in request", http.StatusBadRequest)
	}

	annotations := make([]datastore.ReviewAnnotation, 0, len(req.Annotations))
	for _, a := range req.Annotations {
		if !validAnnotationTypes[a.AnnotationType] {
			return c.HandleError(ctx, nil,
				"Invalid annotation_type, expected correction, highlight or question",
				http.StatusBadRequest)
		}
		annotations = append(annotations, datastore.ReviewAnnotation{
			X: a.X, Y: a.Y, Width: a.Width, Height: a.Height,
			Note:           a.Note,
			AnnotationType: a.AnnotationType,
		})
	}

	if err := c.DS.SaveAnnotations(uint(reviewID), annotations); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Review not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to add annotations", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success":           true,
		"review_id":         reviewID,
		"annotations_added": len(annotations),
	})
}

// GetReviewHistory handles GET /api/v2/reviews/analysis/:id
func (c *Controller) GetReviewHistory(ctx echo.Context) error {
	imageID := ctx.Param("id")

	reviews, err := c.DS.GetReviewsForAnalysis(imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Analysis not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get review history", http.StatusInternalServerError)
	}

	responses := make([]ReviewResponse, 0, len(reviews))
	for i := range reviews {
		responses = append(responses, ReviewResponse{
			ID:           reviews[i].ID,
			AnalysisID:   imageID,
			ReviewerID:   reviews[i].ReviewerID,
			ReviewerName: reviews[i].ReviewerName,
			Status:       reviews[i].Status,
			Comments:     reviews[i].Comments,
			Notes:        reviews[i].Notes,
			CreatedAt:    reviews[i].CreatedAt,
		})
	}
	return ctx.JSON(http.StatusOK, responses)
}

// GetReviewStats handles GET /api/v2/reviews/stats
func (c *Controller) GetReviewStats(ctx echo.Context) error {
	stats, err := c.DS.ReviewStats(ctx.QueryParam("reviewer_id"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get review stats", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, stats)
}
