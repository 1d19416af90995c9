// types.go defines the wire types exchanged with the inference sidecar.
package inference

import (
	"time"
)

// Config holds the inference client configuration.
type Config struct {
	BaseURL             string
	Timeout             time.Duration
	ConfidenceThreshold float64
	IoUThreshold        float64
	NDThreshold         float64
	ModelVersion        string
	CacheTTL            time.Duration
	RateLimit           int // max sidecar requests per second
}

// DefaultConfig returns the default inference client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:             "http://localhost:8500",
		Timeout:             30 * time.Second,
		ConfidenceThreshold: 0.5,
		IoUThreshold:        0.45,
		NDThreshold:         0.7,
		CacheTTL:            10 * time.Minute,
		RateLimit:           10,
	}
}

// Detection is a single bounding box returned by the sidecar.
type Detection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
}

// DetectResult is the sidecar response to a detection request.
type DetectResult struct {
	Detections      []Detection `json:"detections"`
	InferenceTimeMs float64     `json:"inference_time_ms"`
	ModelVersion    string      `json:"model_version"`
}

// ClassProbability is one entry of a whole-image classification result.
type ClassProbability struct {
	ClassID     int     `json:"class_id"`
	Probability float64 `json:"probability"`
}

// ClassifyResult is the sidecar response to a classification request.
type ClassifyResult struct {
	Probabilities   []ClassProbability `json:"probabilities"`
	InferenceTimeMs float64            `json:"inference_time_ms"`
	ModelVersion    string             `json:"model_version"`
}

// XAI methods the sidecar supports.
const (
	MethodGradCAM             = "gradcam"
	MethodLIME                = "lime"
	MethodSHAP                = "shap"
	MethodIntegratedGradients = "integrated_gradients"
)

// SupportedMethods lists the XAI methods the sidecar can run.
func SupportedMethods() []string {
	return []string{MethodGradCAM, MethodLIME, MethodSHAP, MethodIntegratedGradients}
}

// Heatmap is one explanation heatmap produced by the sidecar.
type Heatmap struct {
	Method          string  `json:"method"`
	HeatmapBase64   string  `json:"heatmap_base64"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ExplainResult is the sidecar response to an explanation request.
type ExplainResult struct {
	Heatmaps       []Heatmap `json:"heatmaps"`
	ConsensusScore float64   `json:"consensus_score"`
}

// ModelInfo describes the model served by the sidecar.
type ModelInfo struct {
	Version    string   `json:"version"`
	Task       string   `json:"task"`
	ClassNames []string `json:"class_names"`
	InputSize  int      `json:"input_size"`
}
