// Package inference provides the HTTP client for the ultralytics sidecar
// that runs the YOLOv8 weld defect model. The model math lives in the
// sidecar; this client transports images and reshapes the JSON responses.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/imaging"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/logging"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/observability/metrics"
)

// Package-level logger specific to the inference service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "inference.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "inference", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize inference file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "inference")
		closeLogger = func() error { return nil }
	}
}

// Client talks to the inference sidecar.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	metrics    *metrics.InferenceMetrics
}

// NewClient creates an inference sidecar client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.Newf("inference sidecar URL is required").
			Category(errors.CategoryConfiguration).
			Component("inference").
			Build()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}
	if config.RateLimit <= 0 {
		config.RateLimit = DefaultConfig().RateLimit
	}

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		cache:   cache.New(config.CacheTTL, config.CacheTTL*2),
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit),
	}

	logger.Info("inference client initialized",
		"base_url", config.BaseURL,
		"timeout", config.Timeout,
		"cache_ttl", config.CacheTTL,
		"rate_limit", config.RateLimit)

	return client, nil
}

// SetMetrics attaches Prometheus collectors to the client.
func (c *Client) SetMetrics(m *metrics.InferenceMetrics) {
	c.metrics = m
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Close releases client resources.
func (c *Client) Close() {
	logger.Info("closing inference client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing inference logger: %v", err)
		}
	}
}

// Detect runs object detection on a radiograph and returns bounding boxes.
func (c *Client) Detect(ctx context.Context, image []byte) (*DetectResult, error) {
	cacheKey := "detect:" + imaging.Checksum(image)
	if cached, found := c.cache.Get(cacheKey); found {
		if result, ok := cached.(*DetectResult); ok {
			c.metrics.RecordCacheHit()
			logger.Debug("detection cache hit", "cache_key", cacheKey)
			return result, nil
		}
	}
	c.metrics.RecordCacheMiss()

	params := url.Values{}
	params.Set("conf", fmt.Sprintf("%g", c.config.ConfidenceThreshold))
	params.Set("iou", fmt.Sprintf("%g", c.config.IoUThreshold))

	var result DetectResult
	if err := c.postImage(ctx, "detect", "/api/v1/detect?"+params.Encode(), image, &result); err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, &result, cache.DefaultExpiration)
	logger.Debug("detection completed",
		"detections", len(result.Detections),
		"inference_time_ms", result.InferenceTimeMs)
	return &result, nil
}

// Classify runs whole-image classification and returns class probabilities.
func (c *Client) Classify(ctx context.Context, image []byte) (*ClassifyResult, error) {
	cacheKey := "classify:" + imaging.Checksum(image)
	if cached, found := c.cache.Get(cacheKey); found {
		if result, ok := cached.(*ClassifyResult); ok {
			c.metrics.RecordCacheHit()
			return result, nil
		}
	}
	c.metrics.RecordCacheMiss()

	var result ClassifyResult
	if err := c.postImage(ctx, "classify", "/api/v1/classify", image, &result); err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, &result, cache.DefaultExpiration)
	return &result, nil
}

// Explain generates XAI heatmaps for a radiograph. Unknown methods are
// rejected before the sidecar is called.
func (c *Client) Explain(ctx context.Context, image []byte, methods []string) (*ExplainResult, error) {
	if len(methods) == 0 {
		methods = SupportedMethods()
	}
	supported := make(map[string]bool, len(SupportedMethods()))
	for _, m := range SupportedMethods() {
		supported[m] = true
	}
	for _, m := range methods {
		if !supported[m] {
			return nil, errors.Newf("unsupported explanation method: %s", m).
				Category(errors.CategoryValidation).
				Component("inference").
				Context("method", m).
				Build()
		}
	}

	params := url.Values{}
	params.Set("methods", strings.Join(methods, ","))

	var result ExplainResult
	if err := c.postImage(ctx, "explain", "/api/v1/explain?"+params.Encode(), image, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ModelInfo returns the metadata of the model served by the sidecar.
func (c *Client) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	const cacheKey = "model_info"
	if cached, found := c.cache.Get(cacheKey); found {
		if info, ok := cached.(*ModelInfo); ok {
			return info, nil
		}
	}

	var info ModelInfo
	if err := c.getJSON(ctx, "model_info", "/api/v1/model", &info); err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, &info, cache.DefaultExpiration)
	return &info, nil
}

// Healthy probes the sidecar health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", http.NoBody)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryModelInference).
			Component("inference").
			Build()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.sidecarUnreachable("health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("inference sidecar unhealthy: status %d", resp.StatusCode).
			Category(errors.CategoryModelInference).
			Component("inference").
			Context("status_code", resp.StatusCode).
			Build()
	}
	return nil
}

// postImage sends raw image bytes to the sidecar and decodes the response.
func (c *Client) postImage(ctx context.Context, operation, path string, image []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.New(err).
			Category(errors.CategoryModelInference).
			Component("inference").
			Context("operation", operation).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(image))
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryModelInference).
			Component("inference").
			Context("operation", operation).
			Build()
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	return c.doRequest(req, operation, out)
}

// getJSON performs a GET against the sidecar and decodes the response.
func (c *Client) getJSON(ctx context.Context, operation, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, http.NoBody)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryModelInference).
			Component("inference").
			Context("operation", operation).
			Build()
	}
	return c.doRequest(req, operation, out)
}

func (c *Client) doRequest(req *http.Request, operation string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordRequest(operation, "error")
		return c.sidecarUnreachable(operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordRequest(operation, "error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Newf("inference sidecar returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))).
			Category(errors.CategoryModelInference).
			Component("inference").
			Context("operation", operation).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.RecordRequest(operation, "error")
		return errors.New(err).
			Category(errors.CategoryModelInference).
			Component("inference").
			Context("operation", operation).
			Context("detail", "decoding sidecar response").
			Build()
	}

	c.metrics.RecordRequest(operation, "success")
	return nil
}

func (c *Client) sidecarUnreachable(operation string, err error) error {
	logger.Error("inference sidecar unreachable",
		"operation", operation,
		"base_url", c.config.BaseURL,
		"error", err)
	return errors.New(err).
		Category(errors.CategoryModelInference).
		Component("inference").
		Context("operation", operation).
		Context("base_url", c.config.BaseURL).
		Build()
}
