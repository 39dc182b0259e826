package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"taleweaver/internal/config"
	"taleweaver/internal/model"
)

var imageRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "taleweaver_image_requests_total",
		Help: "Total number of requests to the image generation API.",
	},
	[]string{"status"},
)

// ImageGenerator is the contract the pipeline requires from the generative
// image service.
type ImageGenerator interface {
	// GenerateImage renders the prompt and returns a reference (URL) to the
	// generated image. Returns model.ErrImageEmptyResult when the service
	// answers successfully but produces no image.
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// imageAPIRequest is the request body of the image server.
type imageAPIRequest struct {
	Prompt string `json:"prompt"`
	Ratio  string `json:"ratio"`
}

// imageAPIResponse is the response body of the image server.
type imageAPIResponse struct {
	Images []string `json:"images"`
}

type httpImageClient struct {
	client      *http.Client
	serverURL   string
	styleSuffix string
	aspectRatio string
	logger      *zap.Logger
}

var _ ImageGenerator = (*httpImageClient)(nil)

// NewImageGenerator builds the HTTP client for the image generation server.
func NewImageGenerator(cfg *config.Config, logger *zap.Logger) ImageGenerator {
	return &httpImageClient{
		client:      &http.Client{Timeout: cfg.ImageTimeout},
		serverURL:   cfg.ImageServerURL,
		styleSuffix: cfg.ImageStyleSuffix,
		aspectRatio: cfg.ImageAspectRatio,
		logger:      logger.Named("ImageClient"),
	}
}

func (c *httpImageClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	fullPrompt := prompt + c.styleSuffix

	body, err := json.Marshal(imageAPIRequest{Prompt: fullPrompt, Ratio: c.aspectRatio})
	if err != nil {
		return "", fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		imageRequestsTotal.With(prometheus.Labels{"status": "error"}).Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", model.ErrGenerationTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", model.ErrImageGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		imageRequestsTotal.With(prometheus.Labels{"status": "error"}).Inc()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: image server returned %d: %s", model.ErrImageGenerationFailed, resp.StatusCode, string(respBody))
	}

	var apiResp imageAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		imageRequestsTotal.With(prometheus.Labels{"status": "error"}).Inc()
		return "", fmt.Errorf("%w: failed to decode image response: %v", model.ErrImageGenerationFailed, err)
	}

	if len(apiResp.Images) == 0 || apiResp.Images[0] == "" {
		imageRequestsTotal.With(prometheus.Labels{"status": "empty"}).Inc()
		return "", model.ErrImageEmptyResult
	}

	imageRequestsTotal.With(prometheus.Labels{"status": "success"}).Inc()
	c.logger.Debug("Image generated",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("prompt_chars", len(fullPrompt)),
	)

	return apiResp.Images[0], nil
}
