// Package video talks to the before/after video generation service, which
// turns a yard photo and its redesigned render into a short transition clip.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autoscapeAi/internal/prompts"
)

// Config carries the connection settings for the video service.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Result is the service's terminal response for a transformation job.
type Result struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Message  string `json:"message,omitempty"`
}

// Generator produces transition videos from image pairs.
type Generator interface {
	Transform(ctx context.Context, originalImage, redesignImage string) (Result, error)
	Enabled() bool
}

// Client implements Generator over the service's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		// Video synthesis routinely runs for minutes.
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a service endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Transform submits the image pair and waits for the finished clip. Both
// images are data URIs or raw base64; the service accepts either.
func (c *Client) Transform(ctx context.Context, originalImage, redesignImage string) (Result, error) {
	if !c.Enabled() {
		return Result{}, fmt.Errorf("video service not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"original_image": originalImage,
		"redesign_image": redesignImage,
		"prompt":         prompts.VideoTransform(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode video request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate-video", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create video request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call video service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read video response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("video service status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("decode video response: %w", err)
	}
	if result.Status != "" && result.Status != "success" && result.Status != "completed" {
		return Result{}, fmt.Errorf("video generation %s: %s", result.Status, result.Message)
	}
	return result, nil
}
