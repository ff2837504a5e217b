// Package catalog enriches material lists with verified plant and product
// matches from the RAG enhancement service. Enrichment is a pure bonus:
// callers degrade to empty results on any failure.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"autoscapeAi/internal/design"
)

// Config encapsulates the external service configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Result is the catalog service's enhancement payload.
type Result struct {
	Success      bool                  `json:"success"`
	PlantPalette []design.CatalogMatch `json:"plantPalette"`
	RAGEnhanced  bool                  `json:"rag_enhanced"`
}

// Enhancer attaches verified catalog matches to a materials list.
type Enhancer interface {
	Enhance(ctx context.Context, materials []design.MaterialLineItem) (Result, error)
	Health(ctx context.Context) error
	Enabled() bool
}

// Client talks to the RAG enhancement API over HTTP.
type Client struct {
	baseURL string
	client  *http.Client

	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result  Result
	expires time.Time
}

// New constructs a catalog client; an empty base URL yields a disabled client
// whose Enhance always reports no enhancement.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  &http.Client{Timeout: timeout},
		ttl:     cfg.CacheTTL,
		entries: make(map[string]cacheEntry),
	}
}

// Enabled reports whether a service endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Enhance forwards the materials list and returns the verified palette.
// Labor and installation rows are stripped before the call; the catalog only
// knows plants and products.
func (c *Client) Enhance(ctx context.Context, materials []design.MaterialLineItem) (Result, error) {
	if !c.Enabled() {
		return Result{}, fmt.Errorf("catalog: service not configured")
	}

	payload := struct {
		Materials []design.MaterialLineItem `json:"materials"`
	}{Materials: filterEnhanceable(materials)}
	if len(payload.Materials) == 0 {
		return Result{Success: true}, nil
	}

	key := cacheKey(payload.Materials)
	now := time.Now()
	if c.ttl > 0 {
		c.mu.RLock()
		if entry, ok := c.entries[key]; ok && entry.expires.After(now) {
			c.mu.RUnlock()
			return entry.result, nil
		}
		c.mu.RUnlock()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("catalog: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/enhance-with-rag", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("catalog: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("catalog: perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("catalog: status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("catalog: decode response: %w", err)
	}

	if c.ttl > 0 {
		c.mu.Lock()
		c.entries[key] = cacheEntry{result: result, expires: now.Add(c.ttl)}
		c.mu.Unlock()
	}
	return result, nil
}

// Health probes the service's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("catalog: service not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: health probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("catalog: health status %d", resp.StatusCode)
	}
	return nil
}

func filterEnhanceable(materials []design.MaterialLineItem) []design.MaterialLineItem {
	out := make([]design.MaterialLineItem, 0, len(materials))
	for _, m := range materials {
		lower := strings.ToLower(m.Name)
		if strings.Contains(lower, "labor") || strings.Contains(lower, "installation") ||
			strings.Contains(lower, "delivery") || strings.Contains(lower, "permit") {
			continue
		}
		out = append(out, m)
	}
	return out
}

func cacheKey(materials []design.MaterialLineItem) string {
	var b strings.Builder
	for _, m := range materials {
		b.WriteString(strings.ToLower(strings.TrimSpace(m.Name)))
		b.WriteByte('|')
		b.WriteString(m.Quantity)
		b.WriteByte(';')
	}
	return b.String()
}
