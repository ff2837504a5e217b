package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultReasoningModel  = "gemini-2.5-flash"
	defaultGenerationModel = "gemini-2.5-flash-image"
	defaultEndpoint        = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiGateway talks to the Google Generative Language API over REST.
type GeminiGateway struct {
	apiKey          string
	endpoint        string
	reasoningModel  string
	generationModel string
	client          *http.Client
	tokenSource     oauth2.TokenSource
}

// GeminiConfig describes how to reach Gemini and which model serves each role.
type GeminiConfig struct {
	APIKey          string
	Endpoint        string
	ReasoningModel  string
	GenerationModel string
	Timeout         time.Duration
	TokenSource     oauth2.TokenSource
}

// NewGeminiGateway constructs a REST-backed gateway client.
func NewGeminiGateway(cfg GeminiConfig) *GeminiGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &GeminiGateway{
		apiKey:          cfg.APIKey,
		endpoint:        strings.TrimSuffix(cfg.Endpoint, "/"),
		reasoningModel:  normalizeModel(cfg.ReasoningModel, defaultReasoningModel),
		generationModel: normalizeModel(cfg.GenerationModel, defaultGenerationModel),
		client:          &http.Client{Timeout: cfg.Timeout},
		tokenSource:     cfg.TokenSource,
	}
}

// Model returns the concrete model identifier serving the given role.
func (g *GeminiGateway) Model(role Role) string {
	if role == RoleGeneration {
		return g.generationModel
	}
	return g.reasoningModel
}

// Generate sends the multi-part request and decodes the first candidate.
func (g *GeminiGateway) Generate(ctx context.Context, req Request) (Response, error) {
	if len(req.Parts) == 0 {
		return Response{}, fmt.Errorf("gateway: empty request")
	}

	parts := make([]map[string]any, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.InlineImage != nil {
			parts = append(parts, map[string]any{
				"inline_data": map[string]string{
					"mime_type": p.InlineImage.MIME,
					"data":      base64.StdEncoding.EncodeToString(p.InlineImage.Data),
				},
			})
			continue
		}
		parts = append(parts, map[string]any{"text": p.Text})
	}

	generationConfig := map[string]any{
		"temperature": req.Temperature,
	}
	if req.JSONResponse {
		generationConfig["responseMimeType"] = "application/json"
	}

	payload := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": parts},
		},
		"generationConfig": generationConfig,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("gateway: marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, url.PathEscape(g.Model(req.Role)))
	if g.tokenSource == nil {
		if strings.TrimSpace(g.apiKey) == "" {
			return Response{}, fmt.Errorf("gateway: missing API key or service account credentials")
		}
		endpoint = fmt.Sprintf("%s?key=%s", endpoint, url.QueryEscape(g.apiKey))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("gateway: request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if g.tokenSource != nil {
		token, err := g.tokenSource.Token()
		if err != nil {
			return Response{}, fmt.Errorf("gateway: fetch oauth token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("gateway: perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var failure struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return Response{}, &StatusError{Code: resp.StatusCode, Message: failure.Error.Message}
	}

	var completion struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text       string `json:"text"`
					InlineData *struct {
						MIMEType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return Response{}, fmt.Errorf("gateway: decode response: %w", err)
	}
	if len(completion.Candidates) == 0 || len(completion.Candidates[0].Content.Parts) == 0 {
		return Response{}, fmt.Errorf("gateway: empty response")
	}

	var out Response
	for _, p := range completion.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return Response{}, fmt.Errorf("gateway: decode inline image: %w", err)
			}
			mime := p.InlineData.MIMEType
			if strings.TrimSpace(mime) == "" {
				mime = "image/png"
			}
			out.Parts = append(out.Parts, ImagePart(mime, data))
			continue
		}
		if p.Text != "" {
			out.Parts = append(out.Parts, TextPart(p.Text))
		}
	}
	if len(out.Parts) == 0 {
		return Response{}, fmt.Errorf("gateway: candidate carried no content")
	}
	return out, nil
}

func normalizeModel(model, fallback string) string {
	clean := strings.TrimSpace(model)
	clean = strings.TrimPrefix(clean, "models/")
	if clean == "" {
		return fallback
	}
	return clean
}
