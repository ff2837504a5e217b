package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// SDKGateway implements Client through the official genai SDK. Same wire
// behavior as GeminiGateway; selected by configuration when the SDK transport
// is preferred over raw REST.
type SDKGateway struct {
	apiKey          string
	reasoningModel  string
	generationModel string
	timeout         time.Duration
}

// NewSDKGateway constructs an SDK-backed gateway client.
func NewSDKGateway(cfg GeminiConfig) *SDKGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &SDKGateway{
		apiKey:          cfg.APIKey,
		reasoningModel:  normalizeModel(cfg.ReasoningModel, defaultReasoningModel),
		generationModel: normalizeModel(cfg.GenerationModel, defaultGenerationModel),
		timeout:         cfg.Timeout,
	}
}

// Generate issues one GenerateContent call and flattens the first candidate.
func (g *SDKGateway) Generate(ctx context.Context, req Request) (Response, error) {
	if g == nil || strings.TrimSpace(g.apiKey) == "" {
		return Response{}, fmt.Errorf("gateway: sdk client unavailable")
	}
	if len(req.Parts) == 0 {
		return Response{}, fmt.Errorf("gateway: empty request")
	}

	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client, err := genai.NewClient(childCtx, &genai.ClientConfig{APIKey: g.apiKey})
	if err != nil {
		return Response{}, fmt.Errorf("gateway: create genai client: %w", err)
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.InlineImage != nil {
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: p.InlineImage.MIME, Data: p.InlineImage.Data},
			})
			continue
		}
		parts = append(parts, &genai.Part{Text: p.Text})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.JSONResponse {
		cfg.ResponseMIMEType = "application/json"
	}

	model := g.reasoningModel
	if req.Role == RoleGeneration {
		model = g.generationModel
	}

	resp, err := client.Models.GenerateContent(childCtx, model, contents, cfg)
	if err != nil {
		return Response{}, fmt.Errorf("gateway: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Response{}, fmt.Errorf("gateway: empty response")
	}

	var out Response
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if strings.TrimSpace(mime) == "" {
				mime = "image/png"
			}
			out.Parts = append(out.Parts, ImagePart(mime, part.InlineData.Data))
			continue
		}
		if part.Text != "" {
			out.Parts = append(out.Parts, TextPart(part.Text))
		}
	}
	if len(out.Parts) == 0 {
		return Response{}, fmt.Errorf("gateway: candidate carried no content")
	}
	return out, nil
}
