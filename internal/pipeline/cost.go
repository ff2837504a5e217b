package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"autoscapeAi/internal/costing"
	"autoscapeAi/internal/design"
	"autoscapeAi/internal/gateway"
	"autoscapeAi/internal/prompts"
)

// CostAnalyst runs phase 4: a structured material/plant/labor breakdown of
// the render under the delta-only pricing policy.
type CostAnalyst struct {
	Gateway gateway.Client
}

// Analyze requests the estimate in structured-output mode and decodes it
// defensively. Malformed JSON is not an error here: a zero RawEstimate flows
// into reconciliation, which substitutes the documented fallbacks.
func (a *CostAnalyst) Analyze(ctx context.Context, render gateway.InlineImage, scene design.SceneContext, budget string) (costing.RawEstimate, error) {
	resp, err := a.Gateway.Generate(ctx, gateway.Request{
		Role: gateway.RoleReasoning,
		Parts: []gateway.Part{
			gateway.ImagePart(render.MIME, render.Data),
			gateway.TextPart(prompts.Cost(scene, budget)),
		},
		JSONResponse: true,
		Temperature:  0.2,
	})
	if err != nil {
		return costing.RawEstimate{}, err
	}
	return decodeRawEstimate(resp.Text()), nil
}

// decodeRawEstimate tries a direct unmarshal first, then recovers the outer
// JSON object from surrounding prose.
func decodeRawEstimate(text string) costing.RawEstimate {
	var raw costing.RawEstimate
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		return raw
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err == nil {
			return raw
		}
	}
	return costing.RawEstimate{}
}
