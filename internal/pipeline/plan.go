package pipeline

import (
	"context"
	"fmt"

	"autoscapeAi/internal/design"
	"autoscapeAi/internal/gateway"
	"autoscapeAi/internal/imaging"
	"autoscapeAi/internal/prompts"
)

// PlanSynthesizer runs phase 3: a strictly top-down orthographic 2D plan
// derived from the synthesized render. The orchestrator treats its failure
// as recoverable; the caller still gets the render and the estimate.
type PlanSynthesizer struct {
	Gateway gateway.Client
}

// Derive returns the plan image as a data URI.
func (p *PlanSynthesizer) Derive(ctx context.Context, render gateway.InlineImage, scene design.SceneContext) (string, error) {
	resp, err := p.Gateway.Generate(ctx, gateway.Request{
		Role: gateway.RoleGeneration,
		Parts: []gateway.Part{
			gateway.ImagePart(render.MIME, render.Data),
			gateway.TextPart(prompts.Plan(scene)),
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	uri, ok := imaging.ExtractImage(resp)
	if !ok {
		return "", fmt.Errorf("plan: model returned no image")
	}
	return uri, nil
}
