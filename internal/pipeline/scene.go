package pipeline

import (
	"context"
	"fmt"
	"strings"

	"autoscapeAi/internal/design"
	"autoscapeAi/internal/gateway"
	"autoscapeAi/internal/prompts"
)

// SceneContextBuilder runs phase 1: it asks the reasoning model to split the
// yard photo into fixed geometry and the requested design delta. The output
// is an opaque context string carried verbatim into later phases.
type SceneContextBuilder struct {
	Gateway gateway.Client
}

// Build sends the yard photo, any style references and the homeowner's
// wishes in one multi-part request. The contract is best-effort textual
// context; no schema is enforced on the answer.
func (b *SceneContextBuilder) Build(ctx context.Context, req design.Request) (design.SceneContext, error) {
	parts := []gateway.Part{
		gateway.TextPart(prompts.SceneContext(req)),
		gateway.ImagePart(req.YardMIME, req.YardImage),
	}
	for _, style := range req.StyleImages {
		parts = append(parts, gateway.ImagePart(style.MIME, style.Data))
	}

	resp, err := b.Gateway.Generate(ctx, gateway.Request{
		Role:        gateway.RoleReasoning,
		Parts:       parts,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("scene context: model returned no text")
	}
	return design.SceneContext(text), nil
}
