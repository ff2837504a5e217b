package pipeline

import (
	"context"
	"errors"

	"autoscapeAi/internal/design"
	"autoscapeAi/internal/gateway"
	"autoscapeAi/internal/imaging"
	"autoscapeAi/internal/prompts"
)

// ErrNoRenderImage signals that the generation model answered without an
// inline image. No render means no product, so this aborts the pipeline.
var ErrNoRenderImage = errors.New("render: model returned no image")

// RenderSynthesizer runs phase 2: the photorealistic redesign of the yard
// photo under strict anchoring constraints, plus a best-effort manifest of
// the elements the model claims it added.
type RenderSynthesizer struct {
	Gateway gateway.Client
	// Editor, when set, replaces the gateway with a Vertex Imagen edit
	// backend. Imagen has no accompanying text channel, so no manifest is
	// produced on that path.
	Editor gateway.ImageEditor
}

// Synthesize returns the render as a data URI and, when requested and
// parseable, the trailing manifest. Manifest absence never fails the phase.
func (r *RenderSynthesizer) Synthesize(ctx context.Context, req design.Request, scene design.SceneContext, emitManifest bool) (string, *design.Manifest, error) {
	prompt := prompts.Render(scene, req.Style, emitManifest && r.Editor == nil)

	if r.Editor != nil {
		img, err := r.Editor.Edit(ctx, prompt, gateway.InlineImage{MIME: req.YardMIME, Data: req.YardImage})
		if err != nil {
			return "", nil, err
		}
		return imaging.DataURI(img.MIME, img.Data), nil, nil
	}

	resp, err := r.Gateway.Generate(ctx, gateway.Request{
		Role: gateway.RoleGeneration,
		Parts: []gateway.Part{
			gateway.ImagePart(req.YardMIME, req.YardImage),
			gateway.TextPart(prompt),
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", nil, err
	}

	uri, ok := imaging.ExtractImage(resp)
	if !ok {
		return "", nil, ErrNoRenderImage
	}

	var manifest *design.Manifest
	if emitManifest {
		manifest = ExtractManifest(resp.Text())
	}
	return uri, manifest, nil
}
