// Package prompts composes the instruction text for each pipeline phase.
// Wording here is configuration for the model gateway, not pipeline logic.
package prompts

import (
	"fmt"
	"strings"

	"autoscapeAi/internal/design"
)

// SceneContext builds the phase-1 instruction that splits the photo into
// fixed geometry and the requested design delta.
func SceneContext(req design.Request) string {
	var b strings.Builder
	b.WriteString(`You are a landscape architect analyzing a yard photo before a redesign.
Produce two clearly labeled blocks:

FIXED_GEOMETRY: a JSON-like description of everything that must not change — the house facade, windows, doors, fences, walls, terrain slope, mature trees, camera position and perspective.

REQUESTED_CHANGES: a JSON-like description of the new plantings, hardscape, features and furniture the redesign should introduce, consistent with the homeowner's wishes below.

Do not invent structures that are not visible in the photo.`)
	fmt.Fprintf(&b, "\n\nDesign style: %s", orUnspecified(req.Style))
	fmt.Fprintf(&b, "\nHomeowner wishes: %s", orUnspecified(req.Preferences))
	if req.Budget != "" {
		fmt.Fprintf(&b, "\nBudget: %s", req.Budget)
	}
	if req.Region != "" {
		fmt.Fprintf(&b, "\nRegion: %s (prefer climate-appropriate plants)", req.Region)
	}
	if len(req.StyleImages) > 0 {
		fmt.Fprintf(&b, "\nThe %d additional photos are style references only; take mood and materials from them, never geometry.", len(req.StyleImages))
	}
	return b.String()
}

// Render builds the phase-2 anchoring instruction for the generation model.
func Render(ctx design.SceneContext, style string, emitManifest bool) string {
	var b strings.Builder
	b.WriteString(`Redesign the landscaping in this yard photo as a photorealistic render.

Hard constraints:
- Preserve the house architecture exactly: walls, windows, doors, roof lines.
- Preserve existing fences and property boundaries.
- Do not move, tilt or zoom the camera; keep the exact viewpoint.
- Keep lighting direction consistent with the original photo.`)
	fmt.Fprintf(&b, "\n\nApply this design style: %s", orUnspecified(style))
	fmt.Fprintf(&b, "\n\nScene analysis from a prior pass:\n%s", string(ctx))
	if emitManifest {
		b.WriteString(`

After the image, append a single JSON object listing exactly what you added, shaped as:
{"plants":[{"name":"...","quantity":1}],"hardscape":[...],"features":[...],"structures":[...],"furniture":[...]}
List only newly introduced elements.`)
	}
	return b.String()
}

// Plan builds the phase-3 instruction deriving a top-down plan from the render.
func Plan(ctx design.SceneContext) string {
	var b strings.Builder
	b.WriteString(`Produce a strictly top-down orthographic 2D landscape plan derived from this rendered yard image.

Rules:
- Draw only what is visible in the render; do not hallucinate additional elements.
- No text, no labels, no legends, no dimension lines.
- Flat fixed palette: green for plants and lawn, gray for hardscape and paving, brown for wood decking and furniture.
- Keep relative positions and proportions faithful to the render.`)
	if strings.TrimSpace(string(ctx)) != "" {
		fmt.Fprintf(&b, "\n\nScene analysis for spatial reference:\n%s", string(ctx))
	}
	return b.String()
}

// Cost builds the phase-4 structured-output instruction for the reasoning model.
func Cost(ctx design.SceneContext, budget string) string {
	var b strings.Builder
	b.WriteString(`You are a landscaping cost estimator. Analyze this redesigned yard render and produce an itemized estimate as JSON only:

{
  "currentLayout": "one paragraph on the pre-existing yard",
  "designConcept": "one paragraph on the new design",
  "visualDescription": "one paragraph describing the render",
  "maintenanceLevel": "Low|Medium|High",
  "totalCost": 0,
  "materials": [
    {"name":"...","quantity":"e.g. 200 sqft","unitCost":"$...","totalCost":"$...","notes":"...","category":"Plants|Hardscape|Features|Structures|Furniture|Labor|Other"}
  ]
}

Pricing policy:
- Price ONLY newly introduced elements. Anything that existed in the original scene (house, fences, mature trees, existing paving) costs nothing.
- Always include a "Labor & Installation" line item at 30-50% of the material subtotal, category "Labor".
- Use realistic US retail prices in USD.`)
	if strings.TrimSpace(budget) != "" {
		fmt.Fprintf(&b, "\n- The homeowner's budget is %s. If your total exceeds it, add cost-saving suggestions to the narrative fields instead of dropping line items.", budget)
	}
	if strings.TrimSpace(string(ctx)) != "" {
		fmt.Fprintf(&b, "\n\nScene analysis distinguishing pre-existing geometry from requested changes:\n%s", string(ctx))
	}
	return b.String()
}

// VideoTransform builds the instruction for the before/after transformation
// video endpoint.
func VideoTransform() string {
	return `Create a smooth cinematic transition from the original yard to the redesigned yard. Hold the camera position fixed; cross-fade plantings and hardscape while the architecture stays anchored.`
}

func orUnspecified(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unspecified"
	}
	return v
}
