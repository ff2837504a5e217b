// Package pipeline orchestrates the multi-phase design generation sequence:
// scene understanding, render synthesis, plan derivation, cost analysis and
// catalog enhancement. Later phases depend on earlier output; plan and cost
// run concurrently off the same render and are retried as a pair.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"autoscapeAi/internal/catalog"
	"autoscapeAi/internal/costing"
	"autoscapeAi/internal/design"
	"autoscapeAi/internal/gateway"
	"autoscapeAi/internal/imaging"
)

// UpstreamError is the only error class that crosses the pipeline boundary:
// the gateway produced nothing usable for a phase the result cannot exist
// without, after any allowed retries.
type UpstreamError struct {
	Phase string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("pipeline: %s phase failed: %v", e.Phase, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ProgressFunc receives at most two snapshots per successful run: one
// render-only partial right after phase 2, one complete result at the end.
type ProgressFunc func(design.Generated)

// Options consolidates the feature switches of the historical pipeline
// variants into one orchestrator.
type Options struct {
	// EmitManifest asks the render phase for a trailing JSON manifest.
	EmitManifest bool
	// RetryTransient enables bounded retry of transient gateway failures.
	RetryTransient bool
	// EnforceBudget surfaces a cost-saving note when the reconciled total
	// exceeds the request budget.
	EnforceBudget bool
	// MaxAttempts bounds each retried call, first attempt included.
	MaxAttempts int
	// Backoff is the base delay; attempt n waits n*Backoff.
	Backoff time.Duration
	// PhaseTimeout caps each model round-trip; zero disables the cap.
	PhaseTimeout time.Duration
	// OverallTimeout caps the whole run; zero disables the cap.
	OverallTimeout time.Duration
}

// DefaultOptions mirror the production configuration.
func DefaultOptions() Options {
	return Options{
		EmitManifest:   true,
		RetryTransient: true,
		EnforceBudget:  true,
		MaxAttempts:    3,
		Backoff:        2 * time.Second,
		PhaseTimeout:   3 * time.Minute,
		OverallTimeout: 10 * time.Minute,
	}
}

// Pipeline wires the five phases behind a single Generate operation.
type Pipeline struct {
	Scene   *SceneContextBuilder
	Render  *RenderSynthesizer
	Plan    *PlanSynthesizer
	Cost    *CostAnalyst
	Catalog catalog.Enhancer
	Options Options
}

// New builds a pipeline over one gateway client with the given options.
func New(gw gateway.Client, enhancer catalog.Enhancer, opts Options) *Pipeline {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Pipeline{
		Scene:   &SceneContextBuilder{Gateway: gw},
		Render:  &RenderSynthesizer{Gateway: gw},
		Plan:    &PlanSynthesizer{Gateway: gw},
		Cost:    &CostAnalyst{Gateway: gw},
		Catalog: enhancer,
		Options: opts,
	}
}

// Generate runs the full phase sequence and returns the terminal artifact.
// Either a complete (possibly cosmetically degraded) result is returned, or
// an *UpstreamError and no partial state.
func (p *Pipeline) Generate(ctx context.Context, req design.Request, onProgress ProgressFunc) (design.Generated, error) {
	if len(req.YardImage) == 0 {
		return design.Generated{}, fmt.Errorf("pipeline: yard image is required")
	}
	if req.YardMIME == "" {
		req.YardMIME = imaging.DetectMIME(req.YardImage, "")
	}
	if onProgress == nil {
		onProgress = func(design.Generated) {}
	}

	if p.Options.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Options.OverallTimeout)
		defer cancel()
	}

	// Phase 1: scene understanding. Nothing useful can follow without it.
	var scene design.SceneContext
	err := p.retry(ctx, func(phaseCtx context.Context) error {
		var buildErr error
		scene, buildErr = p.Scene.Build(phaseCtx, req)
		return buildErr
	})
	if err != nil {
		return design.Generated{}, &UpstreamError{Phase: "scene-context", Err: err}
	}

	// Phase 2: render synthesis. A missing image is always fatal.
	renderURI, manifest, err := p.synthesizeRender(ctx, req, scene)
	if err != nil {
		return design.Generated{}, &UpstreamError{Phase: "render", Err: err}
	}

	result := design.Generated{RenderImages: []string{renderURI}}
	onProgress(result)

	renderBytes, renderMIME, err := imaging.DecodeDataURI(renderURI)
	if err != nil {
		return design.Generated{}, &UpstreamError{Phase: "render", Err: err}
	}
	render := gateway.InlineImage{MIME: renderMIME, Data: renderBytes}

	// Phases 3 and 4 share the render input and retry as a pair: a retry
	// must re-validate both against the same image.
	planURI, raw := p.planAndCost(ctx, render, scene, req.Budget)

	estimate := costing.Reconcile(raw)
	if p.Options.EnforceBudget && req.Budget != "" {
		if note, exceeded := costing.CheckBudget(estimate.TotalCost, req.Budget); exceeded {
			estimate.BudgetNote = note
		}
	}

	result.PlanImage = planURI
	result.DesignJSON = manifest
	result.Estimates = estimate
	result.Analysis = design.Analysis{
		CurrentLayout:     raw.CurrentLayout,
		DesignConcept:     raw.DesignConcept,
		VisualDescription: raw.VisualDescription,
		MaintenanceLevel:  raw.MaintenanceLevel,
	}

	// Phase 5: catalog enhancement, a pure bonus.
	if !req.SkipCatalog && p.Catalog != nil && p.Catalog.Enabled() {
		if enhanced, err := p.Catalog.Enhance(ctx, estimate.Breakdown); err != nil {
			log.Printf("pipeline: catalog enhancement skipped: %v", err)
		} else if enhanced.Success {
			result.Estimates.PlantPalette = enhanced.PlantPalette
			result.Estimates.RAGEnhanced = enhanced.RAGEnhanced
		}
	}

	onProgress(result)
	return result, nil
}

func (p *Pipeline) synthesizeRender(ctx context.Context, req design.Request, scene design.SceneContext) (string, *design.Manifest, error) {
	phaseCtx, cancel := p.phaseContext(ctx)
	defer cancel()
	return p.Render.Synthesize(phaseCtx, req, scene, p.Options.EmitManifest)
}

// planAndCost fans out the plan and cost calls, joins them, and retries the
// pair on transient failure in either branch. After the attempt budget is
// spent, plan degrades to empty and cost degrades to a zero RawEstimate that
// reconciliation backfills.
func (p *Pipeline) planAndCost(ctx context.Context, render gateway.InlineImage, scene design.SceneContext, budget string) (string, costing.RawEstimate) {
	var (
		planURI  string
		raw      costing.RawEstimate
		planErr  error
		costErr  error
		haveCost bool
	)

	attempt := func(phaseCtx context.Context) (string, costing.RawEstimate, error, error) {
		var (
			wg   sync.WaitGroup
			pURI string
			pErr error
			cRaw costing.RawEstimate
			cErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			pURI, pErr = p.Plan.Derive(phaseCtx, render, scene)
		}()
		go func() {
			defer wg.Done()
			cRaw, cErr = p.Cost.Analyze(phaseCtx, render, scene, budget)
		}()
		wg.Wait()
		return pURI, cRaw, pErr, cErr
	}

	// The pair degrades rather than failing, so the joint error is dropped
	// after the retry budget is spent.
	p.retry(ctx, func(phaseCtx context.Context) error {
		planURI, raw, planErr, costErr = attempt(phaseCtx)
		haveCost = costErr == nil
		// Prefer reporting a transient failure so a retry of the pair
		// triggers when either branch can still recover.
		switch {
		case gateway.Transient(planErr):
			return planErr
		case gateway.Transient(costErr):
			return costErr
		case planErr != nil:
			return planErr
		default:
			return costErr
		}
	})

	if planErr != nil {
		log.Printf("pipeline: plan derivation degraded to null: %v", planErr)
		planURI = ""
	}
	if !haveCost {
		log.Printf("pipeline: cost analysis degraded to fallback estimate: %v", costErr)
		raw = costing.RawEstimate{}
	}
	return planURI, raw
}

// retry runs fn up to MaxAttempts times with linearly increasing backoff,
// but only while the failure classifies as transient. All other errors
// propagate immediately.
func (p *Pipeline) retry(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.Options.MaxAttempts
	if !p.Options.RetryTransient || attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		phaseCtx, cancel := p.phaseContext(ctx)
		err = fn(phaseCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !gateway.Transient(err) || attempt == attempts {
			return err
		}

		delay := time.Duration(attempt) * p.Options.Backoff
		log.Printf("pipeline: transient failure (attempt %d/%d), retrying in %s: %v", attempt, attempts, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *Pipeline) phaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Options.PhaseTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Options.PhaseTimeout)
}
