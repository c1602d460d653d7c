// Package cycle implements the cycle controller: the procedure that owns a
// session end to end — seed the scratchpad, run the router, loop expansion/
// compression/critique (with optional targeted re-expansion and branch
// cycles) until the termination detector fires, then synthesize.
//
// Grounded on the retrieval pack's own harness_lite.py run() method, the
// single most load-bearing grounding file in the repository: the step
// order here (expansion, compression, critique, conditional re-expansion,
// branch check, termination check) follows it exactly.
package cycle

import (
	"context"

	"golang.org/x/sync/errgroup"

	"thesisharness/internal/branch"
	"thesisharness/internal/confidence"
	"thesisharness/internal/pass"
	"thesisharness/internal/router"
	"thesisharness/internal/scratchpad"
	"thesisharness/internal/termination"
)

// Options configures a single Run call.
type Options struct {
	SessionID        string
	Title            string
	Claims           []scratchpad.Claim
	Mode             confidence.AnalysisMode
	Config           scratchpad.Config
	ParallelBranches bool // run active branches' cycles concurrently (§5)

	// MaxCycles bounds the loop; zero falls back to termination.MaxCycles.
	MaxCycles int

	// OnProgress, when set, is called at each named stage of the run so a
	// caller (internal/wsapi) can stream progress without polling. It is
	// never required: Run works identically with it nil.
	OnProgress func(event string, data map[string]any)
}

func emit(opts Options, event string, data map[string]any) {
	if opts.OnProgress != nil {
		opts.OnProgress(event, data)
	}
}

// Report is everything a caller needs after a session completes: every pass
// result in execution order, the final scratchpad, the termination reason,
// and the trajectory analysis.
type Report struct {
	Scratchpad        *scratchpad.Scratchpad
	RouterResult      router.Result
	PassResults       []pass.Result
	FinalConfidence   float64
	Trajectory        scratchpad.TrajectoryAnalysis
	TerminationReason termination.Reason
	BranchOutcome     *branch.Outcome
}

// Controller runs the cycle loop over a single Runner.
type Controller struct {
	Runner *pass.Runner
	Router *router.Router
}

// New constructs a Controller.
func New(runner *pass.Runner, rt *router.Router) *Controller {
	return &Controller{Runner: runner, Router: rt}
}

// Run drives one session from seed to synthesis.
func (c *Controller) Run(ctx context.Context, opts Options) (Report, error) {
	maxCycles := opts.MaxCycles
	if maxCycles <= 0 {
		maxCycles = termination.MaxCycles
	}

	pad := scratchpad.New(opts.SessionID, opts.Title, opts.Mode, opts.Config)
	for _, claim := range opts.Claims {
		pad.AddClaim(claim)
	}

	routerClaims := make([]router.Claim, len(opts.Claims))
	for i, cl := range opts.Claims {
		routerClaims[i] = router.Claim{Text: cl.Text}
	}
	routed := c.Router.Route(opts.Title, routerClaims)

	report := Report{Scratchpad: pad, RouterResult: routed}
	emit(opts, "initialized", map[string]any{"session_id": opts.SessionID, "route_type": string(routed.RouteType)})

	firstExpansion := true
	for {
		pad.IncrementCycle()
		cycleInsights := 0
		emit(opts, "cycle_start", map[string]any{"cycle": pad.CycleCount})

		expResult, err := c.Runner.Expansion(ctx, pad, routerContextFor(firstExpansion, routed))
		if err != nil {
			emit(opts, "error", map[string]any{"message": err.Error()})
			return report, err
		}
		firstExpansion = false
		report.PassResults = append(report.PassResults, expResult)
		cycleInsights += expResult.InsightsFound
		emit(opts, "expansion_complete", map[string]any{"cycle": pad.CycleCount, "insights_found": expResult.InsightsFound})

		compResult, err := c.Runner.Compression(ctx, pad)
		if err != nil {
			emit(opts, "error", map[string]any{"message": err.Error()})
			return report, err
		}
		report.PassResults = append(report.PassResults, compResult)
		cycleInsights += compResult.InsightsFound
		emit(opts, "compression_complete", map[string]any{"cycle": pad.CycleCount})

		critResult, err := c.Runner.Critique(ctx, pad)
		if err != nil {
			emit(opts, "error", map[string]any{"message": err.Error()})
			return report, err
		}
		report.PassResults = append(report.PassResults, critResult)
		cycleInsights += critResult.InsightsFound
		emit(opts, "critique_complete", map[string]any{"cycle": pad.CycleCount, "confidence": critResult.Confidence})

		if pass.NeedsTargetedReExpansion(critResult, opts.Config) && pad.CycleCount < maxCycles {
			emit(opts, "re_expansion_triggered", map[string]any{"cycle": pad.CycleCount, "major_flaws_found": critResult.MajorFlawsFound})
			flagged := flaggedItems(pad)
			targetedResult, err := c.Runner.TargetedExpansion(ctx, pad, flagged)
			if err != nil {
				emit(opts, "error", map[string]any{"message": err.Error()})
				return report, err
			}
			report.PassResults = append(report.PassResults, targetedResult)
			cycleInsights += targetedResult.InsightsFound

			reCompResult, err := c.Runner.Compression(ctx, pad)
			if err != nil {
				emit(opts, "error", map[string]any{"message": err.Error()})
				return report, err
			}
			report.PassResults = append(report.PassResults, reCompResult)
			cycleInsights += reCompResult.InsightsFound
			emit(opts, "re_expansion_complete", map[string]any{"cycle": pad.CycleCount})
		}

		pad.RecordCycleInsights(cycleInsights)

		if branch.ShouldBranch(pad, len(pad.SectionItems("branches"))) {
			emit(opts, "branching_triggered", map[string]any{"cycle": pad.CycleCount})
			created := branch.CreateFromProposals(pad)
			for _, b := range created {
				emit(opts, "branch_created", map[string]any{"branch_id": b.ID, "thesis": b.Thesis})
			}
			branchResults, err := c.runBranchCycles(ctx, pad, opts.ParallelBranches, opts)
			if err != nil {
				emit(opts, "error", map[string]any{"message": err.Error()})
				return report, err
			}
			report.PassResults = append(report.PassResults, branchResults...)
			pad.CurrentBranchID = ""
		}

		if reason, ok := termination.Check(pad, maxCycles); ok {
			report.TerminationReason = reason
			emit(opts, "terminating", map[string]any{"reason": string(reason), "cycle": pad.CycleCount})
			break
		}
	}

	mergeGuidance := ""
	if outcome, ok := branch.MergeAtSynthesis(pad); ok {
		report.BranchOutcome = &outcome
		mergeGuidance = outcome.Summary()
		pad.CurrentConfidence = outcome.BlendConfidence
		pad.ConfidenceHistory = append(pad.ConfidenceHistory, pad.CurrentConfidence)
	}

	synthResult, err := c.Runner.Synthesis(ctx, pad, mergeGuidance)
	if err != nil {
		emit(opts, "error", map[string]any{"message": err.Error()})
		return report, err
	}
	report.PassResults = append(report.PassResults, synthResult)

	report.FinalConfidence = pad.CurrentConfidence
	report.Trajectory = pad.AnalyzeTrajectory()
	emit(opts, "complete", map[string]any{"session_id": opts.SessionID, "final_confidence": report.FinalConfidence})
	return report, nil
}

func routerContextFor(isFirst bool, routed router.Result) *router.Result {
	if !isFirst {
		return nil
	}
	return &routed
}

// flaggedItems gathers the counter/risk items a critique surfaced, handed
// back to the model as the targeted re-expansion's focus list.
func flaggedItems(pad *scratchpad.Scratchpad) []string {
	var items []string
	items = append(items, pad.SectionItems("counters")...)
	items = append(items, pad.SectionItems("risks")...)
	return items
}

// runBranchCycles executes branch_expansion -> compression -> branch_critique
// for every active branch, sequentially by default or concurrently over
// private clones when opts.ParallelBranches is set. opts.OnProgress, if set,
// must tolerate concurrent calls in the parallel case — the callback's own
// synchronization, not this package's, is what makes that safe.
func (c *Controller) runBranchCycles(ctx context.Context, pad *scratchpad.Scratchpad, parallel bool, opts Options) ([]pass.Result, error) {
	active := pad.ActiveBranches()
	if len(active) == 0 {
		return nil, nil
	}

	if !parallel {
		var results []pass.Result
		for _, b := range active {
			pad.CurrentBranchID = b.ID
			emit(opts, "branch_cycle_start", map[string]any{"branch_id": b.ID})
			branchResults, conf, err := c.runOneBranchCycle(ctx, pad, b)
			if err != nil {
				return results, err
			}
			pad.SetBranchConfidence(b.ID, conf)
			results = append(results, branchResults...)
			emit(opts, "branch_cycle_complete", map[string]any{"branch_id": b.ID, "confidence": conf})
		}
		return results, nil
	}

	type branchOutcome struct {
		pad     *scratchpad.Scratchpad
		results []pass.Result
		conf    float64
	}
	outcomes := make([]branchOutcome, len(active))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range active {
		i, b := i, b
		g.Go(func() error {
			emit(opts, "branch_cycle_start", map[string]any{"branch_id": b.ID})
			clone, err := pad.Clone()
			if err != nil {
				return err
			}
			clone.CurrentBranchID = b.ID
			results, conf, err := c.runOneBranchCycle(gctx, clone, b)
			if err != nil {
				return err
			}
			outcomes[i] = branchOutcome{pad: clone, results: results, conf: conf}
			emit(opts, "branch_cycle_complete", map[string]any{"branch_id": b.ID, "confidence": conf})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var allResults []pass.Result
	for i, b := range active {
		pad.MergeFrom(outcomes[i].pad)
		pad.SetBranchConfidence(b.ID, outcomes[i].conf)
		allResults = append(allResults, outcomes[i].results...)
	}
	return allResults, nil
}

func (c *Controller) runOneBranchCycle(ctx context.Context, pad *scratchpad.Scratchpad, b scratchpad.Branch) ([]pass.Result, float64, error) {
	var results []pass.Result

	expResult, err := c.Runner.BranchExpansion(ctx, pad, b.ID, b.Thesis)
	if err != nil {
		return results, b.Confidence, err
	}
	results = append(results, expResult)

	compResult, err := c.Runner.Compression(ctx, pad)
	if err != nil {
		return results, b.Confidence, err
	}
	results = append(results, compResult)

	critResult, conf, err := c.Runner.BranchCritique(ctx, pad, b.ID, b.Thesis)
	if err != nil {
		return results, b.Confidence, err
	}
	results = append(results, critResult)

	return results, conf, nil
}
