// Package pass implements the pass runner: one method per pass type, each
// composing a system prompt from the current scratchpad render plus
// pass-specific instructions, invoking the oracle, merging the reply back
// into the scratchpad, and returning a PassResult the cycle controller logs
// and inspects.
package pass

import (
	"context"
	"time"

	"thesisharness/internal/marker"
	"thesisharness/internal/oracle"
	"thesisharness/internal/router"
	"thesisharness/internal/scratchpad"
)

// MaxOutputTokens bounds a single oracle call's reply length.
const MaxOutputTokens = 4096

// Result is what every pass method returns: the raw text, the
// scratchpad-derived state after merging, and bookkeeping the cycle
// controller and termination detector consult.
type Result struct {
	PassType         Type
	Content          string
	Confidence       float64
	DurationMs       int64
	TokensUsed       int
	InsightsFound    int
	MajorFlawsFound  int
	FallacyCount     int
	EvidenceGapCount int
}

// Runner drives pass execution against a single oracle.
type Runner struct {
	Oracle oracle.Oracle
}

// NewRunner constructs a Runner over the given oracle.
func NewRunner(o oracle.Oracle) *Runner {
	return &Runner{Oracle: o}
}

func (r *Runner) invoke(ctx context.Context, passType Type, systemPrompt, userPrompt string) (string, int64, int, error) {
	start := time.Now()
	text, tokens, err := r.Oracle.Invoke(ctx, systemPrompt, userPrompt, MaxOutputTokens)
	return text, time.Since(start).Milliseconds(), tokens, err
}

// Expansion runs the first or a later expansion pass. routerResult is only
// non-nil for the very first expansion of a session, per spec §4.5 —
// later expansions do not re-inject router context.
func (r *Runner) Expansion(ctx context.Context, s *scratchpad.Scratchpad, routerResult *router.Result) (Result, error) {
	systemPrompt := s.Render() + "\n\n" + expansionInstructions
	if routerResult != nil {
		systemPrompt += "\n\n" + routerResult.AssembledContext()
	}

	text, durationMs, tokens, err := r.invoke(ctx, TypeExpansion, systemPrompt, s.Title)
	if err != nil {
		return Result{}, err
	}

	ext := s.ExtractAndMerge(text)
	return Result{
		PassType:      TypeExpansion,
		Content:       text,
		Confidence:    s.CurrentConfidence,
		DurationMs:    durationMs,
		TokensUsed:    tokens,
		InsightsFound: scratchpad.NewInsightCount(ext),
	}, nil
}

// Compression runs the compression pass: the scratchpad's own two-tier
// truncation already runs inside ExtractAndMerge when over budget, so this
// pass exists to let the model itself restate what still matters, which the
// merge step then deduplicates against.
func (r *Runner) Compression(ctx context.Context, s *scratchpad.Scratchpad) (Result, error) {
	systemPrompt := s.Render() + "\n\n" + compressionInstructions

	text, durationMs, tokens, err := r.invoke(ctx, TypeCompression, systemPrompt, s.Title)
	if err != nil {
		return Result{}, err
	}

	ext := s.ExtractAndMerge(text)
	return Result{
		PassType:      TypeCompression,
		Content:       text,
		Confidence:    s.CurrentConfidence,
		DurationMs:    durationMs,
		TokensUsed:    tokens,
		InsightsFound: scratchpad.NewInsightCount(ext),
	}, nil
}

// Critique runs the critique pass: in addition to the ordinary marker merge,
// it parses the confidence triple (or legacy single value) and applies it
// to the scratchpad's confidence model.
func (r *Runner) Critique(ctx context.Context, s *scratchpad.Scratchpad) (Result, error) {
	systemPrompt := s.Render() + "\n\n" + critiqueInstructions

	text, durationMs, tokens, err := r.invoke(ctx, TypeCritique, systemPrompt, s.Title)
	if err != nil {
		return Result{}, err
	}

	ext := s.ExtractAndMerge(text)
	declared := declaredConclusion(ext.Confidence)
	s.UpdateConfidence(ext.FallacyCount, ext.EvidenceGapCount, declared)

	return Result{
		PassType:         TypeCritique,
		Content:          text,
		Confidence:       s.CurrentConfidence,
		DurationMs:       durationMs,
		TokensUsed:       tokens,
		InsightsFound:    scratchpad.NewInsightCount(ext),
		MajorFlawsFound:  ext.MajorFlaws,
		FallacyCount:     ext.FallacyCount,
		EvidenceGapCount: ext.EvidenceGapCount,
	}, nil
}

// NeedsTargetedReExpansion reports whether a critique's major-flaw score
// crossed the re-expansion threshold, per spec §4.5.
func NeedsTargetedReExpansion(critique Result, cfg scratchpad.Config) bool {
	return critique.MajorFlawsFound >= cfg.ReExpansionThreshold
}

// TargetedExpansion re-expands specifically on the flagged critique items.
func (r *Runner) TargetedExpansion(ctx context.Context, s *scratchpad.Scratchpad, flaggedItems []string) (Result, error) {
	prompt := targetedExpansionInstructionsPrefix
	for _, item := range flaggedItems {
		prompt += "- " + item + "\n"
	}
	systemPrompt := s.Render() + "\n\n" + prompt

	text, durationMs, tokens, err := r.invoke(ctx, TypeTargetedExpansion, systemPrompt, s.Title)
	if err != nil {
		return Result{}, err
	}

	ext := s.ExtractAndMerge(text)
	return Result{
		PassType:      TypeTargetedExpansion,
		Content:       text,
		Confidence:    s.CurrentConfidence,
		DurationMs:    durationMs,
		TokensUsed:    tokens,
		InsightsFound: scratchpad.NewInsightCount(ext),
	}, nil
}

// BranchExpansion expands a single active branch's thesis.
func (r *Runner) BranchExpansion(ctx context.Context, s *scratchpad.Scratchpad, branchID, thesis string) (Result, error) {
	systemPrompt := s.Render() + "\n\n" + branchExpansionInstructions(branchID, thesis)

	text, durationMs, tokens, err := r.invoke(ctx, TypeBranchExpansion, systemPrompt, thesis)
	if err != nil {
		return Result{}, err
	}

	ext := s.ExtractAndMerge(text)
	return Result{
		PassType:      TypeBranchExpansion,
		Content:       text,
		Confidence:    s.CurrentConfidence,
		DurationMs:    durationMs,
		TokensUsed:    tokens,
		InsightsFound: scratchpad.NewInsightCount(ext),
	}, nil
}

// BranchCritique critiques a single active branch and parses its
// CONFIDENCE: 0.XX declaration, returning it without touching the branch
// record (the caller is responsible for calling s.SetBranchConfidence with
// the result).
func (r *Runner) BranchCritique(ctx context.Context, s *scratchpad.Scratchpad, branchID, thesis string) (Result, float64, error) {
	systemPrompt := s.Render() + "\n\n" + branchCritiqueInstructions(branchID, thesis)

	text, durationMs, tokens, err := r.invoke(ctx, TypeBranchCritique, systemPrompt, thesis)
	if err != nil {
		return Result{}, 0, err
	}

	ext := s.ExtractAndMerge(text)
	conf := s.CurrentConfidence
	if ext.Confidence.Legacy != nil {
		conf = *ext.Confidence.Legacy
	}

	return Result{
		PassType:      TypeBranchCritique,
		Content:       text,
		Confidence:    conf,
		DurationMs:    durationMs,
		TokensUsed:    tokens,
		InsightsFound: scratchpad.NewInsightCount(ext),
	}, conf, nil
}

// Synthesis runs the final pass. mergeGuidance is empty when no branches
// were active; otherwise it is the branch controller's SELECT/CONDITIONAL
// summary, appended so the model knows which guidance to follow.
func (r *Runner) Synthesis(ctx context.Context, s *scratchpad.Scratchpad, mergeGuidance string) (Result, error) {
	systemPrompt := s.Render() + "\n\n" + synthesisInstructions
	if mergeGuidance != "" {
		systemPrompt += "\n\nBranch merge guidance: " + mergeGuidance
	}

	text, durationMs, tokens, err := r.invoke(ctx, TypeSynthesis, systemPrompt, s.Title)
	if err != nil {
		return Result{}, err
	}

	return Result{
		PassType:   TypeSynthesis,
		Content:    text,
		Confidence: s.CurrentConfidence,
		DurationMs: durationMs,
		TokensUsed: tokens,
	}, nil
}

// declaredConclusion picks the conclusion-confidence value a critique
// declared, preferring the numeric triple over the legacy single value.
func declaredConclusion(decl marker.ConfidenceDeclaration) *float64 {
	if decl.ConclusionConfidence != nil {
		return decl.ConclusionConfidence
	}
	return decl.Legacy
}
