// Package branch implements the branching controller: it turns queued
// [BRANCH] proposals into a forest of ThesisBranch records, runs each
// active branch through its own expansion/compression/critique cycle
// (driven by the pass runner, orchestrated by the cycle controller), and
// merges the forest back into a single thesis at synthesis.
//
// The forest itself is kept as a directed acyclic graph via
// github.com/dominikbraun/graph, following the same New/AddVertex/AddEdge
// idiom the teacher's Graph-of-Thoughts controller uses, adapted from a
// thought-DAG to a thesis-branch DAG keyed by branch id.
package branch

import (
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"

	"thesisharness/internal/scratchpad"
)

// MergeGap is the confidence margin a leading branch must hold over the
// next-highest branch for the synthesis to SELECT it outright rather than
// emit a conditional thesis.
const MergeGap = 0.20

// Forest wraps a branch-id-keyed DAG mirroring scratchpad.Scratchpad's
// Branches slice, giving ancestry queries (Ancestors' parent chains) a
// graph structure to run on instead of a linear scan.
type Forest struct {
	g graph.Graph[string, scratchpad.Branch]
}

func vertexHash(b scratchpad.Branch) string { return b.ID }

// NewForest builds a DAG from the scratchpad's current branch list.
func NewForest(s *scratchpad.Scratchpad) *Forest {
	g := graph.New(vertexHash, graph.Directed())
	for _, b := range s.Branches {
		_ = g.AddVertex(b)
	}
	for _, b := range s.Branches {
		if b.ParentID == "" {
			continue
		}
		if _, err := g.Vertex(b.ParentID); err == nil {
			_ = g.AddEdge(b.ParentID, b.ID)
		}
	}
	return &Forest{g: g}
}

// Ancestors returns the chain of parent branch ids from branchID up to the
// forest's root, nearest ancestor first.
func (f *Forest) Ancestors(branchID string) []string {
	var chain []string
	current, err := f.g.Vertex(branchID)
	if err != nil {
		return chain
	}
	for current.ParentID != "" {
		chain = append(chain, current.ParentID)
		next, err := f.g.Vertex(current.ParentID)
		if err != nil {
			break
		}
		current = next
	}
	return chain
}

// ShouldBranch evaluates the four-way trigger the branching controller
// checks after every main-cycle critique: composite confidence below
// threshold, at least two cycles elapsed, spare branch capacity, and at
// least one queued [BRANCH] proposal.
func ShouldBranch(s *scratchpad.Scratchpad, pendingProposals int) bool {
	cfg := s.Config()
	return s.CurrentConfidence < cfg.BranchConfidenceThreshold &&
		s.CycleCount >= cfg.MinCyclesBeforeBranch &&
		len(s.ActiveBranches()) < cfg.MaxBranches &&
		pendingProposals > 0
}

// CreateFromProposals drains the scratchpad's queued [BRANCH] proposals and
// creates a ThesisBranch per proposal, FIFO, up to the remaining branch
// capacity. Each new branch starts at the current composite confidence and
// is parented to the scratchpad's current branch (empty for a top-level
// branch created from the main thesis).
func CreateFromProposals(s *scratchpad.Scratchpad) []scratchpad.Branch {
	proposals := s.DequeueBranchProposals()
	cfg := s.Config()
	capacity := cfg.MaxBranches - len(s.ActiveBranches())
	if capacity <= 0 {
		return nil
	}

	var created []scratchpad.Branch
	for i, thesis := range proposals {
		if i >= capacity {
			break
		}
		b := scratchpad.Branch{
			ID:           s.NewBranchID(),
			Thesis:       thesis,
			Confidence:   s.CurrentConfidence,
			ParentID:     s.CurrentBranchID,
			CreatedCycle: s.CycleCount,
			IsActive:     true,
		}
		s.AddBranch(b)
		created = append(created, b)
	}
	return created
}

// Outcome is the merge-at-synthesis decision: either a clear winner is
// SELECTed, or the branches disagree closely enough that the synthesis
// should emit a CONDITIONAL thesis naming every active branch.
type Outcome struct {
	Decision        string // "select" or "conditional"
	WinningBranch   scratchpad.Branch
	RunnersUp       []scratchpad.Branch
	BlendConfidence float64
}

// MergeAtSynthesis implements the >0.20-gap SELECT-vs-CONDITIONAL rule and
// the final composite blend: 50% the main thesis's composite, 50% the
// winning branch's confidence.
func MergeAtSynthesis(s *scratchpad.Scratchpad) (Outcome, bool) {
	active := s.ActiveBranches()
	if len(active) == 0 {
		return Outcome{}, false
	}

	sorted := append([]scratchpad.Branch{}, active...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	winner := sorted[0]
	blend := 0.5*s.CurrentConfidence + 0.5*winner.Confidence

	if len(sorted) == 1 {
		return Outcome{Decision: "select", WinningBranch: winner, BlendConfidence: blend}, true
	}

	gap := sorted[0].Confidence - sorted[1].Confidence
	if gap > MergeGap {
		return Outcome{
			Decision:        "select",
			WinningBranch:   winner,
			RunnersUp:       sorted[1:],
			BlendConfidence: blend,
		}, true
	}

	return Outcome{
		Decision:        "conditional",
		WinningBranch:   winner,
		RunnersUp:       sorted[1:],
		BlendConfidence: blend,
	}, true
}

// Summary renders a human-readable description of an outcome, used by the
// synthesis pass prompt to tell the model which branch-merge guidance to
// follow.
func (o Outcome) Summary() string {
	if o.Decision == "select" {
		return fmt.Sprintf("SELECT branch %s (confidence %.2f): %s", o.WinningBranch.ID, o.WinningBranch.Confidence, o.WinningBranch.Thesis)
	}
	s := fmt.Sprintf("CONDITIONAL: leading branch %s (confidence %.2f): %s", o.WinningBranch.ID, o.WinningBranch.Confidence, o.WinningBranch.Thesis)
	for _, r := range o.RunnersUp {
		s += fmt.Sprintf("; alternative %s (confidence %.2f): %s", r.ID, r.Confidence, r.Thesis)
	}
	return s
}
