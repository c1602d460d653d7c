// Package scratchpad implements the harness's single mutable working-memory
// document: a set of deduplicated sections, a never-compressed key-evidence
// anchor list, a branch forest, and the confidence trajectory. It is the
// single hub every other component reads and writes between passes; no
// locking is required because a session owns its scratchpad exclusively
// between suspension points (see the harness's concurrency model).
package scratchpad

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"thesisharness/internal/confidence"
	"thesisharness/internal/ids"
	"thesisharness/internal/marker"
)

// Direction describes whether a key-evidence anchor supports, challenges, or
// is neutral toward the thesis.
type Direction string

const (
	DirectionSupports  Direction = "supports"
	DirectionChallenges Direction = "challenges"
	DirectionNeutral   Direction = "neutral"
)

// ClaimType tags a seeded claim.
type ClaimType string

const (
	ClaimCoreThesis ClaimType = "core_thesis"
	ClaimFramework  ClaimType = "framework"
	ClaimMeta       ClaimType = "meta"
	ClaimCounter    ClaimType = "counter"
	ClaimClaim      ClaimType = "claim"
)

// Claim is an immutable unit of source material seeded into the scratchpad
// at session start.
type Claim struct {
	ID      string    `json:"id"`
	Text    string    `json:"text"`
	Type    ClaimType `json:"type"`
	Snippet string    `json:"snippet"`
}

// KeyEvidence is an anchor exempt from all compression, deduplicated by
// content equality.
type KeyEvidence struct {
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Strength  float64   `json:"strength"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}

// Branch mirrors the forest-node shape named in the spec as ThesisBranch.
type Branch struct {
	ID           string  `json:"id"`
	Thesis       string  `json:"thesis"`
	Confidence   float64 `json:"confidence"`
	ParentID     string  `json:"parent_id,omitempty"`
	CreatedCycle int     `json:"created_cycle"`
	IsActive     bool    `json:"is_active"`
}

// section is one of the ten fixed scratchpad sections.
type section struct {
	Kind        marker.SectionKind `json:"kind"`
	Items       []string           `json:"items"`
	Preserved   bool               `json:"preserved"`
	LastUpdated time.Time          `json:"last_updated"`
}

// orderedSectionKinds fixes iteration/render order; preserved sections are
// claims, evidence, decisions, meta (they resist compression the longest,
// matching the emphasis the source places on theses, supporting data,
// recorded decisions, and process notes surviving longest).
var orderedSectionKinds = []marker.SectionKind{
	marker.SectionClaims,
	marker.SectionInsights,
	marker.SectionEvidence,
	marker.SectionRisks,
	marker.SectionCounters,
	marker.SectionQuestions,
	marker.SectionPatterns,
	marker.SectionDecisions,
	marker.SectionMeta,
	marker.SectionBranches,
}

var preservedKinds = map[marker.SectionKind]bool{
	marker.SectionClaims:    true,
	marker.SectionEvidence:  true,
	marker.SectionDecisions: true,
	marker.SectionMeta:      true,
}

// Config holds the named constants the spec requires to live on one
// configuration record rather than scattered through code.
type Config struct {
	MaxTokens                int
	Tier1RecentItems          int
	Tier2RecentItems          int
	BranchConfidenceThreshold float64
	MaxBranches               int
	MinCyclesBeforeBranch     int
	SaturationDelta           float64
	DiminishingReturnsRatio   float64
	HighConfidenceThreshold   float64
	OpenQuestionsCeiling      int
	ReExpansionThreshold      int
}

// DefaultConfig returns the constants named explicitly in the spec.
func DefaultConfig() Config {
	return Config{
		MaxTokens:                 8000,
		Tier1RecentItems:          5,
		Tier2RecentItems:          10,
		BranchConfidenceThreshold: 0.4,
		MaxBranches:               3,
		MinCyclesBeforeBranch:     2,
		SaturationDelta:           0.05,
		DiminishingReturnsRatio:   0.5,
		HighConfidenceThreshold:   0.75,
		OpenQuestionsCeiling:      2,
		ReExpansionThreshold:      3,
	}
}

// Scratchpad is the session-scoped mutable working-memory document.
type Scratchpad struct {
	SessionID        string                        `json:"session_id"`
	Title            string                        `json:"title"`
	sections         map[marker.SectionKind]*section
	KeyEvidence      []KeyEvidence                 `json:"key_evidence"`
	ConfidenceHistory []float64                    `json:"confidence_history"`
	CurrentConfidence float64                       `json:"current_confidence"`
	ConfidenceModel  confidence.Model               `json:"confidence_model"`
	InsightCounts    []int                          `json:"insight_counts"`
	Branches         []Branch                       `json:"branches"`
	CurrentBranchID  string                         `json:"current_branch_id,omitempty"`
	CycleCount       int                            `json:"cycle_count"`
	CreatedAt        time.Time                      `json:"created_at"`
	LastUpdated      time.Time                      `json:"last_updated"`

	cfg Config
}

// New creates a scratchpad seeded with a title and analysis mode.
func New(sessionID, title string, mode confidence.AnalysisMode, cfg Config) *Scratchpad {
	now := time.Now()
	s := &Scratchpad{
		SessionID:        sessionID,
		Title:            title,
		sections:         make(map[marker.SectionKind]*section),
		ConfidenceModel:  confidence.Initial(mode),
		CreatedAt:        now,
		LastUpdated:      now,
		cfg:              cfg,
	}
	s.CurrentConfidence = s.ConfidenceModel.Composite()
	for _, kind := range orderedSectionKinds {
		s.sections[kind] = &section{Kind: kind, Preserved: preservedKinds[kind], LastUpdated: now}
	}
	return s
}

// AddClaim appends a claim to the claims section iff its text is not
// already present.
func (s *Scratchpad) AddClaim(c Claim) {
	s.appendUnique(marker.SectionClaims, c.Text)
}

// AddKeyEvidence appends an anchor iff its content is new. Key evidence is
// never removed or truncated by compression.
func (s *Scratchpad) AddKeyEvidence(content, source string, strength float64, direction Direction) {
	for _, ke := range s.KeyEvidence {
		if ke.Content == content {
			return
		}
	}
	s.KeyEvidence = append(s.KeyEvidence, KeyEvidence{
		Content:   content,
		Source:    source,
		Strength:  strength,
		Direction: direction,
		Timestamp: time.Now(),
	})
}

// ExtractAndMerge runs the marker extractor over text, merges newly seen
// items into their target sections, and triggers compression if the
// estimated token count now exceeds MaxTokens. It returns the extraction
// with SectionItems narrowed to the items newly inserted by this call, so
// NewInsightCount gives the count of newly inserted items used by the
// termination detector's diminishing-returns check.
func (s *Scratchpad) ExtractAndMerge(text string) marker.Extraction {
	ext := marker.Extract(text, s.ConfidenceModel.Mode)

	inserted := make(map[marker.SectionKind][]string)
	for kind, items := range ext.SectionItems {
		for _, item := range items {
			if s.appendUnique(kind, item) {
				inserted[kind] = append(inserted[kind], item)
			}
		}
	}
	ext.SectionItems = inserted

	if s.EstimateTokens() > s.cfg.MaxTokens {
		s.Compress()
	}

	return ext
}

// NewInsightCount counts items across all section kinds in an Extraction —
// a convenience used by callers that already hold the extraction and need
// the scalar the spec calls new_insight_count. Applied to ExtractAndMerge's
// result, that is the number of items newly inserted by that call.
func NewInsightCount(ext marker.Extraction) int {
	total := 0
	for _, items := range ext.SectionItems {
		total += len(items)
	}
	return total
}

func (s *Scratchpad) appendUnique(kind marker.SectionKind, item string) bool {
	sec := s.sections[kind]
	for _, existing := range sec.Items {
		if existing == item {
			return false
		}
	}
	sec.Items = append(sec.Items, item)
	sec.LastUpdated = time.Now()
	s.LastUpdated = sec.LastUpdated
	return true
}

// EstimateTokens approximates token count as characters/4 over the full
// rendered view, matching the spec's stated estimator.
func (s *Scratchpad) EstimateTokens() int {
	return len(s.Render()) / 4
}

// Compress runs the two-tier anchored compression rule. Tier 1 truncates
// every non-preserved section to its most recent 5 items. Tier 2, only if
// still over budget, truncates preserved sections to their most recent 10.
// Key evidence and branch records are never touched.
func (s *Scratchpad) Compress() {
	for _, kind := range orderedSectionKinds {
		if kind == marker.SectionBranches {
			continue
		}
		sec := s.sections[kind]
		if !sec.Preserved {
			truncateToRecent(sec, s.cfg.Tier1RecentItems)
		}
	}

	if s.EstimateTokens() <= s.cfg.MaxTokens {
		return
	}

	for _, kind := range orderedSectionKinds {
		if kind == marker.SectionBranches {
			continue
		}
		sec := s.sections[kind]
		if sec.Preserved {
			truncateToRecent(sec, s.cfg.Tier2RecentItems)
		}
	}
}

func truncateToRecent(sec *section, n int) {
	if len(sec.Items) <= n {
		return
	}
	sec.Items = append([]string{}, sec.Items[len(sec.Items)-n:]...)
}

// IncrementCycle advances cycle_count by one and is the only way
// cycle_count moves, guaranteeing monotonicity.
func (s *Scratchpad) IncrementCycle() int {
	s.CycleCount++
	return s.CycleCount
}

// RecordCycleInsights appends a per-cycle insight total, consulted by the
// diminishing-returns termination check.
func (s *Scratchpad) RecordCycleInsights(count int) {
	s.InsightCounts = append(s.InsightCounts, count)
}

// UpdateConfidence applies a critique pass's fallacy/gap counts and declared
// conclusion confidence to the confidence model, appends the new composite
// to the history, and updates current_confidence.
func (s *Scratchpad) UpdateConfidence(fallacies, gaps int, declaredConclusion *float64) {
	s.ConfidenceModel = confidence.Update(s.ConfidenceModel, fallacies, gaps, declaredConclusion)
	s.CurrentConfidence = s.ConfidenceModel.Composite()
	s.ConfidenceHistory = append(s.ConfidenceHistory, s.CurrentConfidence)
}

// OpenQuestionCount returns the number of items currently in the questions
// section, consulted by the high-confidence-stable termination check.
func (s *Scratchpad) OpenQuestionCount() int {
	return len(s.sections[marker.SectionQuestions].Items)
}

// DequeueBranchProposals drains and clears the branches section, returning
// the raw proposal texts in FIFO order. Called by the branching controller
// when creating new ThesisBranch records.
func (s *Scratchpad) DequeueBranchProposals() []string {
	sec := s.sections[marker.SectionBranches]
	proposals := append([]string{}, sec.Items...)
	sec.Items = nil
	return proposals
}

// ActiveBranches returns all branches with IsActive set.
func (s *Scratchpad) ActiveBranches() []Branch {
	var active []Branch
	for _, b := range s.Branches {
		if b.IsActive {
			active = append(active, b)
		}
	}
	return active
}

// AddBranch appends a new branch to the forest.
func (s *Scratchpad) AddBranch(b Branch) {
	s.Branches = append(s.Branches, b)
}

// SetBranchConfidence updates the named branch's confidence in place.
func (s *Scratchpad) SetBranchConfidence(branchID string, conf float64) {
	for i := range s.Branches {
		if s.Branches[i].ID == branchID {
			s.Branches[i].Confidence = conf
			return
		}
	}
}

// DeactivateBranch marks a branch inactive. Deactivation is one-way within
// a session.
func (s *Scratchpad) DeactivateBranch(branchID string) {
	for i := range s.Branches {
		if s.Branches[i].ID == branchID {
			s.Branches[i].IsActive = false
			return
		}
	}
}

// NewBranchID returns a fresh branch identifier.
func (s *Scratchpad) NewBranchID() string {
	return ids.Prefixed("branch")
}

// Render produces a deterministic markdown view: thesis, cycle, confidence,
// trajectory arrow, the key-evidence block (always full), active branches,
// then each non-empty section under its uppercase header.
func (s *Scratchpad) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	fmt.Fprintf(&b, "Cycle: %d\n", s.CycleCount)
	fmt.Fprintf(&b, "Confidence: %.2f %s\n\n", s.CurrentConfidence, trajectoryArrow(s.ConfidenceHistory))

	if len(s.KeyEvidence) > 0 {
		b.WriteString("## KEY EVIDENCE\n")
		for _, ke := range s.KeyEvidence {
			fmt.Fprintf(&b, "- [%s, strength=%.2f] %s (source: %s)\n", ke.Direction, ke.Strength, ke.Content, ke.Source)
		}
		b.WriteString("\n")
	}

	if active := s.ActiveBranches(); len(active) > 0 {
		b.WriteString("## ACTIVE BRANCHES\n")
		for _, br := range active {
			fmt.Fprintf(&b, "- [%s] %s (confidence=%.2f)\n", br.ID, br.Thesis, br.Confidence)
		}
		b.WriteString("\n")
	}

	for _, kind := range orderedSectionKinds {
		sec := s.sections[kind]
		if len(sec.Items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", strings.ToUpper(string(kind)))
		for _, item := range sec.Items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// trajectoryArrow gives a one-glyph hint of the confidence trend, purely for
// the rendered view (not consulted by any decision logic).
func trajectoryArrow(history []float64) string {
	if len(history) < 2 {
		return ""
	}
	delta := history[len(history)-1] - history[len(history)-2]
	switch {
	case delta > 0.03:
		return "↑"
	case delta < -0.03:
		return "↓"
	default:
		return "→"
	}
}

// TrajectoryAnalysis summarizes the confidence history's shape.
type TrajectoryAnalysis struct {
	IsMonotonic bool    `json:"is_monotonic"`
	MaxDip      float64 `json:"max_dip"`
	FinalTrend  string  `json:"final_trend"`
}

// AnalyzeTrajectory reports whether confidence rose monotonically, the
// largest single-step dip, and the final trend glyph.
func (s *Scratchpad) AnalyzeTrajectory() TrajectoryAnalysis {
	h := s.ConfidenceHistory
	if len(h) == 0 {
		return TrajectoryAnalysis{IsMonotonic: true, FinalTrend: "→"}
	}

	monotonic := true
	maxDip := 0.0
	for i := 1; i < len(h); i++ {
		delta := h[i] - h[i-1]
		if delta < 0 {
			monotonic = false
			if -delta > maxDip {
				maxDip = -delta
			}
		}
	}

	return TrajectoryAnalysis{
		IsMonotonic: monotonic,
		MaxDip:      maxDip,
		FinalTrend:  trajectoryArrow(h),
	}
}

// --- serialization ---

// wireSection is the JSON-visible shape of a section, since the internal
// section store is an unexported map keyed by a closed enum rather than an
// open dictionary (spec §9).
type wireSection struct {
	Kind        marker.SectionKind `json:"kind"`
	Items       []string           `json:"items"`
	Preserved   bool               `json:"preserved"`
	LastUpdated time.Time          `json:"last_updated"`
}

type wireScratchpad struct {
	SessionID         string            `json:"session_id"`
	Title             string            `json:"title"`
	Sections          []wireSection     `json:"sections"`
	KeyEvidence       []KeyEvidence     `json:"key_evidence"`
	ConfidenceHistory []float64         `json:"confidence_history"`
	CurrentConfidence float64           `json:"current_confidence"`
	ConfidenceModel   confidence.Model  `json:"confidence_model"`
	InsightCounts     []int             `json:"insight_counts"`
	Branches          []Branch          `json:"branches"`
	CurrentBranchID   string            `json:"current_branch_id,omitempty"`
	CycleCount        int               `json:"cycle_count"`
	CreatedAt         time.Time         `json:"created_at"`
	LastUpdated       time.Time         `json:"last_updated"`
	Config            Config            `json:"config"`
}

// MarshalJSON serializes all fields named in the spec, including the
// section store, key evidence, branches, and confidence model.
func (s *Scratchpad) MarshalJSON() ([]byte, error) {
	w := wireScratchpad{
		SessionID:         s.SessionID,
		Title:             s.Title,
		KeyEvidence:       s.KeyEvidence,
		ConfidenceHistory: s.ConfidenceHistory,
		CurrentConfidence: s.CurrentConfidence,
		ConfidenceModel:   s.ConfidenceModel,
		InsightCounts:     s.InsightCounts,
		Branches:          s.Branches,
		CurrentBranchID:   s.CurrentBranchID,
		CycleCount:        s.CycleCount,
		CreatedAt:         s.CreatedAt,
		LastUpdated:       s.LastUpdated,
		Config:            s.cfg,
	}
	for _, kind := range orderedSectionKinds {
		sec := s.sections[kind]
		w.Sections = append(w.Sections, wireSection{
			Kind:        sec.Kind,
			Items:       sec.Items,
			Preserved:   sec.Preserved,
			LastUpdated: sec.LastUpdated,
		})
	}
	sort.Slice(w.Sections, func(i, j int) bool { return w.Sections[i].Kind < w.Sections[j].Kind })
	return json.Marshal(w)
}

// UnmarshalJSON restores all fields, rebuilding the section store from the
// wire representation. Deserialize(Serialize(s)) reproduces s exactly.
func (s *Scratchpad) UnmarshalJSON(data []byte) error {
	var w wireScratchpad
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	s.SessionID = w.SessionID
	s.Title = w.Title
	s.KeyEvidence = w.KeyEvidence
	s.ConfidenceHistory = w.ConfidenceHistory
	s.CurrentConfidence = w.CurrentConfidence
	s.ConfidenceModel = w.ConfidenceModel
	s.InsightCounts = w.InsightCounts
	s.Branches = w.Branches
	s.CurrentBranchID = w.CurrentBranchID
	s.CycleCount = w.CycleCount
	s.CreatedAt = w.CreatedAt
	s.LastUpdated = w.LastUpdated
	s.cfg = w.Config

	s.sections = make(map[marker.SectionKind]*section)
	for _, kind := range orderedSectionKinds {
		s.sections[kind] = &section{Kind: kind, Preserved: preservedKinds[kind], LastUpdated: s.LastUpdated}
	}
	for _, ws := range w.Sections {
		s.sections[ws.Kind] = &section{
			Kind:        ws.Kind,
			Items:       ws.Items,
			Preserved:   ws.Preserved,
			LastUpdated: ws.LastUpdated,
		}
	}
	return nil
}

// Equal reports deep equality for round-trip testing. Map ordering in
// Go's JSON encoding of sections is made deterministic via the sorted wire
// representation, so byte-for-byte JSON comparison is also valid; Equal is
// provided for clearer test failures.
func (s *Scratchpad) Equal(other *Scratchpad) bool {
	a, errA := json.Marshal(s)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return string(a) == string(b)
}

// Clone returns a deep copy of the scratchpad, used by the optional
// parallel branch-cycle mode so each branch can mutate its own copy without
// synchronization and be merged back afterward.
func (s *Scratchpad) Clone() (*Scratchpad, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	clone := &Scratchpad{}
	if err := json.Unmarshal(data, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// MergeFrom folds a branch clone's divergent state back into s after a
// parallel branch cycle, per the concurrency model's merge rule: each
// section becomes the union of items preserving s's order followed by the
// clone's new items in the clone's order; key evidence is unioned with
// duplicate-content collapse; branches are unioned keyed by branch id.
func (s *Scratchpad) MergeFrom(clone *Scratchpad) {
	for _, kind := range orderedSectionKinds {
		for _, item := range clone.sections[kind].Items {
			s.appendUnique(kind, item)
		}
	}

	for _, ke := range clone.KeyEvidence {
		found := false
		for _, existing := range s.KeyEvidence {
			if existing.Content == ke.Content {
				found = true
				break
			}
		}
		if !found {
			s.KeyEvidence = append(s.KeyEvidence, ke)
		}
	}

	byID := make(map[string]bool, len(s.Branches))
	for _, b := range s.Branches {
		byID[b.ID] = true
	}
	for _, b := range clone.Branches {
		if !byID[b.ID] {
			s.Branches = append(s.Branches, b)
			byID[b.ID] = true
		}
	}
}

// SectionItems exposes a section's current items for callers (e.g. the
// probe evaluator, the targeted re-expansion prompt builder) that need
// read-only access without mutating state.
func (s *Scratchpad) SectionItems(kind marker.SectionKind) []string {
	return append([]string{}, s.sections[kind].Items...)
}

// Config returns the scratchpad's compression/termination configuration.
func (s *Scratchpad) Config() Config {
	return s.cfg
}
