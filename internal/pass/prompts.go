package pass

// Type identifies one of the seven pass kinds the Pass Runner knows how to
// drive.
type Type string

const (
	TypeExpansion         Type = "expansion"
	TypeCompression       Type = "compression"
	TypeTargetedExpansion Type = "targeted_expansion"
	TypeCritique          Type = "critique"
	TypeBranchExpansion   Type = "branch_expansion"
	TypeBranchCritique    Type = "branch_critique"
	TypeSynthesis         Type = "synthesis"
)

// sixQuestioningTechniques is carried over from the retrieval pack's older
// harness almost verbatim, since it is prompt flavor text rather than
// orchestration logic and the external interface contract only requires
// pass prompts be "summarized, not verbatim" for the harness's own
// behavior, not for the actual wording sent to the model.
const sixQuestioningTechniques = `When critiquing, apply these six questioning techniques:
1. INVERSION - What would have to be true for this thesis to be wrong?
2. SECOND-ORDER EFFECTS - What happens after the first-order effect plays out?
3. FALSIFICATION - What evidence would disprove this, and have we looked for it?
4. BASE RATES - How often does this pattern actually hold across history?
5. INCENTIVE AUDIT - Whose incentives does this analysis serve?
6. ADVERSARY SIMULATION - How would a skeptical fund manager attack this thesis?`

// expansionInstructions tells the model to explore divergently and mark
// insights/evidence/risks/counters/patterns/questions/decisions/meta/branch
// candidates.
const expansionInstructions = `Expand on the thesis above. Explore new angles, supporting and
opposing evidence, and second-order implications. Mark your findings:
[INSIGHT] for a new observation, [EVIDENCE] for a specific supporting or
refuting fact, [RISK] for a risk to the thesis, [COUNTER] for a
counterargument, [PATTERN] for a recognized historical or structural
pattern, [QUESTION] for an open question, [DECISION] for a concrete call,
[META] for a process note, and [BRANCH] to propose an alternative thesis
worth developing in its own track.`

const compressionInstructions = `Review the scratchpad above and restate only what still matters at
this level of compression. Do not introduce new claims; consolidate and
re-mark existing [INSIGHT]/[EVIDENCE]/[RISK]/[COUNTER]/[PATTERN] items that
remain load-bearing.`

const critiqueInstructions = sixQuestioningTechniques + `

Critique the thesis above for reasoning quality and evidence quality.
Use these markers where applicable: [TOO_GRANULAR], [TOO_ABSTRACT],
[RIGHT_LEVEL], [TENSION_FOUND], [TENSION_MISSING], [TENSION_WRONG],
[FRAMEWORK], [NOVEL], [MISAPPLIED], [TRANSFERABLE], [CASE_SPECIFIC],
[UNIVERSAL], [REFRAME], [ELEVATE] for dialectical quality; [UNVERIFIED],
[INCOMPLETE], [CONTRADICTED], [UNSTABLE], [DATED] for evidence quality;
[HINDSIGHT], [SURVIVORSHIP] where applicable. End with exactly these three
lines:
REASONING_QUALITY: 0.XX
EVIDENCE_QUALITY: 0.XX
CONCLUSION_CONFIDENCE: 0.XX`

const targetedExpansionInstructionsPrefix = `A prior critique flagged the following items as needing deeper
treatment. Address each directly with new [EVIDENCE], [COUNTER], or
[INSIGHT] markers:
`

const synthesisInstructions = `Write the final synthesis: a single calibrated thesis incorporating
the full scratchpad, the confidence trajectory, and its trend. If
branch-merge guidance is present below, follow it (SELECT the winning
branch outright, or produce a CONDITIONAL thesis of the form "under X, A;
under Y, B" when no branch clearly dominates).`

func branchExpansionInstructions(branchID, thesis string) string {
	return "Developing alternative thesis [" + branchID + "]: " + thesis + "\n\n" + expansionInstructions
}

func branchCritiqueInstructions(branchID, thesis string) string {
	return "Critiquing alternative thesis [" + branchID + "]: " + thesis + "\n\n" + sixQuestioningTechniques + `

End with exactly this line:
CONFIDENCE: 0.XX`
}
