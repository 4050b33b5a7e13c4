// Package proto defines the stage vocabulary, approval statuses, and error
// taxonomy shared across the proposal workflow engine.
package proto

import "fmt"

// Stage represents a phase of the fixed proposal pipeline.
type Stage string

// Stage constants - single source of truth for stage names.
const (
	StageIntake          Stage = "intake"
	StageDraft           Stage = "draft"
	StagePricing         Stage = "pricing"
	StageCompliance      Stage = "compliance"
	StageWaitForApproval Stage = "wait_for_approval"
	StageFinalize        Stage = "finalize"
	StageRejected        Stage = "rejected"
)

func (s Stage) String() string {
	return string(s)
}

// IsTerminal reports whether no further mutation is allowed in this stage.
func (s Stage) IsTerminal() bool {
	return s == StageFinalize || s == StageRejected
}

// StageTransitions defines the canonical stage transition map. This is the
// single source of truth; any code, tests, or diagrams must match it exactly.
//
// COMPLIANCE has exactly one exit: WAIT_FOR_APPROVAL. There is no conditional
// edge that routes around the human gate on margin or a clean compliance run.
var StageTransitions = map[Stage][]Stage{
	// INTAKE loops on itself while required fields are missing, then advances.
	StageIntake: {StageIntake, StageDraft},

	// DRAFT produces crm_data and draft_v1, then moves to pricing.
	StageDraft: {StagePricing},

	// PRICING populates the pricing artifact, then moves to compliance.
	StagePricing: {StageCompliance},

	// COMPLIANCE always hands off to the human gate, pass or fail.
	StageCompliance: {StageWaitForApproval},

	// WAIT_FOR_APPROVAL resolves only through an explicit admin decision.
	StageWaitForApproval: {StageFinalize, StageRejected},

	// FINALIZE and REJECTED are terminal. A rejected proposal is reopened
	// only by creating a new session, never by mutating this one.
	StageFinalize: {},
	StageRejected: {},
}

// IsValidStageTransition checks if a transition between two stages is allowed
// according to the canonical stage map.
func IsValidStageTransition(from, to Stage) bool {
	allowed, exists := StageTransitions[from]
	if !exists {
		return false
	}

	for _, stage := range allowed {
		if stage == to {
			return true
		}
	}

	return false
}

// ValidateStage checks if a stage is part of the pipeline vocabulary.
func ValidateStage(stage Stage) error {
	if _, exists := StageTransitions[stage]; !exists {
		return fmt.Errorf("invalid stage: %s", stage)
	}
	return nil
}

// AllStages returns every stage in pipeline order.
func AllStages() []Stage {
	return []Stage{
		StageIntake, StageDraft, StagePricing, StageCompliance,
		StageWaitForApproval, StageFinalize, StageRejected,
	}
}

// ApprovalStatus tracks the human-gate outcome for a session.
type ApprovalStatus string

const (
	ApprovalNone      ApprovalStatus = "none"
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalFinalized ApprovalStatus = "finalized"
)

func (a ApprovalStatus) String() string {
	return string(a)
}

// Decision is an admin action on a pending session.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ValidateDecision checks that a decision string is one of the two actions.
func ValidateDecision(d Decision) error {
	if d != DecisionApprove && d != DecisionReject {
		return fmt.Errorf("invalid decision: %s", d)
	}
	return nil
}
