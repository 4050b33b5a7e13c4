// Package proposal defines the per-session proposal state record, the sole
// unit of persistence and concurrency control in the workflow engine.
package proposal

import (
	"fmt"
	"time"

	"northstar/pkg/proto"
)

// Required field names in canonical collection order. The question planner
// asks for these one at a time, first missing first.
const (
	FieldClientName = "client_name"
	FieldDealType   = "deal_type"
	FieldBudget     = "budget"
	FieldTimeline   = "timeline"
)

// RequiredFields returns the fixed ordered set of required intake fields.
func RequiredFields() []string {
	return []string{FieldClientName, FieldDealType, FieldBudget, FieldTimeline}
}

// Section field names the extractor may fill from free text. Optional; the
// draft template substitutes defaults for any that stay empty.
const (
	FieldProposalTitle        = "proposal_title"
	FieldProblemStatement     = "problem_statement"
	FieldSolutionOverview     = "solution_overview"
	FieldArchitectureApproach = "architecture_approach"
	FieldPricingDetails       = "pricing_details"
	FieldComplianceInfo       = "compliance_info"
	FieldTermsConditions      = "terms_conditions"
	FieldConclusion           = "conclusion"
)

// CRMData is the client record returned by the CRM enrichment service.
type CRMData struct {
	ClientID      string `json:"client_id"`
	Name          string `json:"name"`
	Industry      string `json:"industry"`
	AnnualRevenue int64  `json:"annual_revenue"`
	TrustScore    int    `json:"trust_score"`
	PreviousDeals int    `json:"previous_deals"`
}

// Pricing is the pricing stage artifact.
type Pricing struct {
	BaseCost       float64 `json:"base_cost"`
	SuggestedPrice float64 `json:"suggested_price"`
	Margin         float64 `json:"margin"`
	MaxDiscount    float64 `json:"max_discount"`
	Currency       string  `json:"currency"`
}

// ComplianceStatus is the compliance stage artifact.
type ComplianceStatus struct {
	Passed    bool     `json:"passed"`
	Issues    []string `json:"issues"`
	CheckedAt int64    `json:"checked_at"`
}

// Attachment references an image uploaded during the conversation.
type Attachment struct {
	Reference   string `json:"reference"`
	Description string `json:"description,omitempty"`
	Section     string `json:"section,omitempty"`
}

// RevisionLine is one line of the draft v1 → v2 diff.
type RevisionLine struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

// State is the full per-session proposal record. Mutated exclusively by the
// workflow engine under the session's lock; everything else sees snapshots.
type State struct {
	SessionID   string `json:"session_id"`
	UserRequest string `json:"user_request"`

	// Conversational accumulator.
	RequiredFields   []string          `json:"required_fields"`
	CollectedFields  map[string]string `json:"collected_fields"`
	MissingFields    []string          `json:"missing_fields"`
	PendingQuestions []string          `json:"pending_questions"`
	CurrentQuestion  string            `json:"current_question"`
	Attachments      []Attachment      `json:"uploaded_images,omitempty"`

	// Pipeline artifacts, each written exactly once by its owning stage.
	CRMData          *CRMData          `json:"crm_data,omitempty"`
	DraftV1          string            `json:"draft_v1,omitempty"`
	Pricing          *Pricing          `json:"pricing,omitempty"`
	ComplianceStatus *ComplianceStatus `json:"compliance_status,omitempty"`
	DraftV2          string            `json:"draft_v2,omitempty"`
	FinalDraft       string            `json:"final_draft,omitempty"`
	RevisionDiff     []RevisionLine    `json:"revision_diff,omitempty"`

	// Approval fields.
	ApprovalStatus     proto.ApprovalStatus `json:"approval_status"`
	ApprovalComments   string               `json:"approval_comments,omitempty"`
	FinalizedTimestamp *time.Time           `json:"finalized_timestamp,omitempty"`

	// Process metadata.
	CurrentStep proto.Stage `json:"current_step"`
	AuditLog    []string    `json:"audit_log"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// New creates a fresh session record in the intake stage.
func New(sessionID, userRequest string, now time.Time) *State {
	return &State{
		SessionID:       sessionID,
		UserRequest:     userRequest,
		RequiredFields:  RequiredFields(),
		CollectedFields: make(map[string]string),
		MissingFields:   RequiredFields(),
		ApprovalStatus:  proto.ApprovalNone,
		CurrentStep:     proto.StageIntake,
		AuditLog:        []string{},
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
}

// RecomputeMissing rederives MissingFields as required minus collected,
// preserving the required-field order.
func (s *State) RecomputeMissing() {
	missing := make([]string, 0, len(s.RequiredFields))
	for _, field := range s.RequiredFields {
		if _, ok := s.CollectedFields[field]; !ok {
			missing = append(missing, field)
		}
	}
	s.MissingFields = missing
}

// AppendAudit appends a timestamped event to the audit log. The log is
// append-only; entries are never mutated or reordered.
func (s *State) AppendAudit(now time.Time, format string, args ...any) {
	entry := fmt.Sprintf("[%s] %s", now.UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	s.AuditLog = append(s.AuditLog, entry)
}

// Snapshot returns a deep copy safe to hand to readers while the engine keeps
// mutating the original under the session lock.
func (s *State) Snapshot() *State {
	cp := *s

	cp.RequiredFields = append([]string{}, s.RequiredFields...)
	cp.MissingFields = append([]string{}, s.MissingFields...)
	cp.PendingQuestions = append([]string{}, s.PendingQuestions...)
	cp.AuditLog = append([]string{}, s.AuditLog...)

	cp.CollectedFields = make(map[string]string, len(s.CollectedFields))
	for k, v := range s.CollectedFields {
		cp.CollectedFields[k] = v
	}

	if s.Attachments != nil {
		cp.Attachments = append([]Attachment{}, s.Attachments...)
	}
	if s.RevisionDiff != nil {
		cp.RevisionDiff = append([]RevisionLine{}, s.RevisionDiff...)
	}

	if s.CRMData != nil {
		crm := *s.CRMData
		cp.CRMData = &crm
	}
	if s.Pricing != nil {
		pricing := *s.Pricing
		cp.Pricing = &pricing
	}
	if s.ComplianceStatus != nil {
		compliance := *s.ComplianceStatus
		compliance.Issues = append([]string{}, s.ComplianceStatus.Issues...)
		cp.ComplianceStatus = &compliance
	}
	if s.FinalizedTimestamp != nil {
		ts := *s.FinalizedTimestamp
		cp.FinalizedTimestamp = &ts
	}

	return &cp
}
