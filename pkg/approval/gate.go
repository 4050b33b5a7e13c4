// Package approval implements the human approval gate: the queue of sessions
// awaiting an admin decision. It is the sole path from pending to finalized
// or rejected.
package approval

import (
	"sync"
	"time"

	"northstar/pkg/proposal"
)

// Summary is the admin-facing view of a pending session, carrying the pricing
// and compliance detail the decision is based on.
type Summary struct {
	SessionID        string    `json:"id"`
	ClientName       string    `json:"client_name"`
	DealType         string    `json:"deal_type"`
	Budget           string    `json:"budget"`
	ProposedMargin   float64   `json:"proposed_margin"`
	ProposedBaseCost float64   `json:"proposed_base_cost"`
	CompliancePassed bool      `json:"compliance_passed"`
	ComplianceIssues []string  `json:"compliance_issues"`
	QueuedAt         time.Time `json:"queued_at"`
}

// BuildSummary projects a session snapshot into its admin summary.
func BuildSummary(snap *proposal.State, queuedAt time.Time) Summary {
	summary := Summary{
		SessionID:  snap.SessionID,
		ClientName: snap.CollectedFields[proposal.FieldClientName],
		DealType:   snap.CollectedFields[proposal.FieldDealType],
		Budget:     snap.CollectedFields[proposal.FieldBudget],
		QueuedAt:   queuedAt,
	}
	if snap.Pricing != nil {
		summary.ProposedMargin = snap.Pricing.Margin
		summary.ProposedBaseCost = snap.Pricing.BaseCost
	}
	if snap.ComplianceStatus != nil {
		summary.CompliancePassed = snap.ComplianceStatus.Passed
		summary.ComplianceIssues = append([]string{}, snap.ComplianceStatus.Issues...)
	}
	return summary
}

type queuedSession struct {
	sessionID string
	queuedAt  time.Time
}

// Gate tracks sessions pending an admin decision, most-recently-queued last.
// Decisions are terminal: once removed, a session cannot be re-queued.
type Gate struct {
	mu      sync.Mutex
	queue   []queuedSession
	decided map[string]bool
}

// NewGate creates an empty approval gate.
func NewGate() *Gate {
	return &Gate{decided: make(map[string]bool)}
}

// Enqueue adds a session to the pending set. Re-queueing a decided or already
// pending session is a no-op; the queue position of a pending session never
// changes.
func (g *Gate) Enqueue(sessionID string, queuedAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.decided[sessionID] {
		return
	}
	for _, queued := range g.queue {
		if queued.sessionID == sessionID {
			return
		}
	}
	g.queue = append(g.queue, queuedSession{sessionID: sessionID, queuedAt: queuedAt.UTC()})
}

// IsPending reports whether a session is awaiting a decision.
func (g *Gate) IsPending(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, queued := range g.queue {
		if queued.sessionID == sessionID {
			return true
		}
	}
	return false
}

// Resolve removes a session from the pending set and marks it decided.
// Returns false if the session was not pending.
func (g *Gate) Resolve(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, queued := range g.queue {
		if queued.sessionID == sessionID {
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
			g.decided[sessionID] = true
			return true
		}
	}
	return false
}

// Pending returns the pending session ids with their enqueue times, in queue
// order.
func (g *Gate) Pending() ([]string, []time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.queue))
	times := make([]time.Time, 0, len(g.queue))
	for _, queued := range g.queue {
		ids = append(ids, queued.sessionID)
		times = append(times, queued.queuedAt)
	}
	return ids, times
}
