package testkit

import (
	"context"
	"testing"

	"northstar/pkg/engine"
	"northstar/pkg/enrich"
	"northstar/pkg/proposal"
	"northstar/pkg/proto"
	"northstar/pkg/state"
)

func newEngine() *engine.Engine {
	return engine.New(engine.Options{
		Store:    state.NewMemoryStore(),
		Services: enrich.NewMockServices(enrich.MockConfig{Seed: 7}),
	})
}

func TestDriveToGate(t *testing.T) {
	eng := newEngine()
	snap := DriveToGate(t, eng, DefaultAnswers())

	AssertStage(t, snap, proto.StageWaitForApproval)
	AssertFieldCollected(t, snap, proposal.FieldClientName, "Acme Corp")
	AssertFieldCollected(t, snap, proposal.FieldBudget, "100000")
	AssertAuditContains(t, snap, "Submitted for Admin Approval")
	AssertMissingFields(t, snap, []string{})
}

func TestAssertErrorKind(t *testing.T) {
	eng := newEngine()
	_, err := eng.Get("missing")
	AssertErrorKind(t, err, proto.KindNotFound)
}

func TestDriveToGateThenApprove(t *testing.T) {
	eng := newEngine()
	snap := DriveToGate(t, eng, DefaultAnswers())

	decided, err := eng.Decide(context.Background(), snap.SessionID, proto.DecisionApprove, "ok")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	AssertStage(t, decided, proto.StageFinalize)
	AssertApprovalStatus(t, decided, proto.ApprovalFinalized)
}
