// Package testkit provides testing utilities for proposal session validation
// and canned workflow drivers.
package testkit

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"northstar/pkg/engine"
	"northstar/pkg/proposal"
	"northstar/pkg/proto"
)

// AssertStage verifies the session's current stage.
func AssertStage(t *testing.T, snap *proposal.State, expected proto.Stage) {
	t.Helper()
	if snap.CurrentStep != expected {
		t.Errorf("Expected stage %s, got %s", expected, snap.CurrentStep)
	}
}

// AssertApprovalStatus verifies the session's approval status.
func AssertApprovalStatus(t *testing.T, snap *proposal.State, expected proto.ApprovalStatus) {
	t.Helper()
	if snap.ApprovalStatus != expected {
		t.Errorf("Expected approval status %s, got %s", expected, snap.ApprovalStatus)
	}
}

// AssertMissingFields verifies the session's missing field list, order
// included.
func AssertMissingFields(t *testing.T, snap *proposal.State, expected []string) {
	t.Helper()
	if !reflect.DeepEqual(snap.MissingFields, expected) {
		t.Errorf("Expected missing fields %v, got %v", expected, snap.MissingFields)
	}
}

// AssertFieldCollected verifies a collected field holds the expected value.
func AssertFieldCollected(t *testing.T, snap *proposal.State, field, expected string) {
	t.Helper()
	value, exists := snap.CollectedFields[field]
	if !exists {
		t.Errorf("Expected field '%s' to be collected", field)
		return
	}
	if value != expected {
		t.Errorf("Expected field '%s' to be %q, got %q", field, expected, value)
	}
}

// AssertAuditContains verifies some audit log entry contains the substring.
func AssertAuditContains(t *testing.T, snap *proposal.State, substring string) {
	t.Helper()
	for _, entry := range snap.AuditLog {
		if strings.Contains(entry, substring) {
			return
		}
	}
	t.Errorf("Expected audit log to contain %q, got %v", substring, snap.AuditLog)
}

// AssertErrorKind verifies an error's classification.
func AssertErrorKind(t *testing.T, err error, expected proto.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Errorf("Expected %s error, got nil", expected)
		return
	}
	if kind := proto.KindOf(err); kind != expected {
		t.Errorf("Expected error kind %s, got %s (%v)", expected, kind, err)
	}
}

// IntakeAnswers is the canned answer set for a complete intake conversation.
type IntakeAnswers struct {
	ClientName string
	DealType   string
	Budget     string
	Timeline   string
}

// DefaultAnswers returns the standard test session inputs.
func DefaultAnswers() IntakeAnswers {
	return IntakeAnswers{
		ClientName: "Acme Corp",
		DealType:   "Software",
		Budget:     "100000",
		Timeline:   "Q3 2026",
	}
}

// DriveToGate creates a session and answers every intake question until the
// session reaches the approval gate. Fails the test on any error.
func DriveToGate(t *testing.T, eng *engine.Engine, answers IntakeAnswers) *proposal.State {
	t.Helper()
	ctx := context.Background()

	snap, err := eng.Create(ctx, "I need a proposal for "+answers.ClientName)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	byField := map[string]string{
		proposal.FieldClientName: answers.ClientName,
		proposal.FieldDealType:   answers.DealType,
		proposal.FieldBudget:     answers.Budget,
		proposal.FieldTimeline:   answers.Timeline,
	}

	for turns := 0; len(snap.MissingFields) > 0; turns++ {
		if turns > len(byField) {
			t.Fatalf("Intake did not converge; still missing %v", snap.MissingFields)
		}
		answer, ok := byField[snap.MissingFields[0]]
		if !ok {
			t.Fatalf("No canned answer for field %s", snap.MissingFields[0])
		}
		snap, err = eng.Continue(ctx, snap.SessionID, answer, nil)
		if err != nil {
			t.Fatalf("Continue failed: %v", err)
		}
	}

	AssertStage(t, snap, proto.StageWaitForApproval)
	AssertApprovalStatus(t, snap, proto.ApprovalPending)
	return snap
}
