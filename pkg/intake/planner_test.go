package intake

import (
	"testing"

	"northstar/pkg/proposal"
)

func TestNextQuestionFirstMissingField(t *testing.T) {
	question := NextQuestion([]string{proposal.FieldDealType, proposal.FieldBudget})
	if question != questionTexts[proposal.FieldDealType] {
		t.Errorf("expected deal_type question, got %q", question)
	}
}

func TestNextQuestionDeterministic(t *testing.T) {
	missing := []string{proposal.FieldBudget, proposal.FieldTimeline}
	first := NextQuestion(missing)
	for i := 0; i < 10; i++ {
		if NextQuestion(missing) != first {
			t.Fatal("planner must be deterministic")
		}
	}
}

func TestNextQuestionNoneMissing(t *testing.T) {
	if q := NextQuestion(nil); q != "" {
		t.Errorf("expected empty question when nothing missing, got %q", q)
	}
}

func TestQuestionForUnknownField(t *testing.T) {
	if q := QuestionFor("delivery_region"); q != "What is the delivery region?" {
		t.Errorf("unexpected fallback question: %q", q)
	}
}

func TestQuestionsSeedsFullQueue(t *testing.T) {
	queue := Questions(proposal.RequiredFields())
	if len(queue) != len(proposal.RequiredFields()) {
		t.Fatalf("expected %d questions, got %d", len(proposal.RequiredFields()), len(queue))
	}
	if queue[0] != questionTexts[proposal.FieldClientName] {
		t.Errorf("queue must follow required-field order, got first %q", queue[0])
	}
}
