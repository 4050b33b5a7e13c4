package intake

import (
	"fmt"
	"strings"

	"northstar/pkg/proposal"
)

// Canonical question texts, one per required field.
var questionTexts = map[string]string{
	proposal.FieldClientName: "What is the name of the client or company for this proposal?",
	proposal.FieldDealType:   "What type of deal or service are we proposing? (e.g., Software, Consulting, Implementation)",
	proposal.FieldBudget:     "What is the budget or investment amount for this project?",
	proposal.FieldTimeline:   "What is the timeline or deadline for this project?",
}

// QuestionFor returns the canonical question text for a required field.
func QuestionFor(field string) string {
	if q, ok := questionTexts[field]; ok {
		return q
	}
	return fmt.Sprintf("What is the %s?", strings.ReplaceAll(field, "_", " "))
}

// NextQuestion is the deterministic question planner: given the missing
// fields in required-field order, it returns the first missing field's
// question. One question is live at a time; no randomness, no skipping.
func NextQuestion(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	return QuestionFor(missing[0])
}

// Questions returns the full ordered question queue for the missing fields,
// used to seed pending_questions at session creation.
func Questions(missing []string) []string {
	queue := make([]string, 0, len(missing))
	for _, field := range missing {
		queue = append(queue, QuestionFor(field))
	}
	return queue
}
