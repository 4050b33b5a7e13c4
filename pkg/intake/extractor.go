// Package intake implements the conversational requirement-gathering pieces:
// the field extractor that pulls required fields out of free-form answers and
// the question planner that asks for what is still missing, one field at a
// time.
package intake

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"northstar/pkg/proposal"
)

// Extraction is the outcome of applying one user answer. Fields holds the
// (field, value) pairs to merge into collected_fields; Unparsed signals that
// no field could be confidently filled and the current question stands.
type Extraction struct {
	Fields   map[string]string
	Unparsed bool
}

// Extractor turns a free-form answer into field values. Implementations must
// only propose fields from the missing list; already-collected fields are
// write-once and never overwritten from a later answer.
type Extractor interface {
	Extract(ctx context.Context, answer string, missing []string) Extraction
}

var pronouns = map[string]bool{
	"that": true, "this": true, "it": true,
	"them": true, "those": true, "these": true,
}

// Client name patterns, most specific first.
var clientNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([A-Z][A-Za-z\s&.,-]+?)\s+is\s+(?:my|the|our)\s+(?:company|client|organization|business)`),
	regexp.MustCompile(`(?i)(?:company|client|organization|business)\s+is\s+([A-Z][A-Za-z\s&.,-]+)`),
	regexp.MustCompile(`(?i)proposal\s+for\s+([A-Z][A-Za-z\s&.,-]+?(?:Ltd|Inc|Corp|LLC|Pvt|Limited|Company|Corporation)?)\s*$`),
	regexp.MustCompile(`for\s+([A-Z][A-Za-z]{2,}(?:[\s&.,-]+[A-Z][A-Za-z]*)*)`),
}

var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$?\s*(\d+(?:,\d{3})*(?:\.\d+)?)\s*(k|thousand|m|million)\b`),
	regexp.MustCompile(`(?i)budget\s+(?:of\s+|is\s+)?\$?\s*(\d+(?:,\d{3})*(?:\.\d+)?)\s*(k|thousand|m|million)?`),
	regexp.MustCompile(`\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)()`),
}

// PatternExtractor is the default regex-based extractor. It matches the
// answer against the first missing field's expected type (numeric for budget,
// free text otherwise), plus opportunistic client-name and budget scans so an
// initial request like "Proposal for Acme Corp, budget 50k" fills more than
// one field.
type PatternExtractor struct{}

// NewPatternExtractor creates the default extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract implements Extractor. The context is unused; pattern matching is
// local and fast.
func (e *PatternExtractor) Extract(_ context.Context, answer string, missing []string) Extraction {
	fields := make(map[string]string)
	answer = strings.TrimSpace(answer)
	if answer == "" || len(missing) == 0 {
		return Extraction{Fields: fields, Unparsed: true}
	}

	missingSet := make(map[string]bool, len(missing))
	for _, field := range missing {
		missingSet[field] = true
	}

	// Opportunistic scans for fields a free-form sentence can carry.
	if missingSet[proposal.FieldClientName] {
		if name, ok := extractClientName(answer); ok {
			fields[proposal.FieldClientName] = name
		}
	}
	if missingSet[proposal.FieldBudget] {
		if budget, ok := extractBudget(answer); ok {
			fields[proposal.FieldBudget] = formatBudget(budget)
		}
	}

	// Direct answer to the live question: the first missing field.
	first := missing[0]
	if _, filled := fields[first]; !filled {
		switch first {
		case proposal.FieldBudget:
			// Numeric type check: a non-numeric answer leaves budget
			// missing so the question is re-asked.
			if budget, ok := parseBudgetValue(answer); ok {
				fields[proposal.FieldBudget] = formatBudget(budget)
			}
		case proposal.FieldClientName:
			if looksLikeName(answer) {
				fields[proposal.FieldClientName] = answer
			}
		default:
			fields[first] = answer
		}
	}

	return Extraction{Fields: fields, Unparsed: len(fields) == 0}
}

func extractClientName(text string) (string, bool) {
	for _, pattern := range clientNamePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		candidate := strings.TrimRight(strings.TrimSpace(match[1]), ".,")
		if looksLikeName(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func looksLikeName(candidate string) bool {
	if len(candidate) <= 2 {
		return false
	}
	return !pronouns[strings.ToLower(candidate)]
}

func extractBudget(text string) (float64, bool) {
	for _, pattern := range budgetPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if len(match) > 2 {
			value = applyMagnitude(value, match[2])
		}
		if value > 0 {
			return value, true
		}
	}
	return 0, false
}

// parseBudgetValue parses a bare budget answer like "100000", "$100,000",
// "50k" or "1.5 million".
func parseBudgetValue(answer string) (float64, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(answer))
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	magnitude := ""
	for _, suffix := range []string{"thousand", "million", "k", "m"} {
		if strings.HasSuffix(cleaned, suffix) {
			magnitude = suffix
			cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, suffix))
			break
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return applyMagnitude(value, magnitude), true
}

func applyMagnitude(value float64, magnitude string) float64 {
	switch strings.ToLower(magnitude) {
	case "k", "thousand":
		return value * 1_000
	case "m", "million":
		return value * 1_000_000
	default:
		return value
	}
}

func formatBudget(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
