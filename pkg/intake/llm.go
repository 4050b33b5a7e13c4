package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"northstar/pkg/logx"
	"northstar/pkg/proposal"
)

const extractionSystemPrompt = `You are a smart sales assistant analyzing a proposal conversation. Extract the following information from the user's message:

- client_name: Name of the company/client (e.g., if user says "X is my company" or "proposal for X", extract X)
- deal_type: Type of deal (e.g. Software, Consulting, Implementation, Product Launch, Partnership, Service Engagement)
- budget: Budget amount (number)
- timeline: Timeline (e.g. Q1, ASAP, 3 months)
- proposal_title, problem_statement, solution_overview, architecture_approach, pricing_details, compliance_info, terms_conditions, conclusion: proposal sections, extract only if mentioned

IMPORTANT RULES:
- Extract the actual company name, not pronouns like "that", "this", "it".
- Only extract information actually present in the message.
- Return ONLY valid JSON. Use null for missing values. Do NOT wrap in markdown code blocks.`

// LLMExtractor asks Claude to pull fields out of a free-form answer and falls
// back to the pattern extractor on any error or empty result. Extraction
// quality is best-effort; the engine behaves identically with the pattern
// extractor alone.
type LLMExtractor struct {
	client   anthropic.Client
	model    anthropic.Model
	fallback Extractor
	logger   *logx.Logger
}

// NewLLMExtractor creates an LLM-backed extractor with the given API key and
// model, using fallback when the API call or parse fails.
func NewLLMExtractor(apiKey, model string, fallback Extractor) *LLMExtractor {
	return &LLMExtractor{
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:    anthropic.Model(model),
		fallback: fallback,
		logger:   logx.NewLogger("intake-llm"),
	}
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, answer string, missing []string) Extraction {
	fields, err := e.extractViaLLM(ctx, answer, missing)
	if err != nil {
		e.logger.Warn("LLM extraction failed, using pattern fallback: %v", err)
		return e.fallback.Extract(ctx, answer, missing)
	}
	if len(fields) == 0 {
		return e.fallback.Extract(ctx, answer, missing)
	}
	return Extraction{Fields: fields}
}

func (e *LLMExtractor) extractViaLLM(ctx context.Context, answer string, missing []string) (map[string]string, error) {
	prompt := fmt.Sprintf("Still missing fields: %s\n\nUser message: %s\n\nReturn JSON with only the fields that have new information.",
		strings.Join(missing, ", "), answer)

	params := anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{{
			Text: extractionSystemPrompt,
			Type: "text",
		}},
		Messages: []anthropic.MessageParam{{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)},
		}},
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	var responseText string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			responseText += block.AsText().Text
		}
	}

	raw, err := parseExtractionJSON(responseText)
	if err != nil {
		return nil, err
	}

	return filterToMissing(raw, missing), nil
}

// parseExtractionJSON tolerates markdown code fences around the JSON body.
func parseExtractionJSON(text string) (map[string]any, error) {
	jsonStr := strings.TrimSpace(text)
	if idx := strings.Index(jsonStr, "```json"); idx >= 0 {
		jsonStr = jsonStr[idx+len("```json"):]
		if end := strings.Index(jsonStr, "```"); end >= 0 {
			jsonStr = jsonStr[:end]
		}
	} else if strings.HasPrefix(jsonStr, "```") {
		jsonStr = strings.TrimPrefix(jsonStr, "```")
		if end := strings.Index(jsonStr, "```"); end >= 0 {
			jsonStr = jsonStr[:end]
		}
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(jsonStr)), &raw); err != nil {
		return nil, fmt.Errorf("model returned unparseable JSON: %w", err)
	}
	return raw, nil
}

// optionalSections are the draft section fields the model may volunteer at
// any time during intake.
var optionalSections = map[string]bool{
	proposal.FieldProposalTitle:        true,
	proposal.FieldProblemStatement:     true,
	proposal.FieldSolutionOverview:     true,
	proposal.FieldArchitectureApproach: true,
	proposal.FieldPricingDetails:       true,
	proposal.FieldComplianceInfo:       true,
	proposal.FieldTermsConditions:      true,
	proposal.FieldConclusion:           true,
}

// filterToMissing keeps non-empty values for fields still missing plus any
// optional section fields, normalizing budget strings like "50k" to plain
// numbers. Collected fields are write-once, so anything else the model
// volunteers is dropped.
func filterToMissing(raw map[string]any, missing []string) map[string]string {
	missingSet := make(map[string]bool, len(missing))
	for _, field := range missing {
		missingSet[field] = true
	}

	fields := make(map[string]string)
	for key, value := range raw {
		if (!missingSet[key] && !optionalSections[key]) || value == nil {
			continue
		}

		switch v := value.(type) {
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				continue
			}
			if key == proposal.FieldBudget {
				if budget, ok := parseBudgetValue(trimmed); ok {
					fields[key] = formatBudget(budget)
				}
				continue
			}
			fields[key] = trimmed
		case float64:
			if key == proposal.FieldBudget && v > 0 {
				fields[key] = formatBudget(v)
			} else if key != proposal.FieldBudget {
				fields[key] = strings.TrimSpace(fmt.Sprintf("%v", v))
			}
		}
	}
	return fields
}
