package engine

import (
	"fmt"
	"strconv"
	"strings"

	"northstar/pkg/proposal"
)

// sectionOr returns the collected section field or its default text.
func sectionOr(st *proposal.State, field, fallback string) string {
	if value := strings.TrimSpace(st.CollectedFields[field]); value != "" {
		return value
	}
	return fallback
}

// buildDraftV1 renders the v1 proposal document from collected fields and CRM
// data. Optional section fields fall back to boilerplate so the draft is
// always complete.
func buildDraftV1(st *proposal.State) string {
	client := st.CollectedFields[proposal.FieldClientName]
	dealType := st.CollectedFields[proposal.FieldDealType]
	timeline := st.CollectedFields[proposal.FieldTimeline]

	budget := 0.0
	if parsed, err := strconv.ParseFloat(st.CollectedFields[proposal.FieldBudget], 64); err == nil {
		budget = parsed
	}

	industry := "Business"
	if st.CRMData != nil && st.CRMData.Industry != "" {
		industry = st.CRMData.Industry
	}

	title := sectionOr(st, proposal.FieldProposalTitle, fmt.Sprintf("Proposal for %s", client))
	problem := sectionOr(st, proposal.FieldProblemStatement, "Addressing client business needs")
	solution := sectionOr(st, proposal.FieldSolutionOverview, "Comprehensive solution approach")
	architecture := sectionOr(st, proposal.FieldArchitectureApproach, "Technical implementation strategy")
	pricingDetails := sectionOr(st, proposal.FieldPricingDetails, fmt.Sprintf("Total investment: $%s", formatMoney(budget)))
	complianceInfo := sectionOr(st, proposal.FieldComplianceInfo, "Standard compliance requirements")
	terms := sectionOr(st, proposal.FieldTermsConditions, "Standard terms and conditions")
	conclusion := sectionOr(st, proposal.FieldConclusion, "Next steps and call to action")

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.ToUpper(title))
	fmt.Fprintf(&b, "## Executive Summary\n")
	fmt.Fprintf(&b, "We are pleased to present this comprehensive proposal for %s, a leading %s organization. "+
		"This document outlines our strategic approach to addressing your specific needs through our %s solution, "+
		"designed to deliver exceptional value within your %s timeline.\n\n",
		client, industry, dealType, timeline)
	fmt.Fprintf(&b, "**Proposal Validity**: This proposal is valid for 30 days from submission\n")
	fmt.Fprintf(&b, "**Target Timeline**: %s\n", timeline)
	fmt.Fprintf(&b, "**Industry Focus**: %s\n\n", industry)
	fmt.Fprintf(&b, "## Problem Statement\n%s\n\n", problem)
	fmt.Fprintf(&b, "## Solution Overview\n%s\n\n", solution)
	fmt.Fprintf(&b, "## Architecture & Approach\n%s\n\n", architecture)
	fmt.Fprintf(&b, "## Timeline & Implementation\n")
	fmt.Fprintf(&b, "**Project Timeline**: %s\n", timeline)
	fmt.Fprintf(&b, "**Implementation Strategy**: Phased approach with regular milestones\n")
	fmt.Fprintf(&b, "**Key Deliverables**: Complete solution deployment and training\n\n")
	fmt.Fprintf(&b, "## Pricing & Investment\n%s\n\n", pricingDetails)
	fmt.Fprintf(&b, "**Payment Terms**: Net 30 (standard)\n")
	fmt.Fprintf(&b, "**Included Services**: Implementation, training, and 12-month support\n\n")
	fmt.Fprintf(&b, "## Compliance & Requirements\n%s\n\n", complianceInfo)
	fmt.Fprintf(&b, "## Terms & Conditions\n%s\n\n", terms)
	fmt.Fprintf(&b, "## Conclusion\n%s\n\n", conclusion)

	if len(st.Attachments) > 0 {
		fmt.Fprintf(&b, "## Attachments\n")
		for _, attachment := range st.Attachments {
			if attachment.Description != "" {
				fmt.Fprintf(&b, "- %s: %s\n", attachment.Reference, attachment.Description)
			} else {
				fmt.Fprintf(&b, "- %s\n", attachment.Reference)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n")
	fmt.Fprintf(&b, "**Next Steps**: Upon approval, we will schedule a kickoff meeting within 5 business days to begin the implementation process.\n\n")
	fmt.Fprintf(&b, "**Note**: This proposal requires internal review and approval before finalization. All terms are subject to standard governance procedures.\n")

	return b.String()
}

// reviseDraft appends the admin's approval notes to the v1 draft.
func reviseDraft(draftV1, comments string) string {
	return draftV1 + fmt.Sprintf("\n\n## Admin Review & Approval Notes\n%s\n**Status**: Approved for finalization.", comments)
}

// formatMoney renders a dollar amount with thousands separators and two
// decimal places.
func formatMoney(value float64) string {
	text := strconv.FormatFloat(value, 'f', 2, 64)

	dot := strings.IndexByte(text, '.')
	whole, frac := text[:dot], text[dot:]

	negative := strings.HasPrefix(whole, "-")
	if negative {
		whole = whole[1:]
	}

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteString(frac)
	return b.String()
}
