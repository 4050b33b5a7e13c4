package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"northstar/pkg/proposal"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0.00", formatMoney(0))
	assert.Equal(t, "950.00", formatMoney(950))
	assert.Equal(t, "100,000.00", formatMoney(100000))
	assert.Equal(t, "1,250,000.50", formatMoney(1250000.5))
	assert.Equal(t, "-42,000.00", formatMoney(-42000))
}

func TestBuildDraftV1Defaults(t *testing.T) {
	st := proposal.New("s1", "req", time.Now())
	st.CollectedFields = map[string]string{
		proposal.FieldClientName: "Acme Corp",
		proposal.FieldDealType:   "Software",
		proposal.FieldBudget:     "100000",
		proposal.FieldTimeline:   "Q3 2026",
	}
	st.CRMData = &proposal.CRMData{Industry: "Technology"}

	draft := buildDraftV1(st)
	assert.Contains(t, draft, "# PROPOSAL FOR ACME CORP")
	assert.Contains(t, draft, "Technology organization")
	assert.Contains(t, draft, "Total investment: $100,000.00")
	assert.Contains(t, draft, "**Target Timeline**: Q3 2026")
	assert.Contains(t, draft, "## Problem Statement\nAddressing client business needs")
	assert.NotContains(t, draft, "## Attachments")
}

func TestBuildDraftV1CollectedSectionsWin(t *testing.T) {
	st := proposal.New("s1", "req", time.Now())
	st.CollectedFields = map[string]string{
		proposal.FieldClientName:       "Acme Corp",
		proposal.FieldDealType:         "Software",
		proposal.FieldBudget:           "100000",
		proposal.FieldTimeline:         "Q3 2026",
		proposal.FieldProposalTitle:    "Acme Modernization Program",
		proposal.FieldProblemStatement: "Legacy billing cannot scale",
	}
	st.Attachments = []proposal.Attachment{{Reference: "arch.png", Description: "Deployment"}}

	draft := buildDraftV1(st)
	assert.Contains(t, draft, "# ACME MODERNIZATION PROGRAM")
	assert.Contains(t, draft, "Legacy billing cannot scale")
	assert.Contains(t, draft, "- arch.png: Deployment")
}

func TestReviseDraftAppendsNotes(t *testing.T) {
	revised := reviseDraft("body", "tighten the terms")
	assert.Contains(t, revised, "body")
	assert.Contains(t, revised, "## Admin Review & Approval Notes")
	assert.Contains(t, revised, "tighten the terms")
	assert.Contains(t, revised, "Approved for finalization")
}
