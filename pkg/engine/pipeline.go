package engine

import (
	"context"
	"strconv"

	"northstar/pkg/enrich"
	"northstar/pkg/proposal"
	"northstar/pkg/proto"
)

// runPipeline drives a session from completed intake through draft, pricing,
// and compliance to the approval gate. Runs under the session lock. Each stage
// writes its artifact exactly once; on an enrichment failure the session halts
// with current_step at the failed stage so the next call retries only that
// stage.
func (e *Engine) runPipeline(ctx context.Context, st *proposal.State) error {
	for {
		switch st.CurrentStep {
		case proto.StageIntake:
			if err := e.advance(st, proto.StageDraft); err != nil {
				return err
			}

		case proto.StageDraft:
			if st.DraftV1 == "" {
				if err := e.runDraft(ctx, st); err != nil {
					return err
				}
			}
			if err := e.advance(st, proto.StagePricing); err != nil {
				return err
			}

		case proto.StagePricing:
			if st.Pricing == nil {
				if err := e.runPricing(ctx, st); err != nil {
					return err
				}
			}
			if err := e.advance(st, proto.StageCompliance); err != nil {
				return err
			}

		case proto.StageCompliance:
			if st.ComplianceStatus == nil {
				if err := e.runCompliance(ctx, st); err != nil {
					return err
				}
			}
			if err := e.advance(st, proto.StageWaitForApproval); err != nil {
				return err
			}

		case proto.StageWaitForApproval:
			st.ApprovalStatus = proto.ApprovalPending
			e.gate.Enqueue(st.SessionID, e.clock())
			e.audit(st, "Submitted for Admin Approval.")
			return nil

		default:
			return proto.InvalidStatef("pipeline cannot run from stage %s", st.CurrentStep)
		}
	}
}

// timeCall wraps an enrichment call with duration and outcome metrics.
func (e *Engine) timeCall(service string, call func() error) error {
	start := e.clock()
	err := call()
	elapsed := e.clock().Sub(start)
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordEnrichmentCall(service, status, elapsed)
	return err
}

// runDraft fetches CRM data for the client and renders the first draft.
func (e *Engine) runDraft(ctx context.Context, st *proposal.State) error {
	clientName := st.CollectedFields[proposal.FieldClientName]

	var crm *proposal.CRMData
	err := e.timeCall("crm", func() error {
		var callErr error
		crm, callErr = e.services.CRM.GetClientData(ctx, clientName)
		return callErr
	})
	if err != nil {
		e.audit(st, "CRM lookup failed: %v", err)
		return proto.Enrichmentf(err, "crm lookup for %q failed", clientName)
	}

	st.CRMData = crm
	e.audit(st, "Fetched CRM data for %s.", clientName)

	st.DraftV1 = buildDraftV1(st)
	e.audit(st, "Generated Draft V1.")
	return nil
}

// runPricing computes the pricing artifact from the collected budget and CRM
// data.
func (e *Engine) runPricing(ctx context.Context, st *proposal.State) error {
	budget, parseErr := strconv.ParseFloat(st.CollectedFields[proposal.FieldBudget], 64)
	if parseErr != nil {
		return proto.Validationf("budget %q is not numeric", st.CollectedFields[proposal.FieldBudget])
	}

	req := enrich.PricingRequest{
		DealType: st.CollectedFields[proposal.FieldDealType],
		Budget:   budget,
		Client:   st.CRMData,
	}

	var pricing *proposal.Pricing
	err := e.timeCall("pricing", func() error {
		var callErr error
		pricing, callErr = e.services.Pricing.CalculatePricing(ctx, req)
		return callErr
	})
	if err != nil {
		e.audit(st, "Pricing calculation failed: %v", err)
		return proto.Enrichmentf(err, "pricing calculation failed")
	}

	st.Pricing = pricing
	e.audit(st, "Calculated pricing strategy.")
	return nil
}

// runCompliance checks the draft for compliance issues. A failed check does
// not block the pipeline; the result is surfaced to the admin at the gate.
func (e *Engine) runCompliance(ctx context.Context, st *proposal.State) error {
	req := enrich.ComplianceRequest{
		DraftContent: st.DraftV1,
		DealType:     st.CollectedFields[proposal.FieldDealType],
	}

	var status *proposal.ComplianceStatus
	err := e.timeCall("compliance", func() error {
		var callErr error
		status, callErr = e.services.Compliance.CheckCompliance(ctx, req)
		return callErr
	})
	if err != nil {
		e.audit(st, "Compliance check failed: %v", err)
		return proto.Enrichmentf(err, "compliance check failed")
	}

	st.ComplianceStatus = status
	outcome := "Passed"
	if !status.Passed {
		outcome = "Issues Found"
	}
	e.audit(st, "Compliance check: %s.", outcome)
	return nil
}
