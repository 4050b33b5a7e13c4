// Package enrich defines the enrichment service contracts (CRM, pricing,
// compliance) and mock implementations. The engine treats these as black
// boxes that may be slow or fail; it never retries them on its own.
package enrich

import (
	"context"

	"northstar/pkg/proposal"
)

// CRMService looks up client data by name.
type CRMService interface {
	GetClientData(ctx context.Context, clientName string) (*proposal.CRMData, error)
}

// PricingRequest is the minimal input the pricing calculator needs.
type PricingRequest struct {
	DealType string
	Budget   float64
	Client   *proposal.CRMData
}

// PricingService computes pricing for a deal.
type PricingService interface {
	CalculatePricing(ctx context.Context, req PricingRequest) (*proposal.Pricing, error)
}

// ComplianceRequest is the minimal input the compliance checker needs.
type ComplianceRequest struct {
	DraftContent string
	DealType     string
}

// ComplianceService checks proposal content for compliance issues.
type ComplianceService interface {
	CheckCompliance(ctx context.Context, req ComplianceRequest) (*proposal.ComplianceStatus, error)
}

// Services bundles the three enrichment collaborators for the engine.
type Services struct {
	CRM        CRMService
	Pricing    PricingService
	Compliance ComplianceService
}
