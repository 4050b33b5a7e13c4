package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northstar/pkg/proposal"
)

func TestMockCRMShape(t *testing.T) {
	crm := NewMockCRM(MockConfig{Seed: 1})
	data, err := crm.GetClientData(context.Background(), "Acme Corp")
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", data.Name)
	assert.Regexp(t, `^CL-\d{4}$`, data.ClientID)
	assert.GreaterOrEqual(t, data.TrustScore, 80)
	assert.LessOrEqual(t, data.TrustScore, 100)
	assert.Positive(t, data.AnnualRevenue)
}

func TestMockCRMIndustryByNameParity(t *testing.T) {
	crm := NewMockCRM(MockConfig{Seed: 1})

	even, err := crm.GetClientData(context.Background(), "Acme") // len 4
	require.NoError(t, err)
	assert.Equal(t, "Technology", even.Industry)

	odd, err := crm.GetClientData(context.Background(), "Acme Corp") // len 9
	require.NoError(t, err)
	assert.Equal(t, "Healthcare", odd.Industry)
}

func TestMockPricingMargin(t *testing.T) {
	pricing := NewMockPricingEngine(MockConfig{Seed: 1})
	result, err := pricing.CalculatePricing(context.Background(), PricingRequest{
		DealType: "Software License",
		Budget:   100000,
		Client:   &proposal.CRMData{TrustScore: 85},
	})
	require.NoError(t, err)

	assert.InDelta(t, 80000, result.BaseCost, 0.01)
	assert.InDelta(t, 0.20, result.Margin, 0.001)
	assert.InDelta(t, 0.10, result.MaxDiscount, 0.001)
	assert.Equal(t, "USD", result.Currency)
}

func TestMockPricingHighTrustDiscount(t *testing.T) {
	pricing := NewMockPricingEngine(MockConfig{Seed: 1})
	result, err := pricing.CalculatePricing(context.Background(), PricingRequest{
		Budget: 50000,
		Client: &proposal.CRMData{TrustScore: 95},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.15, result.MaxDiscount, 0.001)
}

func TestMockPricingRejectsZeroBudget(t *testing.T) {
	pricing := NewMockPricingEngine(MockConfig{Seed: 1})
	_, err := pricing.CalculatePricing(context.Background(), PricingRequest{Budget: 0})
	assert.Error(t, err)
}

func TestMockComplianceFlagsRiskyLanguage(t *testing.T) {
	compliance := NewMockComplianceEngine(MockConfig{Seed: 1})

	clean, err := compliance.CheckCompliance(context.Background(), ComplianceRequest{
		DraftContent: "A standard proposal.",
	})
	require.NoError(t, err)
	assert.True(t, clean.Passed)
	assert.Empty(t, clean.Issues)

	flagged, err := compliance.CheckCompliance(context.Background(), ComplianceRequest{
		DraftContent: "We GUARANTEE unlimited support.",
	})
	require.NoError(t, err)
	assert.False(t, flagged.Passed)
	assert.Len(t, flagged.Issues, 2)
}

func TestInjectedFailure(t *testing.T) {
	crm := NewMockCRM(MockConfig{FailureRate: 1.0, Seed: 1})
	_, err := crm.GetClientData(context.Background(), "Acme")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestLatencyRespectsContext(t *testing.T) {
	crm := NewMockCRM(MockConfig{Latency: 5 * time.Second, Seed: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := crm.GetClientData(ctx, "Acme")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}
