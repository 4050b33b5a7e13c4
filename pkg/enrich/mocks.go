package enrich

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"northstar/pkg/proposal"
)

// ErrServiceUnavailable is returned when injected failure triggers.
var ErrServiceUnavailable = errors.New("enrichment service unavailable")

// MockConfig controls simulated latency and failure behavior for the mock
// services. Zero value means no latency, no failures, time-seeded randomness.
type MockConfig struct {
	Latency     time.Duration
	FailureRate float64 // 0.0 - 1.0, probability each call fails
	Seed        int64   // 0 means seed from wall clock
}

type mockBase struct {
	cfg MockConfig
	mu  sync.Mutex
	rng *rand.Rand
}

func newMockBase(cfg MockConfig) mockBase {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return mockBase{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// simulate sleeps for the configured latency (abandoning early on context
// cancellation) and rolls for an injected failure.
func (m *mockBase) simulate(ctx context.Context, service string) error {
	if m.cfg.Latency > 0 {
		select {
		case <-time.After(m.cfg.Latency):
		case <-ctx.Done():
			return fmt.Errorf("%s call cancelled: %w", service, ctx.Err())
		}
	}

	m.mu.Lock()
	failed := m.cfg.FailureRate > 0 && m.rng.Float64() < m.cfg.FailureRate
	m.mu.Unlock()

	if failed {
		return fmt.Errorf("%s: %w", service, ErrServiceUnavailable)
	}
	return nil
}

func (m *mockBase) intn(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Intn(n)
}

// MockCRM simulates fetching client data from a CRM.
type MockCRM struct {
	mockBase
}

func NewMockCRM(cfg MockConfig) *MockCRM {
	return &MockCRM{mockBase: newMockBase(cfg)}
}

func (m *MockCRM) GetClientData(ctx context.Context, clientName string) (*proposal.CRMData, error) {
	if err := m.simulate(ctx, "crm"); err != nil {
		return nil, err
	}

	industry := "Healthcare"
	if len(clientName)%2 == 0 {
		industry = "Technology"
	}

	return &proposal.CRMData{
		ClientID:      fmt.Sprintf("CL-%04d", 1000+m.intn(9000)),
		Name:          clientName,
		Industry:      industry,
		AnnualRevenue: int64(1+m.intn(100)) * 1_000_000,
		TrustScore:    80 + m.intn(21),
		PreviousDeals: m.intn(6),
	}, nil
}

// MockPricingEngine simulates a pricing calculation engine. Base cost assumes
// a 20% margin target; high-trust clients unlock a larger discount.
type MockPricingEngine struct {
	mockBase
}

func NewMockPricingEngine(cfg MockConfig) *MockPricingEngine {
	return &MockPricingEngine{mockBase: newMockBase(cfg)}
}

func (m *MockPricingEngine) CalculatePricing(ctx context.Context, req PricingRequest) (*proposal.Pricing, error) {
	if err := m.simulate(ctx, "pricing"); err != nil {
		return nil, err
	}

	if req.Budget <= 0 {
		return nil, fmt.Errorf("pricing requires a positive budget, got %.2f", req.Budget)
	}

	baseCost := req.Budget * 0.8
	discountAllowed := 0.10
	if req.Client != nil && req.Client.TrustScore > 90 {
		discountAllowed = 0.15
	}

	return &proposal.Pricing{
		BaseCost:       baseCost,
		SuggestedPrice: req.Budget,
		Margin:         (req.Budget - baseCost) / req.Budget,
		MaxDiscount:    discountAllowed,
		Currency:       "USD",
	}, nil
}

// MockComplianceEngine simulates a compliance check on proposal content.
type MockComplianceEngine struct {
	mockBase
}

func NewMockComplianceEngine(cfg MockConfig) *MockComplianceEngine {
	return &MockComplianceEngine{mockBase: newMockBase(cfg)}
}

func (m *MockComplianceEngine) CheckCompliance(ctx context.Context, req ComplianceRequest) (*proposal.ComplianceStatus, error) {
	if err := m.simulate(ctx, "compliance"); err != nil {
		return nil, err
	}

	issues := []string{}
	lower := strings.ToLower(req.DraftContent)
	if strings.Contains(lower, "guarantee") {
		issues = append(issues, "Avoid using the word 'guarantee' without legal approval.")
	}
	if strings.Contains(lower, "unlimited") {
		issues = append(issues, "Unlimited liability must be capped.")
	}

	return &proposal.ComplianceStatus{
		Passed:    len(issues) == 0,
		Issues:    issues,
		CheckedAt: time.Now().Unix(),
	}, nil
}

// NewMockServices wires all three mocks with a shared config.
func NewMockServices(cfg MockConfig) Services {
	return Services{
		CRM:        NewMockCRM(cfg),
		Pricing:    NewMockPricingEngine(cfg),
		Compliance: NewMockComplianceEngine(cfg),
	}
}
