package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/justthetip/treasury_service/internal/domain/entities"
)

func TestApprovalPolicyDecide(t *testing.T) {
	policy := NewApprovalPolicy(map[string]int64{
		"SOL":  100_000_000,
		"USDC": 50_000_000,
	}, 1_000_000_000)

	tests := []struct {
		name     string
		amount   int64
		currency entities.Currency
		want     Decision
	}{
		{"below threshold", 99_999_999, entities.CurrencySOL, DecisionAutoApprove},
		{"at threshold", 100_000_000, entities.CurrencySOL, DecisionAutoApprove},
		{"just above threshold", 100_000_001, entities.CurrencySOL, DecisionRequiresReview},
		{"per-currency threshold", 60_000_000, entities.CurrencyUSDC, DecisionRequiresReview},
		{"unknown currency", 1, entities.Currency("DOGE"), DecisionRequiresReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Decide(tt.amount, tt.currency))
		})
	}
}

func TestApprovalPolicyRequiresMultiSig(t *testing.T) {
	policy := NewApprovalPolicy(nil, 1_000_000_000)

	assert.False(t, policy.RequiresMultiSig(999_999_999))
	assert.True(t, policy.RequiresMultiSig(1_000_000_000))
	assert.True(t, policy.RequiresMultiSig(2_000_000_000))

	// A zero threshold disables multi-sig routing entirely.
	disabled := NewApprovalPolicy(nil, 0)
	assert.False(t, disabled.RequiresMultiSig(5_000_000_000))
}
