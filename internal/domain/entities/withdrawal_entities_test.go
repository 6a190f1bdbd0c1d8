package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCurrencyMinorUnits(t *testing.T) {
	half := decimal.RequireFromString("0.5")
	assert.Equal(t, int64(500_000_000), CurrencySOL.MinorUnits(half))
	assert.Equal(t, int64(500_000), CurrencyUSDC.MinorUnits(half))
}

func TestCurrencyIsSupported(t *testing.T) {
	assert.True(t, CurrencySOL.IsSupported())
	assert.True(t, CurrencyUSDC.IsSupported())
	assert.False(t, Currency("BTC").IsSupported())
}

func TestWithdrawalRequestIsExpired(t *testing.T) {
	now := time.Now()
	request := WithdrawalRequest{ExpiresAt: now}

	assert.False(t, request.IsExpired(now.Add(-time.Second)))
	// The deadline itself counts as expired.
	assert.True(t, request.IsExpired(now))
	assert.True(t, request.IsExpired(now.Add(time.Second)))
}

func TestWithdrawalRequestIsTerminal(t *testing.T) {
	terminal := []WithdrawalStatus{
		WithdrawalStatusRejected, WithdrawalStatusExpired,
		WithdrawalStatusCompleted, WithdrawalStatusFailed,
	}
	for _, status := range terminal {
		assert.True(t, (&WithdrawalRequest{Status: status}).IsTerminal(), string(status))
	}

	open := []WithdrawalStatus{
		WithdrawalStatusPending, WithdrawalStatusAutoApproved, WithdrawalStatusApproved,
	}
	for _, status := range open {
		assert.False(t, (&WithdrawalRequest{Status: status}).IsTerminal(), string(status))
	}
}

func TestMultiSigWalletHasSigner(t *testing.T) {
	wallet := MultiSigWallet{Signers: []string{"a", "b"}}

	assert.True(t, wallet.HasSigner("a"))
	assert.False(t, wallet.HasSigner("c"))
}

func TestProposalHasApprovalFrom(t *testing.T) {
	proposal := Proposal{Approvals: []Approval{{SignerID: "a"}}}

	assert.True(t, proposal.HasApprovalFrom("a"))
	assert.False(t, proposal.HasApprovalFrom("b"))
}
