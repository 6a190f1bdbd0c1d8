package services

import (
	"github.com/justthetip/treasury_service/internal/domain/entities"
)

// Decision is the outcome of applying the auto-approval policy.
type Decision string

const (
	DecisionAutoApprove    Decision = "AUTO_APPROVE"
	DecisionRequiresReview Decision = "REQUIRES_REVIEW"
)

// ApprovalPolicy decides whether a withdrawal can bypass human review and
// whether a payout is large enough to require a multi-sig proposal. It is a
// pure function of the configured thresholds.
type ApprovalPolicy struct {
	autoApproveThresholds map[entities.Currency]int64
	multiSigThreshold     int64
}

// NewApprovalPolicy builds a policy from per-currency auto-approve thresholds
// (minor units) and the multi-sig cutoff.
func NewApprovalPolicy(thresholds map[string]int64, multiSigThreshold int64) *ApprovalPolicy {
	byCurrency := make(map[entities.Currency]int64, len(thresholds))
	for code, amount := range thresholds {
		byCurrency[entities.Currency(code)] = amount
	}
	return &ApprovalPolicy{
		autoApproveThresholds: byCurrency,
		multiSigThreshold:     multiSigThreshold,
	}
}

// Decide returns AUTO_APPROVE when amount is at or below the currency's
// configured threshold. A currency without a threshold always requires review.
func (p *ApprovalPolicy) Decide(amount int64, currency entities.Currency) Decision {
	threshold, ok := p.autoApproveThresholds[currency]
	if !ok {
		return DecisionRequiresReview
	}
	if amount <= threshold {
		return DecisionAutoApprove
	}
	return DecisionRequiresReview
}

// RequiresMultiSig reports whether a payout of the given size should go
// through a multi-sig proposal rather than the single-owner queue.
func (p *ApprovalPolicy) RequiresMultiSig(amount int64) bool {
	return p.multiSigThreshold > 0 && amount >= p.multiSigThreshold
}
