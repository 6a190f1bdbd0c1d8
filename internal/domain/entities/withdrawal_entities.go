package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is a supported payout currency.
type Currency string

const (
	CurrencySOL  Currency = "SOL"
	CurrencyUSDC Currency = "USDC"
)

// SupportedCurrencies lists the currencies the treasury can pay out.
var SupportedCurrencies = []Currency{CurrencySOL, CurrencyUSDC}

// IsSupported reports whether c is a payout currency we handle.
func (c Currency) IsSupported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// Decimals returns the number of decimal places of the currency's minor unit.
// SOL amounts are lamports (1e9 per SOL), USDC uses 6 decimals.
func (c Currency) Decimals() int32 {
	switch c {
	case CurrencyUSDC:
		return 6
	default:
		return 9
	}
}

// MinorUnits converts a human-readable amount ("0.5") to minor units.
func (c Currency) MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(c.Decimals()).IntPart()
}

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending      WithdrawalStatus = "PENDING"
	WithdrawalStatusAutoApproved WithdrawalStatus = "AUTO_APPROVED"
	WithdrawalStatusApproved     WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected     WithdrawalStatus = "REJECTED"
	WithdrawalStatusExpired      WithdrawalStatus = "EXPIRED"
	WithdrawalStatusCompleted    WithdrawalStatus = "COMPLETED"
	WithdrawalStatusFailed       WithdrawalStatus = "FAILED"
)

// DecidedBySystem marks auto-approved requests that never saw a human reviewer.
const DecidedBySystem = "SYSTEM"

// WithdrawalRequest is a request to move pooled funds to an external address.
// Records are never deleted; terminal states remain as the audit trail.
type WithdrawalRequest struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	UserID      string           `json:"user_id" db:"user_id"`
	Username    string           `json:"username" db:"username"`
	ToAddress   string           `json:"to_address" db:"to_address"`
	Amount      int64            `json:"amount" db:"amount"`
	Currency    Currency         `json:"currency" db:"currency"`
	Status      WithdrawalStatus `json:"status" db:"status"`
	RequestedAt time.Time        `json:"requested_at" db:"requested_at"`
	ExpiresAt   time.Time        `json:"expires_at" db:"expires_at"`
	DecidedBy   *string          `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt   *time.Time       `json:"decided_at,omitempty" db:"decided_at"`
	Reason      *string          `json:"reason,omitempty" db:"reason"`
	TxSignature *string          `json:"tx_signature,omitempty" db:"tx_signature"`
}

// IsExpired reports whether the request's review window has elapsed.
func (w *WithdrawalRequest) IsExpired(now time.Time) bool {
	return !now.Before(w.ExpiresAt)
}

// IsTerminal reports whether no further transitions are legal.
func (w *WithdrawalRequest) IsTerminal() bool {
	switch w.Status {
	case WithdrawalStatusRejected, WithdrawalStatusExpired,
		WithdrawalStatusCompleted, WithdrawalStatusFailed:
		return true
	}
	return false
}

// RequestWithdrawalInput carries caller input for a new withdrawal request.
// Amount is in the currency's minor units; callers may instead supply
// AmountDecimal as a human-readable string ("0.5"), which takes precedence.
type RequestWithdrawalInput struct {
	UserID        string   `json:"user_id"`
	Username      string   `json:"username"`
	ToAddress     string   `json:"to_address" binding:"required"`
	Amount        int64    `json:"amount"`
	AmountDecimal string   `json:"amount_decimal,omitempty"`
	Currency      Currency `json:"currency"`
}

// RejectWithdrawalInput carries an admin rejection.
type RejectWithdrawalInput struct {
	Reason string `json:"reason" binding:"required"`
}
