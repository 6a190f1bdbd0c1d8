package entities

import (
	"time"

	"github.com/google/uuid"
)

// MultiSigWallet is an M-of-N treasury wallet definition. The signer set is
// immutable after creation; key rotation is handled by creating a new wallet.
type MultiSigWallet struct {
	Address   string    `json:"address" db:"address"`
	Signers   []string  `json:"signers" db:"signers"`
	Threshold int       `json:"threshold" db:"threshold"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HasSigner reports whether signerID belongs to the wallet's signer set.
func (w *MultiSigWallet) HasSigner(signerID string) bool {
	for _, s := range w.Signers {
		if s == signerID {
			return true
		}
	}
	return false
}

// ProposalStatus is the lifecycle state of a multi-sig proposal.
type ProposalStatus string

const (
	ProposalStatusOpen      ProposalStatus = "OPEN"
	ProposalStatusExecuting ProposalStatus = "EXECUTING"
	ProposalStatusExecuted  ProposalStatus = "EXECUTED"
	ProposalStatusExpired   ProposalStatus = "EXPIRED"
	ProposalStatusFailed    ProposalStatus = "FAILED"
)

// TransactionData is the opaque payout payload passed through to the executor.
type TransactionData struct {
	Recipient string   `json:"recipient" db:"recipient"`
	Amount    int64    `json:"amount" db:"amount"`
	Currency  Currency `json:"currency" db:"currency"`
}

// Approval is one signer's recorded approval of a proposal.
type Approval struct {
	SignerID            string    `json:"signer_id" db:"signer_id"`
	SignerWalletAddress string    `json:"signer_wallet_address" db:"signer_wallet_address"`
	ApprovedAt          time.Time `json:"approved_at" db:"approved_at"`
}

// Proposal is a pending multi-sig payout awaiting quorum. The transition
// OPEN -> EXECUTING happens exactly once; whoever wins it invokes the executor.
type Proposal struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	MultiSigAddress   string          `json:"multisig_address" db:"multisig_address"`
	TransactionData   TransactionData `json:"transaction_data"`
	ProposerID        string          `json:"proposer_id" db:"proposer_id"`
	Approvals         []Approval      `json:"approvals"`
	RequiredApprovals int             `json:"required_approvals" db:"required_approvals"`
	Status            ProposalStatus  `json:"status" db:"status"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt         time.Time       `json:"expires_at" db:"expires_at"`
	ExecutedAt        *time.Time      `json:"executed_at,omitempty" db:"executed_at"`
	TxSignature       *string         `json:"tx_signature,omitempty" db:"tx_signature"`
	FailureReason     *string         `json:"failure_reason,omitempty" db:"failure_reason"`
}

// IsExpired reports whether the proposal's approval window has elapsed.
func (p *Proposal) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// HasApprovalFrom reports whether signerID already approved the proposal.
func (p *Proposal) HasApprovalFrom(signerID string) bool {
	for _, a := range p.Approvals {
		if a.SignerID == signerID {
			return true
		}
	}
	return false
}

// CreateMultiSigWalletInput carries caller input for a new treasury wallet.
type CreateMultiSigWalletInput struct {
	Signers   []string `json:"signers" validate:"required,min=1,unique"`
	Threshold int      `json:"threshold" validate:"required,gte=1"`
}

// CreateProposalInput carries caller input for a new proposal.
type CreateProposalInput struct {
	MultiSigAddress       string          `json:"multisig_address" binding:"required"`
	TransactionData       TransactionData `json:"transaction_data"`
	ProposerID            string          `json:"proposer_id"`
	ProposerWalletAddress string          `json:"proposer_wallet_address"`
}

// ApproveProposalInput carries one signer's approval.
type ApproveProposalInput struct {
	SignerID            string `json:"signer_id"`
	SignerWalletAddress string `json:"signer_wallet_address" binding:"required"`
}
