package entities

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies an auditable treasury event.
type AuditAction string

const (
	AuditWithdrawalRequested AuditAction = "WITHDRAWAL_REQUESTED"
	AuditWithdrawalApproved  AuditAction = "WITHDRAWAL_APPROVED"
	AuditWithdrawalRejected  AuditAction = "WITHDRAWAL_REJECTED"
	AuditWithdrawalExpired   AuditAction = "WITHDRAWAL_EXPIRED"
	AuditWithdrawalCompleted AuditAction = "WITHDRAWAL_COMPLETED"
	AuditWithdrawalFailed    AuditAction = "WITHDRAWAL_FAILED"
	AuditMultiSigCreated     AuditAction = "MULTISIG_CREATED"
	AuditProposalCreated     AuditAction = "MULTISIG_PROPOSAL_CREATED"
	AuditProposalApproved    AuditAction = "MULTISIG_PROPOSAL_APPROVED"
	AuditProposalExecuted    AuditAction = "MULTISIG_PROPOSAL_EXECUTED"
	AuditProposalFailed      AuditAction = "MULTISIG_PROPOSAL_FAILED"
	AuditProposalExpired     AuditAction = "MULTISIG_PROPOSAL_EXPIRED"
)

// AuditEntry is one append-only audit trail record. Entries are written for
// every authorization decision and never updated or deleted.
type AuditEntry struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Action    AuditAction `json:"action" db:"action"`
	ActorID   string      `json:"actor_id" db:"actor_id"`
	SubjectID string      `json:"subject_id" db:"subject_id"`
	Amount    *int64      `json:"amount,omitempty" db:"amount"`
	Currency  *Currency   `json:"currency,omitempty" db:"currency"`
	Status    string      `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}
