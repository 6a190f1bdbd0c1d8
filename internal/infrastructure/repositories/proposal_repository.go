package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	domainerrors "github.com/justthetip/treasury_service/internal/domain/errors"
	"github.com/justthetip/treasury_service/internal/infrastructure/database"
)

const uniqueViolation = "23505"

// ProposalRepository handles proposal and approval persistence. Approvals live
// in their own table with a UNIQUE(proposal_id, signer_id) constraint, so a
// double approval is rejected by the database even under concurrency.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository creates a new proposal repository.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// Create inserts a proposal together with any initial approvals (the
// proposer's own) in one transaction.
func (r *ProposalRepository) Create(ctx context.Context, proposal *entities.Proposal) error {
	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO proposals (
				id, multisig_address, recipient, amount, currency, proposer_id,
				required_approvals, status, created_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`

		_, err := tx.ExecContext(ctx, query,
			proposal.ID,
			proposal.MultiSigAddress,
			proposal.TransactionData.Recipient,
			proposal.TransactionData.Amount,
			proposal.TransactionData.Currency,
			proposal.ProposerID,
			proposal.RequiredApprovals,
			proposal.Status,
			proposal.CreatedAt,
			proposal.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create proposal: %w", err)
		}

		for _, approval := range proposal.Approvals {
			if err := insertApproval(ctx, tx, proposal.ID, &approval); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByID retrieves a proposal with its approvals.
func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Proposal, error) {
	query := `
		SELECT id, multisig_address, recipient, amount, currency, proposer_id,
			required_approvals, status, created_at, expires_at,
			executed_at, tx_signature, failure_reason
		FROM proposals
		WHERE id = $1
	`

	var row proposalRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("proposal")
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}

	proposal := row.toEntity()
	approvals, err := r.getApprovals(ctx, id)
	if err != nil {
		return nil, err
	}
	proposal.Approvals = approvals

	return proposal, nil
}

// AddApproval records one signer's approval. A repeat approval surfaces as a
// duplicate approval domain error via the unique constraint.
func (r *ProposalRepository) AddApproval(ctx context.Context, proposalID uuid.UUID, approval *entities.Approval) error {
	return insertApproval(ctx, r.db, proposalID, approval)
}

// TryBeginExecution attempts the OPEN -> EXECUTING transition. The status
// check, the deadline guard and the quorum count run in one statement, so
// exactly one caller can win even when the final approvals land concurrently
// and an expired proposal can never begin executing.
func (r *ProposalRepository) TryBeginExecution(ctx context.Context, proposalID uuid.UUID) (bool, error) {
	query := `
		UPDATE proposals
		SET status = $1
		WHERE id = $2 AND status = $3 AND expires_at > $4
			AND (SELECT COUNT(*) FROM proposal_approvals WHERE proposal_id = $2) >= required_approvals
	`

	result, err := r.db.ExecContext(ctx, query,
		entities.ProposalStatusExecuting, proposalID, entities.ProposalStatusOpen, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to begin proposal execution: %w", err)
	}

	return rowsAffected(result)
}

// MarkExecuted transitions EXECUTING -> EXECUTED with the transaction signature.
func (r *ProposalRepository) MarkExecuted(ctx context.Context, id uuid.UUID, txSignature string) (bool, error) {
	query := `
		UPDATE proposals
		SET status = $1, executed_at = $2, tx_signature = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		entities.ProposalStatusExecuted, time.Now(), txSignature, id, entities.ProposalStatusExecuting)
	if err != nil {
		return false, fmt.Errorf("failed to mark proposal executed: %w", err)
	}

	return rowsAffected(result)
}

// MarkFailed transitions EXECUTING -> FAILED with the failure reason.
func (r *ProposalRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE proposals
		SET status = $1, failure_reason = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		entities.ProposalStatusFailed, reason, id, entities.ProposalStatusExecuting)
	if err != nil {
		return false, fmt.Errorf("failed to mark proposal failed: %w", err)
	}

	return rowsAffected(result)
}

// MarkExpired transitions OPEN -> EXPIRED.
func (r *ProposalRepository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE proposals
		SET status = $1
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query,
		entities.ProposalStatusExpired, id, entities.ProposalStatusOpen)
	if err != nil {
		return false, fmt.Errorf("failed to expire proposal: %w", err)
	}

	return rowsAffected(result)
}

// ExpireStale moves every OPEN proposal past its deadline to EXPIRED and
// returns the swept IDs so callers can record the transitions.
func (r *ProposalRepository) ExpireStale(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE proposals
		SET status = $1
		WHERE status = $2 AND expires_at <= $3
		RETURNING id
	`

	ids := []uuid.UUID{}
	err := r.db.SelectContext(ctx, &ids, query,
		entities.ProposalStatusExpired, entities.ProposalStatusOpen, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale proposals: %w", err)
	}

	return ids, nil
}

// ListOpen retrieves open proposals with their approvals, oldest first. An
// empty multisigAddress matches every wallet.
func (r *ProposalRepository) ListOpen(ctx context.Context, multisigAddress string) ([]*entities.Proposal, error) {
	query := `
		SELECT id, multisig_address, recipient, amount, currency, proposer_id,
			required_approvals, status, created_at, expires_at,
			executed_at, tx_signature, failure_reason
		FROM proposals
		WHERE status = $1 AND ($2::text = '' OR multisig_address = $2)
		ORDER BY created_at ASC
	`

	var rows []proposalRow
	err := r.db.SelectContext(ctx, &rows, query, entities.ProposalStatusOpen, multisigAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to list open proposals: %w", err)
	}

	proposals := make([]*entities.Proposal, 0, len(rows))
	for _, row := range rows {
		proposal := row.toEntity()
		approvals, err := r.getApprovals(ctx, proposal.ID)
		if err != nil {
			return nil, err
		}
		proposal.Approvals = approvals
		proposals = append(proposals, proposal)
	}

	return proposals, nil
}

func (r *ProposalRepository) getApprovals(ctx context.Context, proposalID uuid.UUID) ([]entities.Approval, error) {
	query := `
		SELECT signer_id, signer_wallet_address, approved_at
		FROM proposal_approvals
		WHERE proposal_id = $1
		ORDER BY approved_at ASC
	`

	approvals := []entities.Approval{}
	err := r.db.SelectContext(ctx, &approvals, query, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal approvals: %w", err)
	}

	return approvals, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertApproval(ctx context.Context, db execer, proposalID uuid.UUID, approval *entities.Approval) error {
	query := `
		INSERT INTO proposal_approvals (proposal_id, signer_id, signer_wallet_address, approved_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := db.ExecContext(ctx, query,
		proposalID,
		approval.SignerID,
		approval.SignerWalletAddress,
		approval.ApprovedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return domainerrors.DuplicateApprovalError(approval.SignerID)
		}
		return fmt.Errorf("failed to record approval: %w", err)
	}

	return nil
}

// proposalRow flattens the transaction data columns stored on the proposals table.
type proposalRow struct {
	ID                uuid.UUID               `db:"id"`
	MultiSigAddress   string                  `db:"multisig_address"`
	Recipient         string                  `db:"recipient"`
	Amount            int64                   `db:"amount"`
	Currency          entities.Currency       `db:"currency"`
	ProposerID        string                  `db:"proposer_id"`
	RequiredApprovals int                     `db:"required_approvals"`
	Status            entities.ProposalStatus `db:"status"`
	CreatedAt         time.Time               `db:"created_at"`
	ExpiresAt         time.Time               `db:"expires_at"`
	ExecutedAt        *time.Time              `db:"executed_at"`
	TxSignature       *string                 `db:"tx_signature"`
	FailureReason     *string                 `db:"failure_reason"`
}

func (row proposalRow) toEntity() *entities.Proposal {
	return &entities.Proposal{
		ID:              row.ID,
		MultiSigAddress: row.MultiSigAddress,
		TransactionData: entities.TransactionData{
			Recipient: row.Recipient,
			Amount:    row.Amount,
			Currency:  row.Currency,
		},
		ProposerID:        row.ProposerID,
		RequiredApprovals: row.RequiredApprovals,
		Status:            row.Status,
		CreatedAt:         row.CreatedAt,
		ExpiresAt:         row.ExpiresAt,
		ExecutedAt:        row.ExecutedAt,
		TxSignature:       row.TxSignature,
		FailureReason:     row.FailureReason,
	}
}
