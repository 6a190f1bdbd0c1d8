package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	domainerrors "github.com/justthetip/treasury_service/internal/domain/errors"
)

// WithdrawalRepository handles withdrawal request persistence. Every state
// transition is a conditional UPDATE on the expected prior status; the bool
// result reports whether the row was actually moved.
type WithdrawalRepository struct {
	db *sqlx.DB
}

// NewWithdrawalRepository creates a new withdrawal repository.
func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create inserts a new withdrawal request.
func (r *WithdrawalRepository) Create(ctx context.Context, request *entities.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (
			id, user_id, username, to_address, amount, currency, status,
			requested_at, expires_at, decided_by, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.UserID,
		request.Username,
		request.ToAddress,
		request.Amount,
		request.Currency,
		request.Status,
		request.RequestedAt,
		request.ExpiresAt,
		request.DecidedBy,
		request.DecidedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	return nil
}

// GetByID retrieves a withdrawal request by ID.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.WithdrawalRequest, error) {
	query := `
		SELECT id, user_id, username, to_address, amount, currency, status,
			requested_at, expires_at, decided_by, decided_at, reason, tx_signature
		FROM withdrawal_requests
		WHERE id = $1
	`

	var request entities.WithdrawalRequest
	err := r.db.GetContext(ctx, &request, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("withdrawal")
		}
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}

	return &request, nil
}

// GetByUserID retrieves a user's withdrawal requests, newest first.
func (r *WithdrawalRepository) GetByUserID(ctx context.Context, userID string, limit int) ([]*entities.WithdrawalRequest, error) {
	query := `
		SELECT id, user_id, username, to_address, amount, currency, status,
			requested_at, expires_at, decided_by, decided_at, reason, tx_signature
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2
	`

	requests := []*entities.WithdrawalRequest{}
	err := r.db.SelectContext(ctx, &requests, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user withdrawal requests: %w", err)
	}

	return requests, nil
}

// ListByStatus retrieves all withdrawal requests in a given status, oldest first.
func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status entities.WithdrawalStatus) ([]*entities.WithdrawalRequest, error) {
	query := `
		SELECT id, user_id, username, to_address, amount, currency, status,
			requested_at, expires_at, decided_by, decided_at, reason, tx_signature
		FROM withdrawal_requests
		WHERE status = $1
		ORDER BY requested_at ASC
	`

	requests := []*entities.WithdrawalRequest{}
	err := r.db.SelectContext(ctx, &requests, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}

	return requests, nil
}

// MarkApproved transitions PENDING -> APPROVED and records the deciding admin.
// The deadline guard keeps a decision from landing on a request whose TTL
// elapsed after the caller's expiry check.
func (r *WithdrawalRepository) MarkApproved(ctx context.Context, id uuid.UUID, adminID string) (bool, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, decided_by = $2, decided_at = $3
		WHERE id = $4 AND status = $5 AND expires_at > $3
	`

	result, err := r.db.ExecContext(ctx, query,
		entities.WithdrawalStatusApproved, adminID, time.Now(), id, entities.WithdrawalStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to approve withdrawal: %w", err)
	}

	return rowsAffected(result)
}

// MarkRejected transitions PENDING -> REJECTED with the admin's reason. Like
// MarkApproved it refuses rows past their deadline.
func (r *WithdrawalRepository) MarkRejected(ctx context.Context, id uuid.UUID, adminID, reason string) (bool, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, decided_by = $2, decided_at = $3, reason = $4
		WHERE id = $5 AND status = $6 AND expires_at > $3
	`

	result, err := r.db.ExecContext(ctx, query,
		entities.WithdrawalStatusRejected, adminID, time.Now(), reason, id, entities.WithdrawalStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to reject withdrawal: %w", err)
	}

	return rowsAffected(result)
}

// MarkCompleted records a successful execution from an authorized status.
func (r *WithdrawalRepository) MarkCompleted(ctx context.Context, id uuid.UUID, from entities.WithdrawalStatus, txSignature string) (bool, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, tx_signature = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		entities.WithdrawalStatusCompleted, txSignature, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to mark withdrawal completed: %w", err)
	}

	return rowsAffected(result)
}

// MarkFailed records a failed execution from an authorized status.
func (r *WithdrawalRepository) MarkFailed(ctx context.Context, id uuid.UUID, from entities.WithdrawalStatus, reason string) (bool, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, reason = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		entities.WithdrawalStatusFailed, reason, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to mark withdrawal failed: %w", err)
	}

	return rowsAffected(result)
}

// MarkExpired transitions PENDING -> EXPIRED.
func (r *WithdrawalRepository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, decided_by = $2, decided_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		entities.WithdrawalStatusExpired, entities.DecidedBySystem, time.Now(), id, entities.WithdrawalStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to expire withdrawal: %w", err)
	}

	return rowsAffected(result)
}

// ExpireStale moves every PENDING request past its deadline to EXPIRED and
// returns the swept IDs so callers can record the transitions.
func (r *WithdrawalRepository) ExpireStale(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, decided_by = $2, decided_at = $3
		WHERE status = $4 AND expires_at <= $3
		RETURNING id
	`

	ids := []uuid.UUID{}
	err := r.db.SelectContext(ctx, &ids, query,
		entities.WithdrawalStatusExpired, entities.DecidedBySystem, now, entities.WithdrawalStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale withdrawals: %w", err)
	}

	return ids, nil
}

func rowsAffected(result sql.Result) (bool, error) {
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return count > 0, nil
}
