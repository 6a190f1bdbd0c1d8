package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/justthetip/treasury_service/internal/domain/entities"
)

// AuditRepository appends audit trail entries. Rows are never updated or
// deleted.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Log appends one audit entry.
func (r *AuditRepository) Log(ctx context.Context, entry *entities.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, action, actor_id, subject_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.ActorID,
		entry.SubjectID,
		entry.Amount,
		entry.Currency,
		entry.Status,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}

// ListBySubject retrieves the audit trail for one record, oldest first.
func (r *AuditRepository) ListBySubject(ctx context.Context, subjectID string) ([]*entities.AuditEntry, error) {
	query := `
		SELECT id, action, actor_id, subject_id, amount, currency, status, created_at
		FROM audit_log
		WHERE subject_id = $1
		ORDER BY created_at ASC
	`

	entries := []*entities.AuditEntry{}
	err := r.db.SelectContext(ctx, &entries, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	return entries, nil
}
