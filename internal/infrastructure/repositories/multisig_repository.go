package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	domainerrors "github.com/justthetip/treasury_service/internal/domain/errors"
)

// MultiSigRepository handles treasury wallet persistence.
type MultiSigRepository struct {
	db *sqlx.DB
}

// NewMultiSigRepository creates a new multi-sig wallet repository.
func NewMultiSigRepository(db *sqlx.DB) *MultiSigRepository {
	return &MultiSigRepository{db: db}
}

// Create inserts a new wallet definition.
func (r *MultiSigRepository) Create(ctx context.Context, wallet *entities.MultiSigWallet) error {
	query := `
		INSERT INTO multisig_wallets (address, signers, threshold, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		wallet.Address,
		pq.StringArray(wallet.Signers),
		wallet.Threshold,
		wallet.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create multisig wallet: %w", err)
	}

	return nil
}

// GetByAddress retrieves a wallet definition by its address.
func (r *MultiSigRepository) GetByAddress(ctx context.Context, address string) (*entities.MultiSigWallet, error) {
	query := `
		SELECT address, signers, threshold, created_at
		FROM multisig_wallets
		WHERE address = $1
	`

	var row struct {
		Address   string         `db:"address"`
		Signers   pq.StringArray `db:"signers"`
		Threshold int            `db:"threshold"`
		CreatedAt sql.NullTime   `db:"created_at"`
	}
	err := r.db.GetContext(ctx, &row, query, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("wallet")
		}
		return nil, fmt.Errorf("failed to get multisig wallet: %w", err)
	}

	wallet := &entities.MultiSigWallet{
		Address:   row.Address,
		Signers:   []string(row.Signers),
		Threshold: row.Threshold,
	}
	if row.CreatedAt.Valid {
		wallet.CreatedAt = row.CreatedAt.Time
	}

	return wallet, nil
}
