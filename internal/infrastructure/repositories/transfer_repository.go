package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
)

// ErrTransferNotFound is returned when no transfer matches the lookup.
var ErrTransferNotFound = fmt.Errorf("transfer not found")

// TransferRepository persists bridge transfers
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, transfer *entities.Transfer) error {
	query := `
		INSERT INTO transfers (
			id, source_chain, destination_chain, recipient, wallet_address,
			credential, amount, status, burn_tx_hash, mint_tx_hash,
			error_detail, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		transfer.ID, transfer.SourceChain, transfer.DestinationChain,
		transfer.Recipient, transfer.WalletAddress, transfer.Credential,
		transfer.Amount, transfer.Status, transfer.BurnTxHash,
		transfer.MintTxHash, transfer.ErrorDetail, transfer.CreatedAt,
		transfer.UpdatedAt,
	)
	return err
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transfer, error) {
	var transfer entities.Transfer
	query := `SELECT * FROM transfers WHERE id = $1`
	if err := r.db.GetContext(ctx, &transfer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

func (r *TransferRepository) GetByBurnTxHash(ctx context.Context, txHash string) (*entities.Transfer, error) {
	var transfer entities.Transfer
	query := `SELECT * FROM transfers WHERE burn_tx_hash = $1`
	if err := r.db.GetContext(ctx, &transfer, query, txHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &transfer, nil
}

// GetAwaitingAttestation lists transfers whose burn succeeded but whose
// attestation window elapsed, oldest first. These are the resume candidates.
func (r *TransferRepository) GetAwaitingAttestation(ctx context.Context, limit int) ([]*entities.Transfer, error) {
	var transfers []*entities.Transfer
	query := `
		SELECT * FROM transfers
		WHERE status = $1 AND burn_tx_hash IS NOT NULL
		ORDER BY created_at ASC
		LIMIT $2`
	err := r.db.SelectContext(ctx, &transfers, query, entities.TransferStatusAwaitingAttestation, limit)
	return transfers, err
}

func (r *TransferRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransferStatus) error {
	query := `UPDATE transfers SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	return err
}

func (r *TransferRepository) SetBurnTxHash(ctx context.Context, id uuid.UUID, txHash string, status entities.TransferStatus) error {
	query := `UPDATE transfers SET burn_tx_hash = $2, status = $3, updated_at = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, txHash, status, time.Now())
	return err
}

func (r *TransferRepository) SetMintTxHash(ctx context.Context, id uuid.UUID, txHash string, status entities.TransferStatus) error {
	query := `UPDATE transfers SET mint_tx_hash = $2, status = $3, updated_at = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, txHash, status, time.Now())
	return err
}

func (r *TransferRepository) SetFailed(ctx context.Context, id uuid.UUID, errorDetail string) error {
	query := `UPDATE transfers SET status = $2, error_detail = $3, updated_at = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, entities.TransferStatusFailed, errorDetail, time.Now())
	return err
}

// FailOlderThan marks stale awaiting_attestation transfers as failed. A
// transfer that has not attested after cutoff most likely references a
// transaction the attestation service will never index.
func (r *TransferRepository) FailOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE transfers
		SET status = $1, error_detail = 'attestation never completed', updated_at = $2
		WHERE status = $3 AND created_at < $4`
	result, err := r.db.ExecContext(ctx, query,
		entities.TransferStatusFailed, time.Now(),
		entities.TransferStatusAwaitingAttestation, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
