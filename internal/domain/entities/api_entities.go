package entities

import (
	"time"

	"github.com/google/uuid"
)

// CreateTransferRequest is the payload for starting a cross-chain transfer.
type CreateTransferRequest struct {
	SourceChain      string `json:"source_chain" binding:"required"`
	DestinationChain string `json:"destination_chain" binding:"required"`
	Recipient        string `json:"recipient" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
}

// TransferAcceptedResponse acknowledges an accepted transfer before the
// burn has been submitted.
type TransferAcceptedResponse struct {
	ID     uuid.UUID      `json:"id"`
	Status TransferStatus `json:"status"`
}

// TransferResponse is the API view of a stored transfer.
type TransferResponse struct {
	ID               uuid.UUID      `json:"id"`
	SourceChain      Chain          `json:"source_chain"`
	DestinationChain Chain          `json:"destination_chain"`
	Recipient        string         `json:"recipient"`
	WalletAddress    string         `json:"wallet_address"`
	Amount           string         `json:"amount"`
	Status           TransferStatus `json:"status"`
	BurnTxHash       *string        `json:"burn_tx_hash,omitempty"`
	MintTxHash       *string        `json:"mint_tx_hash,omitempty"`
	ErrorDetail      *string        `json:"error_detail,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewTransferResponse maps a stored transfer to its API view.
func NewTransferResponse(t *Transfer) TransferResponse {
	return TransferResponse{
		ID:               t.ID,
		SourceChain:      t.SourceChain,
		DestinationChain: t.DestinationChain,
		Recipient:        t.Recipient,
		WalletAddress:    t.WalletAddress,
		Amount:           t.Amount.String(),
		Status:           t.Status,
		BurnTxHash:       t.BurnTxHash,
		MintTxHash:       t.MintTxHash,
		ErrorDetail:      t.ErrorDetail,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// AttestationResponse is the API view of an attestation lookup. TransferID
// is set when the burn was submitted by this service.
type AttestationResponse struct {
	Status      AttestationStatus `json:"status"`
	Message     string            `json:"message,omitempty"`
	Attestation string            `json:"attestation,omitempty"`
	TransferID  *uuid.UUID        `json:"transfer_id,omitempty"`
}
