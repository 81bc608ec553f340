package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Chain identifies a supported CCTP chain. The set is closed: requests
// referencing anything else are rejected at intake.
type Chain string

const (
	ChainEthereumSepolia Chain = "ethereum-sepolia"
	ChainAvalancheFuji   Chain = "avalanche-fuji"
	ChainOptimismSepolia Chain = "optimism-sepolia"
	ChainArbitrumSepolia Chain = "arbitrum-sepolia"
	ChainBaseSepolia     Chain = "base-sepolia"
)

// SupportedChains lists every chain the service can burn on or mint on.
func SupportedChains() []Chain {
	return []Chain{
		ChainEthereumSepolia,
		ChainAvalancheFuji,
		ChainOptimismSepolia,
		ChainArbitrumSepolia,
		ChainBaseSepolia,
	}
}

// IsSupported reports whether c is a member of the supported-chain set.
func (c Chain) IsSupported() bool {
	switch c {
	case ChainEthereumSepolia, ChainAvalancheFuji, ChainOptimismSepolia,
		ChainArbitrumSepolia, ChainBaseSepolia:
		return true
	}
	return false
}

// TransferStep is a progress step broadcast on the event bus.
type TransferStep string

const (
	StepBurning             TransferStep = "burning"
	StepAwaitingAttestation TransferStep = "awaiting-attestation"
	StepMinting             TransferStep = "minting"
	StepDone                TransferStep = "done"
	StepError               TransferStep = "error"
)

// ChainStepEvent is the unit broadcast to progress subscribers. Events are
// immutable and ordered by emission time within a single transfer; consumers
// that need per-transfer ordering across concurrent transfers filter by
// WalletAddress.
type ChainStepEvent struct {
	Chain         Chain        `json:"chain"`
	Step          TransferStep `json:"step"`
	Message       string       `json:"message"`
	WalletAddress string       `json:"walletAddress"`
	ErrorDetail   string       `json:"errorDetail,omitempty"`
	EmittedAt     time.Time    `json:"emittedAt"`
}

// SigningCredential is an opaque reference to a signing key held by the EVM
// keystore. It is never a raw secret.
type SigningCredential string

// TransferRequest is the immutable input of one bridge transfer. Amount is a
// positive USDC amount with at most six decimal places.
type TransferRequest struct {
	ID               uuid.UUID
	SourceChain      Chain
	DestinationChain Chain
	Recipient        string
	Amount           decimal.Decimal
	Credential       SigningCredential
}

// USDCDecimals is the token precision enforced on transfer amounts.
const USDCDecimals = 6

// AttestationStatus is the state of a burn message at the attestation service.
type AttestationStatus string

const (
	AttestationPending  AttestationStatus = "pending"
	AttestationComplete AttestationStatus = "complete"
	AttestationError    AttestationStatus = "error"
)

// AttestationRecord is the result of one attestation lookup. Message and
// Attestation are hex encoded and populated only when Status is complete.
type AttestationRecord struct {
	Status      AttestationStatus `json:"status"`
	Message     string            `json:"message,omitempty"`
	Attestation string            `json:"attestation,omitempty"`
}

// TransferStatus is the persisted lifecycle state of a transfer.
type TransferStatus string

const (
	TransferStatusBurning             TransferStatus = "burning"
	TransferStatusAwaitingAttestation TransferStatus = "awaiting_attestation"
	TransferStatusMinting             TransferStatus = "minting"
	TransferStatusDone                TransferStatus = "done"
	TransferStatusFailed              TransferStatus = "failed"
)

// Transfer is the persisted record of one transfer. It exists so a process
// restart can resume attestation polling for an already-burned transfer
// without re-burning.
type Transfer struct {
	ID               uuid.UUID         `db:"id"`
	SourceChain      Chain             `db:"source_chain"`
	DestinationChain Chain             `db:"destination_chain"`
	Recipient        string            `db:"recipient"`
	WalletAddress    string            `db:"wallet_address"`
	Credential       SigningCredential `db:"credential"`
	Amount           decimal.Decimal   `db:"amount"`
	Status           TransferStatus    `db:"status"`
	BurnTxHash       *string           `db:"burn_tx_hash"`
	MintTxHash       *string           `db:"mint_tx_hash"`
	ErrorDetail      *string           `db:"error_detail"`
	CreatedAt        time.Time         `db:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at"`
}

// OutcomeStatus classifies the caller-facing result of one orchestration run.
type OutcomeStatus string

const (
	OutcomeDone OutcomeStatus = "done"
	// OutcomePendingAttestation means the burn succeeded but the attestation
	// window elapsed. The transfer is not failed: the lookup can be retried
	// later with the same burn transaction hash.
	OutcomePendingAttestation OutcomeStatus = "pending_attestation"
	OutcomeFailed             OutcomeStatus = "failed"
)

// TransferOutcome is what the orchestrator returns to its caller.
type TransferOutcome struct {
	TransferID uuid.UUID     `json:"transferId"`
	Status     OutcomeStatus `json:"status"`
	BurnTxHash string        `json:"burnTxHash,omitempty"`
	MintTxHash string        `json:"mintTxHash,omitempty"`
}
