package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
	"github.com/bridge-service/bridge_service/internal/events"
	"github.com/bridge-service/bridge_service/internal/infrastructure/adapters/attestation"
	"github.com/bridge-service/bridge_service/internal/infrastructure/adapters/evm"
	"github.com/bridge-service/bridge_service/pkg/metrics"
)

// Repository defines persistence operations for transfers
type Repository interface {
	Create(ctx context.Context, transfer *entities.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Transfer, error)
	GetByBurnTxHash(ctx context.Context, txHash string) (*entities.Transfer, error)
	GetAwaitingAttestation(ctx context.Context, limit int) ([]*entities.Transfer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransferStatus) error
	SetBurnTxHash(ctx context.Context, id uuid.UUID, txHash string, status entities.TransferStatus) error
	SetMintTxHash(ctx context.Context, id uuid.UUID, txHash string, status entities.TransferStatus) error
	SetFailed(ctx context.Context, id uuid.UUID, errorDetail string) error
}

// AttestationClient defines the attestation operations the orchestrator uses
type AttestationClient interface {
	RetrieveAttestation(ctx context.Context, sourceDomain uint32, txHash string, timeout time.Duration) (*entities.AttestationRecord, error)
	Lookup(ctx context.Context, sourceDomain uint32, txHash string) (*entities.AttestationRecord, error)
	GetFees(ctx context.Context, sourceDomain, destDomain uint32) (*attestation.FeesResponse, error)
}

// Publisher fans progress events out to subscribers
type Publisher interface {
	Publish(topic string, event entities.ChainStepEvent)
}

// AddressResolver maps a signing credential to its wallet address
type AddressResolver interface {
	Address(credential entities.SigningCredential) (string, error)
}

// Config holds orchestrator tuning parameters
type Config struct {
	// PollTimeout bounds the interactive attestation polling window.
	PollTimeout time.Duration
}

// Service orchestrates burn, attestation and mint for cross-chain USDC
// transfers. Each transfer runs as one unit of work; events for a single
// transfer are emitted in strict step order.
type Service struct {
	burner       evm.Burner
	minter       evm.Minter
	attestations AttestationClient
	addresses    AddressResolver
	repo         Repository
	bus          Publisher
	config       Config
	logger       *zap.Logger
}

// NewService creates a new transfer orchestrator
func NewService(
	burner evm.Burner,
	minter evm.Minter,
	attestations AttestationClient,
	addresses AddressResolver,
	repo Repository,
	bus Publisher,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.PollTimeout == 0 {
		config.PollTimeout = 30 * time.Second
	}
	return &Service{
		burner:       burner,
		minter:       minter,
		attestations: attestations,
		addresses:    addresses,
		repo:         repo,
		bus:          bus,
		config:       config,
		logger:       logger,
	}
}

// Execute runs one transfer to completion. The returned outcome is always
// non-nil: Done when the mint confirmed, PendingAttestation when the burn
// succeeded but the attestation window elapsed, Failed otherwise. A Pending
// outcome is not an error; the burn remains valid and attestation may still
// complete later.
func (s *Service) Execute(ctx context.Context, req entities.TransferRequest) (*entities.TransferOutcome, error) {
	if err := s.validate(req); err != nil {
		return &entities.TransferOutcome{TransferID: req.ID, Status: entities.OutcomeFailed}, err
	}

	wallet, err := s.addresses.Address(req.Credential)
	if err != nil {
		return &entities.TransferOutcome{TransferID: req.ID, Status: entities.OutcomeFailed}, err
	}

	now := time.Now()
	record := &entities.Transfer{
		ID:               req.ID,
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		Recipient:        req.Recipient,
		WalletAddress:    wallet,
		Credential:       req.Credential,
		Amount:           req.Amount,
		Status:           entities.TransferStatusBurning,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return &entities.TransferOutcome{TransferID: req.ID, Status: entities.OutcomeFailed},
			fmt.Errorf("create transfer: %w", err)
	}
	metrics.TransfersStarted.Inc()

	s.logger.Info("transfer started",
		zap.String("transfer_id", req.ID.String()),
		zap.String("source_chain", string(req.SourceChain)),
		zap.String("destination_chain", string(req.DestinationChain)),
		zap.String("amount", req.Amount.String()))

	// Observers see progress before the potentially long burn confirmation.
	s.emit(req.SourceChain, entities.StepBurning, "burning on source chain", wallet, "")

	burnResult, err := s.burner.Burn(ctx, evm.BurnParams{
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		Recipient:        req.Recipient,
		Amount:           req.Amount,
		Credential:       req.Credential,
		MaxFee:           s.preflightMaxFee(ctx, req),
	})
	if err != nil {
		return s.fail(ctx, record, wallet, fmt.Errorf("%w: %v", ErrBurnFailed, err))
	}

	if err := s.repo.SetBurnTxHash(ctx, record.ID, burnResult.TxHash, entities.TransferStatusAwaitingAttestation); err != nil {
		s.logger.Error("failed to record burn tx hash",
			zap.String("transfer_id", record.ID.String()),
			zap.Error(err))
	}

	outcome, err := s.completeFromBurn(ctx, record, wallet, burnResult.TxHash, s.config.PollTimeout)
	return outcome, err
}

// completeFromBurn drives a transfer from a confirmed burn to its end state
func (s *Service) completeFromBurn(ctx context.Context, record *entities.Transfer, wallet, burnTxHash string, pollTimeout time.Duration) (*entities.TransferOutcome, error) {
	domain, ok := attestation.ChainDomains[record.SourceChain]
	if !ok {
		return s.fail(ctx, record, wallet, fmt.Errorf("%w: %s", ErrUnsupportedChain, record.SourceChain))
	}

	attRecord, err := s.attestations.RetrieveAttestation(ctx, domain, burnTxHash, pollTimeout)
	if err != nil {
		if errors.Is(err, attestation.ErrTimeout) {
			// Expected transient condition. The transfer stays in
			// awaiting_attestation and the sweeper resumes it later.
			s.logger.Info("attestation still pending",
				zap.String("transfer_id", record.ID.String()),
				zap.String("burn_tx_hash", burnTxHash))
			metrics.TransfersByOutcome.WithLabelValues(string(entities.OutcomePendingAttestation)).Inc()
			return &entities.TransferOutcome{
				TransferID: record.ID,
				Status:     entities.OutcomePendingAttestation,
				BurnTxHash: burnTxHash,
			}, nil
		}
		outcome, ferr := s.fail(ctx, record, wallet, fmt.Errorf("attestation retrieval: %w", err))
		outcome.BurnTxHash = burnTxHash
		return outcome, ferr
	}

	if err := s.repo.UpdateStatus(ctx, record.ID, entities.TransferStatusMinting); err != nil {
		s.logger.Error("failed to update transfer status",
			zap.String("transfer_id", record.ID.String()),
			zap.Error(err))
	}

	mintTxHash, err := s.minter.Mint(ctx, record.DestinationChain, attRecord.Message, attRecord.Attestation, record.Credential)
	if err != nil {
		outcome, ferr := s.fail(ctx, record, wallet, fmt.Errorf("%w: %v", ErrMintFailed, err))
		outcome.BurnTxHash = burnTxHash
		return outcome, ferr
	}

	if err := s.repo.SetMintTxHash(ctx, record.ID, mintTxHash, entities.TransferStatusDone); err != nil {
		s.logger.Error("failed to record mint tx hash",
			zap.String("transfer_id", record.ID.String()),
			zap.Error(err))
	}

	s.emit(record.DestinationChain, entities.StepDone, "transfer complete", wallet, "")
	metrics.TransfersByOutcome.WithLabelValues(string(entities.OutcomeDone)).Inc()

	s.logger.Info("transfer complete",
		zap.String("transfer_id", record.ID.String()),
		zap.String("burn_tx_hash", burnTxHash),
		zap.String("mint_tx_hash", mintTxHash))

	return &entities.TransferOutcome{
		TransferID: record.ID,
		Status:     entities.OutcomeDone,
		BurnTxHash: burnTxHash,
		MintTxHash: mintTxHash,
	}, nil
}

// LookupAttestation performs a single decoupled attestation check
func (s *Service) LookupAttestation(ctx context.Context, sourceChain entities.Chain, txHash string) (*entities.AttestationRecord, error) {
	domain, ok := attestation.ChainDomains[sourceChain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, sourceChain)
	}
	return s.attestations.Lookup(ctx, domain, txHash)
}

// GetTransfer retrieves a transfer by ID
func (s *Service) GetTransfer(ctx context.Context, id uuid.UUID) (*entities.Transfer, error) {
	return s.repo.GetByID(ctx, id)
}

// GetTransferByBurnTxHash retrieves the transfer that produced a burn, if
// the burn originated here. Returns nil without error for unknown hashes.
func (s *Service) GetTransferByBurnTxHash(ctx context.Context, txHash string) (*entities.Transfer, error) {
	return s.repo.GetByBurnTxHash(ctx, txHash)
}

// ResumePending retries attestation and mint for transfers whose burn
// succeeded but whose interactive polling window elapsed. The burn is never
// repeated.
func (s *Service) ResumePending(ctx context.Context, limit int, pollTimeout time.Duration) error {
	pending, err := s.repo.GetAwaitingAttestation(ctx, limit)
	if err != nil {
		return fmt.Errorf("list pending transfers: %w", err)
	}

	for _, record := range pending {
		if record.BurnTxHash == nil {
			continue
		}
		s.logger.Info("resuming transfer",
			zap.String("transfer_id", record.ID.String()),
			zap.String("burn_tx_hash", *record.BurnTxHash))

		if _, err := s.completeFromBurn(ctx, record, record.WalletAddress, *record.BurnTxHash, pollTimeout); err != nil {
			s.logger.Warn("resume attempt failed",
				zap.String("transfer_id", record.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// preflightMaxFee asks the attestation service for the current minimum fee
// between the two domains, in basis points of the amount. Standard-finality
// transfers normally price at zero; a lookup failure falls back to zero
// rather than blocking the burn.
func (s *Service) preflightMaxFee(ctx context.Context, req entities.TransferRequest) *big.Int {
	srcDomain, srcOK := attestation.ChainDomains[req.SourceChain]
	dstDomain, dstOK := attestation.ChainDomains[req.DestinationChain]
	if !srcOK || !dstOK {
		return big.NewInt(0)
	}

	fees, err := s.attestations.GetFees(ctx, srcDomain, dstDomain)
	if err != nil {
		s.logger.Warn("fee preflight failed",
			zap.String("transfer_id", req.ID.String()),
			zap.Error(err))
		return big.NewInt(0)
	}

	bps := decimal.NewFromUint64(fees.StandardFee.MinimumFee)
	fee := req.Amount.Shift(entities.USDCDecimals).Mul(bps).Div(decimal.NewFromInt(10000)).Ceil()
	return fee.BigInt()
}

func (s *Service) validate(req entities.TransferRequest) error {
	if !req.SourceChain.IsSupported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedChain, req.SourceChain)
	}
	if !req.DestinationChain.IsSupported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedChain, req.DestinationChain)
	}
	if req.SourceChain == req.DestinationChain {
		return ErrSameChain
	}
	return nil
}

// fail converts any step failure into a terminal error state. The raw error
// detail is preserved on the event and the row; no retry happens here.
func (s *Service) fail(ctx context.Context, record *entities.Transfer, wallet string, err error) (*entities.TransferOutcome, error) {
	s.logger.Error("transfer failed",
		zap.String("transfer_id", record.ID.String()),
		zap.Error(err))

	if dbErr := s.repo.SetFailed(ctx, record.ID, err.Error()); dbErr != nil {
		s.logger.Error("failed to mark transfer failed",
			zap.String("transfer_id", record.ID.String()),
			zap.Error(dbErr))
	}

	s.emit(record.SourceChain, entities.StepError, "transfer failed", wallet, err.Error())
	metrics.TransfersByOutcome.WithLabelValues(string(entities.OutcomeFailed)).Inc()

	return &entities.TransferOutcome{TransferID: record.ID, Status: entities.OutcomeFailed}, err
}

func (s *Service) emit(chain entities.Chain, step entities.TransferStep, message, wallet, errorDetail string) {
	s.bus.Publish(events.TopicChainStep, entities.ChainStepEvent{
		Chain:         chain,
		Step:          step,
		Message:       message,
		WalletAddress: wallet,
		ErrorDetail:   errorDetail,
		EmittedAt:     time.Now(),
	})
}
