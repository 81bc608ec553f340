package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
	"github.com/bridge-service/bridge_service/internal/infrastructure/adapters/attestation"
	"github.com/bridge-service/bridge_service/internal/infrastructure/adapters/evm"
)

type fakeBurner struct {
	calls atomic.Int64
	err   error
}

func (b *fakeBurner) Burn(ctx context.Context, params evm.BurnParams) (*evm.BurnResult, error) {
	b.calls.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	return &evm.BurnResult{TxHash: "0xburn", WalletAddress: "0xwallet"}, nil
}

type fakeMinter struct {
	calls atomic.Int64
	err   error
}

func (m *fakeMinter) Mint(ctx context.Context, chain entities.Chain, messageHex, attestationHex string, credential entities.SigningCredential) (string, error) {
	m.calls.Add(1)
	if m.err != nil {
		return "", m.err
	}
	return "0xmint", nil
}

type fakeAddresses struct{}

func (fakeAddresses) Address(entities.SigningCredential) (string, error) {
	return "0xwallet", nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []entities.ChainStepEvent
}

func (b *recordingBus) Publish(topic string, event entities.ChainStepEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) steps() []entities.TransferStep {
	b.mu.Lock()
	defer b.mu.Unlock()
	steps := make([]entities.TransferStep, 0, len(b.events))
	for _, event := range b.events {
		steps = append(steps, event.Step)
	}
	return steps
}

type memoryRepo struct {
	mu        sync.Mutex
	transfers map[uuid.UUID]*entities.Transfer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{transfers: make(map[uuid.UUID]*entities.Transfer)}
}

func (r *memoryRepo) Create(ctx context.Context, transfer *entities.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *transfer
	r.transfers[transfer.ID] = &clone
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	transfer, ok := r.transfers[id]
	if !ok {
		return nil, fmt.Errorf("transfer not found")
	}
	clone := *transfer
	return &clone, nil
}

func (r *memoryRepo) GetByBurnTxHash(ctx context.Context, txHash string) (*entities.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, transfer := range r.transfers {
		if transfer.BurnTxHash != nil && *transfer.BurnTxHash == txHash {
			clone := *transfer
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) GetAwaitingAttestation(ctx context.Context, limit int) ([]*entities.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Transfer
	for _, transfer := range r.transfers {
		if transfer.Status == entities.TransferStatusAwaitingAttestation && transfer.BurnTxHash != nil {
			clone := *transfer
			out = append(out, &clone)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransferStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[id].Status = status
	return nil
}

func (r *memoryRepo) SetBurnTxHash(ctx context.Context, id uuid.UUID, txHash string, status entities.TransferStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[id].BurnTxHash = &txHash
	r.transfers[id].Status = status
	return nil
}

func (r *memoryRepo) SetMintTxHash(ctx context.Context, id uuid.UUID, txHash string, status entities.TransferStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[id].MintTxHash = &txHash
	r.transfers[id].Status = status
	return nil
}

func (r *memoryRepo) SetFailed(ctx context.Context, id uuid.UUID, errorDetail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[id].Status = entities.TransferStatusFailed
	r.transfers[id].ErrorDetail = &errorDetail
	return nil
}

func newRequest() entities.TransferRequest {
	return entities.TransferRequest{
		ID:               uuid.New(),
		SourceChain:      entities.ChainBaseSepolia,
		DestinationChain: entities.ChainOptimismSepolia,
		Recipient:        "0x1111111111111111111111111111111111111111",
		Amount:           decimal.RequireFromString("1.00"),
		Credential:       "default",
	}
}

// irisServer fakes the attestation service: 404 until the given attempt,
// then a complete message. Fee preflight requests are answered with a zero
// fee and excluded from the poll counter.
func irisServer(t *testing.T, completeOn int64) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/v2/burn/USDC/fees") {
			json.NewEncoder(w).Encode(attestation.FeesResponse{})
			return
		}
		if calls.Add(1) < completeOn {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(attestation.MessagesResponse{
			Messages: []attestation.Message{{
				Status:      attestation.StatusComplete,
				Message:     "0xmsg",
				Attestation: "0xatt",
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestService(t *testing.T, irisURL string, pollTimeout time.Duration, burner *fakeBurner, minter *fakeMinter) (*Service, *memoryRepo, *recordingBus) {
	t.Helper()
	client := attestation.NewClient(attestation.Config{
		BaseURL:      irisURL,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	repo := newMemoryRepo()
	bus := &recordingBus{}
	svc := NewService(burner, minter, client, fakeAddresses{}, repo, bus,
		Config{PollTimeout: pollTimeout}, zap.NewNop())
	return svc, repo, bus
}

func TestExecuteSuccess(t *testing.T) {
	server, polls := irisServer(t, 3)
	burner := &fakeBurner{}
	minter := &fakeMinter{}
	svc, repo, bus := newTestService(t, server.URL, 5*time.Second, burner, minter)

	req := newRequest()
	outcome, err := svc.Execute(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeDone, outcome.Status)
	assert.Equal(t, "0xburn", outcome.BurnTxHash)
	assert.Equal(t, "0xmint", outcome.MintTxHash)

	assert.Equal(t, int64(1), burner.calls.Load())
	assert.Equal(t, int64(1), minter.calls.Load())
	assert.Equal(t, int64(3), polls.Load(), "attestation should complete on the third poll")

	// Observers see exactly burning then done.
	assert.Equal(t, []entities.TransferStep{entities.StepBurning, entities.StepDone}, bus.steps())

	stored, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransferStatusDone, stored.Status)
	require.NotNil(t, stored.MintTxHash)
	assert.Equal(t, "0xmint", *stored.MintTxHash)
}

func TestExecuteAttestationTimeoutIsPendingNotFailed(t *testing.T) {
	server, _ := irisServer(t, 1<<30) // never completes
	burner := &fakeBurner{}
	minter := &fakeMinter{}
	svc, repo, bus := newTestService(t, server.URL, 100*time.Millisecond, burner, minter)

	req := newRequest()
	outcome, err := svc.Execute(context.Background(), req)

	require.NoError(t, err, "a timed-out attestation is not a failure")
	assert.Equal(t, entities.OutcomePendingAttestation, outcome.Status)
	assert.Equal(t, "0xburn", outcome.BurnTxHash)
	assert.Empty(t, outcome.MintTxHash)
	assert.Equal(t, int64(0), minter.calls.Load())

	// No error event; the transfer stays resumable.
	assert.Equal(t, []entities.TransferStep{entities.StepBurning}, bus.steps())

	stored, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransferStatusAwaitingAttestation, stored.Status)
}

func TestExecuteBurnFailure(t *testing.T) {
	server, polls := irisServer(t, 1)
	burner := &fakeBurner{err: errors.New("insufficient funds for gas")}
	minter := &fakeMinter{}
	svc, repo, bus := newTestService(t, server.URL, time.Second, burner, minter)

	req := newRequest()
	outcome, err := svc.Execute(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBurnFailed)
	assert.Equal(t, entities.OutcomeFailed, outcome.Status)

	// No attestation polling and no mint after a failed burn.
	assert.Equal(t, int64(0), polls.Load())
	assert.Equal(t, int64(0), minter.calls.Load())

	steps := bus.steps()
	require.Equal(t, []entities.TransferStep{entities.StepBurning, entities.StepError}, steps)
	assert.Contains(t, bus.events[1].ErrorDetail, "insufficient funds")

	stored, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransferStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorDetail)
	assert.Contains(t, *stored.ErrorDetail, "insufficient funds")
}

func TestExecuteMintFailure(t *testing.T) {
	server, _ := irisServer(t, 1)
	burner := &fakeBurner{}
	minter := &fakeMinter{err: errors.New("execution reverted")}
	svc, _, bus := newTestService(t, server.URL, time.Second, burner, minter)

	outcome, err := svc.Execute(context.Background(), newRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMintFailed)
	assert.Equal(t, entities.OutcomeFailed, outcome.Status)
	assert.Equal(t, "0xburn", outcome.BurnTxHash, "burn hash is preserved for a later mint retry")
	assert.Equal(t, []entities.TransferStep{entities.StepBurning, entities.StepError}, bus.steps())
}

func TestExecuteValidation(t *testing.T) {
	server, _ := irisServer(t, 1)
	burner := &fakeBurner{}
	svc, _, _ := newTestService(t, server.URL, time.Second, burner, &fakeMinter{})

	t.Run("unsupported chain", func(t *testing.T) {
		req := newRequest()
		req.SourceChain = "dogecoin"
		_, err := svc.Execute(context.Background(), req)
		assert.ErrorIs(t, err, ErrUnsupportedChain)
	})

	t.Run("same source and destination", func(t *testing.T) {
		req := newRequest()
		req.DestinationChain = req.SourceChain
		_, err := svc.Execute(context.Background(), req)
		assert.ErrorIs(t, err, ErrSameChain)
	})

	assert.Equal(t, int64(0), burner.calls.Load(), "invalid requests must never reach the burn adapter")
}

func TestResumePendingDoesNotReburn(t *testing.T) {
	server, _ := irisServer(t, 1)
	burner := &fakeBurner{}
	minter := &fakeMinter{}
	svc, repo, bus := newTestService(t, server.URL, time.Second, burner, minter)

	// A transfer left behind by a previous run: burned, never attested.
	burnHash := "0xoldburn"
	id := uuid.New()
	require.NoError(t, repo.Create(context.Background(), &entities.Transfer{
		ID:               id,
		SourceChain:      entities.ChainBaseSepolia,
		DestinationChain: entities.ChainOptimismSepolia,
		Recipient:        "0x1111111111111111111111111111111111111111",
		WalletAddress:    "0xwallet",
		Credential:       "default",
		Amount:           decimal.RequireFromString("1.00"),
		Status:           entities.TransferStatusAwaitingAttestation,
		BurnTxHash:       &burnHash,
	}))

	require.NoError(t, svc.ResumePending(context.Background(), 10, time.Second))

	assert.Equal(t, int64(0), burner.calls.Load(), "resume must never re-burn")
	assert.Equal(t, int64(1), minter.calls.Load())

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.TransferStatusDone, stored.Status)
	assert.Equal(t, []entities.TransferStep{entities.StepDone}, bus.steps())
}

func TestLookupAttestation(t *testing.T) {
	server, _ := irisServer(t, 1)
	svc, _, _ := newTestService(t, server.URL, time.Second, &fakeBurner{}, &fakeMinter{})

	t.Run("complete", func(t *testing.T) {
		record, err := svc.LookupAttestation(context.Background(), entities.ChainBaseSepolia, "0xburn")
		require.NoError(t, err)
		assert.Equal(t, entities.AttestationComplete, record.Status)
		assert.Equal(t, "0xmsg", record.Message)
	})

	t.Run("unsupported chain", func(t *testing.T) {
		_, err := svc.LookupAttestation(context.Background(), "dogecoin", "0xburn")
		assert.ErrorIs(t, err, ErrUnsupportedChain)
	})
}
