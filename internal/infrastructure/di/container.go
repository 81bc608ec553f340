package di

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
	"github.com/bridge-service/bridge_service/internal/domain/services/transfer"
	"github.com/bridge-service/bridge_service/internal/events"
	"github.com/bridge-service/bridge_service/internal/infrastructure/adapters/attestation"
	"github.com/bridge-service/bridge_service/internal/infrastructure/adapters/evm"
	"github.com/bridge-service/bridge_service/internal/infrastructure/config"
	"github.com/bridge-service/bridge_service/internal/infrastructure/repositories"
	"github.com/bridge-service/bridge_service/internal/workers/sweeper"
	"github.com/bridge-service/bridge_service/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Repositories
	TransferRepo    *repositories.TransferRepository
	IdempotencyRepo *repositories.IdempotencyRepository

	// Chain adapters
	Keystore          *evm.Keystore
	ClientCache       *evm.ClientCache
	ChainAdapter      *evm.Adapter
	AttestationClient *attestation.Client

	// Event bus
	Bus *events.Bus

	// Domain services
	TransferService *transfer.Service

	// Workers
	SweeperWorker *sweeper.Worker
}

// NewContainer creates and wires all application dependencies
func NewContainer(cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	transferRepo := repositories.NewTransferRepository(db)
	idempotencyRepo := repositories.NewIdempotencyRepository(db, zapLog)

	keystore := evm.NewKeystore()
	if err := keystore.Register(entities.SigningCredential(cfg.Signer.CredentialRef), cfg.Signer.PrivateKey); err != nil {
		return nil, fmt.Errorf("failed to register signing key: %w", err)
	}

	clientCache := evm.NewClientCache(cfg.Chains)
	chainAdapter := evm.NewAdapter(cfg.Chains, keystore, clientCache, zapLog)

	attestationClient := attestation.NewClient(attestation.Config{
		BaseURL:      cfg.Attestation.BaseURL,
		Environment:  cfg.Attestation.Environment,
		Timeout:      time.Duration(cfg.Attestation.Timeout) * time.Second,
		PollInterval: cfg.Attestation.PollInterval(),
	}, zapLog)

	bus := events.New(events.Config{
		MaxSubscribers:      cfg.EventBus.MaxSubscribers,
		HealthCheckInterval: cfg.EventBus.HealthCheckInterval(),
		SubscriberBuffer:    cfg.EventBus.SubscriberBuffer,
	}, zapLog)

	transferService := transfer.NewService(
		chainAdapter,
		chainAdapter,
		attestationClient,
		keystore,
		transferRepo,
		bus,
		transfer.Config{PollTimeout: cfg.Attestation.PollTimeout()},
		zapLog,
	)

	sweeperWorker := sweeper.NewWorker(transferService, transferRepo, idempotencyRepo, cfg.Sweeper, zapLog)

	return &Container{
		Config:            cfg,
		DB:                db,
		Logger:            log,
		ZapLog:            zapLog,
		TransferRepo:      transferRepo,
		IdempotencyRepo:   idempotencyRepo,
		Keystore:          keystore,
		ClientCache:       clientCache,
		ChainAdapter:      chainAdapter,
		AttestationClient: attestationClient,
		Bus:               bus,
		TransferService:   transferService,
		SweeperWorker:     sweeperWorker,
	}, nil
}

// GetTransferService returns the transfer orchestrator
func (c *Container) GetTransferService() *transfer.Service {
	return c.TransferService
}

// Close releases held resources
func (c *Container) Close() error {
	c.ClientCache.Close()
	return c.DB.Close()
}
