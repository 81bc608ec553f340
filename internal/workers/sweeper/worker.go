package sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bridge-service/bridge_service/internal/domain/services/transfer"
	"github.com/bridge-service/bridge_service/internal/infrastructure/config"
	"github.com/bridge-service/bridge_service/internal/infrastructure/repositories"
)

// Background resume polls run much longer than the interactive window.
const resumePollTimeout = 2 * time.Minute

// Worker resumes transfers stuck awaiting attestation and expires stale
// records. The interactive path gives up after a short window; this worker
// finishes the job without ever re-burning.
type Worker struct {
	transferService *transfer.Service
	transferRepo    *repositories.TransferRepository
	idempotencyRepo *repositories.IdempotencyRepository
	config          config.SweeperConfig
	cron            *cron.Cron
	logger          *zap.Logger
}

func NewWorker(
	transferService *transfer.Service,
	transferRepo *repositories.TransferRepository,
	idempotencyRepo *repositories.IdempotencyRepository,
	cfg config.SweeperConfig,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		transferService: transferService,
		transferRepo:    transferRepo,
		idempotencyRepo: idempotencyRepo,
		config:          cfg,
		cron:            cron.New(),
		logger:          logger,
	}
}

func (w *Worker) Start() error {
	// Resume transfers awaiting attestation
	_, err := w.cron.AddFunc(w.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := w.transferService.ResumePending(ctx, w.config.BatchLimit, resumePollTimeout); err != nil {
			w.logger.Error("Failed to resume pending transfers", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	// Expire transfers that will never attest, once an hour
	_, err = w.cron.AddFunc("0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		cutoff := time.Now().Add(-time.Duration(w.config.MaxAgeHours) * time.Hour)
		count, err := w.transferRepo.FailOlderThan(ctx, cutoff)
		if err != nil {
			w.logger.Error("Failed to expire stale transfers", zap.Error(err))
			return
		}
		if count > 0 {
			w.logger.Info("Expired stale transfers", zap.Int64("count", count))
		}
	})
	if err != nil {
		return err
	}

	// Cleanup expired idempotency keys every 6 hours
	_, err = w.cron.AddFunc("0 */6 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := w.idempotencyRepo.DeleteExpired(ctx); err != nil {
			w.logger.Error("Failed to cleanup expired idempotency keys", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Transfer sweeper started", zap.String("schedule", w.config.Schedule))
	return nil
}

func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Transfer sweeper stopped")
}
