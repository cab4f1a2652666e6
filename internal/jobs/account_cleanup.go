package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"folio/internal/accounts"
	"folio/internal/events"
	"folio/internal/resources"
)

const (
	cleanupBatchSize   = 1000
	cleanupAccountsMax = 10
)

// AccountCleanupJob removes accounts scheduled for deletion together with
// their events and resources. Events go first, in batches, so an interrupted
// run simply continues on the next tick.
type AccountCleanupJob struct {
	dbManager  cartridge.DBManager
	logger     *slog.Logger
	batchSize  int
	batchPause time.Duration
}

func NewAccountCleanupJob(dbManager cartridge.DBManager, logger *slog.Logger) *AccountCleanupJob {
	return &AccountCleanupJob{
		dbManager:  dbManager,
		logger:     logger,
		batchSize:  cleanupBatchSize,
		batchPause: 100 * time.Millisecond,
	}
}

// WithBatchSize changes how many events are deleted per write and the pause
// between batches.
func (j *AccountCleanupJob) WithBatchSize(size int, pause time.Duration) *AccountCleanupJob {
	if size > 0 {
		j.batchSize = size
	}
	j.batchPause = pause
	return j
}

func (j *AccountCleanupJob) Name() string {
	return "account_cleanup"
}

func (j *AccountCleanupJob) Run(ctx context.Context) error {
	db := j.dbManager.GetConnection().WithContext(ctx)

	pending, err := accounts.ListPendingDeletion(db, cleanupAccountsMax)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		j.logger.Debug("No accounts pending deletion")
		return nil
	}

	var errs []error
	for _, account := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := j.purgeAccount(ctx, account.ID); err != nil {
			j.logger.Error("Failed to purge account, continuing with the next one",
				slog.Uint64("owner_id", uint64(account.ID)),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("account %d: %w", account.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (j *AccountCleanupJob) purgeAccount(ctx context.Context, ownerID uint) error {
	db := j.dbManager.GetConnection().WithContext(ctx)

	var totalDeleted int64
	for {
		deleted, err := events.DeleteBatchForOwner(db, j.logger, ownerID, j.batchSize)
		if err != nil {
			j.logger.Error("Failed to delete events",
				slog.Uint64("owner_id", uint64(ownerID)),
				slog.Int64("deleted_so_far", totalDeleted),
				slog.Any("error", err))
			return err
		}
		totalDeleted += deleted
		if deleted < int64(j.batchSize) {
			break
		}

		// Small delay between batches to prevent database lock contention
		select {
		case <-time.After(j.batchPause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	removedResources, err := resources.DeleteForOwner(db, j.logger, ownerID)
	if err != nil {
		return err
	}

	if err := accounts.Purge(db, j.logger, ownerID); err != nil {
		return fmt.Errorf("failed to purge account %d: %w", ownerID, err)
	}

	j.logger.Info("Deleted account data",
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.Int64("events", totalDeleted),
		slog.Int64("resources", removedResources))
	return nil
}
