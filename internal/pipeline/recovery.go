package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"docflow/internal/fileutil"
	"docflow/internal/logging"
	"docflow/internal/store"
)

// Recovery reconciles the store with reality after an unclean shutdown.
// Records stuck in processing fall back to pending, then every pending
// record is re-enqueued if its file is still on disk and skipped if not.
type Recovery struct {
	store  *store.Store
	queue  *Queue
	logger *slog.Logger
}

func NewRecovery(st *store.Store, queue *Queue, logger *slog.Logger) *Recovery {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recovery{
		store:  st,
		queue:  queue,
		logger: logging.WithComponent(logger, "recovery"),
	}
}

// Run returns how many records were re-enqueued and how many were skipped.
func (r *Recovery) Run(ctx context.Context) (requeued, skipped int, err error) {
	reset, err := r.store.ResetProcessing(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("reset processing records: %w", err)
	}

	pending, err := r.store.ListFilesByStatus(ctx, store.StatusPending)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending records: %w", err)
	}
	for _, record := range pending {
		if fileutil.Exists(record.OriginalPath) {
			r.queue.Enqueue(record.FolderID, record.OriginalPath)
			requeued++
			continue
		}
		if err := r.store.MarkSkipped(ctx, record.ID, "file no longer present"); err != nil {
			r.logger.Warn("could not skip missing file",
				logging.Int64("record_id", record.ID),
				logging.Error(err))
			continue
		}
		skipped++
	}

	if err := r.store.SetProcessingState(ctx, 0, false); err != nil {
		r.logger.Warn("processing state reset failed", logging.Error(err))
	}

	summary := fmt.Sprintf("recovery: %d reset, %d requeued, %d skipped", reset, requeued, skipped)
	if err := r.store.AppendLog(ctx, nil, store.ActionRecovery, summary, ""); err != nil {
		r.logger.Warn("audit log write failed", logging.Error(err))
	}
	r.logger.Info("recovery complete",
		logging.Int64("reset", reset),
		logging.Int("requeued", requeued),
		logging.Int("skipped", skipped))
	return requeued, skipped, nil
}
