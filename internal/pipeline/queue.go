package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"docflow/internal/logging"
	"docflow/internal/store"
)

// Entry is one queued document waiting for the worker.
type Entry struct {
	ID       string
	FolderID int64
	Path     string
	AddedAt  time.Time
}

// Queue serializes document processing through a single worker. Enqueueing
// while the worker is idle starts a drain goroutine; entries added while it
// runs are picked up in the same pass. Duplicate paths are coalesced until
// the queued entry is taken.
type Queue struct {
	store     *store.Store
	processor *Processor
	logger    *slog.Logger

	mu     sync.Mutex
	items  []Entry
	queued map[string]struct{}
	active bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(st *store.Store, processor *Processor, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{
		store:     st,
		processor: processor,
		logger:    logging.WithComponent(logger, "queue"),
		queued:    make(map[string]struct{}),
	}
}

// Start binds the queue to a lifetime context. Entries enqueued before
// Start wait until it is called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	if len(q.items) > 0 && !q.active {
		q.active = true
		q.wg.Add(1)
		go q.drain()
	}
}

// Stop cancels in-flight work and waits for the worker to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
}

// Enqueue adds a document and returns its entry ID, or "" when an entry
// for the same path is already waiting.
func (q *Queue) Enqueue(folderID int64, path string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.queued[path]; dup {
		return ""
	}
	entry := Entry{
		ID:       uuid.NewString(),
		FolderID: folderID,
		Path:     path,
		AddedAt:  time.Now().UTC(),
	}
	q.items = append(q.items, entry)
	q.queued[path] = struct{}{}
	q.logger.Debug("enqueued", logging.String("path", path), logging.Int("depth", len(q.items)))
	if q.ctx != nil && !q.active {
		q.active = true
		q.wg.Add(1)
		go q.drain()
	}
	return entry.ID
}

// Len reports how many entries are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Active reports whether the worker is currently draining.
func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Snapshot returns the waiting entries in order.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) drain() {
	defer q.wg.Done()
	q.setState(0, true)
	var lastID int64
	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.ctx.Err() != nil {
			q.active = false
			q.mu.Unlock()
			q.setState(lastID, false)
			return
		}
		entry := q.items[0]
		q.items = q.items[1:]
		delete(q.queued, entry.Path)
		ctx := q.ctx
		q.mu.Unlock()

		record := q.processOne(ctx, entry)
		if record != nil {
			lastID = record.ID
			q.setState(lastID, true)
		}
	}
}

// processOne shields the worker loop from a panicking stage so one bad
// document cannot stall the queue. The crashed record is marked failed
// immediately rather than lingering in processing until the next restart.
func (q *Queue) processOne(ctx context.Context, entry Entry) (record *store.FileRecord) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("processing panicked",
				logging.String("path", entry.Path),
				slog.Any("panic", r))
			q.failCrashed(entry, r)
		}
	}()
	record, err := q.processor.Process(ctx, entry.FolderID, entry.Path)
	if err != nil {
		q.logger.Error("processing rejected", logging.String("path", entry.Path), logging.Error(err))
		return nil
	}
	return record
}

// failCrashed records the failure for the entry whose processing panicked.
// Background context: the crash must be persisted even during shutdown.
func (q *Queue) failCrashed(entry Entry, cause any) {
	ctx := context.Background()
	record, err := q.store.FindFileByName(ctx, entry.FolderID, filepath.Base(entry.Path))
	if err != nil || record == nil || record.Status != store.StatusProcessing {
		return
	}
	record.Status = store.StatusFailed
	record.ErrorMessage = fmt.Sprintf("processing panicked: %v", cause)
	if err := q.store.UpdateFileRecord(ctx, record); err != nil {
		q.logger.Error("could not persist crash failure",
			logging.Int64("record_id", record.ID), logging.Error(err))
		return
	}
	if err := q.store.AppendLog(ctx, &record.ID, store.ActionError, record.ErrorMessage, ""); err != nil {
		q.logger.Warn("audit log write failed", logging.Error(err))
	}
}

func (q *Queue) setState(lastFileID int64, processing bool) {
	if err := q.store.SetProcessingState(context.Background(), lastFileID, processing); err != nil {
		q.logger.Warn("processing state update failed", logging.Error(err))
	}
}
