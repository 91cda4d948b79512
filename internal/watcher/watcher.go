// Package watcher keeps live watchers on active folders and feeds newly
// arrived documents into the processing queue. Local folders use
// filesystem notifications; network shares fall back to polling.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"docflow/internal/config"
	"docflow/internal/logging"
	"docflow/internal/store"
	"docflow/internal/textutil"
)

// ErrNotWatching means no runner exists for the folder.
var ErrNotWatching = errors.New("folder is not being watched")

// Resolver maps a watch folder to a readable local path.
type Resolver interface {
	Resolve(ctx context.Context, folder *store.Folder) (string, error)
}

// Enqueuer accepts documents for processing.
type Enqueuer interface {
	Enqueue(folderID int64, path string) string
}

// Status is the live state of one watched folder.
type Status struct {
	FolderID     int64
	Active       bool
	LastError    string
	LastFile     string
	LastFileAt   *time.Time
	WatchedSince time.Time
}

type runner interface {
	stop()
}

// Manager owns one runner per watched folder. Watch and Unwatch are
// idempotent and safe to call concurrently.
type Manager struct {
	store    *store.Store
	resolver Resolver
	queue    Enqueuer
	logger   *slog.Logger
	cfg      config.Watcher

	mu       sync.Mutex
	runners  map[int64]runner
	statuses map[int64]Status
}

func NewManager(st *store.Store, resolver Resolver, queue Enqueuer, cfg config.Watcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:    st,
		resolver: resolver,
		queue:    queue,
		logger:   logging.WithComponent(logger, "watcher"),
		cfg:      cfg,
		runners:  make(map[int64]runner),
		statuses: make(map[int64]Status),
	}
}

// Watch starts a runner for the folder. Watching an already watched
// folder is a no-op.
func (m *Manager) Watch(ctx context.Context, folder *store.Folder) error {
	m.mu.Lock()
	if _, exists := m.runners[folder.ID]; exists {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	path, err := m.resolver.Resolve(ctx, folder)
	if err != nil {
		m.setStatus(folder.ID, func(st *Status) {
			st.Active = false
			st.LastError = err.Error()
		})
		return fmt.Errorf("watch %s: %w", folder.Alias, err)
	}

	var r runner
	if folder.IsRemote() {
		r, err = newPollRunner(m, folder, path)
	} else {
		r, err = newNotifyRunner(m, folder, path)
	}
	if err != nil {
		m.setStatus(folder.ID, func(st *Status) {
			st.Active = false
			st.LastError = err.Error()
		})
		return fmt.Errorf("watch %s: %w", folder.Alias, err)
	}

	m.mu.Lock()
	if _, exists := m.runners[folder.ID]; exists {
		m.mu.Unlock()
		r.stop()
		return nil
	}
	m.runners[folder.ID] = r
	m.statuses[folder.ID] = Status{
		FolderID:     folder.ID,
		Active:       true,
		WatchedSince: time.Now().UTC(),
	}
	m.mu.Unlock()

	m.logSystem(context.Background(), store.ActionWatchReady,
		fmt.Sprintf("watching %s (%s)", folder.Alias, folder.Type))
	m.logger.Info("watching folder",
		logging.String("folder", folder.Alias),
		logging.String("type", string(folder.Type)),
		logging.String("path", path))
	return nil
}

// Unwatch stops the folder's runner if one exists.
func (m *Manager) Unwatch(folderID int64) error {
	m.mu.Lock()
	r, exists := m.runners[folderID]
	delete(m.runners, folderID)
	if status, ok := m.statuses[folderID]; ok {
		status.Active = false
		m.statuses[folderID] = status
	}
	m.mu.Unlock()

	if !exists {
		return ErrNotWatching
	}
	r.stop()
	return nil
}

// UnwatchAll stops every runner, typically at shutdown.
func (m *Manager) UnwatchAll() {
	m.mu.Lock()
	runners := make([]runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.runners = make(map[int64]runner)
	for id, status := range m.statuses {
		status.Active = false
		m.statuses[id] = status
	}
	m.mu.Unlock()

	for _, r := range runners {
		r.stop()
	}
}

// StatusFor returns the live state for one folder.
func (m *Manager) StatusFor(folderID int64) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[folderID]
	return status, ok
}

// Statuses returns the live state of every folder seen by the manager,
// ordered by folder id.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].FolderID < statuses[j].FolderID
	})
	return statuses
}

// Watching reports whether a runner exists for the folder.
func (m *Manager) Watching(folderID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runners[folderID]
	return ok
}

// accept registers a newly arrived document and queues it. Files already
// known to the store are ignored so repeated events stay harmless.
func (m *Manager) accept(folder *store.Folder, path string) {
	ctx := context.Background()
	name := filepath.Base(path)

	known, err := m.store.FindFileByName(ctx, folder.ID, name)
	if err != nil {
		m.markError(folder.ID, err)
		return
	}
	if known != nil {
		return
	}

	record := &store.FileRecord{
		FolderID:         folder.ID,
		OriginalPath:     path,
		OriginalFilename: name,
		Status:           store.StatusPending,
	}
	record, err = m.store.InsertFileRecord(ctx, record)
	if err != nil {
		m.markError(folder.ID, err)
		return
	}
	if err := m.store.AppendLog(ctx, &record.ID, store.ActionFileDetected,
		fmt.Sprintf("detected %s in %s", name, folder.Alias), ""); err != nil {
		m.logger.Warn("audit log write failed", logging.Error(err))
	}

	m.queue.Enqueue(folder.ID, path)
	now := time.Now().UTC()
	m.setStatus(folder.ID, func(st *Status) {
		st.LastError = ""
		st.LastFile = name
		st.LastFileAt = &now
	})
	m.logger.Info("file detected",
		logging.String("folder", folder.Alias),
		logging.String("file", name))
}

func (m *Manager) markError(folderID int64, err error) {
	if err == nil {
		return
	}
	m.setStatus(folderID, func(st *Status) {
		st.LastError = err.Error()
	})
	m.logSystem(context.Background(), store.ActionWatchError, err.Error())
	m.logger.Warn("watch error", logging.Int64("folder_id", folderID), logging.Error(err))
}

func (m *Manager) setStatus(folderID int64, update func(*Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.statuses[folderID]
	status.FolderID = folderID
	update(&status)
	m.statuses[folderID] = status
}

func (m *Manager) logSystem(ctx context.Context, action, message string) {
	if err := m.store.AppendLog(ctx, nil, action, message, ""); err != nil {
		m.logger.Warn("audit log write failed", logging.Error(err))
	}
}

func (m *Manager) stabilityInterval() time.Duration {
	seconds := m.cfg.StabilitySeconds
	if seconds <= 0 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func (m *Manager) stabilityChecks() int {
	if m.cfg.StabilityChecks <= 0 {
		return 3
	}
	return m.cfg.StabilityChecks
}

func (m *Manager) pollInterval() time.Duration {
	seconds := m.cfg.RemotePollSeconds
	if seconds <= 0 {
		seconds = 10
	}
	return time.Duration(seconds) * time.Second
}

// watchablePDF filters out directories, non-PDFs, hidden files, and the
// partial names scanners and copy tools write before the final rename.
func watchablePDF(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return false
	}
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".tmp") || strings.HasSuffix(lower, ".part") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), textutil.PDFExtension)
}
