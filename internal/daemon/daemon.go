// Package daemon wires the store, watchers, queue, and HTTP surface into
// a single long-running process and enforces single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"docflow/internal/api"
	"docflow/internal/classify"
	"docflow/internal/config"
	"docflow/internal/logging"
	"docflow/internal/ocr"
	"docflow/internal/pipeline"
	"docflow/internal/scanner"
	"docflow/internal/share"
	"docflow/internal/store"
	"docflow/internal/watcher"
)

// Daemon owns the full processing stack for one data directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	resolver *share.Resolver
	queue    *pipeline.Queue
	pipeline *pipeline.Service
	recovery *pipeline.Recovery
	scanner  *scanner.Scanner
	watchers *watcher.Manager
	server   *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon and all of its collaborators. The OCR and
// classifier clients come from configuration; tests can substitute both
// through NewWithClients.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	return NewWithClients(cfg, st, logger, ocr.NewClient(cfg.OCR), classify.NewClient(cfg.Classifier))
}

// NewWithClients is New with injectable pipeline collaborators.
func NewWithClients(cfg *config.Config, st *store.Store, logger *slog.Logger, extractor pipeline.TextExtractor, analyzer pipeline.Analyzer) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	resolver := share.NewResolver(nil)
	processor := pipeline.NewProcessor(st, extractor, analyzer, pipeline.ProcessorConfig{
		BackupDir:     cfg.Paths.BackupDir,
		FailedDir:     cfg.Paths.FailedDir,
		MaxNameLength: cfg.Naming.MaxLength,
		MaxStoredText: cfg.Naming.MaxStoredText,
	}, logger)
	queue := pipeline.NewQueue(st, processor, logger)
	svc := pipeline.NewService(st, queue, resolver, cfg.Paths.BackupDir, logger)
	scan := scanner.New(st, resolver, queue, logger)
	watchers := watcher.NewManager(st, resolver, queue, cfg.Watcher, logger)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    st,
		resolver: resolver,
		queue:    queue,
		pipeline: svc,
		recovery: pipeline.NewRecovery(st, queue, logger),
		scanner:  scan,
		watchers: watchers,
		lockPath: filepath.Join(cfg.Paths.LogDir, "docflowd.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.server = api.NewServer(cfg.Paths.APIBind, api.Deps{
		Store:    st,
		Queue:    queue,
		Pipeline: svc,
		Scanner:  scan,
		Watchers: watchers,
		Resolver: resolver,
		Logger:   logger,
	})
	return d, nil
}

// Start acquires the instance lock, replays unfinished work, restores
// watchers for every active folder, and brings up the HTTP surface.
// Folders that cannot be watched right now are reported and skipped; an
// unreachable share must not keep the daemon down.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another docflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.queue.Start(runCtx)
	if _, _, err := d.recovery.Run(runCtx); err != nil {
		d.logger.Warn("recovery incomplete", logging.Error(err))
	}

	if err := d.restoreWatchers(runCtx); err != nil {
		d.logger.Warn("some folders are not being watched", logging.Error(err))
	}

	if d.server != nil {
		if err := d.server.Start(runCtx); err != nil {
			d.stopServices()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) restoreWatchers(ctx context.Context) error {
	folders, err := d.store.ListFolders(ctx, true)
	if err != nil {
		return fmt.Errorf("list active folders: %w", err)
	}

	var failures []string
	for _, folder := range folders {
		if err := d.watchers.Watch(ctx, folder); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", folder.Alias, err))
			continue
		}
		if d.cfg.Watcher.ScanOnStart {
			if _, err := d.scanner.Scan(ctx, folder, false); err != nil {
				d.logger.Warn("startup scan failed",
					logging.String("folder", folder.Alias), logging.Error(err))
			}
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d folder(s) failed: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

// Stop winds the services down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.stopServices()
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

func (d *Daemon) stopServices() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watchers.UnwatchAll()
	if d.server != nil {
		d.server.Stop()
	}
	d.queue.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Queue exposes the processing queue, mainly for tests and the CLI.
func (d *Daemon) Queue() *pipeline.Queue {
	return d.queue
}

// Watchers exposes the watch manager.
func (d *Daemon) Watchers() *watcher.Manager {
	return d.watchers
}

// APIAddr returns the HTTP listen address, or "" when the API is off.
func (d *Daemon) APIAddr() string {
	if d.server == nil {
		return ""
	}
	return d.server.Addr()
}
