package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docflow/internal/store"
)

// pollRunner watches a network share by listing it on an interval.
// fsnotify does not deliver events for SMB mounts, so a diff of
// consecutive listings stands in for them.
type pollRunner struct {
	manager  *Manager
	folder   *store.Folder
	path     string
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}

	sizes    map[string]int64
	accepted map[string]struct{}
}

func newPollRunner(manager *Manager, folder *store.Folder, path string) (*pollRunner, error) {
	r := &pollRunner{
		manager:  manager,
		folder:   folder,
		path:     path,
		interval: manager.pollInterval(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		accepted: make(map[string]struct{}),
	}
	// Prime the baseline so files present before the watch started are
	// left to the scanner instead of being treated as new arrivals.
	listing, err := r.list()
	if err != nil {
		return nil, err
	}
	r.sizes = listing
	for name := range listing {
		r.accepted[name] = struct{}{}
	}
	go r.run()
	return r, nil
}

func (r *pollRunner) stop() {
	select {
	case <-r.stopCh:
		return
	default:
		close(r.stopCh)
	}
	select {
	case <-r.doneCh:
	case <-time.After(3 * time.Second):
	}
}

func (r *pollRunner) run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.poll()
		}
	}
}

// poll accepts files that appear in two consecutive listings with the
// same size. A file still growing waits for the next tick.
func (r *pollRunner) poll() {
	listing, err := r.list()
	if err != nil {
		r.manager.markError(r.folder.ID, fmt.Errorf("poll share: %w", err))
		return
	}

	for name, size := range listing {
		if _, done := r.accepted[name]; done {
			continue
		}
		if prev, seen := r.sizes[name]; seen && prev == size {
			r.accepted[name] = struct{}{}
			r.manager.accept(r.folder, filepath.Join(r.path, name))
		}
	}

	for name := range r.sizes {
		if _, ok := listing[name]; !ok {
			delete(r.accepted, name)
		}
	}
	r.sizes = listing
}

func (r *pollRunner) list() (map[string]int64, error) {
	entries, err := os.ReadDir(r.path)
	if err != nil {
		return nil, err
	}
	listing := make(map[string]int64)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !watchablePDF(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		listing[entry.Name()] = info.Size()
	}
	return listing, nil
}
