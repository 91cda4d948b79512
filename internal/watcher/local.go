package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docflow/internal/store"
)

const fileDebounceDelay = 2 * time.Second

// notifyRunner watches one local folder through fsnotify. Create and
// write events are debounced per path, then the file is held until its
// size and modification time stop moving before it is accepted.
type notifyRunner struct {
	manager *Manager
	folder  *store.Folder
	path    string
	watcher *fsnotify.Watcher

	stopCh chan struct{}
	doneCh chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newNotifyRunner(manager *Manager, folder *store.Folder, path string) (*notifyRunner, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsWatcher.Add(path); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("watch %q: %w", path, err)
	}
	r := &notifyRunner{
		manager: manager,
		folder:  folder,
		path:    path,
		watcher: fsWatcher,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		timers:  make(map[string]*time.Timer),
	}
	go r.run()
	return r, nil
}

func (r *notifyRunner) stop() {
	select {
	case <-r.stopCh:
		return
	default:
		close(r.stopCh)
	}
	_ = r.watcher.Close()

	r.mu.Lock()
	for _, timer := range r.timers {
		timer.Stop()
	}
	r.timers = make(map[string]*time.Timer)
	r.mu.Unlock()

	select {
	case <-r.doneCh:
	case <-time.After(3 * time.Second):
	}
}

func (r *notifyRunner) run() {
	defer close(r.doneCh)
	for {
		select {
		case <-r.stopCh:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			r.handleEvent(event)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.manager.markError(r.folder.ID, fmt.Errorf("watcher: %w", err))
		}
	}
}

func (r *notifyRunner) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !watchablePDF(filepath.Base(event.Name)) {
		return
	}
	r.schedule(event.Name)
}

// schedule restarts the debounce timer for path; the file is only
// examined once events go quiet.
func (r *notifyRunner) schedule(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, exists := r.timers[path]; exists {
		timer.Stop()
	}
	r.timers[path] = time.AfterFunc(fileDebounceDelay, func() {
		r.settle(path)
		r.mu.Lock()
		delete(r.timers, path)
		r.mu.Unlock()
	})
}

func (r *notifyRunner) settle(path string) {
	if err := waitForStableFile(path, r.manager.stabilityInterval(), r.manager.stabilityChecks()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		r.manager.markError(r.folder.ID, err)
		return
	}
	r.manager.accept(r.folder, path)
}

// waitForStableFile polls until size and mtime hold steady for the
// required number of checks. Scanners stream pages for a while, so an
// early accept would feed a truncated document to OCR.
func waitForStableFile(path string, interval time.Duration, checks int) error {
	var prevSize, prevMod int64 = -1, -1
	stable := 0
	for i := 0; i < checks+2; i++ {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%q is a directory", path)
		}
		size := info.Size()
		mod := info.ModTime().UnixNano()
		if size == prevSize && mod == prevMod {
			stable++
		} else {
			stable = 0
		}
		prevSize, prevMod = size, mod
		if stable >= checks && size > 0 {
			return nil
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("file %q did not stabilize", path)
}
