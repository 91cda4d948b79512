// Package share resolves watch folder configuration to accessible filesystem
// paths, establishing SMB sessions for remote folders.
package share

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"docflow/internal/store"
)

// ErrUnreachable indicates a share session could not be established.
var ErrUnreachable = errors.New("share unreachable")

// SessionProvider establishes an authenticated session to a remote share and
// reports the local path the share's contents are reachable under.
type SessionProvider interface {
	Connect(ctx context.Context, host, shareName, username, secret string) (string, error)
}

// Status is the cached outcome of the most recent session attempt for a share.
type Status struct {
	Host        string
	Share       string
	Username    string
	MountPath   string
	Connected   bool
	LastChecked time.Time
	Error       string
}

// Resolver maps folder configuration to concrete filesystem paths. Connection
// outcomes are cached per host/share for status reporting only; every Resolve
// performs a live handshake.
type Resolver struct {
	provider SessionProvider

	mu    sync.Mutex
	cache map[string]Status
}

// NewResolver builds a resolver around the given session provider. A nil
// provider selects the platform default.
func NewResolver(provider SessionProvider) *Resolver {
	if provider == nil {
		provider = defaultProvider()
	}
	return &Resolver{
		provider: provider,
		cache:    make(map[string]Status),
	}
}

// Resolve returns the filesystem path for a folder. Local folders pass their
// configured path through; remote folders connect first.
func (r *Resolver) Resolve(ctx context.Context, folder *store.Folder) (string, error) {
	if folder == nil {
		return "", errors.New("folder is nil")
	}
	if !folder.IsRemote() {
		return folder.Path, nil
	}

	host := strings.TrimSpace(folder.SMBHost)
	shareName := strings.TrimSpace(folder.SMBShare)
	if host == "" || shareName == "" {
		return "", fmt.Errorf("folder %q: remote folder missing host or share", folder.Alias)
	}

	mountPath, err := r.provider.Connect(ctx, host, shareName, folder.SMBUser, folder.SMBSecret)
	now := time.Now()
	status := Status{
		Host:        host,
		Share:       shareName,
		Username:    folder.SMBUser,
		MountPath:   mountPath,
		Connected:   err == nil,
		LastChecked: now,
	}
	if err != nil {
		status.Error = err.Error()
	}
	r.setStatus(host, shareName, status)

	if err != nil {
		return "", fmt.Errorf("%w: %s/%s: %v", ErrUnreachable, host, shareName, err)
	}
	if sub := strings.TrimSpace(folder.Path); sub != "" && sub != mountPath {
		// Folder path may carry a subdirectory inside the share.
		if !strings.HasPrefix(sub, mountPath) {
			return filepath.Join(mountPath, sub), nil
		}
		return sub, nil
	}
	return mountPath, nil
}

// TestConnection verifies a share is reachable and returns up to ten document
// names found at its root.
func (r *Resolver) TestConnection(ctx context.Context, host, shareName, username, secret string) ([]string, error) {
	mountPath, err := r.provider.Connect(ctx, host, shareName, username, secret)
	now := time.Now()
	status := Status{
		Host:        host,
		Share:       shareName,
		Username:    username,
		MountPath:   mountPath,
		Connected:   err == nil,
		LastChecked: now,
	}
	if err != nil {
		status.Error = err.Error()
		r.setStatus(host, shareName, status)
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrUnreachable, host, shareName, err)
	}
	r.setStatus(host, shareName, status)

	entries, err := os.ReadDir(mountPath)
	if err != nil {
		return nil, fmt.Errorf("read share root: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			names = append(names, entry.Name())
			if len(names) == 10 {
				break
			}
		}
	}
	return names, nil
}

// StatusFor returns the cached outcome for a share, if any.
func (r *Resolver) StatusFor(host, shareName string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.cache[cacheKey(host, shareName)]
	return status, ok
}

// AllStatuses returns every cached connection outcome, sorted by host/share.
func (r *Resolver) AllStatuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]Status, 0, len(r.cache))
	for _, status := range r.cache {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Host != statuses[j].Host {
			return statuses[i].Host < statuses[j].Host
		}
		return statuses[i].Share < statuses[j].Share
	})
	return statuses
}

// ClearCache drops all cached connection outcomes.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]Status)
}

func (r *Resolver) setStatus(host, shareName string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[cacheKey(host, shareName)] = status
}

func cacheKey(host, shareName string) string {
	return host + "/" + shareName
}
