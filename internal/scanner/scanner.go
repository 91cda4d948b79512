// Package scanner registers the documents already sitting in a watch
// folder when it is added or rescanned.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docflow/internal/logging"
	"docflow/internal/store"
	"docflow/internal/textutil"
)

// Resolver maps a watch folder to a readable local path.
type Resolver interface {
	Resolve(ctx context.Context, folder *store.Folder) (string, error)
}

// Enqueuer accepts documents for processing.
type Enqueuer interface {
	Enqueue(folderID int64, path string) string
}

// Result summarizes one scan pass.
type Result struct {
	Total      int
	Registered int
	Queued     int
	Skipped    int
}

// Scanner walks a folder once and records every PDF it has not seen
// before. Files whose names already carry an underscore are treated as
// renamed by an earlier run unless processNew forces reprocessing.
type Scanner struct {
	store    *store.Store
	resolver Resolver
	queue    Enqueuer
	logger   *slog.Logger
}

func New(st *store.Store, resolver Resolver, queue Enqueuer, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		store:    st,
		resolver: resolver,
		queue:    queue,
		logger:   logging.WithComponent(logger, "scanner"),
	}
}

// Scan registers the folder's current PDFs. With processNew set, files
// without a record are queued for processing; otherwise they are recorded
// as existing and left alone. Files already known are skipped.
func (s *Scanner) Scan(ctx context.Context, folder *store.Folder, processNew bool) (*Result, error) {
	folderPath, err := s.resolver.Resolve(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder.Alias, err)
	}
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder.Alias, err)
	}

	result := &Result{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), textutil.PDFExtension) {
			continue
		}
		result.Total++

		known, err := s.store.FindFileByName(ctx, folder.ID, name)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", folder.Alias, err)
		}
		if known != nil {
			result.Skipped++
			continue
		}

		path := filepath.Join(folderPath, name)
		switch {
		case strings.Contains(name, "_") && !processNew:
			if err := s.recordRenamed(ctx, folder.ID, path, name); err != nil {
				return nil, err
			}
			result.Registered++
		case processNew:
			if _, err := s.store.InsertFileRecord(ctx, &store.FileRecord{
				FolderID:         folder.ID,
				OriginalPath:     path,
				OriginalFilename: name,
				Status:           store.StatusPending,
			}); err != nil {
				return nil, fmt.Errorf("register %s: %w", name, err)
			}
			s.queue.Enqueue(folder.ID, path)
			result.Registered++
			result.Queued++
		default:
			if _, err := s.store.InsertFileRecord(ctx, &store.FileRecord{
				FolderID:         folder.ID,
				OriginalPath:     path,
				OriginalFilename: name,
				NewFilename:      name,
				Status:           store.StatusExisting,
			}); err != nil {
				return nil, fmt.Errorf("register %s: %w", name, err)
			}
			result.Registered++
		}
	}

	summary := fmt.Sprintf("scanned %s: %d files, %d registered, %d queued, %d known",
		folder.Alias, result.Total, result.Registered, result.Queued, result.Skipped)
	if err := s.store.AppendLog(ctx, nil, store.ActionScan, summary, ""); err != nil {
		s.logger.Warn("audit log write failed", logging.Error(err))
	}
	s.logger.Info("scan complete",
		logging.String("folder", folder.Alias),
		logging.Int("total", result.Total),
		logging.Int("registered", result.Registered),
		logging.Int("queued", result.Queued))
	return result, nil
}

// recordRenamed stores an underscore-named file as already completed,
// recovering the company and summary from the filename itself.
func (s *Scanner) recordRenamed(ctx context.Context, folderID int64, path, name string) error {
	company, summary := textutil.SplitRenamed(name)
	now := time.Now().UTC()
	_, err := s.store.InsertFileRecord(ctx, &store.FileRecord{
		FolderID:         folderID,
		OriginalPath:     path,
		OriginalFilename: name,
		NewFilename:      name,
		CompanyName:      company,
		ContentSummary:   summary,
		Status:           store.StatusCompleted,
		ProcessedAt:      &now,
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}
