package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docflow/internal/fileutil"
	"docflow/internal/logging"
	"docflow/internal/store"
	"docflow/internal/textutil"
)

// Service exposes the operator-facing actions on processed files:
// reprocessing a failed or pre-existing document and renaming a completed
// one by hand.
type Service struct {
	store     *store.Store
	queue     *Queue
	resolver  FolderResolver
	logger    *slog.Logger
	backupDir string
}

func NewService(st *store.Store, queue *Queue, resolver FolderResolver, backupDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:     st,
		queue:     queue,
		resolver:  resolver,
		logger:    logging.WithComponent(logger, "pipeline"),
		backupDir: backupDir,
	}
}

// Reprocess deletes the record for fileID and enqueues the document again
// as a fresh pending entry. Failed files are restored from their newest
// backup first; existing files are picked up where they sit. Returns the
// new queue entry ID.
func (s *Service) Reprocess(ctx context.Context, fileID int64) (string, error) {
	record, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	folder, err := s.store.GetFolder(ctx, record.FolderID)
	if err != nil {
		return "", fmt.Errorf("folder %d: %w", record.FolderID, err)
	}
	folderPath, err := s.resolver.Resolve(ctx, folder)
	if err != nil {
		return "", fmt.Errorf("resolve folder %s: %w", folder.Alias, err)
	}

	var path string
	switch record.Status {
	case store.StatusExisting:
		path = filepath.Join(folderPath, record.CurrentFilename())
		if !fileutil.Exists(path) {
			return "", fmt.Errorf("reprocess %d: %s no longer exists", fileID, record.CurrentFilename())
		}
		s.logSystem(ctx, store.ActionProcessExisting, fmt.Sprintf("reprocessing existing file %s", record.CurrentFilename()))
	default:
		path, err = s.restoreFromBackup(record, folderPath)
		if err != nil {
			return "", fmt.Errorf("reprocess %d: %w", fileID, err)
		}
		s.logSystem(ctx, store.ActionReprocess, fmt.Sprintf("reprocessing %s", record.OriginalFilename))
	}

	if err := s.store.DeleteFile(ctx, fileID); err != nil {
		return "", fmt.Errorf("drop record %d: %w", fileID, err)
	}
	entryID := s.queue.Enqueue(folder.ID, path)
	if entryID == "" {
		return "", fmt.Errorf("reprocess %d: already queued", fileID)
	}
	s.logger.Info("reprocess queued",
		logging.String("file", filepath.Base(path)),
		logging.String("entry", entryID))
	return entryID, nil
}

// restoreFromBackup copies the newest backup of the record's original file
// back into the watch folder. When no backup matches, the file is expected
// to still exist at its current name.
func (s *Service) restoreFromBackup(record *store.FileRecord, folderPath string) (string, error) {
	backup := s.latestBackup(record.OriginalFilename)
	if backup == "" {
		path := filepath.Join(folderPath, record.CurrentFilename())
		if !fileutil.Exists(path) {
			return "", fmt.Errorf("no backup found for %s", record.OriginalFilename)
		}
		return path, nil
	}
	path := filepath.Join(folderPath, record.OriginalFilename)
	if err := fileutil.CopyFile(backup, path); err != nil {
		return "", fmt.Errorf("restore backup: %w", err)
	}
	return path, nil
}

// latestBackup returns the newest backup entry containing filename, or ""
// when none exists. Backup names carry a sortable timestamp prefix.
func (s *Service) latestBackup(filename string) string {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return ""
	}
	var matches []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.Contains(entry.Name(), filename) {
			matches = append(matches, entry.Name())
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return filepath.Join(s.backupDir, matches[len(matches)-1])
}

// ManualRename renames a processed document on disk and records the new
// name. Company and summary stay as classified.
func (s *Service) ManualRename(ctx context.Context, fileID int64, newName string) (*store.FileRecord, error) {
	record, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	folder, err := s.store.GetFolder(ctx, record.FolderID)
	if err != nil {
		return nil, fmt.Errorf("folder %d: %w", record.FolderID, err)
	}
	folderPath, err := s.resolver.Resolve(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("resolve folder %s: %w", folder.Alias, err)
	}

	newName = textutil.EnsurePDFExtension(strings.TrimSpace(newName))
	currentPath := filepath.Join(folderPath, record.CurrentFilename())
	if !fileutil.Exists(currentPath) {
		return nil, fmt.Errorf("rename %d: %s no longer exists", fileID, record.CurrentFilename())
	}
	newPath := filepath.Join(folderPath, newName)
	if err := os.Rename(currentPath, newPath); err != nil {
		return nil, fmt.Errorf("rename %d: %w", fileID, err)
	}

	old := record.CurrentFilename()
	record.NewFilename = newName
	if err := s.store.UpdateFileRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("persist rename %d: %w", fileID, err)
	}
	if err := s.store.AppendLog(ctx, &record.ID, store.ActionManualRename,
		fmt.Sprintf("renamed %s -> %s", old, newName), ""); err != nil {
		s.logger.Warn("audit log write failed", logging.Error(err))
	}
	return record, nil
}

func (s *Service) logSystem(ctx context.Context, action, message string) {
	if err := s.store.AppendLog(ctx, nil, action, message, ""); err != nil {
		s.logger.Warn("audit log write failed", logging.String("action", action), logging.Error(err))
	}
}
