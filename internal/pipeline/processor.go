package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docflow/internal/fileutil"
	"docflow/internal/logging"
	"docflow/internal/store"
	"docflow/internal/textutil"
)

// ErrEmptyOCR marks extractions that returned no text at all, usually a
// blank page or an unreadable scan.
var ErrEmptyOCR = errors.New("empty OCR result; check scan quality")

// Processor runs a single document through the full rename workflow:
// register, backup, extract, analyze, name, rename, commit. Failures after
// registration park the file in the failed directory and record the error.
type Processor struct {
	store     *store.Store
	extractor TextExtractor
	analyzer  Analyzer
	logger    *slog.Logger

	backupDir     string
	failedDir     string
	maxNameLength int
	maxStoredText int
}

// ProcessorConfig carries the directories and limits a Processor needs.
type ProcessorConfig struct {
	BackupDir     string
	FailedDir     string
	MaxNameLength int
	MaxStoredText int
}

func NewProcessor(st *store.Store, extractor TextExtractor, analyzer Analyzer, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{
		store:         st,
		extractor:     extractor,
		analyzer:      analyzer,
		logger:        logging.WithComponent(logger, "processor"),
		backupDir:     cfg.BackupDir,
		failedDir:     cfg.FailedDir,
		maxNameLength: cfg.MaxNameLength,
		maxStoredText: cfg.MaxStoredText,
	}
}

// Process handles one on-disk document. It claims the pending record for
// (folderID, filename) when one exists, otherwise inserts a fresh record,
// and returns the record in its final state. A processing failure is
// reported on the record, not as a returned error; only failures before
// registration return an error.
func (p *Processor) Process(ctx context.Context, folderID int64, path string) (*store.FileRecord, error) {
	filename := filepath.Base(path)
	if !fileutil.IsRegular(path) {
		return nil, fmt.Errorf("process %s: file not found", filename)
	}

	record, err := p.register(ctx, folderID, path, filename)
	if err != nil {
		return nil, err
	}
	p.logFile(ctx, record.ID, store.ActionStart, fmt.Sprintf("processing %s", filename), "")
	p.logger.Info("processing file", logging.String("file", filename), logging.Int64("record_id", record.ID))

	backupPath, err := p.backup(ctx, record, path)
	if err != nil {
		return p.fail(ctx, record, path, fmt.Errorf("backup: %w", err)), nil
	}

	text, err := p.extract(ctx, record, path)
	if err != nil {
		return p.fail(ctx, record, path, err), nil
	}

	analysis, err := p.analyzer.Analyze(ctx, text)
	if err != nil {
		return p.fail(ctx, record, path, fmt.Errorf("analyze: %w", err)), nil
	}
	p.logFile(ctx, record.ID, store.ActionAnalyze,
		fmt.Sprintf("classified as %q / %q", analysis.CompanyName, analysis.ContentSummary),
		fmt.Sprintf("confidence=%d", analysis.Confidence))

	newName, err := p.chooseName(path, analysis.CompanyName, analysis.ContentSummary)
	if err != nil {
		return p.fail(ctx, record, path, fmt.Errorf("choose name: %w", err)), nil
	}

	newPath := filepath.Join(filepath.Dir(path), newName)
	if err := os.Rename(path, newPath); err != nil {
		return p.fail(ctx, record, path, fmt.Errorf("rename: %w", err)), nil
	}
	p.logFile(ctx, record.ID, store.ActionRename, fmt.Sprintf("renamed %s -> %s", filename, newName), "")

	now := time.Now().UTC()
	record.NewFilename = newName
	record.CompanyName = analysis.CompanyName
	record.ContentSummary = analysis.ContentSummary
	record.OCRText = textutil.Truncate(text, p.maxStoredText)
	record.Status = store.StatusCompleted
	record.ErrorMessage = ""
	record.ProcessedAt = &now
	if err := p.store.UpdateFileRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("commit record %d: %w", record.ID, err)
	}
	p.logFile(ctx, record.ID, store.ActionComplete, fmt.Sprintf("completed as %s", newName), "")
	p.logger.Info("file completed",
		logging.String("file", filename),
		logging.String("renamed", newName),
		logging.String("backup", filepath.Base(backupPath)))
	return record, nil
}

// register claims the pending record for this file or inserts a new one,
// moving it to processing either way. At most one non-terminal record
// exists per (folder, filename).
func (p *Processor) register(ctx context.Context, folderID int64, path, filename string) (*store.FileRecord, error) {
	existing, err := p.store.FindFileByName(ctx, folderID, filename)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", filename, err)
	}
	if existing != nil && !existing.Status.IsTerminal() {
		existing.Status = store.StatusProcessing
		existing.OriginalPath = path
		if err := p.store.UpdateFileRecord(ctx, existing); err != nil {
			return nil, fmt.Errorf("claim record %d: %w", existing.ID, err)
		}
		return existing, nil
	}
	record := &store.FileRecord{
		FolderID:         folderID,
		OriginalPath:     path,
		OriginalFilename: filename,
		Status:           store.StatusProcessing,
	}
	record, err = p.store.InsertFileRecord(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", filename, err)
	}
	return record, nil
}

// backup copies the untouched original into the backup directory with a
// timestamp prefix so repeated runs never collide.
func (p *Processor) backup(ctx context.Context, record *store.FileRecord, path string) (string, error) {
	if err := os.MkdirAll(p.backupDir, 0o755); err != nil {
		return "", err
	}
	name := BackupName(time.Now().UTC(), record.OriginalFilename)
	backupPath := filepath.Join(p.backupDir, name)
	if err := fileutil.CopyFile(path, backupPath); err != nil {
		return "", err
	}
	p.logFile(ctx, record.ID, store.ActionBackup, fmt.Sprintf("backed up to %s", name), "")
	return backupPath, nil
}

func (p *Processor) extract(ctx context.Context, record *store.FileRecord, path string) (string, error) {
	p.logFile(ctx, record.ID, store.ActionOCR, "extracting text", "")
	text, err := p.extractor.ExtractText(ctx, path)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyOCR
	}
	p.logFile(ctx, record.ID, store.ActionOCR, fmt.Sprintf("extracted %d characters", len(text)), "")
	return text, nil
}

// chooseName builds the target filename and makes it unique against the
// directory the file lives in.
func (p *Processor) chooseName(path, company, summary string) (string, error) {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return "", err
	}
	existing := make([]string, 0, len(entries))
	for _, entry := range entries {
		existing = append(existing, entry.Name())
	}
	base := textutil.BuildBaseName(company, summary, p.maxNameLength)
	return textutil.UniqueName(base, existing), nil
}

// fail copies the file into the failed directory, marks the record failed,
// and returns it. The source file stays where it sits so a reprocess can
// pick it up even when no backup was taken.
func (p *Processor) fail(ctx context.Context, record *store.FileRecord, path string, cause error) *store.FileRecord {
	p.logger.Error("processing failed",
		logging.String("file", record.OriginalFilename),
		logging.Error(cause))
	p.logFile(ctx, record.ID, store.ActionError, cause.Error(), "")

	if fileutil.Exists(path) {
		if err := p.copyToFailed(ctx, record, path); err != nil {
			p.logger.Warn("could not copy file to failed directory",
				logging.String("file", record.OriginalFilename),
				logging.Error(err))
		}
	}

	record.Status = store.StatusFailed
	record.ErrorMessage = cause.Error()
	if err := p.store.UpdateFileRecord(ctx, record); err != nil {
		p.logger.Error("could not persist failure",
			logging.Int64("record_id", record.ID),
			logging.Error(err))
	}
	return record
}

// copyToFailed keeps a timestamp-prefixed copy of the document in the
// failed directory; repeated failures of the same name never overwrite
// each other.
func (p *Processor) copyToFailed(ctx context.Context, record *store.FileRecord, path string) error {
	if err := os.MkdirAll(p.failedDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(p.failedDir, BackupName(time.Now().UTC(), record.OriginalFilename))
	if err := fileutil.CopyFile(path, dst); err != nil {
		return err
	}
	p.logFile(ctx, record.ID, store.ActionMoveFailed, fmt.Sprintf("copied to %s", dst), "")
	return nil
}

func (p *Processor) logFile(ctx context.Context, fileID int64, action, message, details string) {
	if err := p.store.AppendLog(ctx, &fileID, action, message, details); err != nil {
		p.logger.Warn("audit log write failed", logging.String("action", action), logging.Error(err))
	}
}

// BackupName prefixes a filename with a filesystem-safe UTC timestamp.
func BackupName(t time.Time, filename string) string {
	stamp := t.Format("2006-01-02T15-04-05.000Z")
	stamp = strings.ReplaceAll(stamp, ".", "-")
	return stamp + "_" + filename
}
