package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docflow/internal/classify"
	"docflow/internal/pipeline"
	"docflow/internal/store"
	"docflow/internal/testsupport"
)

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	return s.text, s.err
}

type stubAnalyzer struct {
	analysis classify.Analysis
	err      error
	lastText string
}

func (s *stubAnalyzer) Analyze(ctx context.Context, text string) (classify.Analysis, error) {
	s.lastText = text
	return s.analysis, s.err
}

type pipelineEnv struct {
	store     *store.Store
	folder    *store.Folder
	folderDir string
	backupDir string
	failedDir string
	extractor *stubExtractor
	analyzer  *stubAnalyzer
	processor *pipeline.Processor
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	base := t.TempDir()
	env := &pipelineEnv{
		store:     testsupport.MustOpenStore(t),
		folderDir: filepath.Join(base, "inbox"),
		backupDir: filepath.Join(base, "backups"),
		failedDir: filepath.Join(base, "failed"),
		extractor: &stubExtractor{text: "INVOICE #42 from Acme Corp"},
		analyzer: &stubAnalyzer{analysis: classify.Analysis{
			CompanyName:    "Acme",
			ContentSummary: "Invoice",
			Confidence:     92,
		}},
	}
	for _, dir := range []string{env.folderDir, env.backupDir, env.failedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	folder, err := env.store.CreateFolder(context.Background(), &store.Folder{
		Path:   env.folderDir,
		Alias:  "inbox",
		Type:   store.FolderLocal,
		Active: true,
	})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	env.folder = folder

	env.processor = pipeline.NewProcessor(env.store, env.extractor, env.analyzer, pipeline.ProcessorConfig{
		BackupDir:     env.backupDir,
		FailedDir:     env.failedDir,
		MaxNameLength: 50,
		MaxStoredText: 100,
	}, nil)
	return env
}

func (env *pipelineEnv) dropFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(env.folderDir, name)
	testsupport.WritePDF(t, path)
	return path
}

func TestProcessRenamesAndCompletes(t *testing.T) {
	env := newPipelineEnv(t)
	path := env.dropFile(t, "scan001.pdf")

	record, err := env.processor.Process(context.Background(), env.folder.ID, path)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if record.Status != store.StatusCompleted {
		t.Fatalf("status = %s, want completed (%s)", record.Status, record.ErrorMessage)
	}
	if record.NewFilename != "Acme_Invoice.pdf" {
		t.Errorf("new filename = %q", record.NewFilename)
	}
	if record.ProcessedAt == nil {
		t.Error("processed_at not set")
	}

	if _, err := os.Stat(filepath.Join(env.folderDir, "Acme_Invoice.pdf")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("original should be gone, stat err = %v", err)
	}

	backups, err := os.ReadDir(env.backupDir)
	if err != nil || len(backups) != 1 {
		t.Fatalf("backup dir entries = %d, err %v", len(backups), err)
	}
	if !strings.HasSuffix(backups[0].Name(), "_scan001.pdf") {
		t.Errorf("backup name = %q", backups[0].Name())
	}

	logs, err := env.store.ListLogs(context.Background(), &record.ID, 0)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	seen := make(map[string]bool)
	for _, entry := range logs {
		seen[entry.Action] = true
	}
	for _, action := range []string{store.ActionStart, store.ActionBackup, store.ActionOCR, store.ActionAnalyze, store.ActionRename, store.ActionComplete} {
		if !seen[action] {
			t.Errorf("missing %s log entry", action)
		}
	}
}

func TestProcessTruncatesStoredText(t *testing.T) {
	env := newPipelineEnv(t)
	env.extractor.text = strings.Repeat("x", 500)
	path := env.dropFile(t, "long.pdf")

	record, err := env.processor.Process(context.Background(), env.folder.ID, path)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(record.OCRText) != 100 {
		t.Errorf("stored text length = %d, want 100", len(record.OCRText))
	}
	// The analyzer still sees the full extraction.
	if len(env.analyzer.lastText) != 500 {
		t.Errorf("analyzer received %d chars, want 500", len(env.analyzer.lastText))
	}
}

func TestProcessPicksUniqueName(t *testing.T) {
	env := newPipelineEnv(t)
	env.dropFile(t, "Acme_Invoice.pdf")
	path := env.dropFile(t, "scan002.pdf")

	record, err := env.processor.Process(context.Background(), env.folder.ID, path)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if record.NewFilename != "Acme_Invoice_1.pdf" {
		t.Errorf("new filename = %q, want Acme_Invoice_1.pdf", record.NewFilename)
	}
}

func TestProcessEmptyExtractionFails(t *testing.T) {
	env := newPipelineEnv(t)
	env.extractor.text = "   \n "
	path := env.dropFile(t, "blank.pdf")

	record, err := env.processor.Process(context.Background(), env.folder.ID, path)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if record.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", record.Status)
	}
	if !strings.Contains(record.ErrorMessage, "empty OCR result") {
		t.Errorf("error message = %q", record.ErrorMessage)
	}
	parked := failedCopies(t, env.failedDir, "blank.pdf")
	if len(parked) != 1 {
		t.Fatalf("failed dir holds %d copies of blank.pdf, want 1: %v", len(parked), parked)
	}
	if parked[0] == "blank.pdf" {
		t.Errorf("failed copy %q carries no timestamp prefix", parked[0])
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("original should stay in the folder, stat err = %v", err)
	}
}

// failedCopies lists failed-directory entries holding a copy of name.
func failedCopies(t *testing.T, failedDir, name string) []string {
	t.Helper()
	entries, err := os.ReadDir(failedDir)
	if err != nil {
		t.Fatalf("read failed dir: %v", err)
	}
	var matches []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), "_"+name) || entry.Name() == name {
			matches = append(matches, entry.Name())
		}
	}
	return matches
}

func TestProcessRepeatedFailuresKeepEveryCopy(t *testing.T) {
	env := newPipelineEnv(t)
	env.extractor.text = " "
	path := env.dropFile(t, "dup.pdf")

	if _, err := env.processor.Process(context.Background(), env.folder.ID, path); err != nil {
		t.Fatalf("first process: %v", err)
	}

	// A rescanned document with new content fails again under the same name.
	if err := os.WriteFile(path, []byte("%PDF-1.4 second pass\n"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := env.processor.Process(context.Background(), env.folder.ID, path); err != nil {
		t.Fatalf("second process: %v", err)
	}

	parked := failedCopies(t, env.failedDir, "dup.pdf")
	if len(parked) != 2 {
		t.Fatalf("failed dir holds %d copies of dup.pdf, want 2: %v", len(parked), parked)
	}
	var contents []string
	for _, name := range parked {
		data, err := os.ReadFile(filepath.Join(env.failedDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		contents = append(contents, string(data))
	}
	if contents[0] == contents[1] {
		t.Error("second failure overwrote the first failed copy")
	}
}

func TestProcessAnalyzerErrorFails(t *testing.T) {
	env := newPipelineEnv(t)
	env.analyzer.err = errors.New("model overloaded")
	path := env.dropFile(t, "scan003.pdf")

	record, err := env.processor.Process(context.Background(), env.folder.ID, path)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if record.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", record.Status)
	}
	if !strings.Contains(record.ErrorMessage, "model overloaded") {
		t.Errorf("error message = %q", record.ErrorMessage)
	}
}

func TestProcessClaimsPendingRecord(t *testing.T) {
	env := newPipelineEnv(t)
	path := env.dropFile(t, "scan004.pdf")

	pending, err := env.store.InsertFileRecord(context.Background(), &store.FileRecord{
		FolderID:         env.folder.ID,
		OriginalPath:     path,
		OriginalFilename: "scan004.pdf",
		Status:           store.StatusPending,
	})
	if err != nil {
		t.Fatalf("insert pending: %v", err)
	}

	record, err := env.processor.Process(context.Background(), env.folder.ID, path)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if record.ID != pending.ID {
		t.Errorf("processor created a second record (%d vs %d)", record.ID, pending.ID)
	}
	if record.Status != store.StatusCompleted {
		t.Errorf("status = %s", record.Status)
	}
}

func TestProcessMissingFileIsRejected(t *testing.T) {
	env := newPipelineEnv(t)
	_, err := env.processor.Process(context.Background(), env.folder.ID, filepath.Join(env.folderDir, "ghost.pdf"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
