package daemon_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docflow/internal/classify"
	"docflow/internal/config"
	"docflow/internal/daemon"
	"docflow/internal/logging"
	"docflow/internal/store"
	"docflow/internal/testsupport"
)

type stubExtractor struct{ text string }

func (s *stubExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	return s.text, nil
}

type stubAnalyzer struct{ analysis classify.Analysis }

func (s *stubAnalyzer) Analyze(ctx context.Context, text string) (classify.Analysis, error) {
	return s.analysis, nil
}

func newDaemon(t *testing.T, cfg *config.Config, st *store.Store) *daemon.Daemon {
	t.Helper()
	d, err := daemon.NewWithClients(cfg, st, logging.NewNop(),
		&stubExtractor{text: "INVOICE from Acme Corp"},
		&stubAnalyzer{analysis: classify.Analysis{CompanyName: "Acme", ContentSummary: "Invoice", Confidence: 90}})
	if err != nil {
		t.Fatalf("NewWithClients: %v", err)
	}
	return d
}

func TestDaemonLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t)

	d := newDaemon(t, cfg, st)
	if d.Running() {
		t.Fatal("running before Start")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if !d.Running() {
		t.Fatal("not running after Start")
	}
	if d.APIAddr() == "" {
		t.Fatal("api address empty with a bound listener")
	}

	d.Stop()
	if d.Running() {
		t.Fatal("still running after Stop")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg, testsupport.MustOpenStore(t))
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	// Same lock path, so the second instance must refuse to start.
	second := newDaemon(t, cfg, testsupport.MustOpenStore(t))
	err := second.Start(context.Background())
	if err == nil {
		second.Stop()
		t.Fatal("second instance started on a held lock")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("err = %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start after lock release: %v", err)
	}
	second.Stop()
}

func TestDaemonRestoresWatchers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t)

	dir := filepath.Join(testsupport.BaseDir(cfg), "inbox")
	testsupport.WritePDF(t, filepath.Join(dir, "Acme_Invoice.pdf"))
	active, err := st.CreateFolder(context.Background(), &store.Folder{
		Path: dir, Alias: "inbox", Type: store.FolderLocal, Active: true,
	})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	inactive, err := st.CreateFolder(context.Background(), &store.Folder{
		Path: t.TempDir(), Alias: "paused", Type: store.FolderLocal, Active: false,
	})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}

	d := newDaemon(t, cfg, st)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if !d.Watchers().Watching(active.ID) {
		t.Fatal("active folder not watched after start")
	}
	if d.Watchers().Watching(inactive.ID) {
		t.Fatal("inactive folder watched after start")
	}
}

func TestDaemonRecoversInterruptedWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t)

	dir := filepath.Join(testsupport.BaseDir(cfg), "inbox")
	path := filepath.Join(dir, "scan001.pdf")
	testsupport.WritePDF(t, path)
	folder, err := st.CreateFolder(context.Background(), &store.Folder{
		Path: dir, Alias: "inbox", Type: store.FolderLocal, Active: true,
	})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}

	// A record stuck in processing simulates a crash mid-document.
	record, err := st.InsertFileRecord(context.Background(), &store.FileRecord{
		FolderID:         folder.ID,
		OriginalFilename: "scan001.pdf",
		OriginalPath:     path,
		Status:           store.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("insert record: %v", err)
	}

	d := newDaemon(t, cfg, st)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for {
		got, err := st.GetFile(context.Background(), record.ID)
		if err != nil {
			t.Fatalf("get record: %v", err)
		}
		if got.Status == store.StatusCompleted {
			if got.NewFilename != "Acme_Invoice.pdf" {
				t.Fatalf("renamed to %q", got.NewFilename)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("record never completed, status %s (%s)", got.Status, got.ErrorMessage)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
