package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"docflow/internal/api"
	"docflow/internal/classify"
	"docflow/internal/config"
	"docflow/internal/logging"
	"docflow/internal/pipeline"
	"docflow/internal/scanner"
	"docflow/internal/share"
	"docflow/internal/store"
	"docflow/internal/testsupport"
	"docflow/internal/watcher"
)

type stubExtractor struct{ text string }

func (s *stubExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	return s.text, nil
}

type stubAnalyzer struct{ analysis classify.Analysis }

func (s *stubAnalyzer) Analyze(ctx context.Context, text string) (classify.Analysis, error) {
	return s.analysis, nil
}

type apiEnv struct {
	store   *store.Store
	queue   *pipeline.Queue
	handler http.Handler
	baseDir string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	st := testsupport.MustOpenStore(t)
	logger := logging.NewNop()
	base := t.TempDir()

	resolver := share.NewResolver(&passthroughProvider{})
	processor := pipeline.NewProcessor(st,
		&stubExtractor{text: "INVOICE from Acme Corp"},
		&stubAnalyzer{analysis: classify.Analysis{CompanyName: "Acme", ContentSummary: "Invoice", Confidence: 90}},
		pipeline.ProcessorConfig{
			BackupDir:     filepath.Join(base, "backups"),
			FailedDir:     filepath.Join(base, "failed"),
			MaxNameLength: 80,
			MaxStoredText: 10000,
		}, logger)
	queue := pipeline.NewQueue(st, processor, logger)
	service := pipeline.NewService(st, queue, resolver, filepath.Join(base, "backups"), logger)
	scan := scanner.New(st, resolver, queue, logger)
	watchers := watcher.NewManager(st, resolver, queue, config.Watcher{
		StabilitySeconds:  1,
		StabilityChecks:   1,
		RemotePollSeconds: 1,
	}, logger)
	t.Cleanup(watchers.UnwatchAll)

	server := api.NewServer("127.0.0.1:0", api.Deps{
		Store:    st,
		Queue:    queue,
		Pipeline: service,
		Scanner:  scan,
		Watchers: watchers,
		Resolver: resolver,
		Logger:   logger,
	})
	if server == nil {
		t.Fatal("NewServer returned nil for a non-blank bind")
	}
	return &apiEnv{store: st, queue: queue, handler: server.Handler(), baseDir: base}
}

// passthroughProvider mounts every share at a temp directory so remote
// plumbing works without a network.
type passthroughProvider struct{ path string }

func (p *passthroughProvider) Connect(ctx context.Context, host, shareName, username, secret string) (string, error) {
	if p.path == "" {
		return "", fmt.Errorf("share %s/%s offline", host, shareName)
	}
	return p.path, nil
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var status api.StatusResponse
	decodeInto(t, rec, &status)
	if !status.Running {
		t.Fatal("running = false")
	}
	if status.DatabasePath == "" {
		t.Fatal("databasePath empty")
	}
	if status.QueueDepth != 0 || status.QueueActive {
		t.Fatalf("queue reported busy on an idle daemon: %+v", status)
	}
}

func TestFolderLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	dir := filepath.Join(env.baseDir, "inbox")
	testsupport.WritePDF(t, filepath.Join(dir, "Acme_Invoice_old.pdf"))

	rec := env.do(t, http.MethodPost, "/api/folders", api.FolderRequest{
		Path:  dir,
		Alias: "inbox",
		Type:  "local",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created api.FolderView
	decodeInto(t, rec, &created)
	if created.ID == 0 || created.Alias != "inbox" || !created.Active {
		t.Fatalf("created = %+v", created)
	}
	if !created.Watching {
		t.Fatal("new active folder is not being watched")
	}

	// The create triggered an initial scan; the underscore-named file is
	// registered as already renamed.
	rec = env.do(t, http.MethodGet, "/api/files", nil)
	var files []api.FileView
	decodeInto(t, rec, &files)
	if len(files) != 1 || files[0].Status != "completed" {
		t.Fatalf("files after create = %+v", files)
	}

	inactive := false
	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/folders/%d", created.ID), api.FolderRequest{
		Alias:  "renamed inbox",
		Active: &inactive,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	var patched api.FolderView
	decodeInto(t, rec, &patched)
	if patched.Alias != "renamed inbox" || patched.Active || patched.Watching {
		t.Fatalf("patched = %+v", patched)
	}

	rec = env.do(t, http.MethodGet, "/api/folders", nil)
	var listed []api.FolderView
	decodeInto(t, rec, &listed)
	if len(listed) != 1 {
		t.Fatalf("listed %d folders", len(listed))
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/folders/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/folders/%d", created.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rec.Code)
	}
}

func TestScanEndpointQueuesNewDocuments(t *testing.T) {
	env := newAPIEnv(t)
	dir := filepath.Join(env.baseDir, "inbox")
	testsupport.WritePDF(t, filepath.Join(dir, "scan001.pdf"))

	folder, err := env.store.CreateFolder(context.Background(), &store.Folder{
		Path: dir, Alias: "inbox", Type: store.FolderLocal, Active: true,
	})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}

	env.queue.Start(context.Background())
	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/folders/%d/scan?processNew=1", folder.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan status = %d: %s", rec.Code, rec.Body.String())
	}
	var result api.ScanResponse
	decodeInto(t, rec, &result)
	if result.Total != 1 || result.Registered != 1 || result.Queued != 1 {
		t.Fatalf("scan result = %+v", result)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		rec = env.do(t, http.MethodGet, "/api/files?status=completed", nil)
		var files []api.FileView
		decodeInto(t, rec, &files)
		if len(files) == 1 {
			if files[0].NewFilename != "Acme_Invoice.pdf" {
				t.Fatalf("renamed to %q", files[0].NewFilename)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("document never completed; last listing: %+v", files)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestFilesEndpointValidation(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/api/files?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/files/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing file = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/files/999/rename", api.RenameRequest{NewName: "X.pdf"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("rename missing file = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/files/abc/reprocess", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric id = %d", rec.Code)
	}
}

func TestRenameEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	dir := filepath.Join(env.baseDir, "inbox")
	testsupport.WritePDF(t, filepath.Join(dir, "Acme_Invoice.pdf"))

	folder, err := env.store.CreateFolder(context.Background(), &store.Folder{
		Path: dir, Alias: "inbox", Type: store.FolderLocal, Active: true,
	})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	now := time.Now().UTC()
	record := &store.FileRecord{
		FolderID:         folder.ID,
		OriginalFilename: "Acme_Invoice.pdf",
		OriginalPath:     filepath.Join(dir, "Acme_Invoice.pdf"),
		NewFilename:      "Acme_Invoice.pdf",
		CompanyName:      "Acme",
		ContentSummary:   "Invoice",
		Status:           store.StatusCompleted,
		ProcessedAt:      &now,
	}
	record, err = env.store.InsertFileRecord(context.Background(), record)
	if err != nil {
		t.Fatalf("insert file: %v", err)
	}

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/files/%d/rename", record.ID),
		api.RenameRequest{NewName: "Acme_Invoice_March"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d: %s", rec.Code, rec.Body.String())
	}
	var view api.FileView
	decodeInto(t, rec, &view)
	if view.NewFilename != "Acme_Invoice_March.pdf" {
		t.Fatalf("newFilename = %q", view.NewFilename)
	}

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/files/%d/rename", record.ID),
		api.RenameRequest{NewName: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name status = %d", rec.Code)
	}
}

func TestShareTestEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	// The env's provider refuses every connection, so the probe reports
	// unreachable rather than failing the request.
	rec := env.do(t, http.MethodPost, "/api/shares/test", api.ShareTestRequest{
		URL: `\\nas01\scans`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("share test status = %d: %s", rec.Code, rec.Body.String())
	}
	var result api.ShareTestResponse
	decodeInto(t, rec, &result)
	if result.Reachable || result.Error == "" {
		t.Fatalf("result = %+v", result)
	}

	rec = env.do(t, http.MethodPost, "/api/shares/test", api.ShareTestRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing host/share status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/shares/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("share status = %d", rec.Code)
	}
	var statuses []api.ShareStatusView
	decodeInto(t, rec, &statuses)
	if len(statuses) != 1 || statuses[0].Host != "nas01" || statuses[0].Connected {
		t.Fatalf("statuses = %+v", statuses)
	}
}

func TestLogsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	if err := env.store.AppendLog(context.Background(), nil, store.ActionSystem, "daemon started", ""); err != nil {
		t.Fatalf("append log: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs status = %d", rec.Code)
	}
	var logs []api.LogView
	decodeInto(t, rec, &logs)
	if len(logs) != 1 || logs[0].Action != store.ActionSystem {
		t.Fatalf("logs = %+v", logs)
	}

	rec = env.do(t, http.MethodGet, "/api/logs?file=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid file filter status = %d", rec.Code)
	}
}
