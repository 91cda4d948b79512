package share_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"docflow/internal/share"
	"docflow/internal/store"
	"docflow/internal/testsupport"
)

// stubProvider serves a fixed directory as every share, or fails when err is
// set.
type stubProvider struct {
	path  string
	err   error
	calls int

	lastUser   string
	lastSecret string
}

func (p *stubProvider) Connect(ctx context.Context, host, shareName, username, secret string) (string, error) {
	p.calls++
	p.lastUser = username
	p.lastSecret = secret
	if p.err != nil {
		return "", p.err
	}
	return p.path, nil
}

func TestResolveLocalFolderPassesPathThrough(t *testing.T) {
	provider := &stubProvider{path: t.TempDir()}
	resolver := share.NewResolver(provider)

	folder := &store.Folder{Path: "/srv/scans", Type: store.FolderLocal}
	got, err := resolver.Resolve(context.Background(), folder)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "/srv/scans" {
		t.Fatalf("path = %q", got)
	}
	if provider.calls != 0 {
		t.Fatalf("provider called %d times for a local folder", provider.calls)
	}
}

func TestResolveRemoteFolderConnects(t *testing.T) {
	mount := t.TempDir()
	provider := &stubProvider{path: mount}
	resolver := share.NewResolver(provider)

	folder := &store.Folder{
		Alias:     "office scans",
		Type:      store.FolderRemote,
		SMBHost:   "nas01",
		SMBShare:  "scans",
		SMBUser:   "svc-scan",
		SMBSecret: "hunter2",
	}
	got, err := resolver.Resolve(context.Background(), folder)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != mount {
		t.Fatalf("path = %q, want %q", got, mount)
	}
	if provider.lastUser != "svc-scan" || provider.lastSecret != "hunter2" {
		t.Fatalf("credentials not forwarded: %q/%q", provider.lastUser, provider.lastSecret)
	}

	status, ok := resolver.StatusFor("nas01", "scans")
	if !ok {
		t.Fatal("no cached status after resolve")
	}
	if !status.Connected || status.MountPath != mount {
		t.Fatalf("status = %+v", status)
	}
}

func TestResolveRemoteFolderJoinsSubdirectory(t *testing.T) {
	mount := t.TempDir()
	resolver := share.NewResolver(&stubProvider{path: mount})

	folder := &store.Folder{
		Type:     store.FolderRemote,
		Path:     "inbox/2026",
		SMBHost:  "nas01",
		SMBShare: "scans",
	}
	got, err := resolver.Resolve(context.Background(), folder)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(mount, "inbox/2026"); got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestResolveRemoteFolderUnreachable(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("connection refused")}
	resolver := share.NewResolver(provider)

	folder := &store.Folder{Type: store.FolderRemote, SMBHost: "nas01", SMBShare: "scans"}
	_, err := resolver.Resolve(context.Background(), folder)
	if !errors.Is(err, share.ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}

	status, ok := resolver.StatusFor("nas01", "scans")
	if !ok {
		t.Fatal("no cached status after failed resolve")
	}
	if status.Connected || status.Error == "" {
		t.Fatalf("status = %+v", status)
	}
}

func TestResolveRemoteFolderMissingHost(t *testing.T) {
	resolver := share.NewResolver(&stubProvider{path: t.TempDir()})
	folder := &store.Folder{Alias: "broken", Type: store.FolderRemote, SMBShare: "scans"}
	if _, err := resolver.Resolve(context.Background(), folder); err == nil {
		t.Fatal("expected error for remote folder without host")
	}
}

func TestTestConnectionListsDocuments(t *testing.T) {
	mount := t.TempDir()
	for i := 0; i < 12; i++ {
		testsupport.WritePDF(t, filepath.Join(mount, fmt.Sprintf("scan%02d.pdf", i)))
	}
	testsupport.WriteFile(t, filepath.Join(mount, "notes.txt"), []byte("not a document"))

	resolver := share.NewResolver(&stubProvider{path: mount})
	names, err := resolver.TestConnection(context.Background(), "nas01", "scans", "", "")
	if err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if len(names) != 10 {
		t.Fatalf("listed %d names, want 10", len(names))
	}
	for _, name := range names {
		if filepath.Ext(name) != ".pdf" {
			t.Fatalf("non-pdf entry %q in listing", name)
		}
	}
}

func TestAllStatusesSorted(t *testing.T) {
	resolver := share.NewResolver(&stubProvider{path: t.TempDir()})
	for _, pair := range [][2]string{{"nas02", "scans"}, {"nas01", "archive"}, {"nas01", "scans"}} {
		if _, err := resolver.TestConnection(context.Background(), pair[0], pair[1], "", ""); err != nil {
			t.Fatalf("TestConnection %v: %v", pair, err)
		}
	}
	statuses := resolver.AllStatuses()
	if len(statuses) != 3 {
		t.Fatalf("got %d statuses", len(statuses))
	}
	if statuses[0].Host != "nas01" || statuses[0].Share != "archive" {
		t.Fatalf("statuses not sorted: %+v", statuses)
	}

	resolver.ClearCache()
	if remaining := resolver.AllStatuses(); len(remaining) != 0 {
		t.Fatalf("cache not cleared: %+v", remaining)
	}
}
