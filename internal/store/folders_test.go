package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"docflow/internal/store"
	"docflow/internal/testsupport"
)

func newFolder(t *testing.T, st *store.Store, alias string) *store.Folder {
	t.Helper()
	folder, err := st.CreateFolder(context.Background(), &store.Folder{
		Path:   filepath.Join(t.TempDir(), alias),
		Alias:  alias,
		Type:   store.FolderLocal,
		Active: true,
	})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	return folder
}

func TestFolderLifecycle(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	folder := newFolder(t, st, "inbox")
	if folder.ID == 0 {
		t.Fatal("expected assigned folder id")
	}

	folder.Alias = "scans"
	if err := st.UpdateFolder(ctx, folder); err != nil {
		t.Fatalf("update folder: %v", err)
	}

	got, err := st.GetFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("get folder: %v", err)
	}
	if got.Alias != "scans" {
		t.Errorf("alias = %q after update", got.Alias)
	}

	if err := st.SetFolderActive(ctx, folder.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := st.ListFolders(ctx, true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active folders, got %d", len(active))
	}
	all, err := st.ListFolders(ctx, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 folder, got %d", len(all))
	}

	if err := st.DeleteFolder(ctx, folder.ID); err != nil {
		t.Fatalf("delete folder: %v", err)
	}
	if _, err := st.GetFolder(ctx, folder.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get deleted folder = %v, want ErrNotFound", err)
	}
}

func TestCreateFolderValidatesRemoteFields(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	_, err := st.CreateFolder(context.Background(), &store.Folder{
		Path:   "scans",
		Alias:  "remote-scans",
		Type:   store.FolderRemote,
		Active: true,
	})
	if err == nil {
		t.Fatal("expected error for active remote folder without host/share")
	}
}

func TestMappings(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()
	folder := newFolder(t, st, "inbox")

	for _, dept := range []string{"FIN", "HR", "FIN"} {
		if err := st.AddMapping(ctx, folder.ID, dept); err != nil {
			t.Fatalf("add mapping %s: %v", dept, err)
		}
	}
	mappings, err := st.ListMappings(ctx, folder.ID)
	if err != nil {
		t.Fatalf("list mappings: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("expected duplicate mapping to be ignored, got %d", len(mappings))
	}

	if err := st.DeleteFolder(ctx, folder.ID); err != nil {
		t.Fatalf("delete folder: %v", err)
	}
	mappings, err = st.ListMappings(ctx, folder.ID)
	if err != nil {
		t.Fatalf("list mappings after delete: %v", err)
	}
	if len(mappings) != 0 {
		t.Errorf("mappings should cascade on folder delete, got %d", len(mappings))
	}
}
