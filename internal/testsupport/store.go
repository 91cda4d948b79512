package testsupport

import (
	"path/filepath"
	"testing"

	"docflow/internal/store"
)

// MustOpenStore opens a SQLite store under the test's temp directory and
// closes it on cleanup.
func MustOpenStore(t testing.TB) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "docflow.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}
