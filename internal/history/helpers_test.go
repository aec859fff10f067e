package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestStore creates a store in a temp dir, optionally seeded with content.
func newTestStore(t *testing.T, content string) *Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "unified_history")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
	store := NewStore(StoreOptions{Path: path})
	store.now = fixedClock(time.Date(2024, 3, 5, 14, 30, 15, 0, time.Local))
	return store
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// tickingClock returns a clock that advances one second per call.
func tickingClock(start int64) func() time.Time {
	next := start
	return func() time.Time {
		t := time.Unix(next, 0)
		next++
		return t
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func texts(records []Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.Text
	}
	return out
}

// makeReadOnly removes write permission from dir for the rest of the test.
// Root ignores directory permissions, so the test is skipped there.
func makeReadOnly(t *testing.T, dir string) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0755) })
}

// newLinkedStore creates a store whose path is a symlink to a file in a
// separate "share" directory. content may be empty to leave the target
// missing.
func newLinkedStore(t *testing.T, content string) (store *Store, target string) {
	t.Helper()
	share := t.TempDir()
	target = filepath.Join(share, "unified_history")
	if content != "" {
		require.NoError(t, os.WriteFile(target, []byte(content), 0600))
	}
	link := filepath.Join(t.TempDir(), ".unified_history")
	require.NoError(t, os.Symlink(target, link))

	store = NewStore(StoreOptions{Path: link, BackupDir: t.TempDir()})
	store.now = fixedClock(time.Date(2024, 3, 5, 14, 30, 15, 0, time.Local))
	return store, target
}
