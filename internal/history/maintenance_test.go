package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicate(t *testing.T) {
	t.Run("same text under different markers is kept", func(t *testing.T) {
		store := newTestStore(t, "#100\nls\n#200\nls\n")

		result, err := store.Deduplicate()
		require.NoError(t, err)

		assert.Equal(t, DedupResult{Before: 2, After: 2, Removed: 0}, result)
		assert.Equal(t, "#100\nls\n#200\nls\n", readFile(t, store.Path()))
	})

	t.Run("repeated pair collapses to first occurrence", func(t *testing.T) {
		store := newTestStore(t, "#100\nls\npwd\nls\n#200\nmake\n#100\npwd\ncd /\n")

		result, err := store.Deduplicate()
		require.NoError(t, err)

		assert.Equal(t, DedupResult{Before: 6, After: 4, Removed: 2}, result)
		assert.Equal(t, "#100\nls\npwd\n#200\nmake\n#100\ncd /\n", readFile(t, store.Path()))
	})

	t.Run("records before any marker", func(t *testing.T) {
		store := newTestStore(t, "ls\nls\n#5\nls\n")

		result, err := store.Deduplicate()
		require.NoError(t, err)

		assert.Equal(t, 1, result.Removed)
		assert.Equal(t, "ls\n#5\nls\n", readFile(t, store.Path()))
	})

	t.Run("is idempotent", func(t *testing.T) {
		store := newTestStore(t, "#1\na\nb\na\n#2\n#3\nb\nb\n#1\na\nc\n")

		first, err := store.Deduplicate()
		require.NoError(t, err)
		content := readFile(t, store.Path())

		second, err := store.Deduplicate()
		require.NoError(t, err)

		assert.Equal(t, first.After, second.Before)
		assert.Equal(t, second.Before, second.After)
		assert.Equal(t, 0, second.Removed)
		assert.Equal(t, content, readFile(t, store.Path()))
	})

	t.Run("keeps file permissions", func(t *testing.T) {
		store := newTestStore(t, "#1\nls\nls\n")
		require.NoError(t, os.Chmod(store.Path(), 0640))

		_, err := store.Deduplicate()
		require.NoError(t, err)

		stat, err := os.Stat(store.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0640), stat.Mode().Perm())
	})

	t.Run("missing store", func(t *testing.T) {
		store := newTestStore(t, "")
		_, err := store.Deduplicate()
		assert.ErrorIs(t, err, ErrMissingStore)
	})
}

func TestDeduplicateThroughSymlinkedStore(t *testing.T) {
	store, target := newLinkedStore(t, "#100\nls\n#100\nls\n")

	result, err := store.Deduplicate()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)

	assert.Equal(t, "#100\nls\n", readFile(t, target))
	info, err := os.Lstat(store.Path())
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "store path is still a symlink")
}

func TestDeduplicateFailureLeavesStoreUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history")
	content := "#100\nls\n#100\nls\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	store := NewStore(StoreOptions{Path: path})

	makeReadOnly(t, dir)

	_, err := store.Deduplicate()
	assert.ErrorIs(t, err, ErrUnwritableStore)
	assert.Equal(t, content, readFile(t, path))
}

func TestStatistics(t *testing.T) {
	t.Run("counts totals and top token", func(t *testing.T) {
		stats, err := Statistics(strings.NewReader("#1\nls\nls\ncd /tmp\nls\n"))
		require.NoError(t, err)

		assert.Equal(t, 4, stats.Total)
		assert.Equal(t, 2, stats.Unique)
		require.NotEmpty(t, stats.Top)
		assert.Equal(t, CommandCount{Command: "ls", Count: 3}, stats.Top[0])
		assert.Equal(t, CommandCount{Command: "cd", Count: 1}, stats.Top[1])
	})

	t.Run("unique is case sensitive and markers are excluded", func(t *testing.T) {
		stats, err := Statistics(strings.NewReader("#1\nLs\nls\n#2\nls\n"))
		require.NoError(t, err)

		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.Unique)
	})

	t.Run("ties keep first-seen order and top is capped", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("#1\n")
		for _, base := range []string{"z", "y", "x", "w", "v", "u", "t", "s", "r", "q", "p", "o"} {
			b.WriteString(base + " arg\n")
		}
		b.WriteString("git a\ngit b\n")

		stats, err := Statistics(strings.NewReader(b.String()))
		require.NoError(t, err)

		require.Len(t, stats.Top, TopCommandsLimit)
		assert.Equal(t, CommandCount{Command: "git", Count: 2}, stats.Top[0])
		got := make([]string, 0, len(stats.Top))
		for _, row := range stats.Top[1:] {
			got = append(got, row.Command)
		}
		assert.Equal(t, []string{"z", "y", "x", "w", "v", "u", "t", "s", "r"}, got)
	})

	t.Run("leading whitespace does not hide the base command", func(t *testing.T) {
		stats, err := Statistics(strings.NewReader("  sudo apt update\nsudo reboot\n"))
		require.NoError(t, err)
		assert.Equal(t, []CommandCount{{Command: "sudo", Count: 2}}, stats.Top)
	})
}
