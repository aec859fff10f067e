package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shellsync/unihist/internal/history"
	"github.com/shellsync/unihist/internal/timefmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(width int) (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	r := New(&buf, Options{
		Color:     false,
		TimeMode:  timefmt.Epoch,
		TermWidth: func() int { return width },
	})
	return r, &buf
}

func TestRenderSearch(t *testing.T) {
	t.Run("no matches", func(t *testing.T) {
		r, buf := newTestRenderer(80)
		r.RenderSearch("kubectl", &history.SearchResult{})
		assert.Equal(t, "No matches for \"kubectl\"\n", buf.String())
	})

	t.Run("truncated results keep their numbering", func(t *testing.T) {
		r, buf := newTestRenderer(80)
		r.RenderSearch("git", &history.SearchResult{
			Total:     12,
			Truncated: true,
			Matches: []history.Match{
				{Index: 11, Record: history.Record{Marker: "100", Text: "git status"}, Spans: []history.Span{{Start: 0, End: 3}}},
				{Index: 12, Record: history.Record{Text: "git push"}, Spans: []history.Span{{Start: 0, End: 3}}},
			},
		})

		expected := "11  [100]  git status\n" +
			"12  [unknown]  git push\n" +
			"Showing last 2 of 12 matches (use --all to show everything)\n"
		assert.Equal(t, expected, buf.String())
	})

	t.Run("complete results report the total", func(t *testing.T) {
		r, buf := newTestRenderer(80)
		r.RenderSearch("ls", &history.SearchResult{
			Total:   1,
			Matches: []history.Match{{Index: 1, Record: history.Record{Marker: "5", Text: "ls"}}},
		})
		assert.Equal(t, "1  [5]  ls\n1 match\n", buf.String())
	})
}

func TestRenderContext(t *testing.T) {
	blocks, err := history.SearchContext(strings.NewReader("#7\nls\ngit add .\npwd\n"), "git", 1)
	require.NoError(t, err)

	r, buf := newTestRenderer(80)
	r.RenderContext("git", blocks)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "── match 1 at #2 ──", lines[0])
	assert.Equal(t, "       1  [7]  ls", lines[1])
	assert.Equal(t, ">      2  [7]  git add .", lines[2])
	assert.Equal(t, "       3  [7]  pwd", lines[3])
}

func TestRenderStats(t *testing.T) {
	stats, err := history.Statistics(strings.NewReader("#1\nls\nls\ncd /tmp\nls\n"))
	require.NoError(t, err)

	r, buf := newTestRenderer(80)
	r.RenderStats(stats)

	out := buf.String()
	assert.Contains(t, out, "Total commands:  4")
	assert.Contains(t, out, "Unique commands: 2")
	assert.Contains(t, out, "   1. ls       3\n")
	assert.Contains(t, out, "   2. cd       1\n")
}

func TestRenderStatsTruncatesLongCommands(t *testing.T) {
	long := strings.Repeat("x", 100)
	r, buf := newTestRenderer(30)
	r.RenderStats(&history.Stats{Total: 1, Unique: 1, Top: []history.CommandCount{{Command: long, Count: 1}}})

	assert.NotContains(t, buf.String(), long)
	assert.Contains(t, buf.String(), "…")
}

func TestRenderRecentAndMessages(t *testing.T) {
	r, buf := newTestRenderer(80)
	r.RenderRecent(nil)
	r.RenderRecent([]history.Record{{Position: 41, Marker: "9", Text: "make"}})
	r.RenderDedup(history.DedupResult{Before: 5, After: 3, Removed: 2})
	r.RenderBackup(history.BackupResult{Path: "/tmp/h.backup", Size: 2048})
	r.RenderSync(history.SyncResult{Degraded: true})
	r.RenderOrigin(history.OriginJournal)

	out := buf.String()
	assert.Contains(t, out, "No history yet\n")
	assert.Contains(t, out, "    42  [9]  make\n")
	assert.Contains(t, out, "  Removed: 2\n")
	assert.Contains(t, out, "Backup written to /tmp/h.backup (2.0 kB)")
	assert.Contains(t, out, "session-local history")
	assert.Contains(t, out, "local history")
}

func TestHighlightWithoutColor(t *testing.T) {
	r, _ := newTestRenderer(80)
	assert.Equal(t, "git status", r.Highlight("git status", []history.Span{{Start: 0, End: 3}}))
}
