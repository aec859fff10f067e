package history

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windowFixture(n int) string {
	var b strings.Builder
	b.WriteString("#500\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "cmd%02d\n", i)
	}
	return b.String()
}

func TestSearchContextWindows(t *testing.T) {
	const n = 10

	tests := []struct {
		name     string
		pattern  string
		context  int
		expected []string
	}{
		{"first record has no before context", "cmd00", 3, []string{"cmd00", "cmd01", "cmd02", "cmd03"}},
		{"middle record is symmetric", "cmd05", 2, []string{"cmd03", "cmd04", "cmd05", "cmd06", "cmd07"}},
		{"last record has no after context", "cmd09", 3, []string{"cmd06", "cmd07", "cmd08", "cmd09"}},
		{"zero context is the match alone", "cmd04", 0, []string{"cmd04"}},
		{"window larger than store", "cmd01", 50, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := SearchContext(strings.NewReader(windowFixture(n)), tt.pattern, tt.context)
			require.NoError(t, err)
			require.Len(t, blocks, 1)

			lines := blocks[0].Lines
			got := make([]string, len(lines))
			for i, line := range lines {
				got[i] = line.Record.Text
				assert.Equal(t, "500", line.Record.Marker)
				assert.Equal(t, line.Record.Text == tt.pattern, line.IsMatch)
			}

			expected := tt.expected
			if expected == nil {
				expected = texts(mustRecords(t, windowFixture(n)))
			}
			assert.Equal(t, expected, got)

			p := blocks[0].Match.Record.Position
			assert.Equal(t, max(0, p-tt.context), lines[0].Record.Position)
			assert.Equal(t, min(n-1, p+tt.context), lines[len(lines)-1].Record.Position)
		})
	}
}

func TestSearchContextOverlappingWindowsRepeat(t *testing.T) {
	input := "#1\nls\ngit add .\ngit commit\npwd\n"

	blocks, err := SearchContext(strings.NewReader(input), "GIT", 1)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, 1, blocks[0].Match.Index)
	assert.Equal(t, 2, blocks[1].Match.Index)
	assert.Equal(t, []string{"ls", "git add .", "git commit"}, lineTexts(blocks[0].Lines))
	assert.Equal(t, []string{"git add .", "git commit", "pwd"}, lineTexts(blocks[1].Lines))
	assert.False(t, blocks[1].Lines[0].IsMatch)
	assert.True(t, blocks[1].Lines[1].IsMatch)
}

func TestSearchContextResolvesMarkers(t *testing.T) {
	input := "first\n#10\nsecond\n#20\nthird\n"

	blocks, err := SearchContext(strings.NewReader(input), "second", 1)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	markers := make([]string, 0, 3)
	for _, line := range blocks[0].Lines {
		markers = append(markers, line.Record.Marker)
	}
	assert.Equal(t, []string{"", "10", "20"}, markers)
}

func TestSearchContextErrors(t *testing.T) {
	_, err := SearchContext(strings.NewReader("ls\n"), "", 3)
	assert.ErrorIs(t, err, ErrUsage)

	_, err = SearchContext(strings.NewReader("ls\n"), "ls", -1)
	assert.ErrorIs(t, err, ErrUsage)

	blocks, err := SearchContext(strings.NewReader(""), "ls", 3)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func mustRecords(t *testing.T, input string) []Record {
	t.Helper()
	records, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	return records
}

func lineTexts(lines []ContextLine) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line.Record.Text
	}
	return out
}

func TestSearchContextHugeWindowClampsToStore(t *testing.T) {
	var blocks []ContextBlock
	require.NotPanics(t, func() {
		var err error
		blocks, err = SearchContext(strings.NewReader("#1\ncd /tmp\nls\npwd\n"), "ls", math.MaxInt)
		require.NoError(t, err)
	})
	require.Len(t, blocks, 1)

	var lines []string
	for _, line := range blocks[0].Lines {
		lines = append(lines, line.Record.Text)
	}
	assert.Equal(t, []string{"cd /tmp", "ls", "pwd"}, lines)
	assert.True(t, blocks[0].Lines[1].IsMatch)
}
