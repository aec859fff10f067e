package history

import (
	"io"

	"github.com/samber/lo"
)

// BufferedEngine loads the whole store, collects every match, then slices
// the tail. It trades memory for simplicity.
type BufferedEngine struct{}

func (BufferedEngine) Name() string { return "buffered" }

func (BufferedEngine) Search(r io.Reader, q Query) (*SearchResult, error) {
	matcher, err := NewMatcher(q.Pattern, q.Fuzzy)
	if err != nil {
		return nil, err
	}

	records, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}

	matches := lo.FilterMap(records, func(rec Record, _ int) (Match, bool) {
		spans, ok := matcher.Match(rec.Text)
		return Match{Record: rec, Spans: spans}, ok
	})
	for i := range matches {
		matches[i].Index = i + 1
	}

	result := &SearchResult{Matches: matches, Total: len(matches)}
	if limit := q.limit(); !q.ShowAll && len(matches) > limit {
		result.Matches = lo.Subset(matches, -limit, uint(limit))
		result.Truncated = true
	}
	return result, nil
}
