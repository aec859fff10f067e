package history

import "io"

// StreamingEngine scans the store once and, unless every match is wanted,
// keeps only the newest MaxResults matches in a ring while counting the rest.
type StreamingEngine struct{}

func (StreamingEngine) Name() string { return "stream" }

func (StreamingEngine) Search(r io.Reader, q Query) (*SearchResult, error) {
	matcher, err := NewMatcher(q.Pattern, q.Fuzzy)
	if err != nil {
		return nil, err
	}

	limit := q.limit()
	total := 0
	kept := []Match{}
	next := 0

	err = Scan(r, func(rec Record) error {
		spans, ok := matcher.Match(rec.Text)
		if !ok {
			return nil
		}
		total++
		m := Match{Index: total, Record: rec, Spans: spans}

		switch {
		case q.ShowAll || len(kept) < limit:
			kept = append(kept, m)
		default:
			kept[next] = m
			next = (next + 1) % limit
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !q.ShowAll && total > limit {
		kept = append(kept[next:], kept[:next]...)
	}

	return &SearchResult{
		Matches:   kept,
		Total:     total,
		Truncated: !q.ShowAll && total > limit,
	}, nil
}
