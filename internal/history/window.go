package history

import (
	"fmt"
	"io"
)

// DefaultContextLines is the number of records shown on each side of a match.
const DefaultContextLines = 3

// ContextLine is one record inside a context window.
type ContextLine struct {
	Record  Record
	IsMatch bool
}

// ContextBlock is the window around a single match. Windows of nearby
// matches overlap and repeat records; they are never merged.
type ContextBlock struct {
	Match Match
	Lines []ContextLine
}

// SearchContext finds every record matching pattern (case-insensitive) and
// returns records max(0, P-C) through min(last, P+C) around each match P.
func SearchContext(r io.Reader, pattern string, contextLines int) ([]ContextBlock, error) {
	if contextLines < 0 {
		return nil, fmt.Errorf("%w: context lines must not be negative", ErrUsage)
	}
	matcher, err := NewMatcher(pattern, false)
	if err != nil {
		return nil, err
	}

	records, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}

	var blocks []ContextBlock
	for i, rec := range records {
		spans, ok := matcher.Match(rec.Text)
		if !ok {
			continue
		}
		// Compare before adding so a huge contextLines cannot overflow.
		from, to := 0, len(records)-1
		if contextLines < i {
			from = i - contextLines
		}
		if contextLines < to-i {
			to = i + contextLines
		}

		block := ContextBlock{
			Match: Match{Index: len(blocks) + 1, Record: rec, Spans: spans},
			Lines: make([]ContextLine, 0, to-from+1),
		}
		for j := from; j <= to; j++ {
			block.Lines = append(block.Lines, ContextLine{Record: records[j], IsMatch: j == i})
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}
