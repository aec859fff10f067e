package history

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

// DefaultMaxResults bounds search output when the caller does not ask for
// every match.
const DefaultMaxResults = 10

// Span is a half-open byte range [Start, End) of a match inside a command.
type Span struct {
	Start int
	End   int
}

// Match is one search hit. Index is the 1-based ordinal of the hit among all
// matches in the store, so truncated results keep their original numbering.
type Match struct {
	Index  int
	Record Record
	Spans  []Span
}

// SearchResult holds the returned matches and the total match count.
type SearchResult struct {
	Matches   []Match
	Total     int
	Truncated bool
}

// Query describes a search.
type Query struct {
	Pattern    string
	MaxResults int
	ShowAll    bool
	Fuzzy      bool
}

func (q Query) limit() int {
	if q.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return q.MaxResults
}

// Engine searches a store-formatted stream. Implementations must return the
// same matches in the same order for the same input.
type Engine interface {
	Name() string
	Search(r io.Reader, q Query) (*SearchResult, error)
}

// Engines lists the available implementations by name.
func Engines() map[string]Engine {
	return map[string]Engine{
		"stream":   StreamingEngine{},
		"buffered": BufferedEngine{},
	}
}

// Matcher decides whether a command matches and where.
type Matcher interface {
	Match(text string) ([]Span, bool)
}

// NewMatcher builds the matcher for a pattern. Patterns are case-insensitive
// regular expressions; a pattern that does not compile is matched literally.
// With fuzzy set, characters of the pattern must appear in order but not
// necessarily adjacent.
func NewMatcher(pattern string, fuzzyMatch bool) (Matcher, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: search pattern is required", ErrUsage)
	}
	if fuzzyMatch {
		return fuzzyMatcher{pattern: pattern}, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(pattern))
	}
	return regexMatcher{re: re}, nil
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) Match(text string) ([]Span, bool) {
	locs := m.re.FindAllStringIndex(text, -1)
	if locs == nil {
		return nil, false
	}
	spans := make([]Span, 0, len(locs))
	for _, loc := range locs {
		if loc[1] > loc[0] {
			spans = append(spans, Span{Start: loc[0], End: loc[1]})
		}
	}
	return spans, true
}

type fuzzyMatcher struct {
	pattern string
}

func (m fuzzyMatcher) Match(text string) ([]Span, bool) {
	matches := fuzzy.Find(m.pattern, []string{text})
	if len(matches) == 0 {
		return nil, false
	}
	indexes := append([]int(nil), matches[0].MatchedIndexes...)
	sort.Ints(indexes)

	var spans []Span
	for _, idx := range indexes {
		if idx < 0 || idx >= len(text) {
			continue
		}
		_, size := utf8.DecodeRuneInString(text[idx:])
		if n := len(spans); n > 0 && spans[n-1].End == idx {
			spans[n-1].End = idx + size
			continue
		}
		spans = append(spans, Span{Start: idx, End: idx + size})
	}
	return spans, true
}

// Recent returns the last count records of r in chronological order.
func Recent(r io.Reader, count int) ([]Record, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", ErrUsage)
	}
	return Tail(r, count)
}

// Highlight splits text into alternating plain and matched segments so a
// presentation layer can style them. Segments are returned in order;
// matched[i] tells whether segment i is a match.
func Highlight(text string, spans []Span) (segments []string, matched []bool) {
	pos := 0
	for _, span := range spans {
		if span.Start < pos || span.End > len(text) || span.Start >= span.End {
			continue
		}
		if span.Start > pos {
			segments = append(segments, text[pos:span.Start])
			matched = append(matched, false)
		}
		segments = append(segments, text[span.Start:span.End])
		matched = append(matched, true)
		pos = span.End
	}
	if pos < len(text) || len(segments) == 0 {
		segments = append(segments, text[pos:])
		matched = append(matched, false)
	}
	return segments, matched
}
