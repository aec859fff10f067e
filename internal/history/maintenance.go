package history

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// TopCommandsLimit is the size of the frequency table in Stats.
const TopCommandsLimit = 10

// DedupResult reports record counts around a deduplication pass.
type DedupResult struct {
	Before  int
	After   int
	Removed int
}

// CommandCount is one row of the frequency table.
type CommandCount struct {
	Command string
	Count   int
}

// Stats summarises a store.
type Stats struct {
	Total  int
	Unique int
	Top    []CommandCount
}

// Deduplicate rewrites the store keeping only the first occurrence of each
// (marker, command) pair. The same command under two different markers is
// kept twice. The rewrite replaces the file atomically.
func (s *Store) Deduplicate() (DedupResult, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return DedupResult{}, fmt.Errorf("%w: %s", ErrMissingStore, s.path)
	}
	if err != nil {
		return DedupResult{}, fmt.Errorf("failed to read history store: %w", err)
	}

	out, result, err := deduplicate(bytes.NewReader(data))
	if err != nil {
		return DedupResult{}, err
	}

	if err := s.replace(out); err != nil {
		return DedupResult{}, err
	}

	s.logger.Info("deduplicated history store",
		zap.String("path", s.path),
		zap.Int("before", result.Before),
		zap.Int("after", result.After),
	)
	return result, nil
}

// deduplicate produces the rewritten store. A marker line is emitted only
// before a kept record whose marker differs from the last one written, so
// markers left without records disappear and a second pass changes nothing.
func deduplicate(r io.Reader) ([]byte, DedupResult, error) {
	type key struct {
		marker string
		text   string
	}

	var (
		buf         bytes.Buffer
		result      DedupResult
		seen        = make(map[key]struct{})
		emitted     string
		haveEmitted bool
	)

	err := Scan(r, func(rec Record) error {
		result.Before++
		k := key{marker: rec.Marker, text: rec.Text}
		if _, dup := seen[k]; dup {
			return nil
		}
		seen[k] = struct{}{}
		result.After++

		if rec.Marker != "" && (!haveEmitted || rec.Marker != emitted) {
			buf.WriteString("#" + rec.Marker + "\n")
			emitted = rec.Marker
			haveEmitted = true
		}
		buf.WriteString(rec.Text + "\n")
		return nil
	})
	if err != nil {
		return nil, DedupResult{}, err
	}

	result.Removed = result.Before - result.After
	return buf.Bytes(), result, nil
}

// Statistics counts records, distinct commands and the most used base
// commands (first whitespace-separated word). Ties keep first-seen order.
func Statistics(r io.Reader) (*Stats, error) {
	stats := &Stats{}
	var texts []string
	counts := make(map[string]int)
	var order []string

	err := Scan(r, func(rec Record) error {
		stats.Total++
		texts = append(texts, rec.Text)

		fields := strings.Fields(rec.Text)
		if len(fields) == 0 {
			return nil
		}
		base := fields[0]
		if _, ok := counts[base]; !ok {
			order = append(order, base)
		}
		counts[base]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.Unique = len(lo.Uniq(texts))

	top := lo.Map(order, func(base string, _ int) CommandCount {
		return CommandCount{Command: base, Count: counts[base]}
	})
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Count > top[j].Count
	})
	if len(top) > TopCommandsLimit {
		top = top[:TopCommandsLimit]
	}
	stats.Top = top
	return stats, nil
}
