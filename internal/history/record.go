package history

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shellsync/unihist/internal/timefmt"
)

// Record is one command line of the store. Position counts command records
// only; marker lines are not numbered.
type Record struct {
	Position int
	Marker   string
	Text     string
}

// Timestamp renders the record's marker. Records without a marker render as
// timefmt.Unknown.
func (r Record) Timestamp(mode timefmt.Mode) string {
	return timefmt.Format(r.Marker, mode)
}

// Time returns the marker as a time, or the zero time when unknown.
func (r Record) Time() time.Time {
	secs, err := strconv.ParseInt(r.Marker, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// IsMarker reports whether line is a timestamp marker (^#[0-9]+$).
func IsMarker(line string) bool {
	if len(line) < 2 || line[0] != '#' {
		return false
	}
	for i := 1; i < len(line); i++ {
		if line[i] < '0' || line[i] > '9' {
			return false
		}
	}
	return true
}

// MarkerLine formats a marker for t.
func MarkerLine(t time.Time) string {
	return "#" + strconv.FormatInt(t.Unix(), 10)
}

// Scan streams the records of r to fn in store order. Lines that look like
// markers but are not purely numeric are treated as commands. Blank lines are
// skipped. Returning a non-nil error from fn stops the scan with that error.
func Scan(r io.Reader, fn func(Record) error) error {
	return scan(r, nil, fn)
}

// scan is Scan with an optional callback for every marker line, so callers
// that count markers share the same line classification.
func scan(r io.Reader, onMarker func(marker string), fn func(Record) error) error {
	reader := bufio.NewReader(r)
	marker := ""
	position := 0

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			switch {
			case IsMarker(line):
				marker = line[1:]
				if onMarker != nil {
					onMarker(marker)
				}
			case line == "":
			default:
				if cbErr := fn(Record{Position: position, Marker: marker, Text: line}); cbErr != nil {
					return cbErr
				}
				position++
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// ReadRecords loads every record of r into memory.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record
	err := Scan(r, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// tailPrealloc caps the ring's initial capacity; n may be far larger than
// the store.
const tailPrealloc = 1024

// Tail returns the last n records of r in chronological order using a
// bounded ring, so the whole store is never held in memory.
func Tail(r io.Reader, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	ring := make([]Record, 0, min(n, tailPrealloc))
	next := 0
	err := Scan(r, func(rec Record) error {
		if len(ring) < n {
			ring = append(ring, rec)
			return nil
		}
		ring[next] = rec
		next = (next + 1) % n
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ring) < n {
		return ring, nil
	}
	return append(ring[next:], ring[:next]...), nil
}
