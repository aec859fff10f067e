package history

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// Origin tells where a read operation got its history from.
type Origin string

const (
	OriginStore   Origin = "store"
	OriginJournal Origin = "journal"
	OriginEmpty   Origin = "empty"
)

// OpenHistory opens the shared store for reading. When the store is missing
// it falls back to the local journal (if any), rendered in store format, and
// finally to an empty stream. The caller closes the returned reader.
func OpenHistory(store *Store, journal *Journal, journalLimit int) (io.ReadCloser, Origin, error) {
	f, err := store.Open()
	if err == nil {
		return f, OriginStore, nil
	}
	if !errors.Is(err, ErrMissingStore) {
		return nil, "", err
	}

	if journal != nil {
		var buf bytes.Buffer
		if _, err := journal.Export(&buf, journalLimit); err != nil {
			return nil, "", err
		}
		if buf.Len() > 0 {
			return io.NopCloser(&buf), OriginJournal, nil
		}
	}

	return io.NopCloser(strings.NewReader("")), OriginEmpty, nil
}
