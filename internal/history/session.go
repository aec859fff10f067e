package history

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultRetentionSize is used when a Session is created without a limit.
const DefaultRetentionSize = 100000

// Entry is one command held in a session's buffer.
type Entry struct {
	Text    string
	At      time.Time
	Flushed bool
}

// SyncResult describes one sync pass. Degraded means the shared store could
// not be written or read and the session keeps its own history until a later
// sync succeeds; Cause carries the underlying error for logging only.
type SyncResult struct {
	Appended int
	Loaded   int
	Degraded bool
	Cause    error
}

// Session is the in-memory command buffer of one interactive shell and its
// connection to the shared store.
type Session struct {
	store     *Store
	journal   *Journal
	logger    *zap.Logger
	retention int
	now       func() time.Time

	entries  []Entry
	degraded bool
}

// SessionOptions configures a Session. Journal is optional; when set, every
// command added to the session is mirrored there.
type SessionOptions struct {
	Store         *Store
	Journal       *Journal
	Logger        *zap.Logger
	RetentionSize int
}

func NewSession(opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retention := opts.RetentionSize
	if retention <= 0 {
		retention = DefaultRetentionSize
	}
	return &Session{
		store:     opts.Store,
		journal:   opts.Journal,
		logger:    logger,
		retention: retention,
		now:       time.Now,
	}
}

// Record adds a command that just ran. Multi-line commands are joined with
// "; " because store records cannot span lines. Blank commands are ignored.
// The working directory and exit status are kept in the journal only.
func (s *Session) Record(text string, directory string, exitCode sql.NullInt32) {
	text = normalizeCommand(text)
	if text == "" {
		return
	}
	at := s.now()
	s.entries = append(s.entries, Entry{Text: text, At: at})

	if s.journal != nil {
		if err := s.journal.Record(text, directory, exitCode, at); err != nil {
			s.logger.Warn("failed to record command in journal", zap.Error(err))
		}
	}
}

// Entries returns a copy of the session's current view of history.
func (s *Session) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Pending returns how many commands have not reached the store yet.
func (s *Session) Pending() int {
	n := 0
	for _, e := range s.entries {
		if !e.Flushed {
			n++
		}
	}
	return n
}

// Degraded reports whether the last sync fell back to session-local history.
func (s *Session) Degraded() bool {
	return s.degraded
}

// Sync flushes unflushed commands to the store, clears the buffer and
// reloads it from the store. It never returns an error: when the store
// cannot be used the session keeps its buffer and reports Degraded.
func (s *Session) Sync() SyncResult {
	var result SyncResult

	var pending []Entry
	for _, e := range s.entries {
		if !e.Flushed {
			pending = append(pending, e)
		}
	}

	if err := s.store.Append(pending); err != nil {
		s.setDegraded(err)
		result.Degraded = true
		result.Cause = err
		return result
	}
	result.Appended = len(pending)

	loaded, err := s.load()
	if err != nil {
		// Flushed commands are safe in the store; keep them visible locally.
		for i := range s.entries {
			s.entries[i].Flushed = true
		}
		s.setDegraded(err)
		result.Degraded = true
		result.Cause = err
		return result
	}

	s.entries = loaded
	result.Loaded = len(loaded)
	s.setHealthy()
	return result
}

// Reload replaces the buffer with the store's latest records without
// flushing. Unflushed commands survive the reload at the end of the buffer.
func (s *Session) Reload() error {
	loaded, err := s.load()
	if err != nil {
		return err
	}
	for _, e := range s.entries {
		if !e.Flushed {
			loaded = append(loaded, e)
		}
	}
	s.entries = loaded
	return nil
}

// Hook returns the callback an interactive shell runs after every command.
func (s *Session) Hook() func() {
	return func() {
		result := s.Sync()
		s.logger.Debug("post-command sync",
			zap.Int("appended", result.Appended),
			zap.Int("loaded", result.Loaded),
			zap.Bool("degraded", result.Degraded),
		)
	}
}

// End runs the final sync of a session. Callers invoke it on every exit
// path, including signals.
func (s *Session) End() SyncResult {
	result := s.Sync()
	if result.Degraded {
		s.logger.Warn("session ended with unsynced history",
			zap.Int("pending", s.Pending()),
			zap.Error(result.Cause),
		)
	}
	return result
}

// Import merges source into the store and reloads the session.
func (s *Session) Import(source string) (ImportResult, error) {
	result, err := s.store.Import(source)
	if err != nil {
		return result, err
	}
	if err := s.Reload(); err != nil {
		s.logger.Warn("failed to reload session after import", zap.Error(err))
	}
	return result, nil
}

func (s *Session) load() ([]Entry, error) {
	records, err := s.store.Tail(s.retention)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, Entry{Text: rec.Text, At: rec.Time(), Flushed: true})
	}
	return entries, nil
}

func (s *Session) setDegraded(err error) {
	if !s.degraded {
		s.logger.Warn("history store unavailable, keeping session-local history",
			zap.String("path", s.store.Path()),
			zap.Bool("unwritable", errors.Is(err, ErrUnwritableStore)),
			zap.Error(err),
		)
	}
	s.degraded = true
}

func (s *Session) setHealthy() {
	if s.degraded {
		s.logger.Info("history store reachable again", zap.String("path", s.store.Path()))
	}
	s.degraded = false
}

func normalizeCommand(text string) string {
	lines := strings.Split(text, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "; ")
}
