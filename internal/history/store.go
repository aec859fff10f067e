package history

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/sys/atomicwriter"
	"go.uber.org/zap"
)

// Store is the shared, append-only history file.
type Store struct {
	path      string
	backupDir string
	logger    *zap.Logger
	now       func() time.Time
}

// StoreOptions configures a Store. Only Path is required.
type StoreOptions struct {
	Path string

	// BackupDir defaults to the directory holding Path.
	BackupDir string

	Logger *zap.Logger
}

// Info describes the store file on disk.
type Info struct {
	Path     string
	Exists   bool
	Size     int64
	Records  int
	Markers  int
	Modified time.Time
}

func NewStore(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backupDir := opts.BackupDir
	if backupDir == "" {
		backupDir = filepath.Dir(opts.Path)
	}
	return &Store{
		path:      opts.Path,
		backupDir: backupDir,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the store file is present.
func (s *Store) Exists() bool {
	stat, err := os.Stat(s.path)
	return err == nil && !stat.IsDir()
}

// Open opens the store for reading. A missing file yields ErrMissingStore.
func (s *Store) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingStore, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return f, nil
}

// Append writes entries to the end of the store, each preceded by its own
// marker. All entries go out in a single write call so concurrent appenders
// interleave at entry-batch granularity at worst. The file and its parent
// directory are created when missing.
func (s *Store) Append(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, entry := range entries {
		at := entry.At
		if at.IsZero() {
			at = s.now()
		}
		buf.WriteString(MarkerLine(at))
		buf.WriteByte('\n')
		buf.WriteString(entry.Text)
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableStore, err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableStore, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", ErrUnwritableStore, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableStore, err)
	}

	s.logger.Debug("appended to history store", zap.String("path", s.path), zap.Int("entries", len(entries)))
	return nil
}

// Tail returns the last n records of the store.
func (s *Store) Tail(n int) ([]Record, error) {
	var records []Record
	err := s.read(func(r io.Reader) error {
		var err error
		records, err = Tail(r, n)
		return err
	})
	return records, err
}

// Info stats and counts the store. A missing store is reported with
// Exists=false rather than an error.
func (s *Store) Info() (Info, error) {
	info := Info{Path: s.path}
	stat, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("failed to stat history store: %w", err)
	}
	info.Exists = true
	info.Size = stat.Size()
	info.Modified = stat.ModTime()

	f, err := os.Open(s.path)
	if err != nil {
		return info, fmt.Errorf("failed to read history store: %w", err)
	}
	defer f.Close()

	err = scan(f, func(string) { info.Markers++ }, func(Record) error {
		info.Records++
		return nil
	})
	if err != nil {
		return info, fmt.Errorf("failed to read history store: %w", err)
	}
	return info, nil
}

// read runs fn over the store contents. A missing store is read as empty.
func (s *Store) read(fn func(io.Reader) error) error {
	f, err := s.Open()
	if errors.Is(err, ErrMissingStore) {
		return fn(strings.NewReader(""))
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// replace swaps the store content in a single rename so readers never see a
// partially written file. An append landing between the caller's read and the
// rename is lost. A symlinked store is replaced at its target, so the rename
// happens next to the real file and the link survives.
func (s *Store) replace(data []byte) error {
	target := s.targetPath()

	perm := os.FileMode(0600)
	if stat, err := os.Stat(target); err == nil {
		perm = stat.Mode().Perm()
	}
	if err := atomicwriter.WriteFile(target, data, perm); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableStore, err)
	}
	return nil
}

// targetPath follows a symlinked store path to the file it names, including
// a link whose target does not exist yet.
func (s *Store) targetPath() string {
	if resolved, err := filepath.EvalSymlinks(s.path); err == nil {
		return resolved
	}
	link, err := os.Readlink(s.path)
	if err != nil {
		return s.path
	}
	if !filepath.IsAbs(link) {
		link = filepath.Join(filepath.Dir(s.path), link)
	}
	return link
}
