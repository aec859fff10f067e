package history

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/atomicwriter"
	"go.uber.org/zap"
)

const (
	backupTimeLayout = "20060102_150405"

	// maxBackupSuffix bounds the -N suffixes tried within one second.
	maxBackupSuffix = 1000
)

// BackupResult names the snapshot written by Backup.
type BackupResult struct {
	Path string
	Size int64
}

// ImportResult describes a merge. Adopted is true when no store existed and
// the source was taken over verbatim.
type ImportResult struct {
	Source  string
	Backup  *BackupResult
	Adopted bool
	Lines   int
	Removed int
}

// Backup copies the store to <backupDir>/<name>.backup.<YYYYmmdd_HHMMSS>.
// The store itself is never touched.
func (s *Store) Backup() (BackupResult, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return BackupResult{}, fmt.Errorf("%w: nothing to back up", ErrMissingStore)
	}
	if err != nil {
		return BackupResult{}, fmt.Errorf("failed to read history store: %w", err)
	}

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return BackupResult{}, fmt.Errorf("%w: %w", ErrUnwritableStore, err)
	}

	base := filepath.Join(s.backupDir, filepath.Base(s.path)+".backup."+s.now().Format(backupTimeLayout))
	target, err := freeBackupPath(base)
	if err != nil {
		return BackupResult{}, err
	}

	if err := atomicwriter.WriteFile(target, data, 0600); err != nil {
		return BackupResult{}, fmt.Errorf("%w: %w", ErrUnwritableStore, err)
	}

	s.logger.Info("backed up history store", zap.String("backup", target), zap.Int("bytes", len(data)))
	return BackupResult{Path: target, Size: int64(len(data))}, nil
}

// Import merges the history file at source into the store. An existing
// store is backed up first, then the lines of both files are unioned with
// exact duplicate lines removed. This works on lines, not records: a command
// whose marker line was dropped as a duplicate ends up under whichever
// marker precedes it in the merged file.
func (s *Store) Import(source string) (ImportResult, error) {
	result := ImportResult{Source: source}

	incoming, err := os.ReadFile(source)
	if errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("%w: import source %s does not exist", ErrUsage, source)
	}
	if err != nil {
		return result, fmt.Errorf("failed to read import source: %w", err)
	}

	current, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(s.targetPath()), 0755); err != nil {
			return result, fmt.Errorf("%w: %w", ErrUnwritableStore, err)
		}
		if err := s.replace(incoming); err != nil {
			return result, err
		}
		result.Adopted = true
		result.Lines = countLines(incoming)
		s.logger.Info("adopted import source as history store", zap.String("source", source))
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("failed to read history store: %w", err)
	}

	backup, err := s.Backup()
	if err != nil {
		return result, fmt.Errorf("backup before import failed: %w", err)
	}
	result.Backup = &backup

	merged, lines, removed := unionLines(current, incoming)
	if err := s.replace(merged); err != nil {
		return result, err
	}
	result.Lines = lines
	result.Removed = removed

	s.logger.Info("imported history",
		zap.String("source", source),
		zap.Int("lines", lines),
		zap.Int("removed", removed),
	)
	return result, nil
}

// freeBackupPath returns base, or base-N for the first N not taken.
func freeBackupPath(base string) (string, error) {
	target := base
	for i := 1; i <= maxBackupSuffix; i++ {
		_, err := os.Lstat(target)
		if errors.Is(err, os.ErrNotExist) {
			return target, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnwritableStore, err)
		}
		target = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("%w: too many backups named %s", ErrUnwritableStore, base)
}

// unionLines concatenates the files and drops repeated lines, keeping the
// first occurrence.
func unionLines(files ...[]byte) ([]byte, int, int) {
	var buf bytes.Buffer
	seen := make(map[string]struct{})
	kept, removed := 0, 0

	for _, data := range files {
		for _, line := range splitLines(data) {
			if _, dup := seen[line]; dup {
				removed++
				continue
			}
			seen[line] = struct{}{}
			buf.WriteString(line)
			buf.WriteByte('\n')
			kept++
		}
	}
	return buf.Bytes(), kept, removed
}

func splitLines(data []byte) []string {
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func countLines(data []byte) int {
	return len(splitLines(data))
}
