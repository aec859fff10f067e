package history

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Journal is the machine-local SQLite copy of commands run in local
// sessions. It keeps history usable when the shared store is missing or
// unwritable.
type Journal struct {
	db   *gorm.DB
	path string
}

type JournalEntry struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`

	Command   string
	Directory string
	ExitCode  sql.NullInt32
}

const (
	journalSchemaVersion = 1
	inMemoryJournal      = ":memory:"
)

// OpenJournal opens or creates the journal at dbFilePath. ":memory:" gives a
// throwaway journal.
func OpenJournal(dbFilePath string) (*Journal, error) {
	dbFileExists := true
	if dbFilePath == inMemoryJournal {
		dbFileExists = false
	} else if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		dbFileExists = false
	} else if err != nil {
		return nil, fmt.Errorf("error checking journal db: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening journal db: %w", err)
	}

	if dbFilePath == inMemoryJournal {
		// Every pooled connection would otherwise get its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	j := &Journal{db: db, path: dbFilePath}
	if j.needsMigration(dbFileExists) {
		if err := db.AutoMigrate(&JournalEntry{}); err != nil {
			return nil, fmt.Errorf("error migrating journal schema: %w", err)
		}
		if err := j.writeSchemaVersion(journalSchemaVersion); err != nil {
			return nil, fmt.Errorf("error writing journal schema version: %w", err)
		}
	}

	return j, nil
}

func (j *Journal) needsMigration(dbFileExists bool) bool {
	if !dbFileExists {
		return true
	}

	versionMatches, err := j.schemaVersionMatches()
	if err != nil || !versionMatches {
		return true
	}

	// The version marker can outlive a deleted table.
	return !j.db.Migrator().HasTable(&JournalEntry{})
}

func (j *Journal) schemaVersionPath() string {
	return j.path + ".version"
}

func (j *Journal) writeSchemaVersion(version int) error {
	if j.path == inMemoryJournal {
		return nil
	}
	return os.WriteFile(j.schemaVersionPath(), []byte(strconv.Itoa(version)), 0644)
}

func (j *Journal) schemaVersionMatches() (bool, error) {
	data, err := os.ReadFile(j.schemaVersionPath())
	if err != nil {
		return false, err
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, err
	}
	if version != journalSchemaVersion {
		return false, fmt.Errorf("journal schema version mismatch: got %d, want %d", version, journalSchemaVersion)
	}
	return true, nil
}

// Record stores one command.
func (j *Journal) Record(command string, directory string, exitCode sql.NullInt32, at time.Time) error {
	entry := JournalEntry{
		CreatedAt: at,
		Command:   command,
		Directory: directory,
		ExitCode:  exitCode,
	}
	return j.db.Create(&entry).Error
}

// RecentEntries returns up to limit entries, oldest first.
func (j *Journal) RecentEntries(limit int) ([]JournalEntry, error) {
	var entries []JournalEntry
	result := j.db.Order("created_at desc").Order("id desc").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	slices.Reverse(entries)
	return entries, nil
}

// Count returns the number of journaled commands.
func (j *Journal) Count() (int64, error) {
	var n int64
	err := j.db.Model(&JournalEntry{}).Count(&n).Error
	return n, err
}

// Export renders the newest limit entries in store format so the search,
// statistics and recent engines can read the journal unchanged.
func (j *Journal) Export(w io.Writer, limit int) (int64, error) {
	entries, err := j.RecentEntries(limit)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	for _, entry := range entries {
		buf.WriteString(MarkerLine(entry.CreatedAt))
		buf.WriteByte('\n')
		buf.WriteString(entry.Command)
		buf.WriteByte('\n')
	}
	return buf.WriteTo(w)
}

// Close releases the database handle.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
