package core

import (
	"os"
	"path/filepath"
)

type Paths struct {
	HomeDir     string
	DataDir     string
	LogFile     string
	ConfigFile  string
	JournalFile string
	StoreFile   string
}

var defaultPaths *Paths

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}

		defaultPaths = &Paths{
			HomeDir:     homeDir,
			DataDir:     filepath.Join(homeDir, ".unihist"),
			LogFile:     filepath.Join(homeDir, ".unihist", "unihist.log"),
			ConfigFile:  filepath.Join(homeDir, ".unihist", "config.yaml"),
			JournalFile: filepath.Join(homeDir, ".unihist", "journal.db"),
			StoreFile:   filepath.Join(homeDir, ".unified_history"),
		}

		err = os.MkdirAll(defaultPaths.DataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func HomeDir() string {
	ensureDefaultPaths()
	return defaultPaths.HomeDir
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

func ConfigFile() string {
	ensureDefaultPaths()
	return defaultPaths.ConfigFile
}

func JournalFile() string {
	ensureDefaultPaths()
	return defaultPaths.JournalFile
}

// StoreFile is the default shared history location. Machines that share a
// network home directory see the same file.
func StoreFile() string {
	ensureDefaultPaths()
	return defaultPaths.StoreFile
}

// ResetPaths clears the cached paths, forcing them to be reinitialized.
// This is primarily used for testing purposes.
func ResetPaths() {
	defaultPaths = nil
}
