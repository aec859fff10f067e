package history

import "errors"

var (
	// ErrUsage marks invalid caller input such as an empty search pattern.
	ErrUsage = errors.New("usage error")

	// ErrMissingStore is returned when the shared history file does not exist.
	ErrMissingStore = errors.New("history store does not exist")

	// ErrUnwritableStore is returned when the filesystem refuses a write to
	// the store or its directory.
	ErrUnwritableStore = errors.New("history store is not writable")
)
