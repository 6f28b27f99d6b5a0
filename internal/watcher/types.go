// Package watcher detects filesystem changes under the configured library
// roots and emits debounced event batches. A batch is a hint that an
// incremental rescan is due; consumers never act on individual events.
package watcher

import (
	"time"
)

// Operation is the kind of filesystem change observed.
type Operation int

const (
	// OpCreate indicates a new file or directory appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file changed.
	OpModify
	// OpDelete indicates a file or directory was removed.
	OpDelete
	// OpRename indicates a file or directory was renamed away.
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed filesystem change.
type FileEvent struct {
	// Path is absolute.
	Path string

	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures watching behavior.
type Options struct {
	// Debounce is how long to wait after the last event before emitting a
	// coalesced batch.
	Debounce time.Duration

	// PollInterval is the scan interval when native watching is
	// unavailable and the watcher falls back to polling.
	PollInterval time.Duration

	// EventBufferSize is the batch channel buffer.
	EventBufferSize int

	// ExcludeDirs are directory names never descended into.
	ExcludeDirs []string
}

// WithDefaults fills zero values with defaults.
func (o Options) WithDefaults() Options {
	if o.Debounce == 0 {
		o.Debounce = 2 * time.Second
	}
	if o.PollInterval == 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = 64
	}
	if o.ExcludeDirs == nil {
		o.ExcludeDirs = []string{".git", ".scenarium", "node_modules", "__pycache__"}
	}
	return o
}
