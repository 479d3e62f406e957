package storage

import (
	"errors"
	"time"
)

// ErrClosed is returned by writes to a store that has been closed.
var ErrClosed = errors.New("storage: store closed")

// Record is one journaled gateway dispatch.
type Record struct {
	Seq        uint64
	RecordedAt time.Time
	Type       string
	GatewaySeq int64
	Data       []byte // raw dispatch payload
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Type  string
	Since time.Time
	Limit int // newest Limit matches; 0 = no limit
}

// Store is the persistence interface for the event journal.
type Store interface {
	// Append assigns rec a sequence number and persists it. A zero
	// RecordedAt is stamped with the current time.
	Append(rec Record) (uint64, error)

	// List returns matching records oldest first.
	List(f Filter) ([]Record, error)

	// Janitor helpers
	PruneOlderThan(cutoff time.Time) (int, error)
	Count() (int, error)

	// Utility
	SizeBytes() (int64, error)
	Close() error
}
