package testutil

import (
	"slices"
	"sync"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/internal/storage"
)

// MockStore implements storage.Store with an in-memory slice for testing.
// All methods are safe for concurrent use.
type MockStore struct {
	mu      sync.Mutex
	records []storage.Record
	seq     uint64
	closed  bool

	// Error injection: method -> next error (consumed on first call)
	errors map[string]error

	// SizeBytes value returned by SizeBytes()
	Size int64
}

// NewMockStore returns a zero-state MockStore ready for use.
func NewMockStore() *MockStore {
	return &MockStore{
		errors: make(map[string]error),
		Size:   1024,
	}
}

// SetError injects an error to be returned on the next call to the named method.
func (m *MockStore) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

func (m *MockStore) popError(method string) error {
	err := m.errors[method]
	delete(m.errors, method)
	return err
}

// Records returns a copy of everything appended so far, in append order.
func (m *MockStore) Records() []storage.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

// Closed reports whether Close has been called.
func (m *MockStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// --- Journal operations -----------------------------------------------------

func (m *MockStore) Append(rec storage.Record) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popError("Append"); err != nil {
		return 0, err
	}
	if m.closed {
		return 0, storage.ErrClosed
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	rec.RecordedAt = rec.RecordedAt.UTC()
	m.seq++
	rec.Seq = m.seq
	m.records = append(m.records, rec)
	return rec.Seq, nil
}

func (m *MockStore) List(f storage.Filter) ([]storage.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popError("List"); err != nil {
		return nil, err
	}
	sorted := slices.Clone(m.records)
	slices.SortStableFunc(sorted, func(a, b storage.Record) int {
		return a.RecordedAt.Compare(b.RecordedAt)
	})
	var out []storage.Record
	for _, r := range sorted {
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if !f.Since.IsZero() && r.RecordedAt.Before(f.Since) {
			continue
		}
		out = append(out, r)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

// --- Janitor ----------------------------------------------------------------

func (m *MockStore) PruneOlderThan(cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popError("PruneOlderThan"); err != nil {
		return 0, err
	}
	before := len(m.records)
	m.records = slices.DeleteFunc(m.records, func(r storage.Record) bool {
		return r.RecordedAt.Before(cutoff)
	})
	return before - len(m.records), nil
}

func (m *MockStore) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popError("Count"); err != nil {
		return 0, err
	}
	return len(m.records), nil
}

// --- Utility ----------------------------------------------------------------

func (m *MockStore) SizeBytes() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popError("SizeBytes"); err != nil {
		return 0, err
	}
	return m.Size, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popError("Close"); err != nil {
		return err
	}
	m.closed = true
	return nil
}

var _ storage.Store = (*MockStore)(nil)
