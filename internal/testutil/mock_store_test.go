package testutil_test

import (
	"errors"
	"testing"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/internal/storage"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/testutil"
)

// TestMockStore_AppendList covers Append sequencing and List filters.
func TestMockStore_AppendList(t *testing.T) {
	t.Run("append assigns increasing seq", func(t *testing.T) {
		s := testutil.NewMockStore()
		for i := 1; i <= 3; i++ {
			seq, err := s.Append(storage.Record{Type: "MESSAGE_CREATE"})
			if err != nil {
				t.Fatalf("Append: %v", err)
			}
			if seq != uint64(i) {
				t.Fatalf("expected seq %d, got: %d", i, seq)
			}
		}
	})

	t.Run("list filters by type and since", func(t *testing.T) {
		s := testutil.NewMockStore()
		now := time.Now()
		_, _ = s.Append(storage.Record{Type: "A", RecordedAt: now.Add(-time.Hour)})
		_, _ = s.Append(storage.Record{Type: "B", RecordedAt: now})
		_, _ = s.Append(storage.Record{Type: "A", RecordedAt: now})

		got, err := s.List(storage.Filter{Type: "A"})
		if err != nil || len(got) != 2 {
			t.Fatalf("expected 2 A records, got: %d (%v)", len(got), err)
		}
		got, _ = s.List(storage.Filter{Since: now.Add(-time.Minute)})
		if len(got) != 2 {
			t.Fatalf("expected 2 recent records, got: %d", len(got))
		}
		got, _ = s.List(storage.Filter{Limit: 1})
		if len(got) != 1 || got[0].Type != "A" || got[0].Seq != 3 {
			t.Fatalf("expected newest record, got: %+v", got)
		}
	})
}

// TestMockStore_Prune verifies PruneOlderThan and Count.
func TestMockStore_Prune(t *testing.T) {
	s := testutil.NewMockStore()
	now := time.Now()
	_, _ = s.Append(storage.Record{Type: "A", RecordedAt: now.Add(-2 * time.Hour)})
	_, _ = s.Append(storage.Record{Type: "B", RecordedAt: now})

	n, err := s.PruneOlderThan(now.Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 pruned, got: %d (%v)", n, err)
	}
	count, _ := s.Count()
	if count != 1 {
		t.Fatalf("expected 1 left, got: %d", count)
	}
}

// TestMockStore_ErrorInjection verifies injected errors fire once.
func TestMockStore_ErrorInjection(t *testing.T) {
	s := testutil.NewMockStore()
	boom := errors.New("boom")
	s.SetError("Append", boom)

	if _, err := s.Append(storage.Record{Type: "A"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got: %v", err)
	}
	if _, err := s.Append(storage.Record{Type: "A"}); err != nil {
		t.Fatalf("expected error consumed, got: %v", err)
	}
	if len(s.Records()) != 1 {
		t.Fatalf("expected 1 record after retry, got: %d", len(s.Records()))
	}

	s.SetError("SizeBytes", boom)
	if _, err := s.SizeBytes(); err == nil {
		t.Fatal("expected SizeBytes error")
	}
	size, _ := s.SizeBytes()
	if size != 1024 {
		t.Fatalf("expected default size 1024, got: %d", size)
	}
}

// TestMockStore_Close records the close call.
func TestMockStore_Close(t *testing.T) {
	s := testutil.NewMockStore()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !s.Closed() {
		t.Error("expected Closed() true after Close")
	}
	if _, err := s.Append(storage.Record{Type: "MESSAGE_CREATE"}); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got: %v", err)
	}
}
