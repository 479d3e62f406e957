package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestWatchTokenAppliesChange verifies a rewritten token file reaches apply.
func TestWatchTokenAppliesChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("first\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchToken(ctx, path, 10*time.Millisecond, func(tok string) { got <- tok }, zerolog.Nop())
	}()

	// Give the watcher a poll to snapshot the file before changing it.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("second-token\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case tok := <-got:
		if tok != "second-token" {
			t.Errorf("expected trimmed new token, got: %q", tok)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected token change to be applied")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on cancel, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

// TestWatchTokenMissingFile verifies a bad path fails up front.
func TestWatchTokenMissingFile(t *testing.T) {
	err := watchToken(context.Background(), filepath.Join(t.TempDir(), "absent"), time.Second, func(string) {}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error for missing token file")
	}
}
