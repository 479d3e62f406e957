package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/events"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/config"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/storage"
)

// TestRootSubcommands verifies all expected subcommands are registered.
func TestRootSubcommands(t *testing.T) {
	root := newRoot()

	registered := make(map[string]bool)
	for _, cmd := range root.Commands() {
		registered[cmd.Name()] = true
	}

	for _, want := range []string{"run", "tail", "journal", "healthcheck", "version"} {
		if !registered[want] {
			t.Errorf("subcommand %q not registered on root command", want)
		}
	}
}

// TestVersionOutput verifies the version subcommand prints the binary name.
func TestVersionOutput(t *testing.T) {
	var buf bytes.Buffer
	root := newRoot()
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version command returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "discordbot dev") {
		t.Errorf("version output %q does not contain %q", buf.String(), "discordbot dev")
	}
}

// TestRunDaemonMissingConfig verifies runDaemon returns an error (not panics)
// when DISCORD_TOKEN is not set.
func TestRunDaemonMissingConfig(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_TOKEN_FILE", "")

	if err := runDaemon(); err == nil {
		t.Fatal("expected runDaemon() to return an error when DISCORD_TOKEN is missing")
	}
}

// TestLoadMissingRequired verifies config.Load names the missing variable.
func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_TOKEN_FILE", "")

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected config.Load() to return an error with missing required vars")
	}
	if !strings.Contains(err.Error(), "DISCORD_TOKEN") {
		t.Errorf("expected error message to mention DISCORD_TOKEN; got: %v", err)
	}
}

// TestJournalCommand verifies records written to DATA_DIR are listed as JSON lines.
func TestJournalCommand(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewBboltStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = store.Append(storage.Record{Type: "MESSAGE_CREATE", GatewaySeq: 4, Data: []byte(`{"id":"m1"}`)})
	_, _ = store.Append(storage.Record{Type: "TYPING_START", GatewaySeq: 5})
	store.Close()

	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DATA_DIR", dir)

	var buf bytes.Buffer
	root := newRoot()
	root.SetOut(&buf)
	root.SetArgs([]string{"journal", "--type", "MESSAGE_CREATE"})
	if err := root.Execute(); err != nil {
		t.Fatalf("journal command: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected one line, got: %q", out)
	}
	if !strings.Contains(out, `"t":"MESSAGE_CREATE"`) || !strings.Contains(out, `"d":{"id":"m1"}`) {
		t.Errorf("unexpected journal output: %q", out)
	}
}

// TestPrintEvents verifies events are encoded one per line until the channel closes.
func TestPrintEvents(t *testing.T) {
	in := make(chan events.Event, 2)
	in <- events.Event{Type: "MESSAGE_CREATE", Sequence: 1, Data: []byte(`{"id":"m1"}`)}
	in <- events.Event{Type: "RESUMED", Sequence: 2}
	close(in)

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := printEvents(ctx, in, &buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got: %q", buf.String())
	}
	if lines[0] != `{"t":"MESSAGE_CREATE","s":1,"d":{"id":"m1"}}` {
		t.Errorf("unexpected first line: %s", lines[0])
	}
	if lines[1] != `{"t":"RESUMED","s":2,"d":null}` {
		t.Errorf("unexpected second line: %s", lines[1])
	}
}
