package transcript

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Record("sess-1", "user", "track my order 45")
	logger.Record("sess-1", "bot", "Order #45 has been shipped and is on the way.")

	path := filepath.Join(dir, "sess-1.ndjson")
	lines := waitForLogLines(t, path, 2)

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if first.Sender != "user" || first.Text != "track my order 45" {
		t.Fatalf("unexpected first event: %+v", first)
	}

	var second Event
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if second.Sender != "bot" {
		t.Fatalf("unexpected second event: %+v", second)
	}
}

func TestLoggerSeparatesSessions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 16}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Record("a", "user", "hello")
	logger.Record("b", "user", "hi")

	waitForLogLines(t, filepath.Join(dir, "a.ndjson"), 1)
	waitForLogLines(t, filepath.Join(dir, "b.ndjson"), 1)
}

func TestDisabledLoggerIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Enabled: false}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Record("sess-1", "user", "hello")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 64}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		logger.Record("drain", "user", "message")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "drain.ndjson"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 10 {
		t.Fatalf("line count = %d, want 10", len(lines))
	}
}

func waitForLogLines(t *testing.T, path string, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) >= want {
				return lines
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines in %s", want, path)
	return nil
}
