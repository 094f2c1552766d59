package accesslog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func startTailer(t *testing.T, path string, opts ...TailerOption) <-chan string {
	t.Helper()

	tailer, err := NewTailer(path, 10*time.Millisecond, zaptest.NewLogger(t), opts...)
	if err != nil {
		t.Fatalf("NewTailer returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	lines := make(chan string, 64)
	done := make(chan error, 1)
	go func() {
		done <- tailer.Run(ctx, func(line string) {
			lines <- line
		})
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("tailer did not stop after cancellation")
		}
	})
	return lines
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func expectLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()

	select {
	case got := <-lines:
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestTailerFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	appendLine(t, path, "pool=blue status=200\npool=green status=502\r\n")

	lines := startTailer(t, path, FromStart())

	expectLine(t, lines, "pool=blue status=200")
	expectLine(t, lines, "pool=green status=502")
}

func TestTailerSkipsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	appendLine(t, path, "old\n")

	lines := startTailer(t, path)

	deadline := time.After(2 * time.Second)
	for {
		appendLine(t, path, "new\n")
		select {
		case got := <-lines:
			if got != "new" {
				t.Fatalf("expected only appended lines, got %q", got)
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for appended line")
		}
	}
}

func TestTailerJoinsPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	appendLine(t, path, "")

	lines := startTailer(t, path, FromStart())

	appendLine(t, path, "pool=bl")
	time.Sleep(30 * time.Millisecond)
	appendLine(t, path, "ue status=200\n")

	expectLine(t, lines, "pool=blue status=200")
}

func TestTailerWaitsForFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.log")

	lines := startTailer(t, path)

	time.Sleep(30 * time.Millisecond)
	appendLine(t, path, "first\n")

	expectLine(t, lines, "first")
}

func TestTailerHandlesTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	appendLine(t, path, "a fairly long first line\n")

	lines := startTailer(t, path, FromStart())
	expectLine(t, lines, "a fairly long first line")

	if err := os.WriteFile(path, []byte("b\n"), 0o600); err != nil {
		t.Fatalf("truncate log: %v", err)
	}

	expectLine(t, lines, "b")
}

func TestTailerHandlesRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	appendLine(t, path, "before\n")

	lines := startTailer(t, path, FromStart())
	expectLine(t, lines, "before")

	if err := os.Rename(path, filepath.Join(dir, "access.log.1")); err != nil {
		t.Fatalf("rotate log: %v", err)
	}
	appendLine(t, path, "after\n")

	expectLine(t, lines, "after")
}
