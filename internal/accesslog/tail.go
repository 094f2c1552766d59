package accesslog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Tailer follows a log file the way tail -F does: it starts at the current
// end, streams appended lines and reopens the file after truncation or
// rotation.
type Tailer struct {
	path      string
	poll      time.Duration
	fromStart bool
	logger    *zap.Logger
}

// TailerOption configures a Tailer.
type TailerOption func(*Tailer)

// FromStart makes the tailer read existing content instead of seeking to
// the end on the first open.
func FromStart() TailerOption {
	return func(t *Tailer) {
		t.fromStart = true
	}
}

// NewTailer creates a tailer for path. poll bounds how long a missed
// filesystem notification can delay a line.
func NewTailer(path string, poll time.Duration, logger *zap.Logger, opts ...TailerOption) (*Tailer, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	t := &Tailer{
		path:   absPath,
		poll:   poll,
		logger: logger.With(zap.String("component", "tailer"), zap.String("file", absPath)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Run streams complete lines, without their terminator, to handle until ctx
// is cancelled. It returns nil on cancellation.
func (t *Tailer) Run(ctx context.Context, handle func(line string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Warn("file notifications unavailable; polling only", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(t.path)); err != nil {
			t.logger.Warn("failed to watch log directory; polling only", zap.Error(err))
		}
	}

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	seekEnd := !t.fromStart
	for {
		f, err := t.open(ctx, seekEnd)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		seekEnd = false

		reopen, err := t.follow(ctx, f, watcher, ticker.C, handle)
		_ = f.Close()
		if err != nil {
			return err
		}
		if !reopen {
			return nil
		}
		t.logger.Info("log file rotated or truncated; reopening")
	}
}

// open waits for the file to exist and opens it. A file that appears while
// waiting is read from the start.
func (t *Tailer) open(ctx context.Context, seekEnd bool) (*os.File, error) {
	for {
		f, err := os.Open(t.path)
		if err == nil {
			if seekEnd {
				if _, err := f.Seek(0, io.SeekEnd); err != nil {
					t.logger.Info("stream not seekable; reading from start", zap.Error(err))
				}
			}
			t.logger.Info("tailing log file", zap.Bool("from_end", seekEnd))
			return f, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", t.path, err)
		}

		t.logger.Info("waiting for log file")
		seekEnd = false
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.poll):
		}
	}
}

// follow reads f until ctx ends (false, nil) or the file must be reopened
// (true, nil).
func (t *Tailer) follow(ctx context.Context, f *os.File, watcher *fsnotify.Watcher, tick <-chan time.Time, handle func(string)) (bool, error) {
	var (
		events  <-chan fsnotify.Event
		errs    <-chan error
		reader  = bufio.NewReader(f)
		partial strings.Builder
	)
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		for {
			chunk, err := reader.ReadString('\n')
			if strings.HasSuffix(chunk, "\n") {
				partial.WriteString(chunk)
				handle(strings.TrimRight(partial.String(), "\r\n"))
				partial.Reset()
			} else if chunk != "" {
				partial.WriteString(chunk)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return false, fmt.Errorf("read %s: %w", t.path, err)
			}
		}

		if t.replaced(f, reader) {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, nil
		case <-tick:
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Name != t.path {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Create) != 0 {
				t.logger.Debug("log file event", zap.String("op", event.Op.String()))
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			t.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

// replaced reports whether the path now names a different file or the open
// file shrank below the read position.
func (t *Tailer) replaced(f *os.File, reader *bufio.Reader) bool {
	current, err := os.Stat(t.path)
	if err != nil {
		return false
	}
	opened, err := f.Stat()
	if err != nil {
		return true
	}
	if !os.SameFile(current, opened) {
		return true
	}

	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	return opened.Size() < pos-int64(reader.Buffered())
}
