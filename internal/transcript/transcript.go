// Package transcript appends conversation turns to per-session NDJSON
// files. Writes happen on a background goroutine so a slow disk never
// blocks message handling; when the queue is full, events are dropped with
// a warning rather than backpressuring the pipeline.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one NDJSON line.
type Event struct {
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger writes transcripts asynchronously. The zero-value-like disabled
// logger accepts and discards everything.
type Logger struct {
	enabled bool
	dir     string
	log     *slog.Logger

	queue chan Event

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a transcript logger. With Enabled false it is a no-op.
func New(cfg Config, log *slog.Logger) (*Logger, error) {
	l := &Logger{enabled: cfg.Enabled, dir: cfg.Dir, log: log, done: make(chan struct{})}
	if !cfg.Enabled {
		close(l.done)
		return l, nil
	}

	if cfg.Dir == "" {
		return nil, fmt.Errorf("transcript dir is required when transcripts are enabled")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	l.queue = make(chan Event, size)
	go l.run()
	return l, nil
}

// Record queues one conversation turn.
func (l *Logger) Record(sessionID, sender, text string) {
	if !l.enabled {
		return
	}
	ev := Event{SessionID: sessionID, Sender: sender, Text: text, Timestamp: time.Now()}
	select {
	case l.queue <- ev:
	default:
		l.log.Warn("transcript queue full, dropping event", "session_id", sessionID)
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for ev := range l.queue {
		if err := l.append(ev); err != nil {
			l.log.Warn("transcript write failed", "session_id", ev.SessionID, "error", err)
		}
	}
}

func (l *Logger) append(ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	path := filepath.Join(l.dir, ev.SessionID+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// Close stops the writer after draining queued events.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		if l.queue != nil {
			close(l.queue)
		}
	})
	<-l.done
	return nil
}
