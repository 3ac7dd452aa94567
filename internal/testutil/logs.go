// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// LogRecord is one decoded log line.
type LogRecord struct {
	Level   string
	Message string
	Attrs   map[string]any
}

// LogBuffer captures JSON log output for assertions.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// NewLogger returns a debug-level logger writing into a LogBuffer.
func NewLogger() (*slog.Logger, *LogBuffer) {
	b := &LogBuffer{}
	return slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug})), b
}

// Records decodes every line written so far.
func (b *LogBuffer) Records() []LogRecord {
	b.mu.Lock()
	data := append([]byte(nil), b.buf.Bytes()...)
	b.mu.Unlock()

	var out []LogRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var raw map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue
		}
		rec := LogRecord{Attrs: map[string]any{}}
		for k, v := range raw {
			switch k {
			case slog.LevelKey:
				rec.Level, _ = v.(string)
			case slog.MessageKey:
				rec.Message, _ = v.(string)
			case slog.TimeKey:
			default:
				rec.Attrs[k] = v
			}
		}
		out = append(out, rec)
	}
	return out
}

// Filter returns the records at level whose message contains substr.
func (b *LogBuffer) Filter(level slog.Level, substr string) []LogRecord {
	var out []LogRecord
	for _, rec := range b.Records() {
		if rec.Level == level.String() && strings.Contains(rec.Message, substr) {
			out = append(out, rec)
		}
	}
	return out
}

// Count is len(Filter(level, substr)).
func (b *LogBuffer) Count(level slog.Level, substr string) int {
	return len(b.Filter(level, substr))
}
