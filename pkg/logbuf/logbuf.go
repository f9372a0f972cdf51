// Package logbuf keeps the most recent log records in memory so the
// operator surface can serve them without touching files.
package logbuf

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Record is one retained log entry.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Logger    string    `json:"logger"`
	Module    string    `json:"module"`
	Function  string    `json:"function"`
	Line      int       `json:"line"`
	Message   string    `json:"message"`
}

// Sink is a logrus hook retaining a bounded ring of records.
type Sink struct {
	mu       sync.Mutex
	capacity int
	records  []Record
	next     int
	full     bool
}

// NewSink creates a sink retaining the last capacity records.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Sink{
		capacity: capacity,
		records:  make([]Record, capacity),
	}
}

// Levels implements logrus.Hook; every level is retained.
func (s *Sink) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (s *Sink) Fire(entry *logrus.Entry) error {
	rec := Record{
		Timestamp: entry.Time.UTC(),
		Level:     entry.Level.String(),
		Logger:    "snowglobe",
		Message:   entry.Message,
	}
	if name, ok := entry.Data["logger"].(string); ok {
		rec.Logger = name
	}
	if entry.Caller != nil {
		rec.Module = filepath.Base(filepath.Dir(entry.Caller.File))
		rec.Function = shortFunc(entry.Caller.Function)
		rec.Line = entry.Caller.Line
	}

	s.mu.Lock()
	s.records[s.next] = rec
	s.next = (s.next + 1) % s.capacity
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()
	return nil
}

// Recent returns up to limit records, newest first, optionally filtered by
// level ("" means all). limit <= 0 returns everything retained.
func (s *Sink) Recent(limit int, level string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.full {
		size = s.capacity
	}
	out := make([]Record, 0, size)
	for i := 0; i < size; i++ {
		// Walk backwards from the most recently written slot.
		idx := (s.next - 1 - i + s.capacity) % s.capacity
		rec := s.records[idx]
		if level != "" && !strings.EqualFold(rec.Level, level) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Len reports how many records are currently retained.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return s.capacity
	}
	return s.next
}

// NewLogger builds the process logger with the sink attached. Caller
// reporting is enabled so the sink captures function and line.
func NewLogger(level string, sink *Sink) *logrus.Logger {
	logger := logrus.New()
	logger.SetReportCaller(true)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	if sink != nil {
		logger.AddHook(sink)
	}
	return logger
}

func shortFunc(full string) string {
	if i := strings.LastIndex(full, "/"); i >= 0 {
		return full[i+1:]
	}
	return full
}
