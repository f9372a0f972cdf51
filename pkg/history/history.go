// Package history keeps a bounded in-memory record of executed
// statements plus the running counters behind /api/stats.
package history

import (
	"sync"
	"time"
)

// Entry is one executed statement.
type Entry struct {
	QueryID    string    `json:"query_id"`
	SessionID  string    `json:"session_id"`
	SQL        string    `json:"sql_text"`
	Status     string    `json:"status"` // "success" or "error"
	Error      string    `json:"error,omitempty"`
	Rows       int64     `json:"rows"`
	DurationMS float64   `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// Recorder is a fixed-capacity ring. When full, the oldest entry is
// overwritten. Reads return newest first.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool

	startedAt     time.Time
	total         int64
	succeeded     int64
	failed        int64
	totalDuration time.Duration
}

// New returns a recorder holding at most capacity entries.
func New(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 1
	}
	return &Recorder{
		entries:   make([]Entry, capacity),
		startedAt: time.Now().UTC(),
	}
}

// Record appends an entry and updates the counters.
func (r *Recorder) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
	r.total++
	if e.Status == "success" {
		r.succeeded++
	} else {
		r.failed++
	}
	r.totalDuration += time.Duration(e.DurationMS * float64(time.Millisecond))
}

// Recent returns up to limit entries, newest first. limit <= 0 returns
// everything retained.
func (r *Recorder) Recent(limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.next - 1 - i + len(r.entries)) % len(r.entries)
		out = append(out, r.entries[idx])
	}
	return out
}

// Clear drops retained entries. Counters keep accumulating; history is a
// window, the stats are for the life of the process.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
	r.full = false
}

// Len reports the number of retained entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// Stats is the /api/stats payload, sessions filled in by the caller.
type Stats struct {
	UptimeSeconds     float64   `json:"uptime_seconds"`
	ServerStartTime   time.Time `json:"server_start_time"`
	ActiveSessions    int       `json:"active_sessions"`
	TotalQueries      int64     `json:"total_queries"`
	SuccessfulQueries int64     `json:"successful_queries"`
	FailedQueries     int64     `json:"failed_queries"`
	AvgQueryDuration  float64   `json:"average_query_duration_ms"`
}

// Stats returns the current counters.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		UptimeSeconds:     time.Since(r.startedAt).Seconds(),
		ServerStartTime:   r.startedAt,
		TotalQueries:      r.total,
		SuccessfulQueries: r.succeeded,
		FailedQueries:     r.failed,
	}
	if r.total > 0 {
		s.AvgQueryDuration = float64(r.totalDuration.Milliseconds()) / float64(r.total)
	}
	return s
}
