package history

import (
	"fmt"
	"testing"
)

func TestRecentNewestFirst(t *testing.T) {
	r := New(10)
	for i := 0; i < 3; i++ {
		r.Record(Entry{QueryID: fmt.Sprintf("q%d", i), Status: "success"})
	}
	got := r.Recent(0)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	for i, want := range []string{"q2", "q1", "q0"} {
		if got[i].QueryID != want {
			t.Errorf("entry %d = %s, want %s", i, got[i].QueryID, want)
		}
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := New(3)
	for i := 0; i < 5; i++ {
		r.Record(Entry{QueryID: fmt.Sprintf("q%d", i), Status: "success"})
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	got := r.Recent(0)
	for i, want := range []string{"q4", "q3", "q2"} {
		if got[i].QueryID != want {
			t.Errorf("entry %d = %s, want %s", i, got[i].QueryID, want)
		}
	}
}

func TestRecentLimit(t *testing.T) {
	r := New(10)
	for i := 0; i < 6; i++ {
		r.Record(Entry{QueryID: fmt.Sprintf("q%d", i), Status: "success"})
	}
	got := r.Recent(2)
	if len(got) != 2 || got[0].QueryID != "q5" || got[1].QueryID != "q4" {
		t.Errorf("Recent(2) = %v", got)
	}
}

func TestStatsCounters(t *testing.T) {
	r := New(4)
	r.Record(Entry{Status: "success", DurationMS: 10})
	r.Record(Entry{Status: "success", DurationMS: 30})
	r.Record(Entry{Status: "error", DurationMS: 20})

	s := r.Stats()
	if s.TotalQueries != 3 || s.SuccessfulQueries != 2 || s.FailedQueries != 1 {
		t.Errorf("counters = %d/%d/%d, want 3/2/1", s.TotalQueries, s.SuccessfulQueries, s.FailedQueries)
	}
	if s.AvgQueryDuration != 20 {
		t.Errorf("avg duration = %v, want 20", s.AvgQueryDuration)
	}
	if s.UptimeSeconds < 0 {
		t.Errorf("uptime = %v, want >= 0", s.UptimeSeconds)
	}
}

// Clearing history keeps lifetime counters intact.
func TestClearKeepsCounters(t *testing.T) {
	r := New(4)
	r.Record(Entry{Status: "success", DurationMS: 5})
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len after clear = %d, want 0", r.Len())
	}
	if s := r.Stats(); s.TotalQueries != 1 {
		t.Errorf("TotalQueries after clear = %d, want 1", s.TotalQueries)
	}
}
