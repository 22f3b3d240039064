package session

import (
	"testing"
	"time"
)

func TestCloseComputesWholeSeconds(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	slot := ActiveSlot{StartTime: start, PlannedMinutes: 25, Label: "Draft chapter"}

	s := slot.Close("id", start.Add(20*time.Minute+900*time.Millisecond), ReasonStoppedEarly)
	if s.ElapsedSeconds != 1200 {
		t.Errorf("ElapsedSeconds = %d, want 1200", s.ElapsedSeconds)
	}
	if s.EndReason != ReasonStoppedEarly || s.PlannedMinutes != 25 || s.Label != "Draft chapter" {
		t.Errorf("unexpected session %+v", s)
	}
}

func TestCloseClampsBackwardsClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	slot := ActiveSlot{StartTime: start, PlannedMinutes: 25}

	s := slot.Close("id", start.Add(-time.Hour), ReasonCompleted)
	if s.ElapsedSeconds != 0 {
		t.Errorf("ElapsedSeconds = %d, want 0", s.ElapsedSeconds)
	}
	if s.EndTime.Before(s.StartTime) {
		t.Errorf("EndTime %v before StartTime %v", s.EndTime, s.StartTime)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("clamped session should be valid: %v", err)
	}
}

func TestRemaining(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	slot := ActiveSlot{StartTime: start, PlannedMinutes: 25}

	if got := slot.Remaining(start.Add(10 * time.Minute)); got != 15*time.Minute {
		t.Errorf("Remaining = %v, want 15m", got)
	}
	if got := slot.Remaining(start.Add(30 * time.Minute)); got != -5*time.Minute {
		t.Errorf("Remaining = %v, want -5m", got)
	}
	if !slot.Deadline().Equal(start.Add(25 * time.Minute)) {
		t.Errorf("Deadline = %v", slot.Deadline())
	}
}

func TestNormalizeLabel(t *testing.T) {
	cases := []struct{ label, fallback, want string }{
		{"  Draft chapter ", "", "Draft chapter"},
		{"", "Deep work", "Deep work"},
		{"   ", "  ", DefaultLabel},
		{"", "", DefaultLabel},
	}
	for _, c := range cases {
		if got := NormalizeLabel(c.label, c.fallback); got != c.want {
			t.Errorf("NormalizeLabel(%q, %q) = %q, want %q", c.label, c.fallback, got, c.want)
		}
	}
}

func TestSessionValidate(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	good := Session{StartTime: start, EndTime: start, PlannedMinutes: 1}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid session rejected: %v", err)
	}

	bad := []Session{
		{EndTime: start, PlannedMinutes: 1},
		{StartTime: start, PlannedMinutes: 1},
		{StartTime: start, EndTime: start},
		{StartTime: start, EndTime: start, PlannedMinutes: 1, ElapsedSeconds: -1},
		{StartTime: start, EndTime: start, PlannedMinutes: 1, EndReason: ReasonCancelled},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, s)
		}
	}
}
