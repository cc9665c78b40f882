package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewWindowRejectsInvertedInterval(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := NewWindow(start, start); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for empty window, got %v", err)
	}
	if _, err := NewWindow(start, start.Add(-time.Minute)); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for inverted window, got %v", err)
	}
}

func TestWindowEvaluate(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w, err := NewWindow(start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("new window: %v", err)
	}

	tests := []struct {
		name      string
		now       time.Time
		phase     Phase
		remaining int64
	}{
		{"before start", start.Add(-90 * time.Second), PhaseNotStarted, 90},
		{"at start", start, PhaseActive, 3600},
		{"midway", start.Add(45 * time.Minute), PhaseActive, 900},
		{"at end", start.Add(time.Hour), PhaseActive, 0},
		{"after end", start.Add(time.Hour + time.Nanosecond), PhaseEnded, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := w.Evaluate(tt.now)
			if status.Phase() != tt.phase {
				t.Fatalf("expected phase %s, got %s", tt.phase, status.Phase())
			}
			if status.RemainingSeconds() != tt.remaining {
				t.Fatalf("expected %d seconds remaining, got %d", tt.remaining, status.RemainingSeconds())
			}
			if status.HasStarted && status.HasEnded {
				t.Fatal("a window cannot be both started and ended")
			}
		})
	}
}

func TestWindowClamp(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w, _ := NewWindow(start, start.Add(time.Hour))

	if got := w.Clamp(start.Add(2 * time.Hour)); !got.Equal(w.End) {
		t.Fatalf("expected clamp to end, got %s", got)
	}
	inside := start.Add(time.Minute)
	if got := w.Clamp(inside); !got.Equal(inside) {
		t.Fatalf("expected %s unchanged, got %s", inside, got)
	}
}
