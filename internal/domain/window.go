package domain

import "time"

// Phase is the coarse classification of a point in time against a window
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"
)

// Window is the interval during which an activity accepts participant interaction
type Window struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// NewWindow builds a window, rejecting empty and inverted intervals
func NewWindow(start, end time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start, End: end}, nil
}

// WindowStatus is the result of evaluating a window at a given instant
type WindowStatus struct {
	HasStarted bool          `json:"has_started"`
	HasEnded   bool          `json:"has_ended"`
	Remaining  time.Duration `json:"-"`
}

// Evaluate classifies now against the window.
// Before the start the remaining duration counts down to the start, while
// active it counts down to the end, and after the end it is zero.
func (w Window) Evaluate(now time.Time) WindowStatus {
	switch {
	case now.Before(w.Start):
		return WindowStatus{Remaining: w.Start.Sub(now)}
	case !now.After(w.End):
		return WindowStatus{HasStarted: true, Remaining: w.End.Sub(now)}
	default:
		return WindowStatus{HasEnded: true}
	}
}

// Clamp limits t to the end of the window
func (w Window) Clamp(t time.Time) time.Time {
	if t.After(w.End) {
		return w.End
	}
	return t
}

// Phase returns exactly one of not started, active or ended
func (s WindowStatus) Phase() Phase {
	switch {
	case s.HasEnded:
		return PhaseEnded
	case s.HasStarted:
		return PhaseActive
	default:
		return PhaseNotStarted
	}
}

// RemainingSeconds returns the remaining duration in whole seconds
func (s WindowStatus) RemainingSeconds() int64 {
	return int64(s.Remaining / time.Second)
}
