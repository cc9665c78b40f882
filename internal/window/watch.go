// Package window drives periodic re-evaluation of activity windows.
package window

import (
	"context"
	"fmt"
	"time"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// Clock reports the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Interval is the production re-evaluation cadence
const Interval = time.Second

// Watch evaluates w immediately and then every interval, handing each status
// to fn, until ctx is cancelled. It blocks; run it in its own goroutine and
// cancel ctx when the owner goes away.
func Watch(ctx context.Context, clock Clock, w domain.Window, interval time.Duration, fn func(domain.WindowStatus)) {
	if interval <= 0 {
		interval = Interval
	}
	fn(w.Evaluate(clock.Now()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(w.Evaluate(clock.Now()))
		}
	}
}

// FormatRemaining renders a duration as HH:MM:SS. Hours do not wrap at a day.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
