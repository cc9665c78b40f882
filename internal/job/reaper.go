package job

import (
	"context"
	"time"
)

// ReapJobName is the name of the session reaper job
const ReapJobName = "session-reaper"

// SessionReaper journals live sessions and evicts closed ones
type SessionReaper interface {
	ReapEnded(ctx context.Context) (int, error)
}

// NewReaperJob returns the job that keeps the session journal current and
// releases sessions whose window has ended
func NewReaperJob(reaper SessionReaper, schedule string) Config {
	return Config{
		Name:        ReapJobName,
		Schedule:    schedule,
		Description: "Journal live sessions and evict ended ones",
		Timeout:     30 * time.Second,
		Func: func(ctx context.Context) error {
			_, err := reaper.ReapEnded(ctx)
			return err
		},
	}
}
