// Package job runs background maintenance on cron schedules.
package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Func is the body of a scheduled job
type Func func(ctx context.Context) error

// Config describes one scheduled job
type Config struct {
	Name        string
	Schedule    string // standard cron expression or descriptor such as "@every 30s"
	Func        Func
	Description string
	Timeout     time.Duration
}

// Status reports how a job has been running
type Status struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Description  string        `json:"description"`
	LastRun      *time.Time    `json:"last_run,omitempty"`
	NextRun      *time.Time    `json:"next_run,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	RunCount     int64         `json:"run_count"`
	ErrorCount   int64         `json:"error_count"`
}

// Scheduler runs jobs on their schedules. A run that is still going when
// the next tick fires is skipped rather than overlapped.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	jobs     map[string]*Config
	statuses map[string]*Status
	entries  map[string]cron.EntryID
}

// NewScheduler creates a scheduler
func NewScheduler(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*Config),
		statuses: make(map[string]*Status),
		entries:  make(map[string]cron.EntryID),
	}
}

// Add registers a job
func (s *Scheduler) Add(config Config) error {
	if config.Name == "" {
		return fmt.Errorf("job name cannot be empty")
	}
	if config.Func == nil {
		return fmt.Errorf("job %s has no function", config.Name)
	}
	if config.Timeout == 0 {
		config.Timeout = time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[config.Name]; exists {
		return fmt.Errorf("job %s already registered", config.Name)
	}
	id, err := s.cron.AddFunc(config.Schedule, s.wrap(&config))
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", config.Schedule, config.Name, err)
	}

	s.jobs[config.Name] = &config
	s.entries[config.Name] = id
	s.statuses[config.Name] = &Status{
		Name:        config.Name,
		Schedule:    config.Schedule,
		Description: config.Description,
	}

	s.logger.Info("Job added",
		zap.String("name", config.Name),
		zap.String("schedule", config.Schedule),
	)
	return nil
}

// Start begins running jobs on their schedules
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Job scheduler started")
}

// Stop halts scheduling, cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
	s.logger.Info("Job scheduler stopped")
}

// RunOnce runs a job immediately, outside its schedule
func (s *Scheduler) RunOnce(name string) error {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	return s.run(job)
}

// Statuses returns a copy of every job's status ordered by name
func (s *Scheduler) Statuses() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Status, 0, len(s.statuses))
	for name, status := range s.statuses {
		cp := *status
		if entry := s.cron.Entry(s.entries[name]); !entry.Next.IsZero() {
			next := entry.Next
			cp.NextRun = &next
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) wrap(job *Config) func() {
	return func() {
		_ = s.run(job)
	}
}

func (s *Scheduler) run(job *Config) error {
	start := time.Now()

	s.mu.Lock()
	status := s.statuses[job.Name]
	status.LastRun = &start
	status.RunCount++
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, job.Timeout)
	defer cancel()

	err := job.Func(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	status.LastDuration = duration
	if err != nil {
		status.ErrorCount++
		status.LastError = err.Error()
	} else {
		status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Job failed",
			zap.String("name", job.Name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}
	s.logger.Debug("Job completed",
		zap.String("name", job.Name),
		zap.Duration("duration", duration),
	)
	return nil
}
