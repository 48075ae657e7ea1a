package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tenderwatch/internal/ports"
)

// CronScheduler runs the pipeline on a cron expression. The job also fires
// once immediately on start so a fresh deployment does not wait for the first
// tick.
type CronScheduler struct {
	spec       string
	loc        *time.Location
	runOnStart bool
	cron       *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for a standard 5-field cron expression
// evaluated in loc. A nil loc means UTC.
func NewCronScheduler(spec string, loc *time.Location, runOnStart bool) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{spec: spec, loc: loc, runOnStart: runOnStart}
}

// Start registers the job and begins ticking.
func (s *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.spec, func() { job(time.Now()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	s.cron = c
	c.Start()

	if s.runOnStart {
		go job(time.Now())
	}
	return nil
}

// Stop halts scheduling and waits for a running job to finish or the context
// to expire.
func (s *CronScheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	done := s.cron.Stop().Done()
	s.cron = nil

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
