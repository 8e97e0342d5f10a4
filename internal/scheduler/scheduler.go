package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc is invoked at every scheduled activation.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Spec is a standard five-field cron expression.
	Spec         string
	Location     *time.Location
	StartupDelay time.Duration
	RunOnStart   bool
}

// Scheduler drives cron-timed scoring runs.
type Scheduler struct {
	opts     Options
	schedule cron.Schedule
	logger   zerolog.Logger
	now      func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", opts.Spec, err)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{
		opts:     opts,
		schedule: schedule,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
	}, nil
}

// Next returns the first activation strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.opts.Location))
}

// Run blocks, invoking the tick function at each activation until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.opts.RunOnStart {
		s.execute(ctx, tick, s.now())
	}

	for {
		next := s.Next(s.now())
		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_run", next).Msg("waiting for next run")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		s.execute(ctx, tick, next)
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, at time.Time) {
	s.logger.Info().Time("at", at).Msg("executing scheduled run")
	if err := tick(ctx, at); err != nil {
		s.logger.Error().Err(err).Time("at", at).Msg("scheduled run failed")
	}
}
