package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one audit bucket. The bucket time identifies the interval
// being processed, not the wall-clock moment the function fires.
type TickFunc func(ctx context.Context, bucket time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Interval between audit runs. Falls back to 15 minutes when unset.
	Interval time.Duration
	// AlignToStart snaps runs to interval boundaries (e.g. :00, :15, :30)
	// so bucket times are stable across restarts.
	AlignToStart bool
	// StartupDelay postpones the first run after process start.
	StartupDelay time.Duration
}

// Scheduler drives periodic audit runs on an aligned cadence.
type Scheduler struct {
	interval time.Duration
	align    bool
	delay    time.Duration
	logger   zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		interval: interval,
		align:    opts.AlignToStart,
		delay:    opts.StartupDelay,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until ctx is cancelled, invoking tick once per interval. A
// failed tick is logged and the cadence continues; the next bucket is never
// skipped because the previous one errored.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if err := sleep(ctx, s.delay); err != nil {
		return err
	}

	next := s.nextBucket(time.Now().UTC())
	for {
		s.logger.Debug().Time("next_bucket", next).Msg("waiting for next audit bucket")
		if err := sleep(ctx, time.Until(next)); err != nil {
			return err
		}

		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("bucket", next).Msg("audit run failed")
		} else {
			s.logger.Info().Time("bucket", next).Msg("audit bucket processed")
		}

		next = next.Add(s.interval)
		if now := time.Now().UTC(); next.Before(now) {
			// A long-running tick overshot the cadence; realign instead of
			// burning through missed buckets back to back.
			next = s.nextBucket(now)
		}
	}
}

// nextBucket returns the first run time strictly after now.
func (s *Scheduler) nextBucket(now time.Time) time.Time {
	if !s.align {
		return now.Add(s.interval)
	}
	bucket := now.Truncate(s.interval)
	for !bucket.After(now) {
		bucket = bucket.Add(s.interval)
	}
	return bucket
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
