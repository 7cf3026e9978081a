package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// taskBufferSize is the default buffer size for the scheduler task queue.
	taskBufferSize = 64
)

// SchedulerConfig represents the configuration for the upstream call
// scheduler.
type SchedulerConfig struct {
	// MinInterval is the minimum spacing between successive upstream calls.
	MinInterval time.Duration
	// Logger represents the scheduler logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *SchedulerConfig) Validate() error {
	var errs error

	if cfg.MinInterval <= 0 {
		errs = errors.Join(errs, fmt.Errorf("minimum interval must be positive"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// task is one scheduled upstream call awaiting execution.
type task struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// Scheduler serializes outbound calls to a rate-capped upstream. Tasks run
// strictly in submission order through a single consumer, spaced by at least
// the configured minimum interval. A failing task never breaks the queue;
// its error surfaces only to its own caller.
type Scheduler struct {
	cfg     *SchedulerConfig
	limiter *rate.Limiter
	tasks   chan *task
}

// NewScheduler initializes a new upstream call scheduler.
func NewScheduler(cfg *SchedulerConfig) (*Scheduler, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating scheduler config: %w", err)
	}

	return &Scheduler{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		tasks:   make(chan *task, taskBufferSize),
	}, nil
}

// Schedule enqueues fn and blocks until it has run or ctx is done. The
// returned error is fn's own error, a queue-full error, or the context
// error when the caller gives up waiting.
func (s *Scheduler) Schedule(ctx context.Context, fn func(ctx context.Context) error) error {
	t := &task{
		ctx:  ctx,
		run:  fn,
		done: make(chan error, 1),
	}

	select {
	case s.tasks <- t:
		// do nothing.
	default:
		s.cfg.Logger.Error().Msgf("scheduler task queue at capacity: %d/%d",
			len(s.tasks), taskBufferSize)
		return fmt.Errorf("scheduler task queue at capacity")
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run manages the lifecycle processes of the scheduler, consuming queued
// tasks one at a time.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case t := <-s.tasks:
			// A caller that abandoned its task still occupies a queue slot;
			// skip the call but keep its spacing budget untouched.
			if t.ctx.Err() != nil {
				t.done <- t.ctx.Err()
				continue
			}

			err := s.limiter.Wait(ctx)
			if err != nil {
				t.done <- err
				return
			}

			t.done <- t.run(t.ctx)
		case <-ctx.Done():
			return
		}
	}
}
