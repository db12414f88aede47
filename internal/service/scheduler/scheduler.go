package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/pingbot/internal/domain/alarm"
	"github.com/oshokin/pingbot/internal/logger"
)

// Job is the periodic routine. Its context is detached from the caller of
// Init: it is never canceled and carries only the "alarm" logger.
type Job func(ctx context.Context)

// Scheduler owns the single repeating alarm timer.
type Scheduler struct {
	// period is the interval between the end of one run and the next fire.
	period time.Duration
	// job is invoked on every fire.
	job Job

	// mu guards every field below.
	mu sync.Mutex
	// armed reports whether a timer is outstanding.
	armed bool
	// generation identifies the current arm; fires from older arms are ignored.
	generation uint64
	// timer is the outstanding timer while armed.
	timer *time.Timer
	// next is when the outstanding timer fires.
	next time.Time
	// changedAt is when the scheduler was last armed or disarmed.
	changedAt time.Time
}

// New creates a disarmed scheduler.
func New(period time.Duration, job Job) *Scheduler {
	return &Scheduler{
		period: period,
		job:    job,
	}
}

// Init arms the scheduler when enabled and disarms it otherwise.
// Arming an armed scheduler and disarming a disarmed one are no-ops.
func (s *Scheduler) Init(ctx context.Context, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case enabled && !s.armed:
		s.armed = true
		s.generation++
		s.changedAt = time.Now()

		//nolint:contextcheck // Runs outlive the request that armed the alarm.
		jobCtx := logger.WithKV(logger.WithName(context.Background(), "alarm"), "generation", s.generation)
		s.schedule(jobCtx, s.generation)

		logger.InfoKV(ctx, "Alarm armed", "period", s.period.String(), "next", s.next.Format(time.RFC3339))
	case !enabled && s.armed:
		s.armed = false
		s.generation++
		s.changedAt = time.Now()

		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}

		s.next = time.Time{}

		logger.Info(ctx, "Alarm disarmed")
	}
}

// Stop disarms the scheduler.
func (s *Scheduler) Stop(ctx context.Context) {
	s.Init(ctx, false)
}

// Armed reports whether a timer is outstanding.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.armed
}

// Next returns when the outstanding timer fires, or the zero time when disarmed.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.next
}

// State returns a snapshot of the alarm.
func (s *Scheduler) State() alarm.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return alarm.State{
		Timestamp: s.changedAt,
		Next:      s.next,
		Period:    s.period,
		IsEnabled: s.armed,
	}
}

// Period returns the interval between fires.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// schedule starts the timer for generation. The caller holds mu.
func (s *Scheduler) schedule(ctx context.Context, generation uint64) {
	s.next = time.Now().Add(s.period)
	s.timer = time.AfterFunc(s.period, func() {
		s.fire(ctx, generation)
	})
}

// fire runs the job and re-arms as its last action.
func (s *Scheduler) fire(ctx context.Context, generation uint64) {
	if !s.current(generation) {
		return
	}

	defer s.rearm(ctx, generation)

	s.run(ctx)
}

// run invokes the job inside a recover boundary.
func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Alarm job panicked", "panic", r)
		}
	}()

	s.job(ctx)
}

// rearm schedules the next fire unless the scheduler was disarmed or re-armed
// while the job was running.
func (s *Scheduler) rearm(ctx context.Context, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed || s.generation != generation {
		logger.DebugKV(ctx, "Alarm not re-armed, generation is stale", "generation", generation)

		return
	}

	s.schedule(ctx, generation)
}

// current reports whether generation is still the live arm.
func (s *Scheduler) current(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.armed && s.generation == generation
}
