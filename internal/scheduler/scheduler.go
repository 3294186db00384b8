// Package scheduler runs the daily cloud sync: once per local day, shortly
// after midnight, it delivers yesterday's records and persists the outcome.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/attendkit/punchbridge/internal/status"
)

// SyncFunc runs the sync pipeline for one calendar day ("YYYY-MM-DD")
type SyncFunc func(ctx context.Context, date string) (*status.SyncResult, error)

// Scheduler owns the daily sync cycle and its persisted state
type Scheduler interface {
	// Start begins the daily fire loop. It returns immediately; the loop
	// runs until Stop is called or ctx is cancelled.
	Start(ctx context.Context) error

	// Stop terminates the fire loop
	Stop()

	// TriggerSync runs the sync now. An empty date targets local
	// yesterday; an explicit date must be "YYYY-MM-DD". The attempt is
	// recorded either way.
	TriggerSync(ctx context.Context, date string) (*status.SyncResult, error)

	// SetEnabled flips the auto-sync flag and persists it
	SetEnabled(ctx context.Context, enabled bool) error

	// State returns the current scheduler state
	State() *status.SchedulerState
}

// Option is a function that configures the scheduler
type Option func(*defaultScheduler)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *defaultScheduler) {
		s.now = now
	}
}

// defaultScheduler is the default implementation of Scheduler
type defaultScheduler struct {
	sync        SyncFunc
	persistence status.StatePersistence
	fireAt      string
	now         func() time.Time

	mu          sync.Mutex
	enabled     bool
	lastResult  *status.SyncResult
	lastAttempt *time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a scheduler. defaultEnabled is the configured flag; a
// previously persisted flag wins over it once the scheduler has state on
// disk.
func New(syncFn SyncFunc, persistence status.StatePersistence, fireAt string, defaultEnabled bool, opts ...Option) (Scheduler, error) {
	if _, err := time.Parse("15:04", fireAt); err != nil {
		return nil, fmt.Errorf("invalid fire time %q, expected HH:MM: %w", fireAt, err)
	}

	s := &defaultScheduler{
		sync:        syncFn,
		persistence: persistence,
		fireAt:      fireAt,
		now:         time.Now,
		enabled:     defaultEnabled,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	state, err := persistence.LoadState(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduler state: %w", err)
	}
	if state != nil {
		s.enabled = state.Enabled
		s.lastResult = state.LastResult
		s.lastAttempt = state.LastAttempt
	}

	return s, nil
}

// Start begins the daily fire loop
func (s *defaultScheduler) Start(ctx context.Context) error {
	go s.run(ctx)
	slog.Info("Daily sync scheduler started", "fireAt", s.fireAt, "enabled", s.State().Enabled)
	return nil
}

// Stop terminates the fire loop
func (s *defaultScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// run sleeps until the next fire instant, syncs yesterday, and repeats
func (s *defaultScheduler) run(ctx context.Context) {
	for {
		now := s.now()
		next := s.nextFire(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.done:
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

// nextFire returns the next wall-clock fire instant strictly after now
func (s *defaultScheduler) nextFire(now time.Time) time.Time {
	at, _ := time.Parse("15:04", s.fireAt)
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// yesterday returns the local calendar day before now
func (s *defaultScheduler) yesterday() string {
	return s.now().AddDate(0, 0, -1).Format(time.DateOnly)
}

// fire runs one scheduled sync for yesterday. The target is yesterday
// relative to the fire instant, so a delayed wakeup still syncs the day the
// fire was scheduled for.
func (s *defaultScheduler) fire(ctx context.Context) {
	target := s.yesterday()

	if !s.State().Enabled {
		slog.Info("Daily sync disabled, skipping", "targetDate", target)
		s.record(ctx, &status.SyncResult{
			TargetDate: target,
			Outcome:    status.OutcomeSkipped,
			Message:    "auto-sync disabled",
			Timestamp:  s.now(),
		})
		return
	}

	slog.Info("Daily sync firing", "targetDate", target)
	if _, err := s.runSync(ctx, target); err != nil {
		slog.Error("Daily sync failed", "targetDate", target, "error", err)
	}
}

// TriggerSync runs the sync now, regardless of the auto-sync flag
func (s *defaultScheduler) TriggerSync(ctx context.Context, date string) (*status.SyncResult, error) {
	if date == "" {
		date = s.yesterday()
	}
	return s.runSync(ctx, date)
}

// runSync executes the pipeline for one date and records the attempt.
// Failures before delivery are recorded as error outcomes and returned.
func (s *defaultScheduler) runSync(ctx context.Context, date string) (*status.SyncResult, error) {
	result, err := s.sync(ctx, date)
	if err != nil {
		s.record(ctx, &status.SyncResult{
			TargetDate: date,
			Outcome:    status.OutcomeError,
			Message:    err.Error(),
			Timestamp:  s.now(),
		})
		return nil, err
	}
	s.record(ctx, result)
	return result, nil
}

// record stores the attempt in memory and on disk. Persistence failures are
// logged, never fatal.
func (s *defaultScheduler) record(ctx context.Context, result *status.SyncResult) {
	attempt := s.now()

	s.mu.Lock()
	s.lastResult = result
	s.lastAttempt = &attempt
	state := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persistence.SaveState(ctx, state); err != nil {
		slog.Error("Failed to persist scheduler state", "error", err)
	}
}

// SetEnabled flips the auto-sync flag and persists it
func (s *defaultScheduler) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	s.enabled = enabled
	state := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persistence.SaveState(ctx, state); err != nil {
		return fmt.Errorf("failed to persist scheduler state: %w", err)
	}
	slog.Info("Auto-sync flag updated", "enabled", enabled)
	return nil
}

// State returns the current scheduler state
func (s *defaultScheduler) State() *status.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked builds a state copy. Callers must hold mu.
func (s *defaultScheduler) snapshotLocked() *status.SchedulerState {
	return &status.SchedulerState{
		Enabled:     s.enabled,
		LastResult:  s.lastResult,
		LastAttempt: s.lastAttempt,
	}
}
