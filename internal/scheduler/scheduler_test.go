package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendkit/punchbridge/internal/status"
)

type recordingSync struct {
	dates  []string
	result *status.SyncResult
	err    error
}

func (r *recordingSync) run(_ context.Context, date string) (*status.SyncResult, error) {
	r.dates = append(r.dates, date)
	if r.err != nil {
		return nil, r.err
	}
	result := *r.result
	result.TargetDate = date
	return &result, nil
}

func successResult() *status.SyncResult {
	return &status.SyncResult{
		Outcome:     status.OutcomeSuccess,
		HTTPStatus:  200,
		RecordCount: 3,
	}
}

func newTestScheduler(t *testing.T, syncFn SyncFunc, enabled bool, now time.Time) (Scheduler, status.StatePersistence) {
	t.Helper()
	persistence := status.NewFileStatePersistence(t.TempDir())
	s, err := New(syncFn, persistence, "00:05", enabled,
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return s, persistence
}

func TestNewRejectsMalformedFireTime(t *testing.T) {
	t.Parallel()

	persistence := status.NewFileStatePersistence(t.TempDir())
	_, err := New((&recordingSync{}).run, persistence, "25:99", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid fire time")
}

func TestNewRestoresPersistedState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	persistence := status.NewFileStatePersistence(dir)
	attempt := time.Date(2025, 3, 10, 0, 5, 0, 0, time.UTC)
	require.NoError(t, persistence.SaveState(context.Background(), &status.SchedulerState{
		Enabled:     false,
		LastResult:  &status.SyncResult{TargetDate: "2025-03-09", Outcome: status.OutcomeFailed},
		LastAttempt: &attempt,
	}))

	// Config default says enabled, but the persisted flag wins
	s, err := New((&recordingSync{}).run, persistence, "00:05", true)
	require.NoError(t, err)

	state := s.State()
	assert.False(t, state.Enabled)
	require.NotNil(t, state.LastResult)
	assert.Equal(t, "2025-03-09", state.LastResult.TargetDate)
}

func TestNewWithoutPersistedStateUsesDefault(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, (&recordingSync{}).run, true, time.Now())
	state := s.State()
	assert.True(t, state.Enabled)
	assert.Nil(t, state.LastResult)
	assert.Nil(t, state.LastAttempt)
}

func TestNextFire(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, (&recordingSync{}).run, true, time.Now())
	sched := s.(*defaultScheduler)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before today's fire",
			now:  time.Date(2025, 3, 10, 0, 1, 0, 0, time.Local),
			want: time.Date(2025, 3, 10, 0, 5, 0, 0, time.Local),
		},
		{
			name: "after today's fire rolls to tomorrow",
			now:  time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local),
			want: time.Date(2025, 3, 11, 0, 5, 0, 0, time.Local),
		},
		{
			name: "exactly at the fire instant rolls forward",
			now:  time.Date(2025, 3, 10, 0, 5, 0, 0, time.Local),
			want: time.Date(2025, 3, 11, 0, 5, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sched.nextFire(tt.now))
		})
	}
}

func TestFireSyncsYesterday(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 11, 0, 5, 0, 0, time.Local)
	syncFn := &recordingSync{result: successResult()}
	s, persistence := newTestScheduler(t, syncFn.run, true, now)

	s.(*defaultScheduler).fire(context.Background())

	require.Equal(t, []string{"2025-03-10"}, syncFn.dates)

	state := s.State()
	require.NotNil(t, state.LastResult)
	assert.Equal(t, status.OutcomeSuccess, state.LastResult.Outcome)
	assert.Equal(t, "2025-03-10", state.LastResult.TargetDate)
	require.NotNil(t, state.LastAttempt)

	// The attempt survives a restart
	persisted, err := persistence.LoadState(context.Background())
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "2025-03-10", persisted.LastResult.TargetDate)
}

func TestFireDisabledRecordsSkip(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 11, 0, 5, 0, 0, time.Local)
	syncFn := &recordingSync{result: successResult()}
	s, _ := newTestScheduler(t, syncFn.run, false, now)

	s.(*defaultScheduler).fire(context.Background())

	assert.Empty(t, syncFn.dates, "disabled fire must not run the pipeline")

	state := s.State()
	require.NotNil(t, state.LastResult)
	assert.Equal(t, status.OutcomeSkipped, state.LastResult.Outcome)
	assert.Equal(t, "auto-sync disabled", state.LastResult.Message)
	assert.Equal(t, "2025-03-10", state.LastResult.TargetDate)
}

func TestTriggerSyncDefaultsToYesterday(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 11, 14, 30, 0, 0, time.Local)
	syncFn := &recordingSync{result: successResult()}
	s, _ := newTestScheduler(t, syncFn.run, true, now)

	result, err := s.TriggerSync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", result.TargetDate)
	assert.Equal(t, []string{"2025-03-10"}, syncFn.dates)
}

func TestTriggerSyncExplicitDate(t *testing.T) {
	t.Parallel()

	syncFn := &recordingSync{result: successResult()}
	s, _ := newTestScheduler(t, syncFn.run, true, time.Now())

	result, err := s.TriggerSync(context.Background(), "2025-02-14")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-14", result.TargetDate)
}

func TestTriggerSyncRunsWhileDisabled(t *testing.T) {
	t.Parallel()

	syncFn := &recordingSync{result: successResult()}
	s, _ := newTestScheduler(t, syncFn.run, false, time.Now())

	_, err := s.TriggerSync(context.Background(), "2025-02-14")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02-14"}, syncFn.dates, "manual trigger ignores the auto-sync flag")
}

func TestTriggerSyncRecordsPipelineError(t *testing.T) {
	t.Parallel()

	syncErr := errors.New("device busy")
	syncFn := &recordingSync{err: syncErr}
	s, _ := newTestScheduler(t, syncFn.run, true, time.Now())

	_, err := s.TriggerSync(context.Background(), "2025-02-14")
	require.ErrorIs(t, err, syncErr)

	state := s.State()
	require.NotNil(t, state.LastResult)
	assert.Equal(t, status.OutcomeError, state.LastResult.Outcome)
	assert.Equal(t, "device busy", state.LastResult.Message)
	assert.Equal(t, "2025-02-14", state.LastResult.TargetDate)
}

func TestSetEnabledPersists(t *testing.T) {
	t.Parallel()

	s, persistence := newTestScheduler(t, (&recordingSync{}).run, true, time.Now())

	require.NoError(t, s.SetEnabled(context.Background(), false))
	assert.False(t, s.State().Enabled)

	persisted, err := persistence.LoadState(context.Background())
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.False(t, persisted.Enabled)
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	syncFn := &recordingSync{result: successResult()}
	s, _ := newTestScheduler(t, syncFn.run, true, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	s.Stop()
	s.Stop() // idempotent
}
