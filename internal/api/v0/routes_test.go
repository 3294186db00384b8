package v0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendkit/punchbridge/internal/aggregate"
	"github.com/attendkit/punchbridge/internal/coordinator"
	"github.com/attendkit/punchbridge/internal/device"
	"github.com/attendkit/punchbridge/internal/filter"
	"github.com/attendkit/punchbridge/internal/service"
	"github.com/attendkit/punchbridge/internal/status"
	"github.com/attendkit/punchbridge/internal/telemetry"
)

type fakeService struct {
	report    *service.AttendanceReport
	users     []device.User
	fetchErr  error
	deviceCfg device.Config
	setErr    error
	state     coordinator.State
}

func (f *fakeService) FetchAttendance(_ context.Context, ftype, value string) (*service.AttendanceReport, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	_ = ftype
	_ = value
	return f.report, nil
}

func (f *fakeService) ListUsers(_ context.Context) ([]device.User, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.users, nil
}

func (f *fakeService) SyncDate(_ context.Context, date string) (*status.SyncResult, error) {
	return &status.SyncResult{TargetDate: date, Outcome: status.OutcomeSuccess}, nil
}

func (f *fakeService) GetDeviceConfig() device.Config { return f.deviceCfg }

func (f *fakeService) SetDeviceConfig(host string, port int) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.deviceCfg.Host = host
	f.deviceCfg.Port = port
	return nil
}

func (f *fakeService) DeviceState() coordinator.State { return f.state }

type fakeScheduler struct {
	state      *status.SchedulerState
	result     *status.SyncResult
	triggerErr error
	dates      []string
	enabledSet []bool
}

func (f *fakeScheduler) Start(_ context.Context) error { return nil }
func (f *fakeScheduler) Stop()                         {}

func (f *fakeScheduler) TriggerSync(_ context.Context, date string) (*status.SyncResult, error) {
	f.dates = append(f.dates, date)
	if f.triggerErr != nil {
		return nil, f.triggerErr
	}
	return f.result, nil
}

func (f *fakeScheduler) SetEnabled(_ context.Context, enabled bool) error {
	f.enabledSet = append(f.enabledSet, enabled)
	f.state.Enabled = enabled
	return nil
}

func (f *fakeScheduler) State() *status.SchedulerState { return f.state }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetDeviceConfig(t *testing.T) {
	t.Parallel()

	svc := &fakeService{deviceCfg: device.Config{Host: "10.0.0.9", Port: 4370}}
	router := Router(svc, &fakeScheduler{state: &status.SchedulerState{}}, telemetry.NewMetrics())

	rec := serve(router, http.MethodGet, "/device/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "10.0.0.9", body["host"])
	assert.Equal(t, float64(4370), body["port"])
}

func TestPutDeviceConfig(t *testing.T) {
	t.Parallel()

	svc := &fakeService{deviceCfg: device.Config{Host: "10.0.0.9", Port: 4370}}
	router := Router(svc, &fakeScheduler{state: &status.SchedulerState{}}, telemetry.NewMetrics())

	rec := serve(router, http.MethodPut, "/device/config", `{"host":"10.0.0.20","port":4371}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "10.0.0.20", svc.deviceCfg.Host)
	assert.Equal(t, 4371, svc.deviceCfg.Port)
}

func TestPutDeviceConfigMalformedBody(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	router := Router(svc, &fakeScheduler{state: &status.SchedulerState{}}, telemetry.NewMetrics())

	rec := serve(router, http.MethodPut, "/device/config", `{"host":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])
}

func TestGetAttendance(t *testing.T) {
	t.Parallel()

	svc := &fakeService{report: &service.AttendanceReport{
		Logs: []device.PunchEvent{
			{EmployeeID: "42", Timestamp: time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local), Kind: device.KindCheckIn},
		},
		Summary: aggregate.SummaryMap{"42": {"2025-03-10": &aggregate.DailySummary{FirstIn: "09:00:00", LastOut: "-"}}},
		Status:  aggregate.StatusMap{"42": &aggregate.LiveStatus{EmployeeID: "42", State: aggregate.StateIn}},
	}}
	router := Router(svc, &fakeScheduler{state: &status.SchedulerState{}}, telemetry.NewMetrics())

	rec := serve(router, http.MethodGet, "/attendance?type=date&value=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "logs")
	assert.Contains(t, body, "summary")
	assert.Contains(t, body, "status")
}

func TestGetAttendanceErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "validation error",
			err:        &filter.ValidationError{Message: "invalid date value"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "busy",
			err:        &coordinator.BusyError{},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "cooldown",
			err:        &coordinator.CooldownError{Remaining: 10 * time.Second},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "communication",
			err:        &coordinator.CommunicationError{Message: "connection refused"},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeService{fetchErr: tt.err}
			router := Router(svc, &fakeScheduler{state: &status.SchedulerState{}}, telemetry.NewMetrics())

			rec := serve(router, http.MethodGet, "/attendance", "")
			require.Equal(t, tt.wantStatus, rec.Code)

			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func scrapeMetrics(m *telemetry.Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestDeviceActionCounterSkipsValidationErrors(t *testing.T) {
	t.Parallel()

	metrics := telemetry.NewMetrics()
	svc := &fakeService{fetchErr: &filter.ValidationError{Message: "invalid date value"}}
	router := Router(svc, &fakeScheduler{state: &status.SchedulerState{}}, metrics)

	rec := serve(router, http.MethodGet, "/attendance?type=date&value=nope", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, scrapeMetrics(metrics), "punchbridge_device_actions_total",
		"rejected input never reaches the device, so it must not be counted")

	// A real device failure still lands on the counter
	svc.fetchErr = &coordinator.BusyError{}
	rec = serve(router, http.MethodGet, "/attendance", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, scrapeMetrics(metrics), `punchbridge_device_actions_total{outcome="busy"} 1`)
}

func TestGetUsers(t *testing.T) {
	t.Parallel()

	svc := &fakeService{users: []device.User{{ID: "42", Name: "Ada Lovelace", CardNumber: "N/A"}}}
	router := Router(svc, &fakeScheduler{state: &status.SchedulerState{}}, telemetry.NewMetrics())

	rec := serve(router, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	users, ok := body["users"].([]any)
	require.True(t, ok)
	require.Len(t, users, 1)
}

func TestGetAutoSync(t *testing.T) {
	t.Parallel()

	attempt := time.Date(2025, 3, 11, 0, 5, 0, 0, time.UTC)
	sched := &fakeScheduler{state: &status.SchedulerState{
		Enabled:     true,
		LastResult:  &status.SyncResult{TargetDate: "2025-03-10", Outcome: status.OutcomeSuccess},
		LastAttempt: &attempt,
	}}
	router := Router(&fakeService{}, sched, telemetry.NewMetrics())

	rec := serve(router, http.MethodGet, "/autosync", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["enabled"])
	assert.Contains(t, body, "lastResult")
	assert.Contains(t, body, "lastAttempt")
}

func TestPutAutoSync(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{state: &status.SchedulerState{Enabled: true}}
	router := Router(&fakeService{}, sched, telemetry.NewMetrics())

	rec := serve(router, http.MethodPut, "/autosync", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["enabled"])
	assert.Equal(t, []bool{false}, sched.enabledSet)
}

func TestPostSync(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{
		state:  &status.SchedulerState{Enabled: true},
		result: &status.SyncResult{TargetDate: "2025-03-10", Outcome: status.OutcomeSuccess, RecordCount: 2},
	}
	router := Router(&fakeService{}, sched, telemetry.NewMetrics())

	rec := serve(router, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{""}, sched.dates, "bare sync targets yesterday")

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2025-03-10", result["targetDate"])
	assert.Equal(t, "success", result["outcome"])
}

func TestPostSyncDate(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{
		state:  &status.SchedulerState{Enabled: true},
		result: &status.SyncResult{TargetDate: "2025-02-14", Outcome: status.OutcomeFailed, HTTPStatus: 502},
	}
	router := Router(&fakeService{}, sched, telemetry.NewMetrics())

	rec := serve(router, http.MethodPost, "/sync/2025-02-14", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"2025-02-14"}, sched.dates)

	body := decodeBody(t, rec)
	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed", result["outcome"], "a completed non-2xx delivery is reported, not retried")
}

func TestPostSyncDeviceBusy(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{
		state:      &status.SchedulerState{Enabled: true},
		triggerErr: &coordinator.BusyError{},
	}
	router := Router(&fakeService{}, sched, telemetry.NewMetrics())

	rec := serve(router, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
}

func TestHealthRouter(t *testing.T) {
	t.Parallel()

	rec := serve(HealthRouter(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ok", body["status"])
}
