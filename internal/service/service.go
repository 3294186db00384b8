// Package service orchestrates the attendance pipeline: it drives the device
// coordinator, runs aggregation and filtering, and hands payloads to the
// cloud dispatcher. The API layer talks to the BridgeService interface only.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/attendkit/punchbridge/internal/aggregate"
	"github.com/attendkit/punchbridge/internal/cloud"
	"github.com/attendkit/punchbridge/internal/coordinator"
	"github.com/attendkit/punchbridge/internal/device"
	"github.com/attendkit/punchbridge/internal/filter"
	"github.com/attendkit/punchbridge/internal/status"
)

// AttendanceReport is the unified result of one attendance fetch
type AttendanceReport struct {
	// Logs are the punch events inside the requested window
	Logs []device.PunchEvent `json:"logs"`

	// Summary holds the per-employee, per-day summaries inside the window
	Summary aggregate.SummaryMap `json:"summary"`

	// Status is the live presence of every employee, computed over the
	// full history regardless of the requested window
	Status aggregate.StatusMap `json:"status"`
}

// BridgeService is the orchestration boundary between the HTTP API, the
// scheduler, and the attendance pipeline
type BridgeService interface {
	// FetchAttendance reads the terminal and returns filtered logs and
	// summaries plus live status. ftype/value follow the filter package's
	// window rules; a malformed value yields *filter.ValidationError.
	FetchAttendance(ctx context.Context, ftype, value string) (*AttendanceReport, error)

	// ListUsers returns the terminal's user roster
	ListUsers(ctx context.Context) ([]device.User, error)

	// SyncDate runs the full pipeline for one calendar day ("YYYY-MM-DD")
	// and delivers the payload to the cloud. Device acquisition and
	// communication failures are returned as errors; once the pipeline
	// reaches delivery, the outcome lands in the SyncResult instead.
	SyncDate(ctx context.Context, date string) (*status.SyncResult, error)

	// GetDeviceConfig returns the current terminal address
	GetDeviceConfig() device.Config

	// SetDeviceConfig updates the terminal address for subsequent requests
	SetDeviceConfig(host string, port int) error

	// DeviceState reports the coordinator's busy/cooldown snapshot
	DeviceState() coordinator.State
}

// Option is a function that configures the service
type Option func(*defaultService)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *defaultService) {
		s.now = now
	}
}

// defaultService is the default implementation of BridgeService
type defaultService struct {
	settings   *DeviceSettings
	coord      coordinator.Coordinator
	dispatcher cloud.Dispatcher
	now        func() time.Time
}

// New creates a bridge service
func New(settings *DeviceSettings, coord coordinator.Coordinator, dispatcher cloud.Dispatcher, opts ...Option) BridgeService {
	s := &defaultService{
		settings:   settings,
		coord:      coord,
		dispatcher: dispatcher,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAttendance reads the terminal and returns the filtered report
func (s *defaultService) FetchAttendance(ctx context.Context, ftype, value string) (*AttendanceReport, error) {
	now := s.now()

	// Validate the window before touching the device so malformed input
	// never costs a device session
	if _, err := filter.Logs(nil, ftype, value, now); err != nil {
		return nil, err
	}

	var events []device.PunchEvent
	err := s.coord.Execute(ctx, func(ctx context.Context, conn device.Conn) error {
		var actionErr error
		events, actionErr = conn.ListAttendance(ctx)
		return actionErr
	})
	if err != nil {
		return nil, err
	}

	stats := aggregate.ComputeStats(events, now)

	logs, err := filter.Logs(events, ftype, value, now)
	if err != nil {
		return nil, err
	}
	summary, err := filter.Summary(stats.Summary, ftype, value, now)
	if err != nil {
		return nil, err
	}

	return &AttendanceReport{
		Logs:    logs,
		Summary: summary,
		Status:  stats.Status,
	}, nil
}

// ListUsers returns the terminal's user roster
func (s *defaultService) ListUsers(ctx context.Context) ([]device.User, error) {
	var users []device.User
	err := s.coord.Execute(ctx, func(ctx context.Context, conn device.Conn) error {
		var actionErr error
		users, actionErr = conn.ListUsers(ctx)
		return actionErr
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// SyncDate runs the full pipeline for one calendar day and delivers it
func (s *defaultService) SyncDate(ctx context.Context, date string) (*status.SyncResult, error) {
	if _, err := time.ParseInLocation(time.DateOnly, date, time.Local); err != nil {
		return nil, &filter.ValidationError{
			Message: fmt.Sprintf("invalid sync date %q, expected YYYY-MM-DD", date),
		}
	}

	var events []device.PunchEvent
	var users []device.User
	err := s.coord.Execute(ctx, func(ctx context.Context, conn device.Conn) error {
		var actionErr error
		if events, actionErr = conn.ListAttendance(ctx); actionErr != nil {
			return actionErr
		}
		users, actionErr = conn.ListUsers(ctx)
		return actionErr
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := aggregate.ComputeStats(events, now)
	summary, err := filter.Summary(stats.Summary, filter.TypeDate, date, now)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	payload := cloud.BuildPayload(summary, names)
	delivery := s.dispatcher.Deliver(ctx, payload)

	result := &status.SyncResult{
		TargetDate:  date,
		Outcome:     delivery.Outcome,
		HTTPStatus:  delivery.HTTPStatus,
		RecordCount: len(payload),
		Message:     delivery.Message,
		Timestamp:   s.now(),
	}

	slog.Info("Sync attempt finished",
		"targetDate", result.TargetDate,
		"outcome", result.Outcome,
		"records", result.RecordCount,
		"httpStatus", result.HTTPStatus)

	return result, nil
}

// GetDeviceConfig returns the current terminal address
func (s *defaultService) GetDeviceConfig() device.Config {
	return s.settings.Get()
}

// SetDeviceConfig updates the terminal address
func (s *defaultService) SetDeviceConfig(host string, port int) error {
	return s.settings.Set(host, port)
}

// DeviceState reports the coordinator's busy/cooldown snapshot
func (s *defaultService) DeviceState() coordinator.State {
	return s.coord.State()
}
