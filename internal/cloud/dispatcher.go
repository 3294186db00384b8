// Package cloud builds the outbound daily-records payload and delivers it to
// the HR endpoint, retrying once against a pinned fallback IP when
// hostname-based delivery fails at the transport level.
package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/attendkit/punchbridge/internal/aggregate"
	"github.com/attendkit/punchbridge/internal/config"
	"github.com/attendkit/punchbridge/internal/status"
)

// DailyRecord is one (employee, date) entry of the outbound payload
type DailyRecord struct {
	EmployeeID   string               `json:"employeeId"`
	Name         string               `json:"name"`
	Date         string               `json:"date"`
	FirstCheckIn string               `json:"firstCheckIn"`
	LastCheckOut string               `json:"lastCheckOut"`
	TotalWorked  string               `json:"totalWorked"`
	Logs         []aggregate.LogEntry `json:"logs"`
}

// DeliveryResult is the outcome of one delivery attempt pair
type DeliveryResult struct {
	Outcome    status.Outcome
	HTTPStatus int
	Message    string
}

// Dispatcher delivers daily-record payloads to the HR endpoint
type Dispatcher interface {
	// Deliver posts the payload. An empty payload short-circuits to
	// skipped without any network call. A transport failure on the
	// primary hostname triggers exactly one retry against the fallback
	// IP; a completed non-2xx response is never retried.
	Deliver(ctx context.Context, payload []DailyRecord) *DeliveryResult
}

// Option is a function that configures the dispatcher
type Option func(*defaultDispatcher)

// WithPrimaryURL overrides the computed primary endpoint URL
func WithPrimaryURL(url string) Option {
	return func(d *defaultDispatcher) {
		d.primaryURL = url
	}
}

// WithFallbackURL overrides the computed fallback endpoint URL
func WithFallbackURL(url string) Option {
	return func(d *defaultDispatcher) {
		d.fallbackURL = url
	}
}

// defaultDispatcher is the default implementation of Dispatcher
type defaultDispatcher struct {
	hostname    string
	primaryURL  string
	fallbackURL string

	primary  *http.Client
	fallback *http.Client
}

// New creates a dispatcher for the given cloud endpoint configuration
func New(cfg config.CloudConfig, opts ...Option) Dispatcher {
	d := &defaultDispatcher{
		hostname:   cfg.Hostname,
		primaryURL: "https://" + cfg.Hostname + cfg.Path,
		// Normal certificate validation for the primary call
		primary: &http.Client{},
		// The fallback dials a bare IP, so hostname validation cannot
		// succeed there; verification is disabled for that call only.
		// SNI still carries the logical hostname for virtual-host routing.
		fallback: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, // #nosec G402 -- pinned-IP fallback, see above
					ServerName:         cfg.Hostname,
				},
			},
		},
	}
	if cfg.FallbackIP != "" {
		d.fallbackURL = "https://" + cfg.FallbackIP + cfg.Path
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BuildPayload flattens a filtered summary map into the outbound payload,
// one record per (employee, date), in deterministic order
func BuildPayload(summary aggregate.SummaryMap, userNames map[string]string) []DailyRecord {
	payload := make([]DailyRecord, 0, len(summary))
	for employeeID, days := range summary {
		name := userNames[employeeID]
		if name == "" {
			name = "Unknown"
		}
		for date, daySummary := range days {
			payload = append(payload, DailyRecord{
				EmployeeID:   employeeID,
				Name:         name,
				Date:         date,
				FirstCheckIn: daySummary.FirstIn,
				LastCheckOut: daySummary.LastOut,
				TotalWorked:  formatWorked(daySummary.TotalWorkedMs),
				Logs:         daySummary.Logs,
			})
		}
	}
	sort.Slice(payload, func(i, j int) bool {
		if payload[i].EmployeeID != payload[j].EmployeeID {
			return payload[i].EmployeeID < payload[j].EmployeeID
		}
		return payload[i].Date < payload[j].Date
	})
	return payload
}

// formatWorked renders worked milliseconds as "HH:MM:SS" by integer division
func formatWorked(ms int64) string {
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	seconds := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Deliver posts the payload with primary-host-then-fallback-IP semantics
func (d *defaultDispatcher) Deliver(ctx context.Context, payload []DailyRecord) *DeliveryResult {
	if len(payload) == 0 {
		return &DeliveryResult{
			Outcome: status.OutcomeSkipped,
			Message: "no records for the requested window",
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryResult{
			Outcome: status.OutcomeError,
			Message: fmt.Sprintf("failed to encode payload: %v", err),
		}
	}

	result, primaryErr := d.post(ctx, d.primary, d.primaryURL, body)
	if primaryErr == nil {
		return result
	}

	if d.fallbackURL == "" {
		return &DeliveryResult{
			Outcome: status.OutcomeError,
			Message: fmt.Sprintf("primary delivery failed, no fallback configured: %v", primaryErr),
		}
	}

	slog.Warn("Primary delivery failed, retrying against fallback IP",
		"hostname", d.hostname,
		"error", primaryErr)

	result, fallbackErr := d.post(ctx, d.fallback, d.fallbackURL, body)
	if fallbackErr == nil {
		return result
	}

	return &DeliveryResult{
		Outcome: status.OutcomeError,
		Message: fmt.Sprintf("delivery failed on both primary and fallback: %v; %v", primaryErr, fallbackErr),
	}
}

// post performs one POST. A returned error means the exchange did not
// complete (transport failure); a completed exchange always yields a result,
// 2xx or not.
func (d *defaultDispatcher) post(ctx context.Context, client *http.Client, url string, body []byte) (*DeliveryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Virtual-host routing must see the logical hostname even when the
	// request physically dials the fallback IP
	req.Host = d.hostname

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &DeliveryResult{
			Outcome:    status.OutcomeSuccess,
			HTTPStatus: resp.StatusCode,
		}, nil
	}
	return &DeliveryResult{
		Outcome:    status.OutcomeFailed,
		HTTPStatus: resp.StatusCode,
		Message:    fmt.Sprintf("cloud rejected payload with status %d", resp.StatusCode),
	}, nil
}
