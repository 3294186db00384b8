package status

import "time"

// Outcome classifies one sync attempt
type Outcome string

const (
	// OutcomeSuccess means the cloud accepted the payload with a 2xx
	OutcomeSuccess Outcome = "success"

	// OutcomeFailed means the exchange completed but the cloud answered
	// non-2xx; the payload is considered undelivered
	OutcomeFailed Outcome = "failed"

	// OutcomeError means delivery failed at the transport level on both
	// the primary host and the fallback IP
	OutcomeError Outcome = "error"

	// OutcomeSkipped means no delivery was attempted (empty payload or
	// auto-sync disabled)
	OutcomeSkipped Outcome = "skipped"
)

// SyncResult is the outcome of one sync attempt for one target date
type SyncResult struct {
	// TargetDate is the synced calendar day, "YYYY-MM-DD"
	TargetDate string `json:"targetDate"`

	// Outcome classifies the attempt
	Outcome Outcome `json:"outcome"`

	// HTTPStatus is the cloud's response status when an exchange completed
	HTTPStatus int `json:"httpStatus,omitempty"`

	// RecordCount is the number of daily records in the payload
	RecordCount int `json:"recordCount"`

	// Message carries failure or skip detail
	Message string `json:"message,omitempty"`

	// Timestamp is when the attempt finished
	Timestamp time.Time `json:"timestamp"`
}

// SchedulerState is the persisted daily-sync state
type SchedulerState struct {
	// Enabled is the auto-sync flag
	Enabled bool `json:"enabled"`

	// LastResult is the outcome of the most recent sync attempt
	LastResult *SyncResult `json:"lastResult,omitempty"`

	// LastAttempt is the timestamp of the most recent attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
}
