package aggregate

import (
	"time"

	"github.com/attendkit/punchbridge/internal/device"
)

// unsetTime marks a first-in or last-out that never happened
const unsetTime = "-"

// PresenceState is an employee's inferred current presence
type PresenceState string

const (
	// StateIn means the employee's last punch was a check-in today
	StateIn PresenceState = "In"

	// StateOut means the employee's last punch was a check-out, or their
	// last punch is from a previous day
	StateOut PresenceState = "Out"
)

// LogEntry is one punch inside a daily summary
type LogEntry struct {
	Time string           `json:"time"`
	Kind device.PunchKind `json:"kind"`
}

// DailySummary is one employee's work-time summary for one calendar day
type DailySummary struct {
	EmployeeID    string     `json:"employeeId"`
	Date          string     `json:"date"`
	FirstIn       string     `json:"firstIn"`
	LastOut       string     `json:"lastOut"`
	TotalWorkedMs int64      `json:"totalWorkedMs"`
	Logs          []LogEntry `json:"logs"`
}

// LiveStatus is an employee's presence derived from their chronologically
// last punch across all history
type LiveStatus struct {
	EmployeeID string        `json:"employeeId"`
	State      PresenceState `json:"state"`
	Time       time.Time     `json:"time"`
}

// SummaryMap maps employee id -> date ("YYYY-MM-DD") -> daily summary
type SummaryMap map[string]map[string]*DailySummary

// StatusMap maps employee id -> live status
type StatusMap map[string]*LiveStatus

// Stats is the full output of one aggregation pass
type Stats struct {
	Summary SummaryMap
	Status  StatusMap
}
