package filter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendkit/punchbridge/internal/aggregate"
	"github.com/attendkit/punchbridge/internal/device"
	"github.com/attendkit/punchbridge/internal/filter"
)

func punch(t *testing.T, employee, ts string) device.PunchEvent {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05", ts, time.Local)
	require.NoError(t, err)
	return device.PunchEvent{EmployeeID: employee, Timestamp: parsed, Kind: device.KindCheckIn}
}

func testEvents(t *testing.T) []device.PunchEvent {
	t.Helper()
	return []device.PunchEvent{
		punch(t, "1", "2025-06-02 09:00:00"),
		punch(t, "1", "2025-06-02 17:30:00"),
		punch(t, "2", "2025-06-15 08:00:00"),
		punch(t, "1", "2025-07-01 09:00:00"),
		punch(t, "3", "2024-12-31 23:00:00"),
	}
}

func TestLogs(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name      string
		ftype     string
		value     string
		wantCount int
	}{
		{name: "date filter", ftype: "date", value: "2025-06-02", wantCount: 2},
		{name: "month filter", ftype: "month", value: "2025-06", wantCount: 3},
		{name: "year filter", ftype: "year", value: "2025", wantCount: 4},
		{name: "previous year", ftype: "year", value: "2024", wantCount: 1},
		{name: "no match", ftype: "date", value: "2023-01-01", wantCount: 0},
		{name: "unrecognized type passes all", ftype: "weekly", value: "whatever", wantCount: 5},
		{name: "empty type with value passes all", ftype: "", value: "2025-06-02", wantCount: 5},
		{name: "both omitted defaults to today", ftype: "", value: "", wantCount: 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := filter.Logs(testEvents(t), tt.ftype, tt.value, now)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
		})
	}
}

func TestLogs_InvalidValues(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name  string
		ftype string
		value string
	}{
		{name: "bad date", ftype: "date", value: "06/02/2025"},
		{name: "bad month", ftype: "month", value: "June 2025"},
		{name: "month out of range", ftype: "month", value: "2025-13"},
		{name: "bad year", ftype: "year", value: "twenty25"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := filter.Logs(testEvents(t), tt.ftype, tt.value, now)
			require.Error(t, err)
			var vErr *filter.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func testSummary(t *testing.T) aggregate.SummaryMap {
	t.Helper()
	return aggregate.SummaryMap{
		"1": {
			"2025-06-02": {EmployeeID: "1", Date: "2025-06-02"},
			"2025-07-01": {EmployeeID: "1", Date: "2025-07-01"},
		},
		"2": {
			"2025-06-15": {EmployeeID: "2", Date: "2025-06-15"},
		},
		"3": {
			"2024-12-31": {EmployeeID: "3", Date: "2024-12-31"},
		},
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name          string
		ftype         string
		value         string
		wantEmployees []string
		wantEntries   int
	}{
		{name: "date filter", ftype: "date", value: "2025-06-02", wantEmployees: []string{"1"}, wantEntries: 1},
		{name: "month filter", ftype: "month", value: "2025-06", wantEmployees: []string{"1", "2"}, wantEntries: 2},
		{name: "year filter", ftype: "year", value: "2025", wantEmployees: []string{"1", "2"}, wantEntries: 3},
		{name: "empty type passes all", ftype: "", value: "x", wantEmployees: []string{"1", "2", "3"}, wantEntries: 4},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := filter.Summary(testSummary(t), tt.ftype, tt.value, now)
			require.NoError(t, err)

			employees := make([]string, 0, len(got))
			entries := 0
			for id, days := range got {
				employees = append(employees, id)
				entries += len(days)
				assert.NotEmpty(t, days, "employees with empty result sets must be dropped")
			}
			assert.ElementsMatch(t, tt.wantEmployees, employees)
			assert.Equal(t, tt.wantEntries, entries)
		})
	}
}

// Raw-log and summary filters must agree on the same window: every distinct
// (employee, date) in the date-filtered logs has a summary entry, and month
// is a superset of date.
func TestLogsAndSummaryAreConsistent(t *testing.T) {
	t.Parallel()

	events := testEvents(t)
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.Local)
	stats := aggregate.ComputeStats(events, now)

	for _, value := range []string{"2025-06-02", "2025-06-15", "2025-07-01", "2024-12-31"} {
		dateLogs, err := filter.Logs(events, "date", value, now)
		require.NoError(t, err)
		dateSummary, err := filter.Summary(stats.Summary, "date", value, now)
		require.NoError(t, err)

		distinct := make(map[string]map[string]bool)
		for _, ev := range dateLogs {
			if distinct[ev.EmployeeID] == nil {
				distinct[ev.EmployeeID] = make(map[string]bool)
			}
			distinct[ev.EmployeeID][ev.Timestamp.Format(time.DateOnly)] = true
		}

		logPairs := 0
		for _, days := range distinct {
			logPairs += len(days)
		}
		summaryPairs := 0
		for _, days := range dateSummary {
			summaryPairs += len(days)
		}
		assert.Equal(t, logPairs, summaryPairs, "window %s drifted between log and summary filters", value)

		// Month is a superset of date
		monthLogs, err := filter.Logs(events, "month", value[:7], now)
		require.NoError(t, err)
		for _, ev := range dateLogs {
			assert.Contains(t, monthLogs, ev)
		}
	}
}
