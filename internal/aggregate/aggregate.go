// Package aggregate turns raw punch events into per-employee daily work-time
// summaries and live presence status. Pure transform: summaries and status
// are recomputed in full from the raw log set on every call.
package aggregate

import (
	"sort"
	"time"

	"github.com/attendkit/punchbridge/internal/device"
)

// ComputeStats aggregates events into daily summaries and live status.
// now supplies "today" for the stale-punch correction: an employee whose
// chronologically last punch is from a previous calendar day is reported Out
// even if that punch was a check-in. The correction applies to status only,
// never to stored summaries.
func ComputeStats(events []device.PunchEvent, now time.Time) *Stats {
	sorted := make([]device.PunchEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	summary := make(SummaryMap)
	status := make(StatusMap)

	// One open check-in pointer per employee. A pointer never pairs with a
	// check-out on a different calendar day: overnight shifts accumulate no
	// worked time. Historical totals depend on this, so it stays.
	open := make(map[string]time.Time)

	for _, ev := range sorted {
		day := ev.Timestamp.Format(time.DateOnly)
		bucket := dayBucket(summary, ev.EmployeeID, day)
		bucket.Logs = append(bucket.Logs, LogEntry{
			Time: ev.Timestamp.Format(time.TimeOnly),
			Kind: ev.Kind,
		})

		switch ev.Kind {
		case device.KindCheckOut:
			bucket.LastOut = ev.Timestamp.Format(time.TimeOnly)
			if openAt, ok := open[ev.EmployeeID]; ok {
				if sameLocalDay(openAt, ev.Timestamp) {
					bucket.TotalWorkedMs += ev.Timestamp.Sub(openAt).Milliseconds()
				}
				delete(open, ev.EmployeeID)
			}
			status[ev.EmployeeID] = &LiveStatus{
				EmployeeID: ev.EmployeeID,
				State:      StateOut,
				Time:       ev.Timestamp,
			}
		default:
			if bucket.FirstIn == unsetTime {
				bucket.FirstIn = ev.Timestamp.Format(time.TimeOnly)
			}
			open[ev.EmployeeID] = ev.Timestamp
			status[ev.EmployeeID] = &LiveStatus{
				EmployeeID: ev.EmployeeID,
				State:      StateIn,
				Time:       ev.Timestamp,
			}
		}
	}

	for _, st := range status {
		if st.State == StateIn && !sameLocalDay(st.Time, now) {
			st.State = StateOut
		}
	}

	return &Stats{Summary: summary, Status: status}
}

// dayBucket returns the summary bucket for (employee, day), creating it on
// first touch
func dayBucket(summary SummaryMap, employeeID, day string) *DailySummary {
	days, ok := summary[employeeID]
	if !ok {
		days = make(map[string]*DailySummary)
		summary[employeeID] = days
	}
	bucket, ok := days[day]
	if !ok {
		bucket = &DailySummary{
			EmployeeID: employeeID,
			Date:       day,
			FirstIn:    unsetTime,
			LastOut:    unsetTime,
		}
		days[day] = bucket
	}
	return bucket
}

func sameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
