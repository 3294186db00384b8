// Package filter narrows raw punch logs and daily summaries to a requested
// date, month, or year window. Both filters share one set of date-equality
// rules so a raw-log count and a summary for the same window always agree.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/attendkit/punchbridge/internal/aggregate"
	"github.com/attendkit/punchbridge/internal/device"
)

// Filter types accepted by the API
const (
	// TypeDate narrows to one calendar day, value "YYYY-MM-DD"
	TypeDate = "date"

	// TypeMonth narrows to one month, value "YYYY-MM"
	TypeMonth = "month"

	// TypeYear narrows to one year, value "YYYY"
	TypeYear = "year"
)

// ValidationError is malformed caller input to a filter
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// window is a parsed filter value shared by both filters
type window struct {
	matchAll bool
	year     int
	month    time.Month
	day      int
	hasMonth bool
	hasDay   bool
}

// parseWindow resolves type/value into a window. An empty or unrecognized
// type passes everything through; when both type and value are omitted the
// window defaults to today.
func parseWindow(ftype, value string, now time.Time) (window, error) {
	if ftype == "" && value == "" {
		ftype = TypeDate
		value = now.Format(time.DateOnly)
	}

	switch ftype {
	case TypeDate:
		// Parsed as local midnight so the comparison is in local calendar terms
		target, err := time.ParseInLocation(time.DateOnly, value, time.Local)
		if err != nil {
			return window{}, &ValidationError{Message: fmt.Sprintf("invalid date value %q, expected YYYY-MM-DD", value)}
		}
		y, m, d := target.Date()
		return window{year: y, month: m, day: d, hasMonth: true, hasDay: true}, nil

	case TypeMonth:
		parts := strings.SplitN(value, "-", 2)
		if len(parts) != 2 {
			return window{}, &ValidationError{Message: fmt.Sprintf("invalid month value %q, expected YYYY-MM", value)}
		}
		year, yearErr := strconv.Atoi(parts[0])
		month, monthErr := strconv.Atoi(parts[1])
		if yearErr != nil || monthErr != nil || month < 1 || month > 12 {
			return window{}, &ValidationError{Message: fmt.Sprintf("invalid month value %q, expected YYYY-MM", value)}
		}
		return window{year: year, month: time.Month(month), hasMonth: true}, nil

	case TypeYear:
		year, err := strconv.Atoi(value)
		if err != nil {
			return window{}, &ValidationError{Message: fmt.Sprintf("invalid year value %q, expected YYYY", value)}
		}
		return window{year: year}, nil

	default:
		return window{matchAll: true}, nil
	}
}

// matchTime reports whether a punch timestamp falls inside the window
func (w window) matchTime(ts time.Time) bool {
	if w.matchAll {
		return true
	}
	y, m, d := ts.Date()
	if y != w.year {
		return false
	}
	if w.hasMonth && m != w.month {
		return false
	}
	if w.hasDay && d != w.day {
		return false
	}
	return true
}

// matchDateKey reports whether a "YYYY-MM-DD" summary key falls inside the
// window. Exact match for a date window, prefix match for month and year;
// equivalent to matchTime for well-formed keys.
func (w window) matchDateKey(key string) bool {
	if w.matchAll {
		return true
	}
	if w.hasDay {
		return key == fmt.Sprintf("%04d-%02d-%02d", w.year, w.month, w.day)
	}
	if w.hasMonth {
		return strings.HasPrefix(key, fmt.Sprintf("%04d-%02d", w.year, w.month))
	}
	return strings.HasPrefix(key, fmt.Sprintf("%04d", w.year))
}

// Logs narrows raw punch events to the requested window
func Logs(events []device.PunchEvent, ftype, value string, now time.Time) ([]device.PunchEvent, error) {
	w, err := parseWindow(ftype, value, now)
	if err != nil {
		return nil, err
	}

	filtered := make([]device.PunchEvent, 0, len(events))
	for _, ev := range events {
		if w.matchTime(ev.Timestamp) {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}

// Summary narrows a summary map to the requested window, dropping any
// employee whose result set becomes empty
func Summary(summary aggregate.SummaryMap, ftype, value string, now time.Time) (aggregate.SummaryMap, error) {
	w, err := parseWindow(ftype, value, now)
	if err != nil {
		return nil, err
	}

	filtered := make(aggregate.SummaryMap)
	for employeeID, days := range summary {
		kept := make(map[string]*aggregate.DailySummary)
		for date, daySummary := range days {
			if w.matchDateKey(date) {
				kept[date] = daySummary
			}
		}
		if len(kept) > 0 {
			filtered[employeeID] = kept
		}
	}
	return filtered, nil
}
