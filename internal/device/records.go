package device

import (
	"fmt"
	"strconv"
	"time"
)

// Terminal firmwares disagree on field names. Each logical field is resolved
// through an explicit alias list, tried in order; the first present alias wins.
var (
	employeeIDAliases = []string{"deviceUserId", "userId", "uid", "id"}
	timestampAliases  = []string{"recordTime", "timestamp", "time"}
	statusAliases     = []string{"state", "status", "type"}
	serialAliases     = []string{"serialNumber", "sn", "deviceSerial"}

	userIDAliases   = []string{"userId", "uid", "id"}
	userNameAliases = []string{"name", "userName", "username"}
	userRoleAliases = []string{"role", "privilege"}
	userCardAliases = []string{"cardno", "card", "cardNumber"}
)

// checkOutStatus is the terminal status code meaning clock-out; every other
// value, including an absent field, means clock-in.
const checkOutStatus = 1

// timestampLayouts are tried in order when the timestamp field is a string
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ResolvePunchEvent normalizes one loosely-shaped attendance record.
// Returns false when the record has no usable timestamp.
func ResolvePunchEvent(raw map[string]any) (PunchEvent, bool) {
	ts, ok := resolveTimestamp(raw)
	if !ok {
		return PunchEvent{}, false
	}

	kind := KindCheckIn
	if status, ok := resolveInt(raw, statusAliases); ok && status == checkOutStatus {
		kind = KindCheckOut
	}

	return PunchEvent{
		EmployeeID:   resolveString(raw, employeeIDAliases, "0"),
		Timestamp:    ts,
		Kind:         kind,
		DeviceSerial: resolveString(raw, serialAliases, ""),
	}, true
}

// ResolvePunchEvents normalizes a batch of attendance records, dropping
// records with no usable timestamp.
func ResolvePunchEvents(raw []map[string]any) []PunchEvent {
	events := make([]PunchEvent, 0, len(raw))
	for _, r := range raw {
		if ev, ok := ResolvePunchEvent(r); ok {
			events = append(events, ev)
		}
	}
	return events
}

// ResolveUser normalizes one loosely-shaped user record
func ResolveUser(raw map[string]any) User {
	return User{
		ID:         resolveString(raw, userIDAliases, "0"),
		Name:       resolveString(raw, userNameAliases, "Unknown"),
		Role:       resolveString(raw, userRoleAliases, "N/A"),
		CardNumber: resolveString(raw, userCardAliases, "0"),
	}
}

// ResolveUsers normalizes a batch of user records
func ResolveUsers(raw []map[string]any) []User {
	users := make([]User, 0, len(raw))
	for _, r := range raw {
		users = append(users, ResolveUser(r))
	}
	return users
}

// resolveString returns the first present alias rendered as a string
func resolveString(raw map[string]any, aliases []string, fallback string) string {
	for _, alias := range aliases {
		v, ok := raw[alias]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			// JSON numbers decode as float64; ids are integral
			return strconv.FormatInt(int64(s), 10)
		case int:
			return strconv.Itoa(s)
		case int64:
			return strconv.FormatInt(s, 10)
		default:
			return fmt.Sprintf("%v", v)
		}
	}
	return fallback
}

// resolveInt returns the first present alias interpreted as an integer
func resolveInt(raw map[string]any, aliases []string) (int, bool) {
	for _, alias := range aliases {
		v, ok := raw[alias]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		case int64:
			return int(n), true
		case string:
			if parsed, err := strconv.Atoi(n); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

// resolveTimestamp returns the first present alias parsed as a local time.
// String values are tried against the known layouts; numeric values are
// treated as epoch seconds (or milliseconds when large enough).
func resolveTimestamp(raw map[string]any) (time.Time, bool) {
	for _, alias := range timestampAliases {
		v, ok := raw[alias]
		if !ok || v == nil {
			continue
		}
		switch ts := v.(type) {
		case string:
			for _, layout := range timestampLayouts {
				if parsed, err := time.ParseInLocation(layout, ts, time.Local); err == nil {
					return parsed, true
				}
			}
		case float64:
			return epochToTime(int64(ts)), true
		case int64:
			return epochToTime(ts), true
		}
	}
	return time.Time{}, false
}

func epochToTime(n int64) time.Time {
	// Millisecond epochs are 13 digits; second epochs 10
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
