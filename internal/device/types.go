package device

import "time"

// PunchKind classifies a punch event
type PunchKind string

const (
	// KindCheckIn is a clock-in punch
	KindCheckIn PunchKind = "checkIn"

	// KindCheckOut is a clock-out punch
	KindCheckOut PunchKind = "checkOut"
)

// PunchEvent is a single normalized clock-in or clock-out record from the terminal
type PunchEvent struct {
	EmployeeID   string    `json:"employeeId"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         PunchKind `json:"kind"`
	DeviceSerial string    `json:"deviceSerial,omitempty"`
}

// User is a normalized terminal user record
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	CardNumber string `json:"cardNumber"`
}
