package coordinator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/attendkit/punchbridge/internal/httpclient"
)

// BusyError means another device action is in flight. Transient: no
// cooldown is incurred, retry shortly.
type BusyError struct{}

func (*BusyError) Error() string {
	return "device is busy with another operation"
}

// CooldownError means the device boundary is inside its post-failure idle
// window. Carries the remaining wait.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("device is cooling down, retry in %ds", e.RemainingSeconds())
}

// RemainingSeconds returns the remaining wait rounded up to whole seconds,
// always positive while the cooldown is armed.
func (e *CooldownError) RemainingSeconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

// CommunicationError is any connect or action failure against the device.
// It always arms the cooldown.
type CommunicationError struct {
	Message string
	Err     error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("device communication failed: %s", e.Message)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// IsBusy reports whether err is a busy failure
func IsBusy(err error) bool {
	var busyErr *BusyError
	return errors.As(err, &busyErr)
}

// IsCooldown reports whether err is a cooldown failure
func IsCooldown(err error) bool {
	var cooldownErr *CooldownError
	return errors.As(err, &cooldownErr)
}

// normalizeMessage reduces an arbitrary failure to a single message,
// preferring a structured message field over the rendered error chain.
func normalizeMessage(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return err.Error()
}
