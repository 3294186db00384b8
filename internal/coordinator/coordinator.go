// Package coordinator serializes access to the single physical terminal
// connection: one in-flight action, a fixed cooldown after any failure, and
// reclamation of sessions stuck past a threshold.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/attendkit/punchbridge/internal/device"
)

// Action is one unit of work run against an open terminal session
type Action func(ctx context.Context, conn device.Conn) error

// Policy holds the device-access policy knobs. These are configuration with
// fixed defaults, not derived values.
type Policy struct {
	// Cooldown is the idle window armed after any communication failure
	Cooldown time.Duration

	// StuckThreshold is the busy-flag age after which a session is
	// considered stuck and a new request may reclaim the device
	StuckThreshold time.Duration
}

// State is a snapshot of the coordinator's process-wide state
type State struct {
	Busy          bool       `json:"busy"`
	BusySince     *time.Time `json:"busySince,omitempty"`
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`
}

// Coordinator owns the device connection lifecycle
//
// Guarantees: at most one in-flight action; no failure path leaves the busy
// flag permanently set (stuck reclamation) or the device permanently
// unreachable (the cooldown is fixed-duration).
type Coordinator interface {
	// Execute dials the terminal and runs action against the session.
	// Fails fast with *BusyError or *CooldownError without touching the
	// device; any connect or action failure is returned as
	// *CommunicationError and arms the cooldown.
	Execute(ctx context.Context, action Action) error

	// State returns a snapshot of the current coordinator state
	State() State
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithDialer overrides the terminal dialer
func WithDialer(dialer device.Dialer) Option {
	return func(c *defaultCoordinator) {
		c.dialer = dialer
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *defaultCoordinator) {
		c.now = now
	}
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	deviceCfg func() device.Config
	policy    Policy
	dialer    device.Dialer
	now       func() time.Time

	// mu guards the state transitions only; it is never held across a
	// device action.
	mu            sync.Mutex
	busy          bool
	busySince     time.Time
	cooldownUntil time.Time
}

// New creates a coordinator. deviceCfg is called at the start of every
// action so runtime device-config changes take effect on the next request.
func New(deviceCfg func() device.Config, policy Policy, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		deviceCfg: deviceCfg,
		policy:    policy,
		dialer:    device.Dial,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute dials the terminal and runs action against the session
func (c *defaultCoordinator) Execute(ctx context.Context, action Action) error {
	if err := c.acquire(); err != nil {
		return err
	}

	cfg := c.deviceCfg()
	err := c.runAction(ctx, cfg, action)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		c.cooldownUntil = c.now().Add(c.policy.Cooldown)
		message := normalizeMessage(err)
		slog.Error("Device action failed, arming cooldown",
			"error", message,
			"cooldown", c.policy.Cooldown)
		return &CommunicationError{Message: message, Err: err}
	}
	return nil
}

// acquire claims the device or fails fast. Cooldown takes priority over
// busy or idle for all new requests.
func (c *defaultCoordinator) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Before(c.cooldownUntil) {
		return &CooldownError{Remaining: c.cooldownUntil.Sub(now)}
	}

	if c.busy {
		age := now.Sub(c.busySince)
		if age <= c.policy.StuckThreshold {
			return &BusyError{}
		}
		// A session stuck past the threshold never completed; reclaim it
		// rather than hanging every future request.
		slog.Warn("Reclaiming stuck device session", "busy_for", age)
	}

	c.busy = true
	c.busySince = now
	return nil
}

// runAction opens a session, runs the action, and closes the session.
// Close errors are swallowed: the session is single-use and a failed close
// is not actionable.
func (c *defaultCoordinator) runAction(ctx context.Context, cfg device.Config, action Action) error {
	conn, err := c.dialer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Debug("Ignoring terminal close error", "error", closeErr)
		}
	}()
	return action(ctx, conn)
}

// State returns a snapshot of the current coordinator state
func (c *defaultCoordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{Busy: c.busy}
	if c.busy {
		since := c.busySince
		s.BusySince = &since
	}
	if !c.cooldownUntil.IsZero() && c.now().Before(c.cooldownUntil) {
		until := c.cooldownUntil
		s.CooldownUntil = &until
	}
	return s
}
