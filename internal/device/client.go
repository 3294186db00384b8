// Package device provides the attendance terminal boundary: dialing the
// terminal, listing its loosely-shaped records, and normalizing them through
// an explicit field-alias order.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/attendkit/punchbridge/internal/httpclient"
)

const (
	attendancePath = "/v1/attlog"
	usersPath      = "/v1/users"
)

// Config holds the settings needed to reach one terminal
type Config struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
}

// Conn is an open session against a terminal. Sessions are single-use:
// the coordinator dials, runs one action, and closes.
type Conn interface {
	// ListAttendance returns all punch events currently held by the terminal
	ListAttendance(ctx context.Context) ([]PunchEvent, error)

	// ListUsers returns the terminal's user roster
	ListUsers(ctx context.Context) ([]User, error)

	// Close releases the session. Close errors are not actionable.
	Close() error
}

// Dialer opens a session against the terminal described by cfg
type Dialer func(ctx context.Context, cfg Config) (Conn, error)

// httpConn talks to the terminal's HTTP JSON interface
type httpConn struct {
	client  httpclient.Client
	baseURL string
}

// Dial opens a session against the terminal's HTTP interface. The connect
// phase is bounded by cfg.ConnectTimeout; a terminal that does not accept
// the TCP connection within it fails the dial.
func Dial(ctx context.Context, cfg Config) (Conn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	// Probe the TCP connect phase up front so an unreachable terminal
	// fails the dial itself, not the first action.
	d := &net.Dialer{Timeout: cfg.ConnectTimeout}
	probe, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to terminal at %s: %w", addr, err)
	}
	_ = probe.Close()

	return &httpConn{
		client:  httpclient.NewClientWithConnectTimeout(0, cfg.ConnectTimeout),
		baseURL: "http://" + addr,
	}, nil
}

// ListAttendance returns all punch events currently held by the terminal
func (c *httpConn) ListAttendance(ctx context.Context) ([]PunchEvent, error) {
	raw, err := c.fetchRecords(ctx, attendancePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	return ResolvePunchEvents(raw), nil
}

// ListUsers returns the terminal's user roster
func (c *httpConn) ListUsers(ctx context.Context) ([]User, error) {
	raw, err := c.fetchRecords(ctx, usersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ResolveUsers(raw), nil
}

// Close releases the session
func (c *httpConn) Close() error {
	if closer, ok := c.client.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
	return nil
}

// fetchRecords fetches a record list from the terminal. Firmwares return
// either a bare JSON array or an object wrapping it under "data".
func (c *httpConn) fetchRecords(ctx context.Context, path string) ([]map[string]any, error) {
	body, err := c.client.Get(ctx, c.baseURL+path)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected terminal response shape: %w", err)
	}
	return wrapped.Data, nil
}
