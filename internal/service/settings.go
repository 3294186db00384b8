package service

import (
	"fmt"
	"sync"

	"github.com/attendkit/punchbridge/internal/device"
)

// DeviceSettings holds the runtime-mutable terminal address. The coordinator
// reads it at the start of every action, so changes take effect on the next
// device request without a restart.
type DeviceSettings struct {
	mu  sync.RWMutex
	cfg device.Config
}

// NewDeviceSettings creates a settings holder seeded from the loaded config
func NewDeviceSettings(cfg device.Config) *DeviceSettings {
	return &DeviceSettings{cfg: cfg}
}

// Get returns the current terminal settings
func (s *DeviceSettings) Get() device.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set updates the terminal address
func (s *DeviceSettings) Set(host string, port int) error {
	if host == "" {
		return fmt.Errorf("device host must not be empty")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("device port must be between 1 and 65535, got %d", port)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Host = host
	s.cfg.Port = port
	return nil
}
