package navigator

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/navigation"
)

// Config holds the navigator settings.
type Config struct {
	Navigation navigation.Config

	QueueSize        int           // Buffered commands before Submit drops
	ReadinessTimeout time.Duration // How long a command waits for tracking; 0 waits forever
	PlanTimeout      time.Duration // Upper bound on a single planner call

	// KeepCalibrationOnStop keeps the alignment across stop_navigation so
	// several routes can be walked after one calibration.
	KeepCalibrationOnStop bool
}

// DefaultConfig returns the default navigator settings
func DefaultConfig() Config {
	return Config{
		Navigation:       navigation.DefaultConfig(),
		QueueSize:        32,
		ReadinessTimeout: 30 * time.Second,
		PlanTimeout:      2 * time.Second,
	}
}

// Validate checks the navigator and engine settings.
func (c Config) Validate() error {
	if err := c.Navigation.Validate(); err != nil {
		return err
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if c.ReadinessTimeout < 0 {
		return fmt.Errorf("readiness timeout must not be negative, got %v", c.ReadinessTimeout)
	}
	if c.PlanTimeout <= 0 {
		return fmt.Errorf("plan timeout must be positive, got %v", c.PlanTimeout)
	}
	return nil
}
