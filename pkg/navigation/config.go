package navigation

import (
	"fmt"
	"time"
)

// Config holds the tunable parameters of the instruction engine.
type Config struct {
	// Timing
	UpdateInterval time.Duration // Minimum time between ticks
	DebounceTime   time.Duration // How long a new instruction must hold before it is emitted

	// Geometry (horizontal metres / degrees)
	TurnThresholdDeg float64 // Below this heading error the instruction is "straight"
	ArriveDistance   float64 // Distance to the final corner that counts as arrived
	AdvanceDistance  float64 // Distance to the target corner that moves on to the next one

	// Distance throttling
	DistanceStep float64 // Remaining distance must shrink by this much before it is re-emitted

	// InvertTurns swaps left and right, for hosts whose frame is mirrored.
	InvertTurns bool
}

// DefaultConfig returns the tuning used on handheld devices
func DefaultConfig() Config {
	return Config{
		UpdateInterval: 250 * time.Millisecond, // 4 ticks per second
		DebounceTime:   400 * time.Millisecond,

		TurnThresholdDeg: 25,
		ArriveDistance:   1.2,
		AdvanceDistance:  1.0,

		DistanceStep: 5,
	}
}

// ResponsiveConfig reports distance more often and debounces less, for
// small venues where corners are close together.
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.DebounceTime = 250 * time.Millisecond
	cfg.DistanceStep = 2
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update interval must be positive, got %v", c.UpdateInterval)
	}
	if c.DebounceTime < 0 {
		return fmt.Errorf("debounce time must not be negative, got %v", c.DebounceTime)
	}
	if c.TurnThresholdDeg <= 0 || c.TurnThresholdDeg >= 180 {
		return fmt.Errorf("turn threshold must be in (0, 180) degrees, got %v", c.TurnThresholdDeg)
	}
	if c.ArriveDistance <= 0 {
		return fmt.Errorf("arrive distance must be positive, got %v", c.ArriveDistance)
	}
	if c.AdvanceDistance <= 0 {
		return fmt.Errorf("advance distance must be positive, got %v", c.AdvanceDistance)
	}
	if c.DistanceStep <= 0 {
		return fmt.Errorf("distance step must be positive, got %v", c.DistanceStep)
	}
	return nil
}
