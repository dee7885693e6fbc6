// Package config loads go-wayfinder settings.
//
// Settings come from DefaultConfig, then an optional YAML file, then
// environment variables. Command-line flags are applied last by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-wayfinder/pkg/navigation"
	"github.com/teslashibe/go-wayfinder/pkg/navigator"
	"github.com/teslashibe/go-wayfinder/pkg/planner"
)

// Default server settings.
const (
	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultNodesFile = "scene.yaml"
)

// Config is the top-level wayfinder.yaml configuration
type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	Debug     bool   `yaml:"debug"` // request logging
	NodesFile string `yaml:"nodes_file"`
	Watch     bool   `yaml:"watch"` // reload the scene when the file changes

	Navigation NavigationConfig `yaml:"navigation"`
}

// NavigationConfig holds the engine and navigator tuning
type NavigationConfig struct {
	UpdateInterval   time.Duration `yaml:"update_interval"`
	DebounceTime     time.Duration `yaml:"debounce_time"`
	TurnThresholdDeg float64       `yaml:"turn_threshold_deg"`
	ArriveDistance   float64       `yaml:"arrive_distance"`
	AdvanceDistance  float64       `yaml:"advance_distance"`
	DistanceStep     float64       `yaml:"distance_step"`
	InvertTurns      bool          `yaml:"invert_turns"`

	QueueSize             int           `yaml:"queue_size"`
	ReadinessTimeout      time.Duration `yaml:"readiness_timeout"`
	PlanTimeout           time.Duration `yaml:"plan_timeout"`
	KeepCalibrationOnStop bool          `yaml:"keep_calibration_on_stop"`

	SnapRadius float64 `yaml:"snap_radius"` // metres a route end may be from its node
}

// DefaultConfig returns the built-in settings
func DefaultConfig() Config {
	eng := navigation.DefaultConfig()
	nav := navigator.DefaultConfig()
	return Config{
		Port:      DefaultPort,
		LogLevel:  DefaultLogLevel,
		NodesFile: DefaultNodesFile,
		Watch:     true,
		Navigation: NavigationConfig{
			UpdateInterval:   eng.UpdateInterval,
			DebounceTime:     eng.DebounceTime,
			TurnThresholdDeg: eng.TurnThresholdDeg,
			ArriveDistance:   eng.ArriveDistance,
			AdvanceDistance:  eng.AdvanceDistance,
			DistanceStep:     eng.DistanceStep,
			InvertTurns:      eng.InvertTurns,

			QueueSize:             nav.QueueSize,
			ReadinessTimeout:      nav.ReadinessTimeout,
			PlanTimeout:           nav.PlanTimeout,
			KeepCalibrationOnStop: nav.KeepCalibrationOnStop,

			SnapRadius: planner.DefaultSnapRadius,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file. A missing file is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from PORT, LOG_LEVEL, NODES_FILE and
// WAYFINDER_DEBUG. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Port = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("NODES_FILE"); ok && v != "" {
		c.NodesFile = v
	}
	if v, ok := lookup("WAYFINDER_DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WAYFINDER_DEBUG: %w", err)
		}
		c.Debug = debug
	}
	return nil
}

// Validate checks the configuration before anything is started
func (c Config) Validate() error {
	var errs []error

	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if strings.TrimSpace(c.NodesFile) == "" {
		errs = append(errs, errors.New("nodes_file is required"))
	}
	if c.Navigation.SnapRadius <= 0 {
		errs = append(errs, fmt.Errorf("snap radius must be positive, got %v", c.Navigation.SnapRadius))
	}
	if err := c.Navigator().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Engine returns the instruction engine settings.
func (c Config) Engine() navigation.Config {
	n := c.Navigation
	return navigation.Config{
		UpdateInterval:   n.UpdateInterval,
		DebounceTime:     n.DebounceTime,
		TurnThresholdDeg: n.TurnThresholdDeg,
		ArriveDistance:   n.ArriveDistance,
		AdvanceDistance:  n.AdvanceDistance,
		DistanceStep:     n.DistanceStep,
		InvertTurns:      n.InvertTurns,
	}
}

// Navigator returns the navigator settings.
func (c Config) Navigator() navigator.Config {
	n := c.Navigation
	return navigator.Config{
		Navigation:            c.Engine(),
		QueueSize:             n.QueueSize,
		ReadinessTimeout:      n.ReadinessTimeout,
		PlanTimeout:           n.PlanTimeout,
		KeepCalibrationOnStop: n.KeepCalibrationOnStop,
	}
}
