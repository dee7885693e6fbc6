package navigator

import "errors"

var (
	// ErrLookup is returned when a node id or name cannot be resolved.
	ErrLookup = errors.New("lookup failed")

	// ErrCalibration is returned when alignment did not happen.
	ErrCalibration = errors.New("calibration failed")

	// ErrPlanning is returned when the planner produced no path.
	ErrPlanning = errors.New("planning failed")

	// ErrInvalidSession is returned when the engine refused to start.
	ErrInvalidSession = errors.New("invalid session request")

	// ErrNotReady is returned when a command waited for tracking longer
	// than the readiness timeout.
	ErrNotReady = errors.New("tracking not ready")

	// ErrDiscarded is returned for a waiting command removed by a stop.
	ErrDiscarded = errors.New("command discarded by stop")

	// ErrQueueFull is returned by Submit when the command queue is full.
	ErrQueueFull = errors.New("command queue full")

	// ErrClosed is returned once the navigator loop has exited.
	ErrClosed = errors.New("navigator closed")
)
