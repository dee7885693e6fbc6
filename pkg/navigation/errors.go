package navigation

import "errors"

var (
	// ErrPathTooShort is returned when a corner path has fewer than 2 points.
	ErrPathTooShort = errors.New("path needs at least 2 corners")

	// ErrNoPoseSource is returned when a session is started without a user pose source.
	ErrNoPoseSource = errors.New("no user pose source")

	// ErrDuplicateSession is returned when the same destination and path are
	// already active.
	ErrDuplicateSession = errors.New("identical session already active")

	// ErrNotCalibrated is returned when a session is requested before the
	// map has been aligned.
	ErrNotCalibrated = errors.New("navigation requires calibration")
)
