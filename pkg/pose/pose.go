// Package pose holds the live pose of the user's device as reported by the
// tracking subsystem, together with that subsystem's tracking state.
package pose

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/geom"
)

// Pose is a device position and facing direction in the live frame.
type Pose struct {
	Position geom.Vec3 `json:"position"`
	Forward  geom.Vec3 `json:"forward"`
}

// Source provides the latest pose. ok is false while no pose is available.
type Source interface {
	Pose() (p Pose, ok bool)
}

// TrackingState mirrors the states reported by AR tracking subsystems.
type TrackingState int

const (
	StateNone TrackingState = iota
	StateInitializing
	StateTracking
	StateLimited
)

func (s TrackingState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateInitializing:
		return "initializing"
	case StateTracking:
		return "tracking"
	case StateLimited:
		return "limited"
	default:
		return fmt.Sprintf("TrackingState(%d)", int(s))
	}
}

// ParseTrackingState parses the wire name of a tracking state.
func ParseTrackingState(s string) (TrackingState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return StateNone, nil
	case "initializing":
		return StateInitializing, nil
	case "tracking":
		return StateTracking, nil
	case "limited":
		return StateLimited, nil
	default:
		return StateNone, fmt.Errorf("unknown tracking state %q", s)
	}
}

// Feed is the shared latest pose and tracking state. Writers are tracker
// connections; readers are the navigator loop and HTTP handlers.
type Feed struct {
	mu       sync.RWMutex
	pose     Pose
	hasPose  bool
	state    TrackingState
	updated  time.Time
	ready    chan struct{} // closed while Ready() is true
	onReady  []func()
	wasReady bool
}

// NewFeed creates an empty feed in StateNone.
func NewFeed() *Feed {
	return &Feed{ready: make(chan struct{})}
}

// Pose implements Source.
func (f *Feed) Pose() (Pose, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pose, f.hasPose
}

// State returns the current tracking state.
func (f *Feed) State() TrackingState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Updated returns when the pose was last written.
func (f *Feed) Updated() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updated
}

// Ready reports whether the subsystem is tracking and a pose is available.
func (f *Feed) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isReady()
}

// SetPose stores a new pose.
func (f *Feed) SetPose(p Pose) {
	f.mu.Lock()
	f.pose = p
	f.hasPose = true
	f.updated = time.Now()
	fire := f.transition()
	f.mu.Unlock()
	runAll(fire)
}

// SetState stores a new tracking state.
func (f *Feed) SetState(s TrackingState) {
	f.mu.Lock()
	f.state = s
	fire := f.transition()
	f.mu.Unlock()
	runAll(fire)
}

// Clear forgets the pose and drops back to StateNone, e.g. when the
// tracking device disconnects.
func (f *Feed) Clear() {
	f.mu.Lock()
	f.pose = Pose{}
	f.hasPose = false
	f.state = StateNone
	fire := f.transition()
	f.mu.Unlock()
	runAll(fire)
}

// OnReady registers fn to run on every not-ready to ready transition.
func (f *Feed) OnReady(fn func()) {
	f.mu.Lock()
	f.onReady = append(f.onReady, fn)
	f.mu.Unlock()
}

// WaitReady blocks until the feed is ready or ctx is done.
func (f *Feed) WaitReady(ctx context.Context) error {
	for {
		f.mu.RLock()
		if f.isReady() {
			f.mu.RUnlock()
			return nil
		}
		ch := f.ready
		f.mu.RUnlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (f *Feed) isReady() bool {
	return f.state == StateTracking && f.hasPose
}

// transition updates the ready channel and returns callbacks to fire.
// Must be called with f.mu held.
func (f *Feed) transition() []func() {
	now := f.isReady()
	if now == f.wasReady {
		return nil
	}
	f.wasReady = now
	if now {
		close(f.ready)
		return append([]func(){}, f.onReady...)
	}
	f.ready = make(chan struct{})
	return nil
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
