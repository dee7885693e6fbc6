// Package calibration aligns the internal map frame with the live tracking
// frame. Alignment is one-shot: once calibrated, further requests are
// ignored until Reset.
package calibration

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/geom"
	"github.com/teslashibe/go-wayfinder/pkg/nodes"
	"github.com/teslashibe/go-wayfinder/pkg/pose"
)

var (
	// ErrAlreadyCalibrated is returned by Align until Reset is called.
	ErrAlreadyCalibrated = errors.New("already calibrated")

	// ErrNoPose is returned when the live pose is unavailable.
	ErrNoPose = errors.New("live pose unavailable")

	// ErrNoHeading is returned when the node or camera forward has no
	// horizontal component, so no yaw can be derived.
	ErrNoHeading = errors.New("forward vector has no horizontal component")
)

// NodeLookup resolves calibration anchors.
type NodeLookup interface {
	FindByID(id string) (*nodes.Node, error)
}

// Frame is the result of the last successful alignment.
type Frame struct {
	// Offset is the horizontal translation applied at the anchor.
	Offset geom.Vec3 `json:"offset"`

	// Yaw is the rotation (radians) that mapped the node's forward onto the
	// camera's forward.
	Yaw float64 `json:"yaw"`

	// Anchor is the node id used.
	Anchor string `json:"anchor,omitempty"`

	// Calibrated is cleared by Reset.
	Calibrated bool `json:"calibrated"`
}

// Calibrator owns the map-to-world transform of one navigation context.
type Calibrator struct {
	lookup NodeLookup

	mu        sync.RWMutex
	frame     Frame
	mapToLive geom.Transform
}

// New creates an uncalibrated Calibrator with an identity transform.
func New(lookup NodeLookup) *Calibrator {
	return &Calibrator{
		lookup:    lookup,
		mapToLive: geom.Identity(),
	}
}

// Align moves the map so that node nodeID sits under the live camera and
// faces the same way. The vertical offset is dropped so floor level is
// kept. Nothing changes on error.
func (c *Calibrator) Align(nodeID string, live pose.Source) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frame.Calibrated {
		log.Info("calibration skipped, already calibrated", "anchor", c.frame.Anchor, "requested", nodeID)
		return c.frame, ErrAlreadyCalibrated
	}

	node, err := c.lookup.FindByID(nodeID)
	if err != nil {
		return c.frame, err
	}

	if live == nil {
		return c.frame, ErrNoPose
	}
	cam, ok := live.Pose()
	if !ok {
		return c.frame, ErrNoPose
	}

	// The node as currently placed in the live frame. After a Reset this
	// includes the previous alignment, so a recalibration refines it.
	nodePos := c.mapToLive.Apply(node.Position)
	nodeFwd := c.mapToLive.ApplyDirection(node.Forward)

	if nodeFwd.Flat().IsZero() || cam.Forward.Flat().IsZero() {
		return c.frame, fmt.Errorf("%w: node %s", ErrNoHeading, node.ID)
	}

	offset := cam.Position.Sub(nodePos)
	offset.Y = 0

	yaw := geom.SignedYaw(nodeFwd, cam.Forward)

	c.mapToLive = c.mapToLive.Then(geom.AroundPivot(nodePos, yaw, offset))
	c.frame = Frame{
		Offset:     offset,
		Yaw:        yaw,
		Anchor:     node.ID,
		Calibrated: true,
	}

	residual := c.mapToLive.Apply(node.Position).FlatDistance(cam.Position)
	log.Info("calibrated",
		"anchor", node.ID,
		"offset", offset.String(),
		"yaw_deg", fmt.Sprintf("%.1f", geom.Degrees(yaw)),
		"residual", fmt.Sprintf("%.3f", residual))

	return c.frame, nil
}

// Reset clears the calibrated flag so that the next Align is accepted.
// The accumulated transform is kept.
func (c *Calibrator) Reset() {
	c.mu.Lock()
	c.frame.Calibrated = false
	c.mu.Unlock()
	log.Info("calibration reset")
}

// IsCalibrated reports whether an alignment is in effect.
func (c *Calibrator) IsCalibrated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame.Calibrated
}

// Frame returns the last alignment.
func (c *Calibrator) Frame() Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// Transform returns the current map-to-live transform.
func (c *Calibrator) Transform() geom.Transform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mapToLive
}

// MapToWorld converts a map-frame point into the live frame.
func (c *Calibrator) MapToWorld(p geom.Vec3) geom.Vec3 {
	return c.Transform().Apply(p)
}

// WorldToMap converts a live-frame point into the map frame.
func (c *Calibrator) WorldToMap(p geom.Vec3) geom.Vec3 {
	return c.Transform().Inverse().Apply(p)
}
