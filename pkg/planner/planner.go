// Package planner defines the path planner consumed by the navigator and a
// node-based implementation of it.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/geom"
	"github.com/teslashibe/go-wayfinder/pkg/nodes"
)

// ErrNoPath is wrapped by every planning failure.
var ErrNoPath = errors.New("no path")

// DefaultSnapRadius is how far a position may be from a node and still be
// snapped onto it.
const DefaultSnapRadius = 1.5

// Planner returns the corners of a walkable path from start to end, both in
// map coordinates.
type Planner interface {
	Plan(ctx context.Context, start, end geom.Vec3) (geom.Path, error)
}

// NodeIndex is the part of the node registry the waypoint planner needs.
type NodeIndex interface {
	Nearest(position geom.Vec3) (*nodes.Node, error)
}

// WaypointPlanner builds paths from the hand-authored waypoints stored on
// each destination node. It does no search: the path is the start, the
// destination's waypoints, then the end.
type WaypointPlanner struct {
	index      NodeIndex
	SnapRadius float64
}

// NewWaypointPlanner creates a planner over index with DefaultSnapRadius.
func NewWaypointPlanner(index NodeIndex) *WaypointPlanner {
	return &WaypointPlanner{index: index, SnapRadius: DefaultSnapRadius}
}

// Plan implements Planner.
func (p *WaypointPlanner) Plan(ctx context.Context, start, end geom.Vec3) (geom.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	from, err := p.snap(start)
	if err != nil {
		return nil, fmt.Errorf("%w: start %v: %v", ErrNoPath, start, err)
	}
	to, err := p.snap(end)
	if err != nil {
		return nil, fmt.Errorf("%w: end %v: %v", ErrNoPath, end, err)
	}

	path := make(geom.Path, 0, len(to.Waypoints)+2)
	path = append(path, start)
	path = append(path, to.Waypoints...)
	path = append(path, end)

	if !path.Valid() {
		return nil, fmt.Errorf("%w: %d corners", ErrNoPath, len(path))
	}

	log.Debug("path planned", "from", from.ID, "to", to.ID, "corners", len(path))
	return path, nil
}

func (p *WaypointPlanner) snap(pos geom.Vec3) (*nodes.Node, error) {
	n, err := p.index.Nearest(pos)
	if err != nil {
		return nil, err
	}
	if d := n.Position.Distance(pos); d > p.SnapRadius {
		return nil, fmt.Errorf("nearest node %s is %.2f away", n.ID, d)
	}
	return n, nil
}
