// Package nodes holds the named navigation points of a scene.
//
// A scene is loaded once from a YAML (or JSON) file. The Registry indexes
// the points by id and display name and answers nearest-point queries.
package nodes

import "github.com/teslashibe/go-wayfinder/pkg/geom"

// Node is a fixed navigation point in the map frame.
type Node struct {
	// ID is the unique identifier, e.g. "N_Cafe". Compared case-insensitively.
	ID string `json:"id"`

	// Name is the optional display name the host shows, e.g. "Cafeteria".
	Name string `json:"name,omitempty"`

	// Position is the node's location in the map frame.
	Position geom.Vec3 `json:"position"`

	// Forward is the direction a user standing on the node faces when they
	// calibrate there. Only its horizontal part is used.
	Forward geom.Vec3 `json:"forward"`

	// Waypoints are optional intermediate positions walked through on the
	// way to this node.
	Waypoints []geom.Vec3 `json:"waypoints,omitempty"`
}
