package nodes

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-wayfinder/pkg/geom"
)

// ErrInvalidScene is returned when a scene file cannot be decoded.
var ErrInvalidScene = errors.New("invalid scene")

// sceneFile is the on-disk layout. YAML is a superset of JSON, so the same
// decoder reads both.
//
//	nodes:
//	  - id: N_Cafe
//	    name: Cafeteria
//	    position: [0, 0, 12.5]
//	    forward: [0, 0, 1]
//	    waypoints:
//	      - [0, 0, 6]
type sceneFile struct {
	Nodes []sceneNode `yaml:"nodes"`
}

type sceneNode struct {
	ID        string      `yaml:"id"`
	Name      string      `yaml:"name"`
	Position  []float64   `yaml:"position"`
	Forward   []float64   `yaml:"forward"`
	Waypoints [][]float64 `yaml:"waypoints"`
}

// Load reads a scene file from disk.
func Load(path string) ([]*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	nodes, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nodes, nil
}

// Parse decodes scene data. Nodes keep file order, which is also their
// registration order.
func Parse(data []byte) ([]*Node, error) {
	var raw sceneFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}

	out := make([]*Node, 0, len(raw.Nodes))
	for i, sn := range raw.Nodes {
		pos, err := toVec(sn.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d (%s) position: %v", ErrInvalidScene, i, sn.ID, err)
		}

		fwd := geom.Forward
		if len(sn.Forward) > 0 {
			if fwd, err = toVec(sn.Forward); err != nil {
				return nil, fmt.Errorf("%w: node %d (%s) forward: %v", ErrInvalidScene, i, sn.ID, err)
			}
		}

		var wps []geom.Vec3
		for j, w := range sn.Waypoints {
			v, err := toVec(w)
			if err != nil {
				return nil, fmt.Errorf("%w: node %d (%s) waypoint %d: %v", ErrInvalidScene, i, sn.ID, j, err)
			}
			wps = append(wps, v)
		}

		out = append(out, &Node{
			ID:        sn.ID,
			Name:      sn.Name,
			Position:  pos,
			Forward:   fwd,
			Waypoints: wps,
		})
	}
	return out, nil
}

func toVec(xs []float64) (geom.Vec3, error) {
	if len(xs) != 3 {
		return geom.Vec3{}, fmt.Errorf("want 3 components, got %d", len(xs))
	}
	return geom.V(xs[0], xs[1], xs[2]), nil
}
