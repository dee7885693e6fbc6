package nodes

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/geom"
)

var (
	// ErrNotFound is returned when no node matches a lookup.
	ErrNotFound = errors.New("node not found")

	// ErrDuplicateKey describes an id or name collision found by Refresh.
	ErrDuplicateKey = errors.New("duplicate node key")
)

// Registry indexes a set of nodes by id and display name.
//
// The maps are only rebuilt by Refresh; SetNodes alone does not change
// lookups. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	nodes   []*Node
	byID    map[string]*Node
	byName  map[string]*Node
	indexed bool
}

// NewRegistry creates a registry over nodes and builds its maps.
func NewRegistry(nodes ...*Node) *Registry {
	r := &Registry{}
	r.SetNodes(nodes)
	r.Refresh()
	return r
}

// SetNodes replaces the underlying point set. Call Refresh afterwards.
func (r *Registry) SetNodes(nodes []*Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append([]*Node(nil), nodes...)
}

// Refresh rebuilds the id and name maps from the current point set.
// Keys are trimmed and case-folded and blank keys are skipped. When two
// nodes share a key the first one wins; each collision is logged and
// returned as a warning.
func (r *Registry) Refresh() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[string]*Node, len(r.nodes))
	r.byName = make(map[string]*Node, len(r.nodes))

	var warnings []error
	for _, n := range r.nodes {
		if n == nil {
			continue
		}

		if key := normalize(n.ID); key != "" {
			if first, dup := r.byID[key]; dup {
				warnings = append(warnings, fmt.Errorf("%w: id %q of %q already used by %q",
					ErrDuplicateKey, n.ID, describe(n), describe(first)))
			} else {
				r.byID[key] = n
			}
		}

		if key := normalize(n.Name); key != "" {
			if first, dup := r.byName[key]; dup {
				warnings = append(warnings, fmt.Errorf("%w: name %q of %q already used by %q",
					ErrDuplicateKey, n.Name, describe(n), describe(first)))
			} else {
				r.byName[key] = n
			}
		}
	}
	r.indexed = true

	for _, w := range warnings {
		log.Warn("node registry collision ignored", "error", w)
	}
	log.Debug("node registry refreshed", "nodes", len(r.nodes), "ids", len(r.byID), "names", len(r.byName))

	return warnings
}

// FindByID returns the node with the given id.
func (r *Registry) FindByID(id string) (*Node, error) {
	key := normalize(id)
	if key == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if n, ok := r.byID[key]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// FindByNameOrID looks value up as an id first and then as a display name.
func (r *Registry) FindByNameOrID(value string) (*Node, error) {
	key := normalize(value)
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrNotFound)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if n, ok := r.byID[key]; ok {
		return n, nil
	}
	if n, ok := r.byName[key]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, value)
}

// Nearest returns the node closest to position. Ties go to the node
// registered first.
func (r *Registry) Nearest(position geom.Vec3) (*Node, error) {
	r.mu.RLock()
	indexed := r.indexed
	r.mu.RUnlock()
	if !indexed {
		r.Refresh()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Node
	bestDist := math.MaxFloat64
	for _, n := range r.nodes {
		if n == nil {
			continue
		}
		if d := position.SqrDistance(n.Position); d < bestDist {
			bestDist = d
			best = n
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: registry is empty", ErrNotFound)
	}
	return best, nil
}

// All returns the nodes in registration order.
func (r *Registry) All() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Count returns the number of nodes in the point set.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func describe(n *Node) string {
	if n.ID != "" {
		return n.ID
	}
	return n.Name
}
