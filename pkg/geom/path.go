package geom

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// PathTolerance is the per-component tolerance used when comparing corner
// paths and when quantising them for fingerprints (1mm).
const PathTolerance = 1e-3

// Path is an ordered list of corners from a start point to a destination.
type Path []Vec3

// Valid reports whether the path has at least a start and an end.
func (p Path) Valid() bool {
	return len(p) >= 2
}

// Clone returns an independent copy of p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Last returns the final corner. It panics on an empty path.
func (p Path) Last() Vec3 {
	return p[len(p)-1]
}

// Equal reports whether p and o have the same length and every corner
// matches within tol.
func (p Path) Equal(o Path, tol float64) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if !p[i].ApproxEqual(o[i], tol) {
			return false
		}
	}
	return true
}

// FlatLengthFrom sums the horizontal segment lengths from corner i to the
// end of the path.
func (p Path) FlatLengthFrom(i int) float64 {
	if i < 0 {
		i = 0
	}
	total := 0.0
	for ; i < len(p)-1; i++ {
		total += p[i].FlatDistance(p[i+1])
	}
	return total
}

// Transform maps every corner through t.
func (p Path) Transform(t Transform) Path {
	out := make(Path, len(p))
	for i, c := range p {
		out[i] = t.Apply(c)
	}
	return out
}

// Fingerprint is a stable content hash over the corners quantised to
// PathTolerance. Paths that are Equal usually share a fingerprint, but two
// corners straddling a quantisation boundary can differ, so duplicate
// detection must use Equal.
func (p Path) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(p)))
	_, _ = h.Write(buf[:])
	for _, c := range p {
		for _, f := range [3]float64{c.X, c.Y, c.Z} {
			q := int64(math.Round(f / PathTolerance))
			binary.LittleEndian.PutUint64(buf[:], uint64(q))
			_, _ = h.Write(buf[:])
		}
	}
	return h.Sum64()
}
