package geom

import "math"

// Transform is a yaw-only rigid transform: rotate around the up axis, then
// translate. It is all the calibration ever needs because floor level is
// preserved and tilt is never corrected.
type Transform struct {
	Yaw         float64 `json:"yaw"`         // radians, SignedYaw convention
	Translation Vec3    `json:"translation"` // applied after rotation
}

// Identity returns the transform that leaves every point unchanged.
func Identity() Transform {
	return Transform{}
}

// Apply maps a point through t.
func (t Transform) Apply(p Vec3) Vec3 {
	return RotateYaw(p, t.Yaw).Add(t.Translation)
}

// ApplyDirection maps a direction through t (rotation only).
func (t Transform) ApplyDirection(d Vec3) Vec3 {
	return RotateYaw(d, t.Yaw)
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	return Transform{
		Yaw:         -t.Yaw,
		Translation: RotateYaw(t.Translation, -t.Yaw).Scale(-1),
	}
}

// Then returns the transform that applies t first and next second.
func (t Transform) Then(next Transform) Transform {
	return Transform{
		Yaw:         normalizeAngle(t.Yaw + next.Yaw),
		Translation: RotateYaw(t.Translation, next.Yaw).Add(next.Translation),
	}
}

// AroundPivot builds a transform that rotates by yaw around pivot and then
// translates by offset.
func AroundPivot(pivot Vec3, yaw float64, offset Vec3) Transform {
	return Transform{
		Yaw:         yaw,
		Translation: pivot.Sub(RotateYaw(pivot, yaw)).Add(offset),
	}
}

// normalizeAngle wraps a into (-π, π].
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
