// Package vehicle implements the two controllable vehicle variants: the
// physically driven drift car and the path-following AI car.
package vehicle

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/dttson/drifting-car/internal/shared/types"
	"github.com/dttson/drifting-car/internal/track"
)

var (
	localForward = mgl64.Vec3{0, 0, 1}
	localRight   = mgl64.Vec3{1, 0, 0}
	localUp      = mgl64.Vec3{0, 1, 0}
)

// State is the physical state of one vehicle. Only the owning controller
// writes it; everyone else gets a copy.
type State struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	IsDrifting      bool
	IsGrounded      bool
}

// NewState places a vehicle at pos facing the given yaw (degrees, clockwise
// from +Z seen from above).
func NewState(pos mgl64.Vec3, yawDeg float64) State {
	return State{
		Position: pos,
		Rotation: mgl64.QuatRotate(mgl64.DegToRad(yawDeg), localUp),
	}
}

// NewStateFacing places a grounded vehicle at pos looking along forward.
func NewStateFacing(pos, forward mgl64.Vec3) State {
	return State{
		Position:   pos,
		Rotation:   lookRotation(forward, track.WorldUp),
		IsGrounded: true,
	}
}

// Forward returns the unit forward axis.
func (s State) Forward() mgl64.Vec3 { return s.Rotation.Rotate(localForward) }

// Right returns the unit right axis.
func (s State) Right() mgl64.Vec3 { return s.Rotation.Rotate(localRight) }

// Up returns the unit up axis.
func (s State) Up() mgl64.Vec3 { return s.Rotation.Rotate(localUp) }

// Speed returns the velocity magnitude.
func (s State) Speed() float64 { return s.Velocity.Len() }

// StateReader exposes a live read-only view of a vehicle.
type StateReader interface {
	State() State
}

// PathProvider is the read-only curve an AI vehicle follows.
type PathProvider interface {
	PointAt(distance float64) mgl64.Vec3
	TangentAt(distance float64) mgl64.Vec3
	UpAt(distance float64) mgl64.Vec3
	Length() float64
	Closed() bool
}

// Contact is one collision reported for the current physics tick.
type Contact struct {
	Normal mgl64.Vec3 // points out of the other surface towards the vehicle
	Depth  float64
	Tag    string
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clampMagnitude(v mgl64.Vec3, maxLen float64) mgl64.Vec3 {
	l := v.Len()
	if l > maxLen && l > 0 {
		return v.Mul(maxLen / l)
	}
	return v
}

func normalizeOrZero(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / l)
}

func projectOnPlane(v, normal mgl64.Vec3) mgl64.Vec3 {
	n := normalizeOrZero(normal)
	return v.Sub(n.Mul(v.Dot(n)))
}

func lerpVec(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// lookRotation builds the orientation whose +Z faces forward and whose +Y is
// as close to up as possible.
func lookRotation(forward, up mgl64.Vec3) mgl64.Quat {
	f := normalizeOrZero(forward)
	if f.Len() == 0 {
		return mgl64.QuatIdent()
	}
	r := up.Cross(f)
	if r.Len() < 1e-9 {
		// forward is parallel to up, any perpendicular will do
		r = localRight.Sub(f.Mul(localRight.Dot(f)))
		if r.Len() < 1e-9 {
			r = localForward.Sub(f.Mul(localForward.Dot(f)))
		}
	}
	r = r.Normalize()
	u := f.Cross(r)
	m := mgl64.Mat3FromCols(r, u, f)
	return mgl64.Mat4ToQuat(m.Mat4()).Normalize()
}

// slerp interpolates along the shortest arc with t clamped to [0,1].
func slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	t = clamp01(t)
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

func toVec3(v mgl64.Vec3) types.Vec3 {
	return types.Vec3{X: v.X(), Y: v.Y(), Z: v.Z()}
}

func toQuat(q mgl64.Quat) types.Quat {
	return types.Quat{W: q.W, X: q.V.X(), Y: q.V.Y(), Z: q.V.Z()}
}

// lateralAxis is the horizontal right-hand side of a travel direction.
func lateralAxis(tangent mgl64.Vec3) mgl64.Vec3 {
	return normalizeOrZero(track.WorldUp.Cross(tangent))
}
