package track

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Box is an axis-aligned static collider.
type Box struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
	Tag string
}

// SphereContact tests a sphere against the box and returns the push-out
// normal (pointing from the box towards the sphere) and penetration depth.
func (b Box) SphereContact(center mgl64.Vec3, radius float64) (mgl64.Vec3, float64, bool) {
	closest := mgl64.Vec3{
		clamp(center.X(), b.Min.X(), b.Max.X()),
		clamp(center.Y(), b.Min.Y(), b.Max.Y()),
		clamp(center.Z(), b.Min.Z(), b.Max.Z()),
	}
	delta := center.Sub(closest)
	dist := delta.Len()
	if dist >= radius {
		return mgl64.Vec3{}, 0, false
	}
	if dist > 1e-9 {
		return delta.Mul(1 / dist), radius - dist, true
	}

	// Center is inside the box: exit through the nearest face.
	best := math.Inf(1)
	var normal mgl64.Vec3
	faces := []struct {
		d float64
		n mgl64.Vec3
	}{
		{center.X() - b.Min.X(), mgl64.Vec3{-1, 0, 0}},
		{b.Max.X() - center.X(), mgl64.Vec3{1, 0, 0}},
		{center.Y() - b.Min.Y(), mgl64.Vec3{0, -1, 0}},
		{b.Max.Y() - center.Y(), mgl64.Vec3{0, 1, 0}},
		{center.Z() - b.Min.Z(), mgl64.Vec3{0, 0, -1}},
		{b.Max.Z() - center.Z(), mgl64.Vec3{0, 0, 1}},
	}
	for _, f := range faces {
		if f.d < best {
			best, normal = f.d, f.n
		}
	}
	return normal, best + radius, true
}

// SphereSphereContact returns the normal from b towards a and the overlap.
func SphereSphereContact(a mgl64.Vec3, ra float64, b mgl64.Vec3, rb float64) (mgl64.Vec3, float64, bool) {
	delta := a.Sub(b)
	dist := delta.Len()
	minDist := ra + rb
	if dist >= minDist {
		return mgl64.Vec3{}, 0, false
	}
	if dist <= 1e-9 {
		return mgl64.Vec3{1, 0, 0}, minDist, true
	}
	return delta.Mul(1 / dist), minDist - dist, true
}
