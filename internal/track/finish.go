package track

import "github.com/go-gl/mathgl/mgl64"

// FinishGate is a vertical rectangle across the track. A vehicle finishes
// when its position moves from behind the gate to on or past it while the
// gate is armed.
type FinishGate struct {
	Center    mgl64.Vec3
	Forward   mgl64.Vec3 // direction of travel through the gate
	HalfWidth float64
	Height    float64

	armed bool
}

// NewFinishGate returns a disarmed gate facing the given direction.
func NewFinishGate(center, forward mgl64.Vec3, halfWidth, height float64) *FinishGate {
	f := mgl64.Vec3{forward.X(), 0, forward.Z()}
	if f.Len() < 1e-9 {
		f = mgl64.Vec3{0, 0, 1}
	}
	return &FinishGate{
		Center:    center,
		Forward:   f.Normalize(),
		HalfWidth: halfWidth,
		Height:    height,
	}
}

// SetArmed enables or disables finish detection.
func (g *FinishGate) SetArmed(armed bool) { g.armed = armed }

// Armed reports whether the gate currently detects crossings.
func (g *FinishGate) Armed() bool { return g.armed }

// Crossed reports whether moving from prev to cur passes through the gate in
// the forward direction. It ignores the armed flag.
func (g *FinishGate) Crossed(prev, cur mgl64.Vec3) bool {
	sPrev := prev.Sub(g.Center).Dot(g.Forward)
	sCur := cur.Sub(g.Center).Dot(g.Forward)
	if !(sPrev < 0 && sCur >= 0) {
		return false
	}

	t := sPrev / (sPrev - sCur)
	at := prev.Add(cur.Sub(prev).Mul(t)).Sub(g.Center)
	right := WorldUp.Cross(g.Forward)
	if lateral := at.Dot(right); lateral < -g.HalfWidth || lateral > g.HalfWidth {
		return false
	}
	if g.Height > 0 {
		if up := at.Y(); up < -g.Height || up > g.Height {
			return false
		}
	}
	return true
}
