package vehicle

import (
	"math"

	"github.com/dttson/drifting-car/internal/track"
)

const (
	// AutopilotSteerNormalization is the heading error, in degrees, that maps to full turn.
	AutopilotSteerNormalization = 35.0
	// AutopilotLookahead is how far ahead along the path the autopilot aims.
	AutopilotLookahead = 12.0
)

// Autopilot drives the player car around a path. It stands in for a human in
// headless runs and tests.
type Autopilot struct {
	path      *track.Path
	lookahead float64
	progress  float64
	started   bool
}

// NewAutopilot returns an InputSource that chases a point lookahead metres
// ahead of the car's projected progress on path.
func NewAutopilot(path *track.Path, lookahead float64) *Autopilot {
	if lookahead <= 0 {
		lookahead = AutopilotLookahead
	}
	return &Autopilot{path: path, lookahead: lookahead}
}

// Progress returns the last projected distance along the path.
func (a *Autopilot) Progress() float64 { return a.progress }

// Poll implements InputSource.
func (a *Autopilot) Poll(s State) Input {
	if a.path == nil || a.path.Length() <= 0 {
		return Input{}
	}
	if !a.started {
		a.progress = a.path.NearestDistance(s.Position, 0, a.path.Length(), 1)
		a.started = true
	} else {
		a.progress = a.path.NearestDistance(s.Position, a.progress-2, a.progress+a.lookahead, 0.5)
	}

	target := a.path.PointAt(a.progress + a.lookahead)
	to := target.Sub(s.Position)
	fwd := s.Forward()

	targetYaw := math.Atan2(to.X(), to.Z()) * 180 / math.Pi
	yaw := math.Atan2(fwd.X(), fwd.Z()) * 180 / math.Pi
	delta := normalizeSignedDeg(targetYaw - yaw)

	move := 1.0
	if math.Abs(delta) > 120 {
		move = -0.25
	}
	return Input{
		Move: move,
		Turn: clamp(delta/AutopilotSteerNormalization, -1, 1),
	}
}

func normalizeSignedDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d > 180 {
		d -= 360
	}
	if d < -180 {
		d += 360
	}
	return d
}
