package vehicle

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dttson/drifting-car/internal/shared/types"
	"github.com/dttson/drifting-car/internal/track"
)

var (
	// ErrMissingPath is returned when an AI car is activated without a path.
	ErrMissingPath = errors.New("vehicle: path follower has no path")
	// ErrInvalidSpeed is returned when an AI car has a negative base speed.
	ErrInvalidSpeed = errors.New("vehicle: follower speed must not be negative")
)

// FollowerParams tunes an AI car.
type FollowerParams struct {
	Speed            float64        `mapstructure:"speed" json:"speed"`
	Overtake         OvertakeParams `mapstructure:",squash" json:"overtake"`
	VisualOffsetRate float64        `mapstructure:"visualOffsetRate" json:"visualOffsetRate"`
	UsePathUp        bool           `mapstructure:"usePathUp" json:"usePathUp"`
}

// DefaultFollowerParams returns the stock AI tuning.
func DefaultFollowerParams() FollowerParams {
	return FollowerParams{
		Speed: 15,
		Overtake: OvertakeParams{
			Distance:      10,
			LateralOffset: 2,
			SpeedBoost:    1.2,
		},
		VisualOffsetRate: 5,
	}
}

// PathFollower moves an AI car along a path by travelled distance.
//
// The overtake lateral offset only moves the visual body (VisualPosition);
// the authoritative position used for finish detection stays on the path.
type PathFollower struct {
	activation

	params   FollowerParams
	path     PathProvider
	target   StateReader
	distance float64
	state    State

	visualOffset float64
	overtaking   bool
}

// NewPathFollower returns an inactive AI car posed at startDistance.
func NewPathFollower(id, name string, params FollowerParams, path PathProvider, target StateReader, startDistance float64) *PathFollower {
	f := &PathFollower{
		activation: activation{id: id, name: name},
		params:     params,
		path:       path,
		target:     target,
		state:      State{Rotation: mgl64.QuatIdent(), IsGrounded: true},
	}
	if path != nil && path.Length() > 0 {
		f.distance = f.advance(startDistance)
		f.pose(path.TangentAt(f.distance))
	}
	return f
}

// IsPlayer reports that this variant is computer driven.
func (f *PathFollower) IsPlayer() bool { return false }

// Activate checks the configuration and starts following.
func (f *PathFollower) Activate(onFinish FinishFunc) error {
	if f.path == nil || f.path.Length() <= 0 {
		return fmt.Errorf("activate %s: %w", f.id, ErrMissingPath)
	}
	if f.params.Speed < 0 {
		return fmt.Errorf("activate %s: %w", f.id, ErrInvalidSpeed)
	}
	f.activate(onFinish)
	return nil
}

// State returns a copy of the current state.
func (f *PathFollower) State() State { return f.state }

// Distance returns the travelled distance along the path.
func (f *PathFollower) Distance() float64 { return f.distance }

// Overtaking reports the last overtake decision.
func (f *PathFollower) Overtaking() bool { return f.overtaking }

// VisualOffset returns the smoothed lateral offset of the visual body.
func (f *PathFollower) VisualOffset() float64 { return f.visualOffset }

// VisualPosition is the authoritative position shifted by the visual offset.
func (f *PathFollower) VisualPosition() mgl64.Vec3 {
	if f.path == nil {
		return f.state.Position
	}
	side := lateralAxis(f.path.TangentAt(f.distance))
	return f.state.Position.Add(side.Mul(f.visualOffset))
}

// Update advances the car by one variable-rate frame.
func (f *PathFollower) Update(dt float64) {
	if !f.active || dt <= 0 || f.path == nil {
		return
	}

	decision := OvertakeDecision{}
	if f.target != nil {
		decision = DecideOvertake(f.state, f.target.State(), f.path.TangentAt(f.distance), f.params.Overtake)
	}
	f.overtaking = decision.Overtaking

	speed := f.params.Speed
	if decision.Overtaking {
		speed *= f.params.Overtake.SpeedBoost
	}

	f.distance = f.advance(f.distance + speed*dt)
	tangent := f.path.TangentAt(f.distance)
	f.pose(tangent)
	f.state.Velocity = tangent.Mul(speed)
	if !f.path.Closed() && f.distance >= f.path.Length() {
		f.state.Velocity = mgl64.Vec3{}
	}

	rate := clamp01(dt * f.params.VisualOffsetRate)
	f.visualOffset += (decision.LateralOffset - f.visualOffset) * rate
}

// advance wraps on closed paths and clamps on open ones. An open path is a
// terminal: the car parks at its end.
func (f *PathFollower) advance(d float64) float64 {
	length := f.path.Length()
	if f.path.Closed() {
		d = math.Mod(d, length)
		if d < 0 {
			d += length
		}
		return d
	}
	return clamp(d, 0, length)
}

func (f *PathFollower) pose(tangent mgl64.Vec3) {
	up := track.WorldUp
	if f.params.UsePathUp {
		up = f.path.UpAt(f.distance)
	}
	f.state.Position = f.path.PointAt(f.distance)
	f.state.Rotation = lookRotation(tangent, up)
}

// Snapshot returns the wire view of the car.
func (f *PathFollower) Snapshot() types.CarSnapshot {
	s := f.state
	factor := 0.0
	if top := f.params.Speed * f.params.Overtake.SpeedBoost; top > 0 {
		factor = clamp01(s.Speed() / top)
	}
	return types.CarSnapshot{
		ID:             f.id,
		Name:           f.name,
		IsPlayer:       false,
		Active:         f.active,
		Position:       toVec3(s.Position),
		VisualPosition: toVec3(f.VisualPosition()),
		Rotation:       toQuat(s.Rotation),
		Velocity:       toVec3(s.Velocity),
		Speed:          s.Speed(),
		SpeedFactor:    factor,
		IsGrounded:     true,
		Distance:       f.distance,
		Overtaking:     f.overtaking,
	}
}
