package vehicle

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dttson/drifting-car/internal/shared/types"
	"github.com/dttson/drifting-car/internal/track"
)

var (
	// ErrInvalidMaxSpeed is returned when a drift car is activated without a positive top speed.
	ErrInvalidMaxSpeed = errors.New("vehicle: max speed must be positive")
	// ErrInvalidDriftFactor is returned when the drift factor is outside (0,1].
	ErrInvalidDriftFactor = errors.New("vehicle: drift factor must be in (0,1]")
)

// DriftParams tunes the player car.
type DriftParams struct {
	Acceleration     float64 `mapstructure:"acceleration" json:"acceleration"`
	TurnSpeed        float64 `mapstructure:"turnSpeed" json:"turnSpeed"` // degrees per second at full speed
	DriftFactor      float64 `mapstructure:"driftFactor" json:"driftFactor"`
	MaxSpeed         float64 `mapstructure:"maxSpeed" json:"maxSpeed"`
	InputSmoothTime  float64 `mapstructure:"inputSmoothTime" json:"inputSmoothTime"`
	InputMaxRate     float64 `mapstructure:"inputMaxRate" json:"inputMaxRate"`
	JoystickDeadzone float64 `mapstructure:"joystickDeadzone" json:"joystickDeadzone"`
	GroundOffset     float64 `mapstructure:"groundOffset" json:"groundOffset"`
	GroundRayLength  float64 `mapstructure:"groundRayLength" json:"groundRayLength"`
	GroundSnapSpeed  float64 `mapstructure:"groundSnapSpeed" json:"groundSnapSpeed"`
	GroundMask       uint32  `mapstructure:"groundMask" json:"groundMask"`
	MaxSlopeAngle    float64 `mapstructure:"maxSlopeAngle" json:"maxSlopeAngle"` // degrees
	DriftThreshold   float64 `mapstructure:"driftThreshold" json:"driftThreshold"`
	Gravity          float64 `mapstructure:"gravity" json:"gravity"` // along world up, negative pulls down
}

// DefaultDriftParams returns the stock tuning.
func DefaultDriftParams() DriftParams {
	return DriftParams{
		Acceleration:     10,
		TurnSpeed:        100,
		DriftFactor:      0.95,
		MaxSpeed:         20,
		InputSmoothTime:  0.1,
		JoystickDeadzone: 0.1,
		GroundOffset:     0.5,
		GroundRayLength:  1.5,
		GroundSnapSpeed:  10,
		GroundMask:       track.LayerAll,
		MaxSlopeAngle:    30,
		DriftThreshold:   0.5,
		Gravity:          -9.81,
	}
}

// Validate checks the values that would break the integration.
func (p DriftParams) Validate() error {
	if p.MaxSpeed <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidMaxSpeed, p.MaxSpeed)
	}
	if p.DriftFactor <= 0 || p.DriftFactor > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidDriftFactor, p.DriftFactor)
	}
	return nil
}

// DriftController integrates player input into an arcade drift model.
//
// Each fixed tick runs, in order: input smoothing, forward acceleration with
// a hard speed clamp, speed-scaled yaw, forward/lateral velocity
// decomposition with lateral attenuation, contact response, integration,
// ground snapping and the angular velocity reset. Reordering these changes
// how the car drifts.
type DriftController struct {
	activation

	params DriftParams
	input  InputSource
	ground track.Ground
	state  State

	move, turn       float64
	moveVel, turnVel float64
	contacts         []Contact
}

// NewDriftController returns an inactive player car at spawn.
func NewDriftController(id, name string, params DriftParams, input InputSource, ground track.Ground, spawn State) *DriftController {
	if spawn.Rotation.Len() == 0 {
		spawn.Rotation = mgl64.QuatIdent()
	}
	return &DriftController{
		activation: activation{id: id, name: name},
		params:     params,
		input:      input,
		ground:     ground,
		state:      spawn,
	}
}

// IsPlayer reports that this variant is human driven.
func (c *DriftController) IsPlayer() bool { return true }

// Activate validates the tuning and starts ticking.
func (c *DriftController) Activate(onFinish FinishFunc) error {
	if err := c.params.Validate(); err != nil {
		return fmt.Errorf("activate %s: %w", c.id, err)
	}
	c.activate(onFinish)
	return nil
}

// Deactivate freezes the car, drops any smoothed input and ends a drift.
func (c *DriftController) Deactivate() {
	c.activation.Deactivate()
	c.state.IsDrifting = false
	c.move, c.turn, c.moveVel, c.turnVel = 0, 0, 0, 0
	c.contacts = c.contacts[:0]
}

// State returns a copy of the current state.
func (c *DriftController) State() State { return c.state }

// Params returns the tuning in use.
func (c *DriftController) Params() DriftParams { return c.params }

// SpeedFactor is |v| / maxSpeed clamped to [0,1].
func (c *DriftController) SpeedFactor() float64 {
	if c.params.MaxSpeed <= 0 {
		return 0
	}
	return clamp01(c.state.Speed() / c.params.MaxSpeed)
}

// Collide queues a contact to be resolved on the next fixed tick. The world
// calls it every tick the contact persists.
func (c *DriftController) Collide(ct Contact) {
	if !c.active {
		return
	}
	c.contacts = append(c.contacts, ct)
}

// FixedTick advances the car by one physics step.
func (c *DriftController) FixedTick(dt float64) {
	if !c.active || dt <= 0 {
		c.contacts = c.contacts[:0]
		return
	}

	c.smoothInput(dt)
	c.accelerate(dt)
	c.steer(dt)
	c.drift()
	c.resolveContacts()
	c.integrate(dt)
	c.snapToGround(dt)
	c.preventCollisionRotation()

	c.state.Velocity = clampMagnitude(c.state.Velocity, c.params.MaxSpeed)
}

func (c *DriftController) smoothInput(dt float64) {
	var raw Input
	if c.input != nil {
		raw = c.input.Poll(c.state)
	}
	move, turn := resolveInput(raw, c.state, c.params.JoystickDeadzone)
	c.move = smoothDamp(c.move, move, &c.moveVel, c.params.InputSmoothTime, c.params.InputMaxRate, dt)
	c.turn = smoothDamp(c.turn, turn, &c.turnVel, c.params.InputSmoothTime, c.params.InputMaxRate, dt)
}

func (c *DriftController) accelerate(dt float64) {
	force := c.state.Forward().Mul(c.move * c.params.Acceleration * dt)
	c.state.Velocity = clampMagnitude(c.state.Velocity.Add(force), c.params.MaxSpeed)
}

func (c *DriftController) steer(dt float64) {
	yaw := c.turn * c.params.TurnSpeed * c.SpeedFactor() * dt
	if yaw == 0 {
		return
	}
	delta := mgl64.QuatRotate(mgl64.DegToRad(yaw), localUp)
	c.state.Rotation = c.state.Rotation.Mul(delta).Normalize()
}

// drift attenuates the sideways part of the velocity. The vertical part
// relative to the car is left alone so free fall is unaffected.
func (c *DriftController) drift() {
	f, r, u := c.state.Forward(), c.state.Right(), c.state.Up()
	v := c.state.Velocity
	forwardVel := v.Dot(f)
	sidewaysVel := v.Dot(r)
	upVel := v.Dot(u)

	c.state.Velocity = f.Mul(forwardVel).
		Add(r.Mul(sidewaysVel * c.params.DriftFactor)).
		Add(u.Mul(upVel))
	c.state.IsDrifting = abs(sidewaysVel) > c.params.DriftThreshold
}

// resolveContacts pushes the car out of non-track geometry and removes the
// velocity along the averaged contact normal so it slides instead of sticking.
func (c *DriftController) resolveContacts() {
	if len(c.contacts) == 0 {
		return
	}
	var avg mgl64.Vec3
	for _, ct := range c.contacts {
		if track.IsTrackTag(ct.Tag) {
			continue
		}
		n := normalizeOrZero(ct.Normal)
		avg = avg.Add(n)
		if ct.Depth > 0 {
			c.state.Position = c.state.Position.Add(n.Mul(ct.Depth))
		}
	}
	c.contacts = c.contacts[:0]
	if avg.Len() < 1e-9 {
		return
	}
	c.state.Velocity = projectOnPlane(c.state.Velocity, avg)
}

func (c *DriftController) integrate(dt float64) {
	if !c.state.IsGrounded {
		c.state.Velocity = c.state.Velocity.Add(track.WorldUp.Mul(c.params.Gravity * dt))
	}
	c.state.Position = c.state.Position.Add(c.state.Velocity.Mul(dt))
}

// snapToGround eases the car onto the probed surface. Without a valid hit
// the car is left to fall.
func (c *DriftController) snapToGround(dt float64) {
	c.state.IsGrounded = false
	if c.ground == nil {
		return
	}
	origin := c.state.Position.Add(track.WorldUp.Mul(c.params.GroundOffset))
	hit, ok := c.ground.ProbeDown(origin, c.params.GroundRayLength, c.params.GroundMask)
	if !ok {
		return
	}
	if track.SlopeDegrees(hit.Normal) > c.params.MaxSlopeAngle {
		return
	}

	t := clamp01(c.params.GroundSnapSpeed * dt)
	target := hit.Point.Add(track.WorldUp.Mul(c.params.GroundOffset))
	c.state.Position = lerpVec(c.state.Position, target, t)

	if fwd := normalizeOrZero(projectOnPlane(c.state.Forward(), hit.Normal)); fwd.Len() > 0 {
		c.state.Rotation = slerp(c.state.Rotation, lookRotation(fwd, hit.Normal), t)
	}

	n := normalizeOrZero(hit.Normal)
	if into := c.state.Velocity.Dot(n); into < 0 {
		c.state.Velocity = c.state.Velocity.Sub(n.Mul(into))
	}
	c.state.IsGrounded = true
}

// preventCollisionRotation drops any spin; rotation only comes from steering
// and ground alignment.
func (c *DriftController) preventCollisionRotation() {
	c.state.AngularVelocity = mgl64.Vec3{}
}

// Snapshot returns the wire view of the car.
func (c *DriftController) Snapshot() types.CarSnapshot {
	s := c.state
	return types.CarSnapshot{
		ID:             c.id,
		Name:           c.name,
		IsPlayer:       true,
		Active:         c.active,
		Position:       toVec3(s.Position),
		VisualPosition: toVec3(s.Position),
		Rotation:       toQuat(s.Rotation),
		Velocity:       toVec3(s.Velocity),
		Speed:          s.Speed(),
		SpeedFactor:    c.SpeedFactor(),
		IsDrifting:     s.IsDrifting,
		IsGrounded:     s.IsGrounded,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
