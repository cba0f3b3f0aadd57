package vehicle

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Input is one sample of the human control surface. Move and Turn are
// normalized to [-1,1]. When HasStick is set, Stick is a world-aligned
// joystick direction (x along world X, y along world Z) whose magnitude is
// the deflection.
type Input struct {
	Move     float64
	Turn     float64
	Stick    mgl64.Vec2
	HasStick bool
}

// InputSource is polled once per fixed tick. The vehicle's current state is
// passed so heading-relative sources can map their axes.
type InputSource interface {
	Poll(s State) Input
}

// LatestInput holds the most recent sample pushed from a transport.
type LatestInput struct {
	mu      sync.RWMutex
	in      Input
	enabled bool
}

// NewLatestInput returns a disabled input holder.
func NewLatestInput() *LatestInput {
	return &LatestInput{}
}

// Set stores a sample. Ignored while disabled.
func (l *LatestInput) Set(in Input) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}
	l.in = clampInput(in)
}

// SetEnabled toggles the input surface. Disabling clears the held sample.
func (l *LatestInput) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
	if !enabled {
		l.in = Input{}
	}
}

// Enabled reports whether samples are accepted.
func (l *LatestInput) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// Poll implements InputSource.
func (l *LatestInput) Poll(State) Input {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.in
}

// InputFunc adapts a function to InputSource.
type InputFunc func(s State) Input

// Poll implements InputSource.
func (f InputFunc) Poll(s State) Input { return f(s) }

// resolveInput turns a raw sample into heading-relative move/turn. A stick
// deflected past the deadzone wins over the axis values.
func resolveInput(in Input, s State, deadzone float64) (move, turn float64) {
	if in.HasStick {
		mag := in.Stick.Len()
		if mag > deadzone {
			dir := normalizeOrZero(mgl64.Vec3{in.Stick.X(), 0, in.Stick.Y()})
			mag = math.Min(mag, 1)
			return dir.Dot(s.Forward()) * mag, dir.Dot(s.Right()) * mag
		}
	}
	return clamp(in.Move, -1, 1), clamp(in.Turn, -1, 1)
}

func clampInput(in Input) Input {
	in.Move = clamp(in.Move, -1, 1)
	in.Turn = clamp(in.Turn, -1, 1)
	return in
}

// smoothDamp moves current towards target with a critically damped spring.
// velocity carries the spring state between calls. maxRate bounds the change
// per second; zero or less means unbounded.
func smoothDamp(current, target float64, velocity *float64, smoothTime, maxRate, dt float64) float64 {
	if dt <= 0 {
		return current
	}
	smoothTime = math.Max(0.0001, smoothTime)
	omega := 2 / smoothTime
	x := omega * dt
	exp := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := current - target
	original := target
	if maxRate > 0 {
		maxChange := maxRate * smoothTime
		change = clamp(change, -maxChange, maxChange)
	}
	target = current - change

	temp := (*velocity + omega*change) * dt
	*velocity = (*velocity - omega*temp) * exp
	out := target + (change+temp)*exp

	// don't overshoot
	if (original-current > 0) == (out > original) {
		out = original
		*velocity = (out - original) / dt
	}
	return out
}
