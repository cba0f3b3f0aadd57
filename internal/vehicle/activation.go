package vehicle

import "github.com/dttson/drifting-car/internal/track"

// FinishFunc is called with the vehicle id when it enters the finish trigger.
type FinishFunc = func(id string)

// activation is the activate/deactivate contract both controller variants
// share. Controllers check active before any mutation.
type activation struct {
	id       string
	name     string
	active   bool
	onFinish FinishFunc
}

// ID returns the roster identity.
func (a *activation) ID() string { return a.id }

// Name returns the display name.
func (a *activation) Name() string { return a.name }

// Active reports whether the controller is currently ticking.
func (a *activation) Active() bool { return a.active }

// Deactivate freezes the vehicle. Safe to call at any time, including mid-frame.
func (a *activation) Deactivate() { a.active = false }

// EnterTrigger is raised by the world when the vehicle enters a trigger volume.
func (a *activation) EnterTrigger(tag string) {
	if tag == track.FinishTag && a.onFinish != nil {
		a.onFinish(a.id)
	}
}

func (a *activation) activate(onFinish FinishFunc) {
	a.onFinish = onFinish
	a.active = true
}
