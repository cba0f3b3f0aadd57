// Package race runs the race lifecycle: the countdown, vehicle activation,
// finish handling and the results ledger.
package race

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/dttson/drifting-car/internal/shared/types"
	"github.com/dttson/drifting-car/internal/telemetry"
)

var (
	// ErrNotReady is returned when start is requested outside the Ready state.
	ErrNotReady = errors.New("race: not ready to start")
	// ErrEmptyRoster is reported as a diagnostic when a race has no vehicles.
	ErrEmptyRoster = errors.New("race: roster is empty")
	// ErrDuplicateID is returned when two roster entries share an id.
	ErrDuplicateID = errors.New("race: duplicate roster id")
)

// State is the race phase. Transitions only move forward.
type State int

const (
	Ready State = iota
	Racing
	Finished
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Racing:
		return "racing"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PhaseCountdown is reported by Phase while the countdown runs.
const PhaseCountdown = "countdown"

// Controller is one roster entry as the orchestrator sees it.
type Controller interface {
	ID() string
	Name() string
	IsPlayer() bool
	Activate(onFinish func(id string)) error
	Deactivate()
}

// UI receives race lifecycle notifications.
type UI interface {
	SetStartEnabled(enabled bool)
	SetInputEnabled(enabled bool)
	CountdownShown(from int)
	CountdownTick(value int)
	CountdownHidden()
	CarFinished(result types.CarResult)
	ResultsReady(results []types.CarResult)
}

// FinishArming toggles the finish sensor.
type FinishArming interface {
	SetArmed(armed bool)
}

// Clock reports simulated time in seconds.
type Clock interface {
	Now() float64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() float64

// Now implements Clock.
func (f ClockFunc) Now() float64 { return f() }

// Params tunes the lifecycle.
type Params struct {
	CountdownSeconds int `mapstructure:"countdownSeconds" json:"countdownSeconds"`
	// FinishGraceDelay keeps the finish sensor disarmed for this many seconds
	// after the start so cars spawned on the line don't finish immediately.
	FinishGraceDelay float64 `mapstructure:"finishGraceDelay" json:"finishGraceDelay"`
}

// DefaultParams returns the stock lifecycle tuning.
func DefaultParams() Params {
	return Params{CountdownSeconds: 3, FinishGraceDelay: 20}
}

// Orchestrator is the race state machine. It is not safe for concurrent use;
// the owning world serializes every call.
type Orchestrator struct {
	log     zerolog.Logger
	params  Params
	clock   Clock
	ui      UI
	finish  FinishArming
	metrics *telemetry.Metrics

	roster []Controller
	index  map[string]int
	failed map[string]bool
	ledger *Ledger

	state      State
	countdown  Countdown
	startTime  float64
	finishedAt float64
	armAt      float64
	armed      bool
}

// New builds an orchestrator in the Ready state with every vehicle
// deactivated. ui and finish may be nil. Roster ids must be unique.
func New(roster []Controller, params Params, clock Clock, ui UI, finish FinishArming, log zerolog.Logger) (*Orchestrator, error) {
	if ui == nil {
		ui = NopUI{}
	}
	if finish == nil {
		finish = nopArming{}
	}
	o := &Orchestrator{
		log:    log,
		params: params,
		clock:  clock,
		ui:     ui,
		finish: finish,
		roster: roster,
		index:  make(map[string]int, len(roster)),
		failed: make(map[string]bool),
		ledger: NewLedger(len(roster)),
		state:  Ready,
	}
	for i, c := range roster {
		c.Deactivate()
		if _, dup := o.index[c.ID()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, c.ID())
		}
		o.index[c.ID()] = i
	}
	if len(roster) == 0 {
		o.log.Warn().Err(ErrEmptyRoster).Msg("race has no vehicles")
	}

	o.ui.SetStartEnabled(true)
	o.ui.SetInputEnabled(false)
	o.finish.SetArmed(false)
	return o, nil
}

// SetMetrics attaches metric instruments. nil disables them.
func (o *Orchestrator) SetMetrics(m *telemetry.Metrics) { o.metrics = m }

// State returns the current phase.
func (o *Orchestrator) State() State { return o.state }

// Phase is State with the countdown reported separately.
func (o *Orchestrator) Phase() string {
	if o.countdown.Running() {
		return PhaseCountdown
	}
	return o.state.String()
}

// Countdown returns the next countdown value, or -1 when no countdown runs.
func (o *Orchestrator) Countdown() int { return o.countdown.Remaining() }

// Results returns a copy of the ledger.
func (o *Orchestrator) Results() []types.CarResult { return o.ledger.Results() }

// Armed reports whether the finish sensor is live.
func (o *Orchestrator) Armed() bool { return o.armed }

// Elapsed returns race time so far, or the final race time once finished.
func (o *Orchestrator) Elapsed() float64 {
	switch o.state {
	case Racing:
		return math.Max(0, o.clock.Now()-o.startTime)
	case Finished:
		return math.Max(0, o.finishedAt-o.startTime)
	default:
		return 0
	}
}

// Start handles the start signal: it begins the countdown and emits its first
// tick. Vehicles stay inactive until the 0 tick.
func (o *Orchestrator) Start() error {
	if o.state != Ready || o.countdown.Running() {
		return fmt.Errorf("start in %s: %w", o.Phase(), ErrNotReady)
	}
	now := o.clock.Now()
	from := max(o.params.CountdownSeconds, 0)

	o.ui.SetStartEnabled(false)
	o.ui.CountdownShown(from)
	o.countdown.Start(from, now)
	o.log.Info().Int("from", from).Int("cars", len(o.roster)).Msg("countdown started")

	o.Update()
	return nil
}

// Cancel aborts a running countdown and returns to Ready.
func (o *Orchestrator) Cancel() {
	if !o.countdown.Running() {
		return
	}
	o.countdown.Cancel()
	o.ui.CountdownHidden()
	o.ui.SetStartEnabled(true)
	o.log.Info().Msg("countdown cancelled")
}

// Update advances the countdown and the finish arming timer. The scheduler
// calls it once per frame.
func (o *Orchestrator) Update() {
	now := o.clock.Now()

	if o.countdown.Running() {
		zeroAt := o.countdown.ZeroAt()
		ticks, done := o.countdown.Advance(now)
		for _, v := range ticks {
			o.ui.CountdownTick(v)
		}
		if done {
			o.beginRacing(zeroAt)
		}
	}

	if o.state == Racing && !o.armed && now >= o.armAt {
		o.armed = true
		o.finish.SetArmed(true)
		o.log.Debug().Float64("at", now).Msg("finish armed")
	}
}

func (o *Orchestrator) beginRacing(at float64) {
	o.ui.CountdownHidden()
	o.state = Racing
	o.startTime = at
	o.armAt = at + math.Max(0, o.params.FinishGraceDelay)

	active := 0
	for _, c := range o.roster {
		if err := c.Activate(o.CarFinished); err != nil {
			o.failed[c.ID()] = true
			o.log.Warn().Err(err).Str("car", c.ID()).Msg("vehicle not started")
			continue
		}
		active++
	}

	o.ui.SetInputEnabled(true)
	o.metrics.RaceStarted(context.Background())
	o.log.Info().Int("active", active).Int("cars", len(o.roster)).Msg("race started")

	if o.settled() {
		o.log.Warn().Msg("no vehicle can finish")
		o.finalize(o.clock.Now())
	}
}

// settled reports whether every car that could still finish has finished.
// Cars that failed to activate never will.
func (o *Orchestrator) settled() bool {
	if len(o.roster) == 0 {
		return false
	}
	pending := 0
	for id := range o.failed {
		if !o.ledger.Has(id) {
			pending++
		}
	}
	return o.ledger.Len()+pending >= o.ledger.Capacity()
}

// CarFinished handles a finish notification. Notifications outside Racing,
// for unknown or already finished cars, or once the ledger is full are
// ignored.
func (o *Orchestrator) CarFinished(id string) {
	if o.state != Racing || o.ledger.Full() || o.ledger.Has(id) {
		return
	}
	i, ok := o.index[id]
	if !ok {
		o.log.Warn().Str("car", id).Msg("finish from unknown car")
		return
	}
	c := o.roster[i]

	now := o.clock.Now()
	result, ok := o.ledger.Record(id, c.Name(), now-o.startTime, c.IsPlayer())
	if !ok {
		return
	}
	o.ui.CarFinished(result)
	o.metrics.CarFinished(context.Background(), result.IsPlayer, result.Duration)
	o.log.Info().
		Str("car", id).
		Int("rank", result.Rank).
		Float64("duration", result.Duration).
		Bool("player", result.IsPlayer).
		Msg("car finished")

	if c.IsPlayer() || o.settled() {
		o.finalize(now)
	}
}

// finalize ends the race. Cars still running get a placeholder result with
// an unresolved (zero) duration, in roster order.
func (o *Orchestrator) finalize(now float64) {
	o.state = Finished
	o.finishedAt = now

	for _, c := range o.roster {
		c.Deactivate()
	}
	for _, c := range o.roster {
		if r, ok := o.ledger.Record(c.ID(), c.Name(), 0, c.IsPlayer()); ok {
			o.metrics.CarFinished(context.Background(), r.IsPlayer, 0)
		}
	}

	o.armed = false
	o.finish.SetArmed(false)
	o.ui.SetInputEnabled(false)

	results := o.ledger.Results()
	o.ui.ResultsReady(results)
	o.log.Info().Int("results", len(results)).Float64("elapsed", o.Elapsed()).Msg("race finished")
}

// NopUI discards every notification.
type NopUI struct{}

func (NopUI) SetStartEnabled(bool)           {}
func (NopUI) SetInputEnabled(bool)           {}
func (NopUI) CountdownShown(int)             {}
func (NopUI) CountdownTick(int)              {}
func (NopUI) CountdownHidden()               {}
func (NopUI) CarFinished(types.CarResult)    {}
func (NopUI) ResultsReady([]types.CarResult) {}

type nopArming struct{}

func (nopArming) SetArmed(bool) {}
