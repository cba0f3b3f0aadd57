package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/dttson/drifting-car/internal/config"
	"github.com/dttson/drifting-car/internal/race"
	"github.com/dttson/drifting-car/internal/shared/types"
	"github.com/dttson/drifting-car/internal/telemetry"
	"github.com/dttson/drifting-car/internal/track"
	"github.com/dttson/drifting-car/internal/vehicle"
)

const (
	// PlayerID is the roster id of the human car.
	PlayerID = "player"

	maxEvents = 256
)

// Options configures a world.
type Options struct {
	RaceID   string
	Settings config.Settings
	// Course overrides the geometry built from Settings.Track.
	Course *Course
	// Pilot replaces the network input surface for the player car, e.g. an
	// autopilot in headless runs.
	Pilot   vehicle.InputSource
	Log     zerolog.Logger
	Metrics *telemetry.Metrics
}

// World is the authoritative race simulation. Every exported method is safe
// for concurrent use; internally everything runs on the caller of Tick.
type World struct {
	mu sync.RWMutex

	log       zerolog.Logger
	metrics   *telemetry.Metrics
	raceID    string
	createdAt time.Time

	fixedStep   float64
	maxSubSteps int
	clock       float64
	accumulator float64
	tick        uint64

	course    Course
	input     *vehicle.LatestInput
	player    *vehicle.DriftController
	followers []*vehicle.PathFollower
	race      *race.Orchestrator

	prevPos  map[string]mgl64.Vec3
	touching map[string]bool
	drifting bool
	lastSeq  uint64

	events       []types.GameplayEvent
	results      []types.CarResult
	resultsTaken bool
}

// NewWorld builds the course, the roster and a race in the Ready state.
func NewWorld(opts Options) (*World, error) {
	s := opts.Settings
	var (
		course Course
		err    error
	)
	if opts.Course != nil {
		course = *opts.Course
	} else if course, err = BuildCourse(s.Track); err != nil {
		return nil, err
	}

	fixedStep := s.Race.FixedStep
	if fixedStep <= 0 {
		fixedStep = 0.02
	}
	maxSubSteps := s.Race.MaxSubSteps
	if maxSubSteps <= 0 {
		maxSubSteps = 8
	}

	w := &World{
		log:         opts.Log.With().Str("race", opts.RaceID).Logger(),
		metrics:     opts.Metrics,
		raceID:      opts.RaceID,
		createdAt:   time.Now().UTC(),
		fixedStep:   fixedStep,
		maxSubSteps: maxSubSteps,
		course:      course,
		input:       vehicle.NewLatestInput(),
		prevPos:     make(map[string]mgl64.Vec3),
		touching:    make(map[string]bool),
	}

	grid := course.StartingGrid(len(s.Roster.Rivals), s.Roster.Spacing, s.Roster.LaneOffset, s.Drift.GroundOffset)

	var pilot vehicle.InputSource = w.input
	if opts.Pilot != nil {
		pilot = opts.Pilot
	}
	playerName := s.Roster.PlayerName
	if playerName == "" {
		playerName = PlayerID
	}
	w.player = vehicle.NewDriftController(PlayerID, playerName, s.Drift, pilot, course.Ground, grid.Player)

	roster := []race.Controller{w.player}
	for i, name := range s.Roster.Rivals {
		id := fmt.Sprintf("ai-%d", i+1)
		f := vehicle.NewPathFollower(id, name, s.AI, course.Path, w.player, grid.Rivals[i])
		w.followers = append(w.followers, f)
		roster = append(roster, f)
	}
	w.recordPositions()

	w.race, err = race.New(roster, s.Race.Params, race.ClockFunc(w.now), uiRecorder{w: w}, course.Gate, w.log)
	if err != nil {
		return nil, err
	}
	w.race.SetMetrics(opts.Metrics)

	w.log.Info().
		Float64("length", course.Path.Length()).
		Bool("closed", course.Path.Closed()).
		Int("cars", len(roster)).
		Msg("world ready")
	return w, nil
}

func (w *World) now() float64 { return w.clock }

// RaceID returns the race identity.
func (w *World) RaceID() string { return w.raceID }

// Start handles the start signal from the race UI.
func (w *World) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.race.Start()
}

// ApplyInput stores the latest human input. It is dropped while the input
// surface is disabled.
func (w *World) ApplyInput(in types.CarInput) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if in.Sequence > w.lastSeq {
		w.lastSeq = in.Sequence
	}
	w.input.Set(vehicle.Input{
		Move:     in.Move,
		Turn:     in.Turn,
		Stick:    mgl64.Vec2{in.StickX, in.StickY},
		HasStick: in.StickActive,
	})
}

// LastInputSeq returns the highest input sequence received.
func (w *World) LastInputSeq() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSeq
}

// Tick advances the world by one frame. Physics runs in fixed steps out of
// an accumulator; AI cars, finish sensing and the race state machine run
// once per frame.
func (w *World) Tick(frameDt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if frameDt <= 0 {
		return
	}

	w.tick++
	w.clock += frameDt
	w.accumulator += frameDt

	steps := 0
	for w.accumulator >= w.fixedStep && steps < w.maxSubSteps {
		w.fixedTick()
		w.accumulator -= w.fixedStep
		steps++
	}
	if w.accumulator >= w.fixedStep {
		// too far behind to catch up, drop the backlog
		w.accumulator = 0
	}
	w.metrics.Ticks(context.Background(), steps)

	for _, f := range w.followers {
		f.Update(frameDt)
	}
	w.senseFinish()
	w.race.Update()
	w.syncDrift()
}

func (w *World) fixedTick() {
	if !w.player.Active() {
		return
	}
	w.collide()
	w.player.FixedTick(w.fixedStep)
	w.syncDrift()
}

// syncDrift emits the drift cue edges. A deactivated car always reads as
// not drifting.
func (w *World) syncDrift() {
	d := w.player.Active() && w.player.State().IsDrifting
	if d == w.drifting {
		return
	}
	w.drifting = d
	typ := "drift_stop"
	if d {
		typ = "drift_start"
	}
	w.emit(types.GameplayEvent{Type: typ, CarID: PlayerID})
}

// collide feeds the player's contacts for this step. The first step of each
// contact raises a collision cue.
func (w *World) collide() {
	pos := w.player.State().Position
	seen := make(map[string]bool, len(w.touching))

	for i, box := range w.course.Obstacles {
		n, depth, ok := box.SphereContact(pos, CarRadius)
		if !ok {
			continue
		}
		key := fmt.Sprintf("box-%d", i)
		seen[key] = true
		w.contact(key, vehicle.Contact{Normal: n, Depth: depth, Tag: box.Tag})
	}
	for _, f := range w.followers {
		n, depth, ok := track.SphereSphereContact(pos, CarRadius, f.State().Position, CarRadius)
		if !ok {
			continue
		}
		seen[f.ID()] = true
		w.contact(f.ID(), vehicle.Contact{Normal: n, Depth: depth, Tag: track.TagCar})
	}

	w.touching = seen
}

func (w *World) contact(key string, ct vehicle.Contact) {
	w.player.Collide(ct)
	if !w.touching[key] {
		w.emit(types.GameplayEvent{Type: "collision", CarID: PlayerID, Tag: ct.Tag})
	}
}

// senseFinish raises the finish trigger for cars whose movement this frame
// passed through the armed gate.
func (w *World) senseFinish() {
	gate := w.course.Gate
	check := func(id string, cur mgl64.Vec3, enter func(string)) {
		prev, ok := w.prevPos[id]
		w.prevPos[id] = cur
		if ok && gate.Armed() && gate.Crossed(prev, cur) {
			enter(track.FinishTag)
		}
	}

	check(PlayerID, w.player.State().Position, w.player.EnterTrigger)
	for _, f := range w.followers {
		check(f.ID(), f.State().Position, f.EnterTrigger)
	}
}

func (w *World) recordPositions() {
	w.prevPos[PlayerID] = w.player.State().Position
	for _, f := range w.followers {
		w.prevPos[f.ID()] = f.State().Position
	}
}

func (w *World) emit(ev types.GameplayEvent) {
	ev.Clock = w.clock
	if len(w.events) >= maxEvents {
		copy(w.events, w.events[1:])
		w.events = w.events[:len(w.events)-1]
	}
	w.events = append(w.events, ev)
}

// Phase returns the race phase name.
func (w *World) Phase() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.race.Phase()
}

// TakeResults returns the final ledger once, after the race finished.
func (w *World) TakeResults() ([]types.CarResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.results == nil || w.resultsTaken {
		return nil, false
	}
	w.resultsTaken = true
	out := make([]types.CarResult, len(w.results))
	copy(out, w.results)
	return out, true
}

// Snapshot returns a deep copy of state for safe replication. Pending
// events are included and kept.
func (w *World) Snapshot() types.RaceSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot()
}

// Flush is Snapshot that also clears the pending events.
func (w *World) Flush() types.RaceSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.snapshot()
	w.events = w.events[:0]
	return out
}

func (w *World) snapshot() types.RaceSnapshot {
	cars := make(map[string]types.CarSnapshot, 1+len(w.followers))
	cars[PlayerID] = w.player.Snapshot()
	for _, f := range w.followers {
		cars[f.ID()] = f.Snapshot()
	}

	events := make([]types.GameplayEvent, len(w.events))
	copy(events, w.events)

	return types.RaceSnapshot{
		RaceID:    w.raceID,
		Tick:      w.tick,
		CreatedAt: w.createdAt,
		Phase:     w.race.Phase(),
		Clock:     w.clock,
		Countdown: w.race.Countdown(),
		Elapsed:   w.race.Elapsed(),
		Cars:      cars,
		Results:   w.race.Results(),
		Events:    events,
	}
}

// uiRecorder turns race notifications into gameplay events. The race calls
// it with the world lock held.
type uiRecorder struct {
	w *World
}

func (u uiRecorder) SetStartEnabled(enabled bool) {
	u.w.emit(types.GameplayEvent{Type: "start_enabled", Enabled: enabled})
}

func (u uiRecorder) SetInputEnabled(enabled bool) {
	u.w.input.SetEnabled(enabled)
	u.w.emit(types.GameplayEvent{Type: "input_enabled", Enabled: enabled})
}

func (u uiRecorder) CountdownShown(from int) {
	u.w.emit(types.GameplayEvent{Type: "countdown_shown", Value: from})
}

func (u uiRecorder) CountdownTick(value int) {
	typ := "countdown"
	if value == 0 {
		typ = "go"
	}
	u.w.emit(types.GameplayEvent{Type: typ, Value: value})
}

func (u uiRecorder) CountdownHidden() {
	u.w.emit(types.GameplayEvent{Type: "countdown_hidden"})
}

func (u uiRecorder) CarFinished(r types.CarResult) {
	u.w.emit(types.GameplayEvent{Type: "finish", CarID: r.CarID, Value: r.Rank})
}

func (u uiRecorder) ResultsReady(results []types.CarResult) {
	u.w.results = results
	u.w.emit(types.GameplayEvent{Type: "results", Value: len(results)})
}
