package race

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dttson/drifting-car/internal/shared/types"
)

type manualClock struct{ t float64 }

func (c *manualClock) Now() float64 { return c.t }

type fakeCar struct {
	id, name    string
	player      bool
	active      bool
	activateErr error
	onFinish    func(string)
	activations int
}

func (c *fakeCar) ID() string     { return c.id }
func (c *fakeCar) Name() string   { return c.name }
func (c *fakeCar) IsPlayer() bool { return c.player }
func (c *fakeCar) Deactivate()    { c.active = false }

func (c *fakeCar) Activate(onFinish func(string)) error {
	if c.activateErr != nil {
		return c.activateErr
	}
	c.active = true
	c.onFinish = onFinish
	c.activations++
	return nil
}

func (c *fakeCar) finish() { c.onFinish(c.id) }

type recordingUI struct {
	NopUI
	ticks        []int
	startEnabled bool
	inputEnabled bool
	hidden       int
	finished     []types.CarResult
	results      []types.CarResult
	activeAtTick map[int]bool
	roster       []*fakeCar
}

func (u *recordingUI) SetStartEnabled(v bool)            { u.startEnabled = v }
func (u *recordingUI) SetInputEnabled(v bool)            { u.inputEnabled = v }
func (u *recordingUI) CountdownHidden()                  { u.hidden++ }
func (u *recordingUI) CarFinished(r types.CarResult)     { u.finished = append(u.finished, r) }
func (u *recordingUI) ResultsReady(rs []types.CarResult) { u.results = rs }

func (u *recordingUI) CountdownTick(v int) {
	u.ticks = append(u.ticks, v)
	if u.activeAtTick == nil {
		u.activeAtTick = map[int]bool{}
	}
	live := false
	for _, c := range u.roster {
		live = live || c.active
	}
	u.activeAtTick[v] = live
}

type arming struct{ armed bool }

func (a *arming) SetArmed(v bool) { a.armed = v }

type fixture struct {
	clock *manualClock
	ui    *recordingUI
	gate  *arming
	cars  []*fakeCar
	race  *Orchestrator
}

func newFixture(t *testing.T, params Params, cars ...*fakeCar) *fixture {
	t.Helper()
	f := &fixture{
		clock: &manualClock{t: 100},
		ui:    &recordingUI{roster: cars},
		gate:  &arming{},
		cars:  cars,
	}
	roster := make([]Controller, len(cars))
	for i, c := range cars {
		roster[i] = c
	}
	race, err := New(roster, params, f.clock, f.ui, f.gate, zerolog.Nop())
	require.NoError(t, err)
	f.race = race
	return f
}

// advance moves the clock in frame-sized steps, updating the race each frame.
func (f *fixture) advance(seconds float64) {
	const frame = 0.25
	for s := 0.0; s < seconds-1e-9; s += frame {
		f.clock.t += frame
		f.race.Update()
	}
}

func (f *fixture) startAndRace(t *testing.T) {
	t.Helper()
	require.NoError(t, f.race.Start())
	f.advance(float64(f.race.params.CountdownSeconds))
	require.Equal(t, Racing, f.race.State())
}

func human() *fakeCar { return &fakeCar{id: "player", name: "Human", player: true} }

func ai(n int) *fakeCar {
	return &fakeCar{id: fmt.Sprintf("ai-%d", n), name: fmt.Sprintf("AI%d", n)}
}

func TestNew_StartsReadyAndInactive(t *testing.T) {
	h := human()
	h.active = true
	f := newFixture(t, DefaultParams(), h, ai(1))

	assert.Equal(t, Ready, f.race.State())
	assert.Equal(t, "ready", f.race.Phase())
	assert.False(t, h.active)
	assert.True(t, f.ui.startEnabled)
	assert.False(t, f.ui.inputEnabled)
	assert.False(t, f.gate.armed)
	assert.Equal(t, -1, f.race.Countdown())
}

func TestCountdown_TicksThenRacing(t *testing.T) {
	f := newFixture(t, DefaultParams(), human(), ai(1))

	require.NoError(t, f.race.Start())
	assert.Equal(t, []int{3}, f.ui.ticks)
	assert.Equal(t, PhaseCountdown, f.race.Phase())
	assert.False(t, f.ui.startEnabled)

	f.advance(2.75)
	assert.Equal(t, []int{3, 2, 1}, f.ui.ticks)
	assert.Equal(t, Ready, f.race.State())

	f.advance(0.25)
	assert.Equal(t, []int{3, 2, 1, 0}, f.ui.ticks)
	assert.Equal(t, Racing, f.race.State())
	assert.Equal(t, 1, f.ui.hidden)
	assert.True(t, f.ui.inputEnabled)

	for v, active := range f.ui.activeAtTick {
		assert.False(t, active, "car active at tick %d", v)
	}
	for _, c := range f.cars {
		assert.True(t, c.active)
		assert.Equal(t, 1, c.activations)
	}
}

func TestCountdown_CatchesUpOnLongFrame(t *testing.T) {
	f := newFixture(t, DefaultParams(), human())
	require.NoError(t, f.race.Start())

	f.clock.t += 10
	f.race.Update()

	assert.Equal(t, []int{3, 2, 1, 0}, f.ui.ticks)
	assert.Equal(t, Racing, f.race.State())
	// race time starts at the scheduled 0 tick, not at the late frame
	assert.InDelta(t, 7, f.race.Elapsed(), 1e-9)
}

func TestStart_OnlyFromReady(t *testing.T) {
	f := newFixture(t, DefaultParams(), human())
	require.NoError(t, f.race.Start())
	assert.ErrorIs(t, f.race.Start(), ErrNotReady)

	f.advance(3)
	assert.ErrorIs(t, f.race.Start(), ErrNotReady)
}

func TestCancel_ReturnsToReady(t *testing.T) {
	f := newFixture(t, DefaultParams(), human())
	require.NoError(t, f.race.Start())
	f.advance(1)

	f.race.Cancel()
	assert.Equal(t, "ready", f.race.Phase())
	assert.True(t, f.ui.startEnabled)

	f.advance(5)
	assert.Equal(t, Ready, f.race.State())
	assert.False(t, f.cars[0].active)
	require.NoError(t, f.race.Start())
}

func TestFinishArming_AfterGraceDelay(t *testing.T) {
	f := newFixture(t, DefaultParams(), human(), ai(1))
	f.startAndRace(t)
	assert.False(t, f.gate.armed)
	assert.False(t, f.race.Armed())

	f.advance(19.75)
	assert.False(t, f.gate.armed)

	f.advance(0.25)
	assert.True(t, f.gate.armed)
	assert.True(t, f.race.Armed())
}

func TestScenario_HumanFinishesAt45(t *testing.T) {
	h, a := human(), ai(1)
	f := newFixture(t, DefaultParams(), h, a)
	f.startAndRace(t)

	f.advance(45)
	h.finish()

	assert.Equal(t, Finished, f.race.State())
	want := []types.CarResult{
		{Rank: 1, CarID: "player", CarName: "Human", Duration: 45, IsPlayer: true},
		{Rank: 2, CarID: "ai-1", CarName: "AI1", Duration: 0, IsPlayer: false},
	}
	got := f.race.Results()
	require.Len(t, got, 2)
	for i := range want {
		assert.Equal(t, want[i].Rank, got[i].Rank)
		assert.Equal(t, want[i].CarID, got[i].CarID)
		assert.Equal(t, want[i].CarName, got[i].CarName)
		assert.InDelta(t, want[i].Duration, got[i].Duration, 1e-9)
		assert.Equal(t, want[i].IsPlayer, got[i].IsPlayer)
	}
	assert.Equal(t, got, f.ui.results)
	assert.False(t, h.active)
	assert.False(t, a.active)
	assert.False(t, f.gate.armed)
	assert.False(t, f.ui.inputEnabled)
	assert.InDelta(t, 45, f.race.Elapsed(), 1e-9)
}

func TestLedger_NCars(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8} {
		t.Run(fmt.Sprintf("%d cars", n), func(t *testing.T) {
			cars := []*fakeCar{ai(1)}
			for i := 2; i < n; i++ {
				cars = append(cars, ai(i))
			}
			h := human()
			cars = append(cars, h)
			f := newFixture(t, DefaultParams(), cars...)
			f.startAndRace(t)

			f.advance(30)
			cars[0].finish()
			f.advance(5)
			h.finish()

			got := f.race.Results()
			require.Len(t, got, n)
			ids := map[string]bool{}
			for i, r := range got {
				assert.Equal(t, i+1, r.Rank)
				assert.False(t, ids[r.CarID], "duplicate %s", r.CarID)
				ids[r.CarID] = true
			}
			assert.InDelta(t, 30, got[0].Duration, 1e-9)
			assert.Equal(t, "player", got[1].CarID)
			assert.InDelta(t, 35, got[1].Duration, 1e-9)
			for _, r := range got[2:] {
				assert.Zero(t, r.Duration)
				assert.False(t, r.IsPlayer)
			}
		})
	}
}

func TestBackfill_RosterOrder(t *testing.T) {
	a1, a2, a3, h := ai(1), ai(2), ai(3), human()
	f := newFixture(t, DefaultParams(), a1, h, a2, a3)
	f.startAndRace(t)

	f.advance(10)
	a2.finish()
	h.finish()

	var ids []string
	for _, r := range f.race.Results() {
		ids = append(ids, r.CarID)
	}
	assert.Equal(t, []string{"ai-2", "player", "ai-1", "ai-3"}, ids)
}

func TestCarFinished_Idempotent(t *testing.T) {
	h, a := human(), ai(1)
	f := newFixture(t, DefaultParams(), h, a)
	f.startAndRace(t)

	f.advance(10)
	a.finish()
	f.advance(1)
	a.finish()

	got := f.race.Results()
	require.Len(t, got, 1)
	assert.InDelta(t, 10, got[0].Duration, 1e-9)
	assert.Len(t, f.ui.finished, 1)
	assert.Equal(t, Racing, f.race.State())
}

func TestCarFinished_IgnoredOutsideRacing(t *testing.T) {
	h := human()
	f := newFixture(t, DefaultParams(), h, ai(1))

	f.race.CarFinished("player")
	assert.Empty(t, f.race.Results())
	assert.Equal(t, Ready, f.race.State())

	f.startAndRace(t)
	f.advance(1)
	h.finish()
	require.Equal(t, Finished, f.race.State())
	before := f.race.Results()

	f.race.CarFinished("ai-1")
	f.race.CarFinished("player")
	assert.Equal(t, before, f.race.Results())
	assert.Equal(t, Finished, f.race.State())
}

func TestCarFinished_UnknownCar(t *testing.T) {
	f := newFixture(t, DefaultParams(), human(), ai(1))
	f.startAndRace(t)

	f.race.CarFinished("ghost")

	assert.Empty(t, f.race.Results())
	assert.Equal(t, Racing, f.race.State())
}

func TestAllAIFinishing_Finalizes(t *testing.T) {
	a1, a2 := ai(1), ai(2)
	f := newFixture(t, DefaultParams(), a1, a2)
	f.startAndRace(t)

	f.advance(4)
	a2.finish()
	assert.Equal(t, Racing, f.race.State())
	f.advance(1)
	a1.finish()

	assert.Equal(t, Finished, f.race.State())
	assert.Len(t, f.ui.results, 2)
	assert.InDelta(t, 5, f.ui.results[1].Duration, 1e-9)
}

func TestDegenerateRosters(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		f := newFixture(t, DefaultParams())
		require.NoError(t, f.race.Start())
		f.advance(3)
		assert.Equal(t, Racing, f.race.State())

		f.race.CarFinished("anyone")
		assert.Empty(t, f.race.Results())
	})

	t.Run("single car", func(t *testing.T) {
		a := ai(1)
		f := newFixture(t, DefaultParams(), a)
		f.startAndRace(t)
		f.advance(2)
		a.finish()

		assert.Equal(t, Finished, f.race.State())
		require.Len(t, f.race.Results(), 1)
		assert.InDelta(t, 2, f.race.Results()[0].Duration, 1e-9)
	})
}

func TestActivationFailure_OtherCarsProceed(t *testing.T) {
	broken := ai(2)
	broken.activateErr = errors.New("vehicle: path follower has no path")
	h, a := human(), ai(1)
	f := newFixture(t, DefaultParams(), h, a, broken)
	f.startAndRace(t)

	assert.True(t, h.active)
	assert.True(t, a.active)
	assert.False(t, broken.active)

	f.advance(20)
	h.finish()
	got := f.race.Results()
	require.Len(t, got, 3)
	assert.Equal(t, "ai-2", got[2].CarID)
	assert.Zero(t, got[2].Duration)
}

func TestActivationFailure_BrokenHumanDoesNotStallRace(t *testing.T) {
	h, a1, a2 := human(), ai(1), ai(2)
	h.activateErr = errors.New("vehicle: max speed must be positive")
	f := newFixture(t, DefaultParams(), h, a1, a2)
	f.startAndRace(t)

	f.advance(30)
	a2.finish()
	assert.Equal(t, Racing, f.race.State())
	f.advance(5)
	a1.finish()

	require.Equal(t, Finished, f.race.State())
	got := f.ui.results
	require.Len(t, got, 3)
	assert.Equal(t, "ai-2", got[0].CarID)
	assert.Equal(t, "ai-1", got[1].CarID)
	assert.Equal(t, "player", got[2].CarID)
	assert.Equal(t, 3, got[2].Rank)
	assert.True(t, got[2].IsPlayer)
	assert.Zero(t, got[2].Duration)
	assert.False(t, f.ui.inputEnabled)
}

func TestActivationFailure_NoCarStarts(t *testing.T) {
	h := human()
	h.activateErr = errors.New("vehicle: max speed must be positive")
	f := newFixture(t, DefaultParams(), h)
	require.NoError(t, f.race.Start())
	f.advance(3)

	assert.Equal(t, Finished, f.race.State())
	require.Len(t, f.ui.results, 1)
	assert.Zero(t, f.ui.results[0].Duration)
	assert.False(t, f.gate.armed)
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	a, b := ai(1), ai(1)
	a.active, b.active = true, true
	_, err := New([]Controller{a, b}, DefaultParams(), &manualClock{}, nil, nil, zerolog.Nop())

	require.ErrorIs(t, err, ErrDuplicateID)
	assert.False(t, a.active)
}

func TestZeroCountdown_RacesImmediately(t *testing.T) {
	f := newFixture(t, Params{CountdownSeconds: 0, FinishGraceDelay: 0}, human())
	require.NoError(t, f.race.Start())

	assert.Equal(t, []int{0}, f.ui.ticks)
	assert.Equal(t, Racing, f.race.State())
	assert.True(t, f.gate.armed)
}

func TestLedger(t *testing.T) {
	l := NewLedger(2)
	r, ok := l.Record("a", "A", 3.5, false)
	require.True(t, ok)
	assert.Equal(t, 1, r.Rank)

	_, ok = l.Record("a", "A", 4, false)
	assert.False(t, ok)

	r, ok = l.Record("b", "B", -1, true)
	require.True(t, ok)
	assert.Equal(t, 2, r.Rank)
	assert.Zero(t, r.Duration)
	assert.True(t, l.Full())

	_, ok = l.Record("c", "C", 1, false)
	assert.False(t, ok)
	assert.Equal(t, 2, l.Len())

	out := l.Results()
	out[0].CarName = "changed"
	assert.Equal(t, "A", l.Results()[0].CarName)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in     float64
		plain  string
		pretty string
	}{
		{in: 0, plain: "00", pretty: "--:--:--"},
		{in: 7.9, plain: "07", pretty: "--:--:07"},
		{in: 45, plain: "45", pretty: "--:--:45"},
		{in: 61, plain: "01:01", pretty: "--:01:01"},
		{in: 3600, plain: "01:00:00", pretty: "01:00:00"},
		{in: 3725, plain: "01:02:05", pretty: "01:02:05"},
	}
	for _, tt := range tests {
		t.Run(tt.plain, func(t *testing.T) {
			got, err := FormatDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, got)

			got, err = FormatDurationPretty(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.pretty, got)
		})
	}

	_, err := FormatDuration(-1)
	assert.ErrorIs(t, err, ErrNegativeDuration)
	_, err = FormatDurationPretty(-0.5)
	assert.ErrorIs(t, err, ErrNegativeDuration)
}
