package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dttson/drifting-car/internal/shared/types"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ledger(player float64, rivals ...string) []types.CarResult {
	out := []types.CarResult{{Rank: 1, CarID: "player", CarName: "YOU", Duration: player, IsPlayer: true}}
	for i, name := range rivals {
		out = append(out, types.CarResult{Rank: i + 2, CarID: name, CarName: name})
	}
	return out
}

func TestSaveRace_RoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRace(ctx, "race-1", at, ledger(45, "Rival 1", "Rival 2")))

	races, err := s.RecentRaces(ctx, 10)
	require.NoError(t, err)
	require.Len(t, races, 1)
	assert.Equal(t, "race-1", races[0].RaceID)
	assert.Equal(t, at.UnixMilli(), races[0].FinishedAt)
	require.Len(t, races[0].Results, 3)
	assert.Equal(t, "YOU", races[0].Results[0].CarName)
	assert.InDelta(t, 45, races[0].Results[0].Duration, 1e-9)
	assert.Equal(t, 3, races[0].Results[2].Rank)
}

func TestSaveRace_Rejects(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.SaveRace(ctx, "empty", time.Now(), nil), ErrNoResults)

	require.NoError(t, s.SaveRace(ctx, "dup", time.Now(), ledger(10)))
	assert.Error(t, s.SaveRace(ctx, "dup", time.Now(), ledger(11)))
}

func TestRecentRaces_NewestFirst(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRace(ctx, id, base.Add(time.Duration(i)*time.Minute), ledger(float64(30+i))))
	}

	races, err := s.RecentRaces(ctx, 2)
	require.NoError(t, err)
	require.Len(t, races, 2)
	assert.Equal(t, "c", races[0].RaceID)
	assert.Equal(t, "b", races[1].RaceID)
}

func TestLeaderboard(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveRace(ctx, "r1", now, ledger(50, "Rival 1")))
	require.NoError(t, s.SaveRace(ctx, "r2", now, ledger(42, "Rival 1")))
	require.NoError(t, s.SaveRace(ctx, "r3", now, []types.CarResult{
		{Rank: 1, CarID: "ai-1", CarName: "Rival 2", Duration: 40},
		{Rank: 2, CarID: "player", CarName: "YOU", Duration: 44, IsPlayer: true},
	}))

	board, err := s.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 3)

	assert.Equal(t, "Rival 2", board[0].CarName)
	assert.InDelta(t, 40, board[0].Best, 1e-9)
	assert.Equal(t, 1, board[0].Wins)

	assert.Equal(t, "YOU", board[1].CarName)
	assert.InDelta(t, 42, board[1].Best, 1e-9)
	assert.Equal(t, 3, board[1].Races)
	assert.Equal(t, 2, board[1].Wins)
	assert.True(t, board[1].IsPlayer)

	// only placeholder results, sorted last
	assert.Equal(t, "Rival 1", board[2].CarName)
	assert.Zero(t, board[2].Best)
	assert.Equal(t, 2, board[2].Races)
	assert.Zero(t, board[2].Wins)

	top, err := s.Leaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Rival 2", top[0].CarName)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open("", zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveRace(context.Background(), "mem", time.Now(), ledger(12)))
	races, err := s.RecentRaces(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, races, 1)
}
