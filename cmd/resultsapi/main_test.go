package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dttson/drifting-car/internal/shared/logger"
	"github.com/dttson/drifting-car/internal/shared/types"
	"github.com/dttson/drifting-car/internal/store"
)

func newTestHandler(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	st, err := store.Open("", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return withCORS(newMux(st, logger.Nop())), st
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRacesAndLeaderboard(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, st.SaveRace(ctx, "r1", base, []types.CarResult{
		{Rank: 1, CarID: "player", CarName: "YOU", Duration: 41.5, IsPlayer: true},
		{Rank: 2, CarID: "ai-1", CarName: "Rival 1"},
	}))
	require.NoError(t, st.SaveRace(ctx, "r2", base.Add(time.Minute), []types.CarResult{
		{Rank: 1, CarID: "ai-1", CarName: "Rival 1", Duration: 39},
		{Rank: 2, CarID: "player", CarName: "YOU", Duration: 44, IsPlayer: true},
	}))

	rec := get(t, h, "/v1/races?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var races struct {
		Count int                `json:"count"`
		Races []types.RaceRecord `json:"races"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &races))
	require.Equal(t, 1, races.Count)
	assert.Equal(t, "r2", races.Races[0].RaceID)
	assert.Len(t, races.Races[0].Results, 2)

	rec = get(t, h, "/v1/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)
	var board struct {
		Count   int                      `json:"count"`
		Entries []types.LeaderboardEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Equal(t, 2, board.Count)
	assert.Equal(t, "Rival 1", board.Entries[0].CarName)
	assert.Equal(t, 39.0, board.Entries[0].Best)
	assert.Equal(t, "YOU", board.Entries[1].CarName)
	assert.Equal(t, 41.5, board.Entries[1].Best)
	assert.True(t, board.Entries[1].IsPlayer)
}

func TestBadRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/v1/races?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/v1/leaderboard?limit=-3").Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/races", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/races", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		query string
		want  int
		ok    bool
	}{
		{"", 7, true},
		{"limit=5", 5, true},
		{"limit=5000", maxLimit, true},
		{"limit=0", 0, false},
		{"limit=x", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/races?"+tc.query, nil)
			got, ok := parseLimit(r, 7)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
