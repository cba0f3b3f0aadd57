package types

import "time"

// Vec3 represents a position or vector in world space. Y is up.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Quat stores orientation as a unit quaternion.
type Quat struct {
	W float64 `json:"w" msgpack:"w"`
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// CarInput is the human control surface sample.
type CarInput struct {
	Sequence uint64  `json:"sequence" msgpack:"sequence"`
	Move     float64 `json:"move" msgpack:"move"` // -1..1
	Turn     float64 `json:"turn" msgpack:"turn"` // -1..1

	// Optional world-aligned joystick direction. When StickActive is set the
	// server maps it onto Move/Turn relative to the car heading.
	StickX      float64 `json:"stick_x,omitempty" msgpack:"stick_x,omitempty"`
	StickY      float64 `json:"stick_y,omitempty" msgpack:"stick_y,omitempty"`
	StickActive bool    `json:"stick_active,omitempty" msgpack:"stick_active,omitempty"`
	ClientMS    int64   `json:"client_ms" msgpack:"client_ms"`
}

// CarSnapshot is a read-only copy of one vehicle's state.
type CarSnapshot struct {
	ID             string  `json:"id" msgpack:"id"`
	Name           string  `json:"name" msgpack:"name"`
	IsPlayer       bool    `json:"is_player" msgpack:"is_player"`
	Active         bool    `json:"active" msgpack:"active"`
	Position       Vec3    `json:"position" msgpack:"position"`
	VisualPosition Vec3    `json:"visual_position" msgpack:"visual_position"`
	Rotation       Quat    `json:"rotation" msgpack:"rotation"`
	Velocity       Vec3    `json:"velocity" msgpack:"velocity"`
	Speed          float64 `json:"speed" msgpack:"speed"`
	SpeedFactor    float64 `json:"speed_factor" msgpack:"speed_factor"`
	IsDrifting     bool    `json:"is_drifting" msgpack:"is_drifting"`
	IsGrounded     bool    `json:"is_grounded" msgpack:"is_grounded"`
	Distance       float64 `json:"distance,omitempty" msgpack:"distance,omitempty"`
	Overtaking     bool    `json:"overtaking,omitempty" msgpack:"overtaking,omitempty"`
}

// CarResult is one ledger row.
type CarResult struct {
	Rank     int     `json:"rank" msgpack:"rank"`
	CarID    string  `json:"car_id" msgpack:"car_id"`
	CarName  string  `json:"car_name" msgpack:"car_name"`
	Duration float64 `json:"duration" msgpack:"duration"` // seconds, 0 = unresolved
	IsPlayer bool    `json:"is_player" msgpack:"is_player"`
}

// RaceSnapshot is replicated to the race UI.
type RaceSnapshot struct {
	RaceID    string                 `json:"race_id" msgpack:"race_id"`
	Tick      uint64                 `json:"tick" msgpack:"tick"`
	CreatedAt time.Time              `json:"created_at" msgpack:"created_at"`
	Phase     string                 `json:"phase" msgpack:"phase"` // ready|countdown|racing|finished
	Clock     float64                `json:"clock" msgpack:"clock"`
	Countdown int                    `json:"countdown" msgpack:"countdown"`
	Elapsed   float64                `json:"elapsed" msgpack:"elapsed"`
	Cars      map[string]CarSnapshot `json:"cars" msgpack:"cars"`
	Results   []CarResult            `json:"results" msgpack:"results"`
	Events    []GameplayEvent        `json:"events" msgpack:"events"`
}

// GameplayEvent tracks state changes worth UI/audio feedback.
type GameplayEvent struct {
	Type    string  `json:"type" msgpack:"type"` // countdown|go|racing|drift_start|drift_stop|collision|finish|results|input_enabled|start_enabled
	CarID   string  `json:"car_id,omitempty" msgpack:"car_id,omitempty"`
	Value   int     `json:"value,omitempty" msgpack:"value,omitempty"`
	Tag     string  `json:"tag,omitempty" msgpack:"tag,omitempty"`
	Enabled bool    `json:"enabled,omitempty" msgpack:"enabled,omitempty"`
	Clock   float64 `json:"clock" msgpack:"clock"`
}

// ClientEnvelope is sent from the race UI to the server.
type ClientEnvelope struct {
	Type  string    `json:"type" msgpack:"type"` // start|restart|input|ping
	Input *CarInput `json:"input,omitempty" msgpack:"input,omitempty"`
}

// ServerEnvelope is sent from server to the race UI.
type ServerEnvelope struct {
	Type     string        `json:"type" msgpack:"type"` // welcome|state|results|pong|error
	Tick     uint64        `json:"tick,omitempty" msgpack:"tick,omitempty"`
	State    *RaceSnapshot `json:"state,omitempty" msgpack:"state,omitempty"`
	Results  []CarResult   `json:"results,omitempty" msgpack:"results,omitempty"`
	ServerMS int64         `json:"server_ms,omitempty" msgpack:"server_ms,omitempty"`
	Message  string        `json:"message,omitempty" msgpack:"message,omitempty"`
	AckSeq   uint64        `json:"ack_seq,omitempty" msgpack:"ack_seq,omitempty"`
}

// RaceRecord is a persisted race summary served by the results API.
type RaceRecord struct {
	RaceID     string      `json:"race_id"`
	FinishedAt int64       `json:"finished_at"`
	Results    []CarResult `json:"results"`
}

// LeaderboardEntry is one best-time row.
type LeaderboardEntry struct {
	CarName  string  `json:"car_name"`
	Best     float64 `json:"best"`
	Races    int     `json:"races"`
	Wins     int     `json:"wins"`
	IsPlayer bool    `json:"is_player"`
}
