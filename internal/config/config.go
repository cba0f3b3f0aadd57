// Package config loads race settings from defaults, an optional JSON file
// and DRIFT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dttson/drifting-car/internal/race"
	"github.com/dttson/drifting-car/internal/vehicle"
)

// FileName is the config file looked up in the config directory.
const FileName = "drifting-car.json"

// EnvPrefix prefixes environment overrides, e.g. DRIFT_DRIFT_MAXSPEED.
const EnvPrefix = "DRIFT"

// LogSettings controls the zerolog sink.
type LogSettings struct {
	Level  string `mapstructure:"level" json:"level"`
	Pretty bool   `mapstructure:"pretty" json:"pretty"`
}

// RaceSettings is the lifecycle tuning plus the scheduler steps.
type RaceSettings struct {
	race.Params `mapstructure:",squash"`
	FixedStep   float64 `mapstructure:"fixedStep" json:"fixedStep"`
	MaxSubSteps int     `mapstructure:"maxSubSteps" json:"maxSubSteps"`
}

// RosterSettings names the cars of a race.
type RosterSettings struct {
	PlayerName string   `mapstructure:"playerName" json:"playerName"`
	Rivals     []string `mapstructure:"rivals" json:"rivals"`
	Spacing    float64  `mapstructure:"spacing" json:"spacing"`
	LaneOffset float64  `mapstructure:"laneOffset" json:"laneOffset"`
}

// ObstacleSettings is one static box.
type ObstacleSettings struct {
	Min [3]float64 `mapstructure:"min" json:"min"`
	Max [3]float64 `mapstructure:"max" json:"max"`
}

// TerrainSettings lays a height field around the road plane. Heights follow
// groundHeight + amplitude*sin(x/wavelength)*sin(z/wavelength). The field is
// off unless cols and rows are at least 2.
type TerrainSettings struct {
	OriginX    float64 `mapstructure:"originX" json:"originX"`
	OriginZ    float64 `mapstructure:"originZ" json:"originZ"`
	Cell       float64 `mapstructure:"cell" json:"cell"`
	Cols       int     `mapstructure:"cols" json:"cols"`
	Rows       int     `mapstructure:"rows" json:"rows"`
	Amplitude  float64 `mapstructure:"amplitude" json:"amplitude"`
	Wavelength float64 `mapstructure:"wavelength" json:"wavelength"`
}

// Enabled reports whether the field has a usable grid.
func (t TerrainSettings) Enabled() bool {
	return t.Cols >= 2 && t.Rows >= 2 && t.Cell > 0
}

// TrackSettings describes the course. Without points an oval is generated.
type TrackSettings struct {
	Points            [][3]float64       `mapstructure:"points" json:"points"`
	Ups               [][3]float64       `mapstructure:"ups" json:"ups"`
	Closed            bool               `mapstructure:"closed" json:"closed"`
	SamplesPerSegment int                `mapstructure:"samplesPerSegment" json:"samplesPerSegment"`
	OvalRadiusX       float64            `mapstructure:"ovalRadiusX" json:"ovalRadiusX"`
	OvalRadiusZ       float64            `mapstructure:"ovalRadiusZ" json:"ovalRadiusZ"`
	OvalPoints        int                `mapstructure:"ovalPoints" json:"ovalPoints"`
	GateHalfWidth     float64            `mapstructure:"gateHalfWidth" json:"gateHalfWidth"`
	GateHeight        float64            `mapstructure:"gateHeight" json:"gateHeight"`
	GroundHeight      float64            `mapstructure:"groundHeight" json:"groundHeight"`
	Obstacles         []ObstacleSettings `mapstructure:"obstacles" json:"obstacles"`
	Terrain           TerrainSettings    `mapstructure:"terrain" json:"terrain"`
}

// ServerSettings configures the race server loops and transport.
type ServerSettings struct {
	Addr            string `mapstructure:"addr" json:"addr"`
	ResultsAddr     string `mapstructure:"resultsAddr" json:"resultsAddr"`
	FrameRate       int    `mapstructure:"frameRate" json:"frameRate"`
	ReplicationRate int    `mapstructure:"replicationRate" json:"replicationRate"`
	Encoding        string `mapstructure:"encoding" json:"encoding"`
}

// StorageSettings locates the results database.
type StorageSettings struct {
	SQLitePath string `mapstructure:"sqlitePath" json:"sqlitePath"`
}

// Settings is the typed view of the whole configuration.
type Settings struct {
	Log     LogSettings            `mapstructure:"log" json:"log"`
	Drift   vehicle.DriftParams    `mapstructure:"drift" json:"drift"`
	AI      vehicle.FollowerParams `mapstructure:"ai" json:"ai"`
	Race    RaceSettings           `mapstructure:"race" json:"race"`
	Roster  RosterSettings         `mapstructure:"roster" json:"roster"`
	Track   TrackSettings          `mapstructure:"track" json:"track"`
	Server  ServerSettings         `mapstructure:"server" json:"server"`
	Storage StorageSettings        `mapstructure:"storage" json:"storage"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Log:   LogSettings{Level: "info"},
		Drift: vehicle.DefaultDriftParams(),
		AI:    vehicle.DefaultFollowerParams(),
		Race: RaceSettings{
			Params:      race.DefaultParams(),
			FixedStep:   0.02,
			MaxSubSteps: 8,
		},
		Roster: RosterSettings{
			PlayerName: "YOU",
			Rivals:     []string{"Rival 1", "Rival 2", "Rival 3"},
			Spacing:    8,
			LaneOffset: 3,
		},
		Track: TrackSettings{
			Points:            [][3]float64{},
			Ups:               [][3]float64{},
			Closed:            true,
			SamplesPerSegment: 8,
			OvalRadiusX:       120,
			OvalRadiusZ:       70,
			OvalPoints:        16,
			GateHalfWidth:     12,
			GateHeight:        6,
			Obstacles:         []ObstacleSettings{},
			Terrain:           TerrainSettings{Cell: 2, Wavelength: 20},
		},
		Server: ServerSettings{
			Addr:            ":9003",
			ResultsAddr:     ":9004",
			FrameRate:       60,
			ReplicationRate: 30,
			Encoding:        "json",
		},
		Storage: StorageSettings{SQLitePath: "./drifting-car.db"},
	}
}

// SetDefaults registers a default for every key.
func SetDefaults() {
	d := Defaults()

	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.pretty", d.Log.Pretty)

	viper.SetDefault("drift.acceleration", d.Drift.Acceleration)
	viper.SetDefault("drift.turnSpeed", d.Drift.TurnSpeed)
	viper.SetDefault("drift.driftFactor", d.Drift.DriftFactor)
	viper.SetDefault("drift.maxSpeed", d.Drift.MaxSpeed)
	viper.SetDefault("drift.inputSmoothTime", d.Drift.InputSmoothTime)
	viper.SetDefault("drift.inputMaxRate", d.Drift.InputMaxRate)
	viper.SetDefault("drift.joystickDeadzone", d.Drift.JoystickDeadzone)
	viper.SetDefault("drift.groundOffset", d.Drift.GroundOffset)
	viper.SetDefault("drift.groundRayLength", d.Drift.GroundRayLength)
	viper.SetDefault("drift.groundSnapSpeed", d.Drift.GroundSnapSpeed)
	viper.SetDefault("drift.groundMask", d.Drift.GroundMask)
	viper.SetDefault("drift.maxSlopeAngle", d.Drift.MaxSlopeAngle)
	viper.SetDefault("drift.driftThreshold", d.Drift.DriftThreshold)
	viper.SetDefault("drift.gravity", d.Drift.Gravity)

	viper.SetDefault("ai.speed", d.AI.Speed)
	viper.SetDefault("ai.overtakeDistance", d.AI.Overtake.Distance)
	viper.SetDefault("ai.overtakeLateralOffset", d.AI.Overtake.LateralOffset)
	viper.SetDefault("ai.overtakeSpeedBoost", d.AI.Overtake.SpeedBoost)
	viper.SetDefault("ai.visualOffsetRate", d.AI.VisualOffsetRate)
	viper.SetDefault("ai.usePathUp", d.AI.UsePathUp)

	viper.SetDefault("race.countdownSeconds", d.Race.CountdownSeconds)
	viper.SetDefault("race.finishGraceDelay", d.Race.FinishGraceDelay)
	viper.SetDefault("race.fixedStep", d.Race.FixedStep)
	viper.SetDefault("race.maxSubSteps", d.Race.MaxSubSteps)

	viper.SetDefault("roster.playerName", d.Roster.PlayerName)
	viper.SetDefault("roster.rivals", d.Roster.Rivals)
	viper.SetDefault("roster.spacing", d.Roster.Spacing)
	viper.SetDefault("roster.laneOffset", d.Roster.LaneOffset)

	viper.SetDefault("track.points", d.Track.Points)
	viper.SetDefault("track.ups", d.Track.Ups)
	viper.SetDefault("track.closed", d.Track.Closed)
	viper.SetDefault("track.samplesPerSegment", d.Track.SamplesPerSegment)
	viper.SetDefault("track.ovalRadiusX", d.Track.OvalRadiusX)
	viper.SetDefault("track.ovalRadiusZ", d.Track.OvalRadiusZ)
	viper.SetDefault("track.ovalPoints", d.Track.OvalPoints)
	viper.SetDefault("track.gateHalfWidth", d.Track.GateHalfWidth)
	viper.SetDefault("track.gateHeight", d.Track.GateHeight)
	viper.SetDefault("track.groundHeight", d.Track.GroundHeight)
	viper.SetDefault("track.obstacles", d.Track.Obstacles)
	viper.SetDefault("track.terrain.originX", d.Track.Terrain.OriginX)
	viper.SetDefault("track.terrain.originZ", d.Track.Terrain.OriginZ)
	viper.SetDefault("track.terrain.cell", d.Track.Terrain.Cell)
	viper.SetDefault("track.terrain.cols", d.Track.Terrain.Cols)
	viper.SetDefault("track.terrain.rows", d.Track.Terrain.Rows)
	viper.SetDefault("track.terrain.amplitude", d.Track.Terrain.Amplitude)
	viper.SetDefault("track.terrain.wavelength", d.Track.Terrain.Wavelength)

	viper.SetDefault("server.addr", d.Server.Addr)
	viper.SetDefault("server.resultsAddr", d.Server.ResultsAddr)
	viper.SetDefault("server.frameRate", d.Server.FrameRate)
	viper.SetDefault("server.replicationRate", d.Server.ReplicationRate)
	viper.SetDefault("server.encoding", d.Server.Encoding)

	viper.SetDefault("storage.sqlitePath", d.Storage.SQLitePath)
}

// Load applies defaults, reads the optional config file from configDir and
// enables environment overrides. A missing file is not an error.
func Load(configDir string) (Settings, error) {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configDir != "" {
		viper.SetConfigName(FileName)
		viper.SetConfigType("json")
		viper.AddConfigPath(configDir)

		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	return Current()
}

// Current decodes the live viper state into Settings.
func Current() (Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("error decoding config: %w", err)
	}
	return s, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}
