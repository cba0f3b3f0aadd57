// Command racesim runs one race headless with the player car on autopilot
// and prints the final ledger.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dttson/drifting-car/internal/config"
	"github.com/dttson/drifting-car/internal/race"
	"github.com/dttson/drifting-car/internal/shared/logger"
	"github.com/dttson/drifting-car/internal/shared/types"
	"github.com/dttson/drifting-car/internal/simulation"
	"github.com/dttson/drifting-car/internal/store"
	"github.com/dttson/drifting-car/internal/telemetry"
	"github.com/dttson/drifting-car/internal/vehicle"
)

func main() {
	fs := pflag.NewFlagSet("racesim", pflag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory holding "+config.FileName)
	timeout := fs.Duration("timeout", 5*time.Minute, "simulated time limit")
	save := fs.Bool("save", false, "store the ledger in the results database")
	lookahead := fs.Float64("lookahead", vehicle.AutopilotLookahead, "autopilot lookahead distance")
	fs.StringSlice("rivals", nil, "rival names, one AI car each")
	fs.Float64("ai-speed", 0, "AI base speed")
	fs.Int("countdown", 0, "countdown seconds")
	fs.Int("frame-rate", 0, "simulated frames per second")
	fs.String("log-level", "", "log level")
	_ = fs.Parse(os.Args[1:])

	for key, name := range map[string]string{
		"roster.rivals":         "rivals",
		"ai.speed":              "ai-speed",
		"race.countdownSeconds": "countdown",
		"server.frameRate":      "frame-rate",
		"log.level":             "log-level",
	} {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "bind flag %s: %v\n", name, err)
			os.Exit(2)
		}
	}

	settings, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.NewWithOptions("racesim", logger.Options{
		Level:  settings.Log.Level,
		Pretty: true,
		Out:    os.Stderr,
	})

	metrics, err := telemetry.New()
	if err != nil {
		log.Fatal().Err(err).Msg("metrics")
	}

	course, err := simulation.BuildCourse(settings.Track)
	if err != nil {
		log.Fatal().Err(err).Msg("course")
	}
	w, err := simulation.NewWorld(simulation.Options{
		RaceID:   uuid.NewString(),
		Settings: settings,
		Course:   &course,
		Pilot:    vehicle.NewAutopilot(course.Path, *lookahead),
		Log:      log,
		Metrics:  metrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("world")
	}

	results, err := run(w, max(settings.Server.FrameRate, 1), *timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("race")
	}
	if err := printLedger(os.Stdout, results); err != nil {
		log.Fatal().Err(err).Msg("print")
	}

	if *save {
		st, err := store.Open(settings.Storage.SQLitePath, log)
		if err != nil {
			log.Fatal().Err(err).Msg("results store")
		}
		defer func() { _ = st.Close() }()
		if err := st.SaveRace(context.Background(), w.RaceID(), time.Now().UTC(), results); err != nil {
			log.Fatal().Err(err).Msg("save")
		}
	}
}

// run starts the race and ticks it as fast as possible until the ledger is
// final or the simulated time limit passes.
func run(w *simulation.World, frameRate int, limit time.Duration) ([]types.CarResult, error) {
	if err := w.Start(); err != nil {
		return nil, err
	}
	dt := 1.0 / float64(frameRate)
	frames := int(limit.Seconds() * float64(frameRate))
	for range frames {
		w.Tick(dt)
		if results, ok := w.TakeResults(); ok {
			return results, nil
		}
	}
	return nil, fmt.Errorf("race still %s after %s", w.Phase(), limit)
}

func printLedger(out io.Writer, results []types.CarResult) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCAR\tTIME")
	for _, r := range results {
		t, err := race.FormatDurationPretty(r.Duration)
		if err != nil {
			return err
		}
		name := r.CarName
		if r.IsPlayer {
			name += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Rank, name, t)
	}
	return tw.Flush()
}
