// Package store persists finished race ledgers in SQLite through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dttson/drifting-car/internal/shared/types"
)

// ErrNoResults is returned when saving a race with an empty ledger.
var ErrNoResults = errors.New("store: race has no results")

// RaceRow is one finished race.
type RaceRow struct {
	ID         uint        `gorm:"primaryKey"`
	RaceID     string      `gorm:"uniqueIndex;size:64;not null"`
	FinishedAt int64       `gorm:"index"` // unix millis
	Results    []ResultRow `gorm:"foreignKey:RaceRowID;constraint:OnDelete:CASCADE"`
}

// ResultRow is one ledger entry of a race.
type ResultRow struct {
	ID        uint `gorm:"primaryKey"`
	RaceRowID uint `gorm:"index"`
	Rank      int
	CarID     string `gorm:"size:64"`
	CarName   string `gorm:"size:64;index"`
	Duration  float64
	IsPlayer  bool
}

// Store is the results database.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to the SQLite file at path and migrates the schema. An
// empty path opens a private in-memory database.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// a second connection to :memory: would be a different database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&RaceRow{}, &ResultRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if path == "" {
		log.Info().Msg("results store in memory")
	} else {
		log.Info().Str("path", path).Msg("results store opened")
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRace stores a final ledger.
func (s *Store) SaveRace(ctx context.Context, raceID string, finishedAt time.Time, results []types.CarResult) error {
	if len(results) == 0 {
		return fmt.Errorf("save race %s: %w", raceID, ErrNoResults)
	}
	row := RaceRow{
		RaceID:     raceID,
		FinishedAt: finishedAt.UTC().UnixMilli(),
		Results:    make([]ResultRow, 0, len(results)),
	}
	for _, r := range results {
		row.Results = append(row.Results, ResultRow{
			Rank:     r.Rank,
			CarID:    r.CarID,
			CarName:  r.CarName,
			Duration: r.Duration,
			IsPlayer: r.IsPlayer,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("save race %s: %w", raceID, err)
	}
	s.log.Debug().Str("race", raceID).Int("results", len(results)).Msg("race saved")
	return nil
}

// RecentRaces returns the latest races, newest first, each with its ledger
// in rank order.
func (s *Store) RecentRaces(ctx context.Context, limit int) ([]types.RaceRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []RaceRow
	err := s.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("rank ASC") }).
		Order("finished_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent races: %w", err)
	}

	out := make([]types.RaceRecord, 0, len(rows))
	for _, row := range rows {
		rec := types.RaceRecord{
			RaceID:     row.RaceID,
			FinishedAt: row.FinishedAt,
			Results:    make([]types.CarResult, 0, len(row.Results)),
		}
		for _, r := range row.Results {
			rec.Results = append(rec.Results, types.CarResult{
				Rank:     r.Rank,
				CarID:    r.CarID,
				CarName:  r.CarName,
				Duration: r.Duration,
				IsPlayer: r.IsPlayer,
			})
		}
		out = append(out, rec)
	}
	return out, nil
}

type boardRow struct {
	CarName  string
	Best     float64
	Races    int
	Wins     int
	IsPlayer int
}

// Leaderboard aggregates every stored result by car name. Cars with a
// resolved time come first, fastest first; placeholder-only cars follow.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	var rows []boardRow
	err := s.db.WithContext(ctx).
		Model(&ResultRow{}).
		Select("car_name, " +
			"COALESCE(MIN(CASE WHEN duration > 0 THEN duration END), 0) AS best, " +
			"COUNT(*) AS races, " +
			"SUM(CASE WHEN rank = 1 AND duration > 0 THEN 1 ELSE 0 END) AS wins, " +
			"MAX(CASE WHEN is_player THEN 1 ELSE 0 END) AS is_player").
		Group("car_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	slices.SortFunc(rows, func(a, b boardRow) int {
		switch {
		case (a.Best > 0) != (b.Best > 0):
			if a.Best > 0 {
				return -1
			}
			return 1
		case a.Best < b.Best:
			return -1
		case a.Best > b.Best:
			return 1
		default:
			if a.CarName < b.CarName {
				return -1
			}
			if a.CarName > b.CarName {
				return 1
			}
			return 0
		}
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]types.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.LeaderboardEntry{
			CarName:  r.CarName,
			Best:     r.Best,
			Races:    r.Races,
			Wins:     r.Wins,
			IsPlayer: r.IsPlayer == 1,
		})
	}
	return out, nil
}
