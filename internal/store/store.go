// Package store keeps a history of finished battles. Live sessions are never
// persisted; only their outcome is.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrNoDSN = errors.New("store: empty dsn")

const DefaultRecentLimit = 20
const MaxRecentLimit = 200

type BattleRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SessionID  string `gorm:"index;size:255" json:"session_id"`
	PlayerOne  string `json:"player_one"`
	PlayerTwo  string `json:"player_two"`
	SpeciesOne string `json:"species_one"`
	SpeciesTwo string `json:"species_two"`
	// Winner is empty for aborted battles and double knockouts.
	Winner     string    `json:"winner"`
	Reason     string    `json:"reason,omitempty"`
	Rounds     int       `json:"rounds"`
	FinishedAt time.Time `gorm:"index" json:"finished_at"`
}

type Store struct {
	db *gorm.DB
}

// Open connects and migrates. postgres:// and postgresql:// URLs, or DSNs in
// key=value form containing host=, use Postgres; anything else is handed to
// sqlite as a file name or URI.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrNoDSN
	}
	isSQLite := false
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
		isSQLite = true
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if isSQLite {
		// an in-memory sqlite database lives and dies with its connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&BattleRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(ctx context.Context, rec BattleRecord) error {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]BattleRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	var out []BattleRecord
	err := s.db.WithContext(ctx).
		Order("finished_at desc").
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
