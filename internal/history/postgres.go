package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type MatchRecord struct {
	gorm.Model
	Room       string `gorm:"index;not null"`
	Ruleset    string `gorm:"type:varchar(20)"`
	Winner     string
	Loser      string
	Rounds     int
	FinishedAt time.Time `gorm:"index"`
}

func (MatchRecord) TableName() string { return "match_results" }

type PostgresRecorder struct {
	db *gorm.DB
}

// OpenPostgres connects and migrates the match_results table.
func OpenPostgres(dsn string) (*PostgresRecorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open postgres: %w", err)
	}
	if err := db.AutoMigrate(&MatchRecord{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &PostgresRecorder{db: db}, nil
}

func (p *PostgresRecorder) Record(ctx context.Context, r Result) error {
	rec := MatchRecord{
		Room:       r.Room,
		Ruleset:    r.Ruleset,
		Winner:     r.Winner,
		Loser:      r.Loser,
		Rounds:     r.Rounds,
		FinishedAt: r.FinishedAt,
	}
	return p.db.WithContext(ctx).Create(&rec).Error
}

func (p *PostgresRecorder) Recent(ctx context.Context, limit int) ([]MatchRecord, error) {
	var out []MatchRecord
	err := p.db.WithContext(ctx).Order("finished_at desc").Limit(limit).Find(&out).Error
	return out, err
}

func (p *PostgresRecorder) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
