package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/openscholar/school-admin-api/internal/models"
)

// TimetableConfigRepository persists the school week configuration.
type TimetableConfigRepository struct {
	db *sqlx.DB
}

// NewTimetableConfigRepository constructs the repository.
func NewTimetableConfigRepository(db *sqlx.DB) *TimetableConfigRepository {
	return &TimetableConfigRepository{db: db}
}

// Get loads the most recently updated configuration. sql.ErrNoRows when none
// has been stored yet.
func (r *TimetableConfigRepository) Get(ctx context.Context) (*models.TimetableConfig, error) {
	const query = `SELECT id, periods_per_day, start_time, period_minutes, days, breaks, weekly_counts, created_at, updated_at
FROM timetable_configs ORDER BY updated_at DESC LIMIT 1`
	var cfg models.TimetableConfig
	if err := r.db.GetContext(ctx, &cfg, query); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert stores the configuration, replacing an existing row with the same ID.
func (r *TimetableConfigRepository) Upsert(ctx context.Context, cfg *models.TimetableConfig) error {
	if cfg == nil {
		return fmt.Errorf("config payload is nil")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if len(cfg.Days) == 0 {
		cfg.Days = types.JSONText(`[]`)
	}
	if len(cfg.Breaks) == 0 {
		cfg.Breaks = types.JSONText(`[]`)
	}
	if len(cfg.WeeklyCounts) == 0 {
		cfg.WeeklyCounts = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	const query = `
INSERT INTO timetable_configs (id, periods_per_day, start_time, period_minutes, days, breaks, weekly_counts, created_at, updated_at)
VALUES (:id, :periods_per_day, :start_time, :period_minutes, :days, :breaks, :weekly_counts, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE
SET periods_per_day = EXCLUDED.periods_per_day,
    start_time = EXCLUDED.start_time,
    period_minutes = EXCLUDED.period_minutes,
    days = EXCLUDED.days,
    breaks = EXCLUDED.breaks,
    weekly_counts = EXCLUDED.weekly_counts,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("upsert timetable config: %w", err)
	}
	return nil
}
