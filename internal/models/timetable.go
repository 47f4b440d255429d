package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableConfig stores the shape of the school week used by generation runs.
// Days, breaks and per-subject weekly overrides are kept as JSON columns.
type TimetableConfig struct {
	ID            string         `db:"id" json:"id"`
	PeriodsPerDay int            `db:"periods_per_day" json:"periods_per_day"`
	StartTime     string         `db:"start_time" json:"start_time"`
	PeriodMinutes int            `db:"period_minutes" json:"period_minutes"`
	Days          types.JSONText `db:"days" json:"days"`
	Breaks        types.JSONText `db:"breaks" json:"breaks,omitempty"`
	WeeklyCounts  types.JSONText `db:"weekly_counts" json:"weekly_counts,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// TimetableVersion is one immutable output of a generation run. At most one
// version is active at any time; activation is exclusive.
type TimetableVersion struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Version   int            `db:"version" json:"version"`
	Active    bool           `db:"active" json:"active"`
	Meta      types.JSONText `db:"meta" json:"meta"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// TimetableSlot is one placed lesson inside a timetable version.
type TimetableSlot struct {
	ID        string    `db:"id" json:"id"`
	VersionID string    `db:"version_id" json:"version_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Day       string    `db:"day" json:"day"`
	Period    int       `db:"period" json:"period"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
