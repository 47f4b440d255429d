package dto

import (
	"github.com/openscholar/school-admin-api/internal/models"
	"github.com/openscholar/school-admin-api/internal/timetable"
)

// GenerateTimetableRequest starts a generation run. Seed is optional and
// only used to reproduce a previous run.
type GenerateTimetableRequest struct {
	Name string `json:"name" validate:"required,min=3,max=120"`
	Seed *int64 `json:"seed,omitempty"`
}

// GenerateTimetableResponse carries the persisted run output. When the
// graph has no eligible teacher-class-subject pairs, Diagnostics is set
// and the remaining fields are empty.
type GenerateTimetableResponse struct {
	VersionID   string                 `json:"versionId,omitempty"`
	Name        string                 `json:"name"`
	Version     int                    `json:"version,omitempty"`
	Slots       []timetable.PlacedSlot `json:"slots,omitempty"`
	Shortfalls  []timetable.Shortfall  `json:"shortfalls,omitempty"`
	Diagnostics *timetable.Report      `json:"diagnostics,omitempty"`
}

// TimetableVersionResponse is the list/detail shape for stored versions.
type TimetableVersionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
}

// NewTimetableVersionResponse maps a stored version row.
func NewTimetableVersionResponse(v models.TimetableVersion) TimetableVersionResponse {
	return TimetableVersionResponse{
		ID:        v.ID,
		Name:      v.Name,
		Version:   v.Version,
		Active:    v.Active,
		CreatedAt: v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// UpsertTimetableConfigRequest replaces the institution-wide scheduling
// parameters used by subsequent generation runs.
type UpsertTimetableConfigRequest struct {
	PeriodsPerDay int            `json:"periodsPerDay" validate:"required,min=1,max=16"`
	StartTime     string         `json:"startTime" validate:"required,len=5"`
	PeriodMinutes int            `json:"periodMinutes" validate:"required,min=5,max=240"`
	Days          []string       `json:"days" validate:"required,min=1,dive,required"`
	Breaks        []BreakInput   `json:"breaks" validate:"omitempty,dive"`
	WeeklyCounts  map[string]int `json:"weeklyCounts" validate:"omitempty,dive,min=1"`
}

// BreakInput is a named pause in the school day, kept for rendering.
type BreakInput struct {
	Name  string `json:"name" validate:"required,max=60"`
	Start string `json:"start" validate:"required,len=5"`
	End   string `json:"end" validate:"required,len=5"`
}
