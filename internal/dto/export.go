package dto

import "time"

// ExportTimetableRequest queues a background render of a stored version.
// ClassID is required for the pdf format, which renders one class's grid.
type ExportTimetableRequest struct {
	VersionID string `json:"versionId" validate:"required"`
	Format    string `json:"format" validate:"required,oneof=pdf csv"`
	ClassID   string `json:"classId" validate:"omitempty"`
}

// ExportJobResponse reports the state of a queued export.
type ExportJobResponse struct {
	JobID     string     `json:"jobId"`
	Status    string     `json:"status"`
	Format    string     `json:"format"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}
