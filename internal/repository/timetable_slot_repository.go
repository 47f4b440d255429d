package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openscholar/school-admin-api/internal/models"
)

// TimetableSlotRepository manages the placed slots of timetable versions.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository constructs the repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

func (r *TimetableSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch stores the slots of one generation run. Slots are immutable
// once written; there is no update path.
func (r *TimetableSlotRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_slots (id, version_id, teacher_id, class_id, subject_id, day, period, start_time, end_time, created_at)
VALUES (:id, :version_id, :teacher_id, :class_id, :subject_id, :day, :period, :start_time, :end_time, :created_at)`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("insert timetable slot: %w", err)
		}
	}
	return nil
}

// ListByVersion returns slots ordered by day and period for a version.
func (r *TimetableSlotRepository) ListByVersion(ctx context.Context, versionID string) ([]models.TimetableSlot, error) {
	const query = `SELECT id, version_id, teacher_id, class_id, subject_id, day, period, start_time, end_time, created_at
FROM timetable_slots WHERE version_id = $1 ORDER BY day ASC, period ASC`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, versionID); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}

// DeleteByVersion removes all slots belonging to a version.
func (r *TimetableSlotRepository) DeleteByVersion(ctx context.Context, exec sqlx.ExtContext, versionID string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_slots WHERE version_id = $1`, versionID); err != nil {
		return fmt.Errorf("delete timetable slots: %w", err)
	}
	return nil
}
