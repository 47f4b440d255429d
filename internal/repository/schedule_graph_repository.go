package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/openscholar/school-admin-api/internal/models"
)

// ScheduleGraphRepository loads the teacher/class/subject relationship
// snapshot consumed by a timetable generation run.
type ScheduleGraphRepository struct {
	db *sqlx.DB
}

// NewScheduleGraphRepository constructs the repository.
func NewScheduleGraphRepository(db *sqlx.DB) *ScheduleGraphRepository {
	return &ScheduleGraphRepository{db: db}
}

// ListActiveTeachers returns all active teachers ordered by creation time so
// assignment derivation is deterministic across runs.
func (r *ScheduleGraphRepository) ListActiveTeachers(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, email, full_name, phone, active, created_at, updated_at
FROM teachers WHERE active = TRUE ORDER BY created_at ASC, id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list active teachers: %w", err)
	}
	return teachers, nil
}

// ListActiveClasses returns all active classes in stable order.
func (r *ScheduleGraphRepository) ListActiveClasses(ctx context.Context) ([]models.Class, error) {
	const query = `SELECT id, name, grade, active, created_at, updated_at
FROM classes WHERE active = TRUE ORDER BY created_at ASC, id ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list active classes: %w", err)
	}
	return classes, nil
}

// ListActiveSubjects returns all active subjects in stable order.
func (r *ScheduleGraphRepository) ListActiveSubjects(ctx context.Context) ([]models.Subject, error) {
	const query = `SELECT id, code, name, active, created_at, updated_at
FROM subjects WHERE active = TRUE ORDER BY created_at ASC, id ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list active subjects: %w", err)
	}
	return subjects, nil
}

// ListTeacherSubjects returns every teacher-subject link.
func (r *ScheduleGraphRepository) ListTeacherSubjects(ctx context.Context) ([]models.TeacherSubject, error) {
	const query = `SELECT id, teacher_id, subject_id, created_at
FROM teacher_subjects ORDER BY created_at ASC, id ASC`
	var links []models.TeacherSubject
	if err := r.db.SelectContext(ctx, &links, query); err != nil {
		return nil, fmt.Errorf("list teacher subjects: %w", err)
	}
	return links, nil
}

// ListTeacherClasses returns every teacher-class link.
func (r *ScheduleGraphRepository) ListTeacherClasses(ctx context.Context) ([]models.TeacherClass, error) {
	const query = `SELECT id, teacher_id, class_id, created_at
FROM teacher_classes ORDER BY created_at ASC, id ASC`
	var links []models.TeacherClass
	if err := r.db.SelectContext(ctx, &links, query); err != nil {
		return nil, fmt.Errorf("list teacher classes: %w", err)
	}
	return links, nil
}

// ListClassSubjects returns every class-subject link.
func (r *ScheduleGraphRepository) ListClassSubjects(ctx context.Context) ([]models.ClassSubject, error) {
	const query = `SELECT id, class_id, subject_id, created_at
FROM class_subjects ORDER BY created_at ASC, id ASC`
	var links []models.ClassSubject
	if err := r.db.SelectContext(ctx, &links, query); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return links, nil
}
