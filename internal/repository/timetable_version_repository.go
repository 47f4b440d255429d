package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/openscholar/school-admin-api/internal/models"
)

// TimetableVersionRepository persists immutable generation outputs.
type TimetableVersionRepository struct {
	db *sqlx.DB
}

// NewTimetableVersionRepository constructs the repository.
func NewTimetableVersionRepository(db *sqlx.DB) *TimetableVersionRepository {
	return &TimetableVersionRepository{db: db}
}

func (r *TimetableVersionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a version record assigning the next version number.
func (r *TimetableVersionRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, version *models.TimetableVersion) error {
	if version == nil {
		return fmt.Errorf("version payload is nil")
	}
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if len(version.Meta) == 0 {
		version.Meta = types.JSONText(`{}`)
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_versions`
	if err := sqlx.GetContext(ctx, target, &version.Version, nextVersionQuery); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetable_versions (id, name, version, active, meta, created_at)
VALUES (:id, :name, :version, :active, :meta, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, version); err != nil {
		return fmt.Errorf("insert timetable version: %w", err)
	}
	return nil
}

// List returns all versions, newest first.
func (r *TimetableVersionRepository) List(ctx context.Context) ([]models.TimetableVersion, error) {
	const query = `SELECT id, name, version, active, meta, created_at
FROM timetable_versions ORDER BY version DESC`
	var versions []models.TimetableVersion
	if err := r.db.SelectContext(ctx, &versions, query); err != nil {
		return nil, fmt.Errorf("list timetable versions: %w", err)
	}
	return versions, nil
}

// FindByID loads a version by its identifier.
func (r *TimetableVersionRepository) FindByID(ctx context.Context, id string) (*models.TimetableVersion, error) {
	const query = `SELECT id, name, version, active, meta, created_at FROM timetable_versions WHERE id = $1`
	var version models.TimetableVersion
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// FindActive loads the currently active version. sql.ErrNoRows when none is active.
func (r *TimetableVersionRepository) FindActive(ctx context.Context) (*models.TimetableVersion, error) {
	const query = `SELECT id, name, version, active, meta, created_at FROM timetable_versions WHERE active = TRUE LIMIT 1`
	var version models.TimetableVersion
	if err := r.db.GetContext(ctx, &version, query); err != nil {
		return nil, err
	}
	return &version, nil
}

// Activate deactivates every version and activates the chosen one. Both
// updates run on the supplied executor so the caller can make the switch
// atomic with one transaction; readers never observe two active versions.
func (r *TimetableVersionRepository) Activate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	target := r.exec(exec)

	if _, err := target.ExecContext(ctx, `UPDATE timetable_versions SET active = FALSE WHERE active = TRUE`); err != nil {
		return fmt.Errorf("deactivate timetable versions: %w", err)
	}
	result, err := target.ExecContext(ctx, `UPDATE timetable_versions SET active = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activate timetable version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable version rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a stored version.
func (r *TimetableVersionRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM timetable_versions WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable version rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
