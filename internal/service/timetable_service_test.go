package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openscholar/school-admin-api/internal/dto"
	"github.com/openscholar/school-admin-api/internal/models"
	"github.com/openscholar/school-admin-api/pkg/config"
	appErrors "github.com/openscholar/school-admin-api/pkg/errors"
)

type stubGraphStore struct {
	teachers        []models.Teacher
	classes         []models.Class
	subjects        []models.Subject
	teacherSubjects []models.TeacherSubject
	teacherClasses  []models.TeacherClass
	classSubjects   []models.ClassSubject
}

func (s *stubGraphStore) ListActiveTeachers(context.Context) ([]models.Teacher, error) {
	return s.teachers, nil
}
func (s *stubGraphStore) ListActiveClasses(context.Context) ([]models.Class, error) {
	return s.classes, nil
}
func (s *stubGraphStore) ListActiveSubjects(context.Context) ([]models.Subject, error) {
	return s.subjects, nil
}
func (s *stubGraphStore) ListTeacherSubjects(context.Context) ([]models.TeacherSubject, error) {
	return s.teacherSubjects, nil
}
func (s *stubGraphStore) ListTeacherClasses(context.Context) ([]models.TeacherClass, error) {
	return s.teacherClasses, nil
}
func (s *stubGraphStore) ListClassSubjects(context.Context) ([]models.ClassSubject, error) {
	return s.classSubjects, nil
}

type stubConfigStore struct {
	cfg      *models.TimetableConfig
	getErr   error
	upserted *models.TimetableConfig
}

func (s *stubConfigStore) Get(context.Context) (*models.TimetableConfig, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.cfg, nil
}
func (s *stubConfigStore) Upsert(_ context.Context, cfg *models.TimetableConfig) error {
	s.upserted = cfg
	return nil
}

type stubVersionStore struct {
	created     *models.TimetableVersion
	listOut     []models.TimetableVersion
	byID        *models.TimetableVersion
	byIDErr     error
	active      *models.TimetableVersion
	activeErr   error
	activateErr error
	activated   string
	deleted     string
}

func (s *stubVersionStore) CreateVersioned(_ context.Context, _ sqlx.ExtContext, version *models.TimetableVersion) error {
	version.ID = "ver-1"
	version.Version = 1
	copied := *version
	s.created = &copied
	return nil
}
func (s *stubVersionStore) List(context.Context) ([]models.TimetableVersion, error) {
	return s.listOut, nil
}
func (s *stubVersionStore) FindByID(context.Context, string) (*models.TimetableVersion, error) {
	if s.byIDErr != nil {
		return nil, s.byIDErr
	}
	return s.byID, nil
}
func (s *stubVersionStore) FindActive(context.Context) (*models.TimetableVersion, error) {
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	return s.active, nil
}
func (s *stubVersionStore) Activate(_ context.Context, _ sqlx.ExtContext, id string) error {
	if s.activateErr != nil {
		return s.activateErr
	}
	s.activated = id
	return nil
}
func (s *stubVersionStore) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	s.deleted = id
	return nil
}

type stubSlotStore struct {
	inserted       []models.TimetableSlot
	listOut        []models.TimetableSlot
	deletedVersion string
}

func (s *stubSlotStore) InsertBatch(_ context.Context, _ sqlx.ExtContext, slots []models.TimetableSlot) error {
	s.inserted = slots
	return nil
}
func (s *stubSlotStore) ListByVersion(context.Context, string) ([]models.TimetableSlot, error) {
	return s.listOut, nil
}
func (s *stubSlotStore) DeleteByVersion(_ context.Context, _ sqlx.ExtContext, versionID string) error {
	s.deletedVersion = versionID
	return nil
}

type stubCache struct {
	getVal  string
	getErr  error
	setKey  string
	delKeys []string
}

func (c *stubCache) Get(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult(c.getVal, c.getErr)
}
func (c *stubCache) Set(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.StatusCmd {
	c.setKey = key
	return redis.NewStatusResult("OK", nil)
}
func (c *stubCache) Del(_ context.Context, keys ...string) *redis.IntCmd {
	c.delKeys = append(c.delKeys, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

type timetableFixture struct {
	graph    *stubGraphStore
	configs  *stubConfigStore
	versions *stubVersionStore
	slots    *stubSlotStore
	cache    *stubCache
	mock     sqlmock.Sqlmock
	svc      *TimetableService
}

func newTimetableFixture(t *testing.T) (*timetableFixture, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	f := &timetableFixture{
		graph:    &stubGraphStore{},
		configs:  &stubConfigStore{getErr: sql.ErrNoRows},
		versions: &stubVersionStore{},
		slots:    &stubSlotStore{},
		cache:    &stubCache{getErr: redis.Nil},
		mock:     mock,
	}
	defaults := config.TimetableConfig{
		PeriodsPerDay:  8,
		StartTime:      "07:30",
		PeriodMinutes:  45,
		Days:           []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		ActiveCacheTTL: 10 * time.Minute,
	}
	f.svc = NewTimetableService(
		f.graph, f.configs, f.versions, f.slots,
		sqlx.NewDb(db, "sqlmock"), f.cache, defaults, zap.NewNop(),
	)
	return f, func() { db.Close() }
}

func linkedGraph() *stubGraphStore {
	return &stubGraphStore{
		teachers:        []models.Teacher{{ID: "t-1"}},
		classes:         []models.Class{{ID: "c-1"}},
		subjects:        []models.Subject{{ID: "math"}},
		teacherSubjects: []models.TeacherSubject{{TeacherID: "t-1", SubjectID: "math"}},
		teacherClasses:  []models.TeacherClass{{TeacherID: "t-1", ClassID: "c-1"}},
		classSubjects:   []models.ClassSubject{{ClassID: "c-1", SubjectID: "math"}},
	}
}

func TestGeneratePersistsRun(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()
	*f.graph = *linkedGraph()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.svc.Generate(context.Background(), dto.GenerateTimetableRequest{Name: "september draft"})
	require.NoError(t, err)

	assert.Equal(t, "ver-1", resp.VersionID)
	assert.Equal(t, 1, resp.Version)
	assert.Nil(t, resp.Diagnostics)
	assert.Len(t, resp.Slots, 3)
	assert.Empty(t, resp.Shortfalls)

	require.NotNil(t, f.versions.created)
	require.Len(t, f.slots.inserted, 3)
	for _, slot := range f.slots.inserted {
		assert.Equal(t, "ver-1", slot.VersionID)
		assert.Equal(t, "t-1", slot.TeacherID)
	}
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGenerateReturnsDiagnosticsWithoutVersion(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()
	f.graph.classes = []models.Class{{ID: "c-1"}}
	f.graph.classSubjects = []models.ClassSubject{{ClassID: "c-1", SubjectID: "math"}}

	resp, err := f.svc.Generate(context.Background(), dto.GenerateTimetableRequest{Name: "empty graph run"})
	require.NoError(t, err)

	require.NotNil(t, resp.Diagnostics)
	assert.Empty(t, resp.VersionID)
	assert.Empty(t, resp.Slots)
	assert.Contains(t, resp.Diagnostics.UnstaffedPairs[0].SubjectID, "math")
	assert.Nil(t, f.versions.created)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGenerateRejectsShortName(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()

	_, err := f.svc.Generate(context.Background(), dto.GenerateTimetableRequest{Name: "ab"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestActivateDropsCachedActiveVersion(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.Activate(context.Background(), "ver-1"))
	assert.Equal(t, "ver-1", f.versions.activated)
	assert.Equal(t, []string{activeVersionCacheKey}, f.cache.delKeys)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestActivateUnknownVersion(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()
	f.versions.activateErr = sql.ErrNoRows

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.Activate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.cache.delKeys)
}

func TestActiveVersionCacheMiss(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()
	f.versions.active = &models.TimetableVersion{
		ID: "ver-1", Name: "week 34", Version: 1, Active: true,
		Meta: types.JSONText(`{}`),
	}

	version, err := f.svc.ActiveVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ver-1", version.ID)
	assert.Equal(t, activeVersionCacheKey, f.cache.setKey)
}

func TestActiveVersionNoneActive(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()
	f.versions.activeErr = sql.ErrNoRows

	_, err := f.svc.ActiveVersion(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteVersionRefusesActive(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()
	f.versions.byID = &models.TimetableVersion{ID: "ver-1", Active: true}

	err := f.svc.DeleteVersion(context.Background(), "ver-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.versions.deleted)
}

func TestDeleteVersionRemovesSlots(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()
	f.versions.byID = &models.TimetableVersion{ID: "ver-2", Active: false}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.DeleteVersion(context.Background(), "ver-2"))
	assert.Equal(t, "ver-2", f.slots.deletedVersion)
	assert.Equal(t, "ver-2", f.versions.deleted)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetConfigFallsBackToDefaults(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()

	cfg, err := f.svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.PeriodsPerDay)
	assert.Equal(t, "07:30", cfg.StartTime)
	assert.JSONEq(t, `["Monday","Tuesday","Wednesday","Thursday","Friday"]`, string(cfg.Days))
}

func TestUpsertConfigRejectsBadClock(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()

	_, err := f.svc.UpsertConfig(context.Background(), dto.UpsertTimetableConfigRequest{
		PeriodsPerDay: 8,
		StartTime:     "25:00",
		PeriodMinutes: 45,
		Days:          []string{"Monday"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, f.configs.upserted)
}

func TestUpsertConfigStoresJSONColumns(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()

	cfg, err := f.svc.UpsertConfig(context.Background(), dto.UpsertTimetableConfigRequest{
		PeriodsPerDay: 6,
		StartTime:     "08:00",
		PeriodMinutes: 40,
		Days:          []string{"Monday", "Wednesday"},
		WeeklyCounts:  map[string]int{"math": 5},
	})
	require.NoError(t, err)
	require.NotNil(t, f.configs.upserted)
	assert.Equal(t, 6, cfg.PeriodsPerDay)
	assert.JSONEq(t, `{"math":5}`, string(cfg.WeeklyCounts))
}

func TestGenerateSeedIsRecordedInMeta(t *testing.T) {
	f, cleanup := newTimetableFixture(t)
	defer cleanup()
	*f.graph = *linkedGraph()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	seed := int64(42)
	_, err := f.svc.Generate(context.Background(), dto.GenerateTimetableRequest{Name: "seeded run", Seed: &seed})
	require.NoError(t, err)
	require.NotNil(t, f.versions.created)
	assert.Contains(t, string(f.versions.created.Meta), `"seed":42`)
	assert.Contains(t, string(f.versions.created.Meta), `"slot_count":3`)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
