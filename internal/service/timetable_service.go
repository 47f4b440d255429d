package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openscholar/school-admin-api/internal/dto"
	"github.com/openscholar/school-admin-api/internal/models"
	"github.com/openscholar/school-admin-api/internal/timetable"
	"github.com/openscholar/school-admin-api/pkg/config"
	appErrors "github.com/openscholar/school-admin-api/pkg/errors"
	"github.com/openscholar/school-admin-api/pkg/export"
)

const activeVersionCacheKey = "timetable:active-version"

type scheduleGraphStore interface {
	ListActiveTeachers(ctx context.Context) ([]models.Teacher, error)
	ListActiveClasses(ctx context.Context) ([]models.Class, error)
	ListActiveSubjects(ctx context.Context) ([]models.Subject, error)
	ListTeacherSubjects(ctx context.Context) ([]models.TeacherSubject, error)
	ListTeacherClasses(ctx context.Context) ([]models.TeacherClass, error)
	ListClassSubjects(ctx context.Context) ([]models.ClassSubject, error)
}

type timetableConfigStore interface {
	Get(ctx context.Context) (*models.TimetableConfig, error)
	Upsert(ctx context.Context, cfg *models.TimetableConfig) error
}

type timetableVersionStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, version *models.TimetableVersion) error
	List(ctx context.Context) ([]models.TimetableVersion, error)
	FindByID(ctx context.Context, id string) (*models.TimetableVersion, error)
	FindActive(ctx context.Context) (*models.TimetableVersion, error)
	Activate(ctx context.Context, exec sqlx.ExtContext, id string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type timetableSlotStore interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error
	ListByVersion(ctx context.Context, versionID string) ([]models.TimetableSlot, error)
	DeleteByVersion(ctx context.Context, exec sqlx.ExtContext, versionID string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// TimetableService orchestrates generation runs and version lifecycle.
type TimetableService struct {
	graph    scheduleGraphStore
	configs  timetableConfigStore
	versions timetableVersionStore
	slots    timetableSlotStore
	tx       txProvider
	cache    cacheClient
	pdf      *export.PDFExporter
	csv      *export.CSVExporter
	defaults config.TimetableConfig
	logger   *zap.Logger
	validate *validator.Validate
	metrics  *MetricsService
}

// AttachMetrics enables per-run engine instrumentation.
func (s *TimetableService) AttachMetrics(m *MetricsService) {
	s.metrics = m
}

// NewTimetableService wires the service dependencies.
func NewTimetableService(
	graph scheduleGraphStore,
	configs timetableConfigStore,
	versions timetableVersionStore,
	slots timetableSlotStore,
	tx txProvider,
	cache cacheClient,
	defaults config.TimetableConfig,
	logger *zap.Logger,
) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		graph:    graph,
		configs:  configs,
		versions: versions,
		slots:    slots,
		tx:       tx,
		cache:    cache,
		pdf:      export.NewPDFExporter(),
		csv:      export.NewCSVExporter(),
		defaults: defaults,
		logger:   logger,
		validate: validator.New(),
	}
}

// Generate runs the engine against the current relationship graph and persists
// the outcome as a new immutable version. A graph with no eligible pairs does
// not produce a version; the response carries diagnostics instead.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation request")
	}

	engineCfg, err := s.engineConfig(ctx)
	if err != nil {
		return nil, err
	}
	graph, err := s.loadGraph(ctx)
	if err != nil {
		return nil, err
	}

	obligations, err := timetable.BuildAssignments(graph, engineCfg)
	if err != nil {
		if errors.Is(err, timetable.ErrNoEligiblePairs) {
			report := timetable.Diagnose(graph)
			s.logger.Warn("generation aborted, graph has no eligible pairs",
				zap.Int("unstaffed_pairs", len(report.UnstaffedPairs)))
			return &dto.GenerateTimetableResponse{Name: req.Name, Diagnostics: &report}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "derive assignments")
	}

	opts := []timetable.AllocatorOption{timetable.WithLogger(s.logger)}
	if req.Seed != nil {
		opts = append(opts, timetable.WithRand(rand.New(rand.NewSource(*req.Seed))))
	}
	allocator, err := timetable.NewAllocator(engineCfg, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable configuration")
	}

	started := time.Now()
	placed, shortfalls := allocator.Allocate(obligations)
	s.metrics.ObserveGenerationRun(len(placed), len(shortfalls), time.Since(started))
	s.logger.Info("generation run finished",
		zap.Int("obligations", len(obligations)),
		zap.Int("placed_slots", len(placed)),
		zap.Int("shortfalls", len(shortfalls)),
		zap.Duration("took", time.Since(started)),
	)

	version, err := s.persistRun(ctx, req, placed, shortfalls)
	if err != nil {
		return nil, err
	}

	return &dto.GenerateTimetableResponse{
		VersionID:  version.ID,
		Name:       version.Name,
		Version:    version.Version,
		Slots:      placed,
		Shortfalls: shortfalls,
	}, nil
}

func (s *TimetableService) persistRun(ctx context.Context, req dto.GenerateTimetableRequest, placed []timetable.PlacedSlot, shortfalls []timetable.Shortfall) (*models.TimetableVersion, error) {
	meta := map[string]interface{}{
		"slot_count":      len(placed),
		"shortfall_count": len(shortfalls),
		"generated_at":    time.Now().UTC().Format(time.RFC3339),
	}
	if req.Seed != nil {
		meta["seed"] = *req.Seed
	}
	if len(shortfalls) > 0 {
		meta["shortfalls"] = shortfalls
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode version meta")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	version := &models.TimetableVersion{Name: req.Name, Meta: types.JSONText(rawMeta)}
	if err := s.versions.CreateVersioned(ctx, tx, version); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store timetable version")
	}

	rows := make([]models.TimetableSlot, 0, len(placed))
	for _, slot := range placed {
		rows = append(rows, models.TimetableSlot{
			VersionID: version.ID,
			TeacherID: slot.TeacherID,
			ClassID:   slot.ClassID,
			SubjectID: slot.SubjectID,
			Day:       slot.Day,
			Period:    slot.Period,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		})
	}
	if err := s.slots.InsertBatch(ctx, tx, rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store timetable slots")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "commit generation run")
	}
	return version, nil
}

// ListVersions returns all stored versions, newest first.
func (s *TimetableService) ListVersions(ctx context.Context) ([]dto.TimetableVersionResponse, error) {
	versions, err := s.versions.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list timetable versions")
	}
	out := make([]dto.TimetableVersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, dto.NewTimetableVersionResponse(v))
	}
	return out, nil
}

// VersionSlots returns one version together with its placed slots.
func (s *TimetableService) VersionSlots(ctx context.Context, versionID string) (*models.TimetableVersion, []models.TimetableSlot, error) {
	version, err := s.versions.FindByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "timetable version not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load timetable version")
	}
	slots, err := s.slots.ListByVersion(ctx, versionID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load timetable slots")
	}
	return version, slots, nil
}

// Activate makes the chosen version the single active one. Both the
// deactivate and activate statements run in one transaction so readers never
// observe zero or two active versions mid-switch.
func (s *TimetableService) Activate(ctx context.Context, versionID string) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.versions.Activate(ctx, tx, versionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable version not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "activate timetable version")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "commit activation")
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, activeVersionCacheKey).Err(); err != nil {
			s.logger.Warn("drop active version cache", zap.Error(err))
		}
	}
	return nil
}

// ActiveVersion returns the currently active version, serving from cache when
// possible.
func (s *TimetableService) ActiveVersion(ctx context.Context) (*models.TimetableVersion, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, activeVersionCacheKey).Result()
		if err == nil {
			var version models.TimetableVersion
			if err := json.Unmarshal([]byte(raw), &version); err == nil {
				return &version, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("read active version cache", zap.Error(err))
		}
	}

	version, err := s.versions.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active timetable version")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load active version")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(version); err == nil {
			if err := s.cache.Set(ctx, activeVersionCacheKey, raw, s.defaults.ActiveCacheTTL).Err(); err != nil {
				s.logger.Warn("write active version cache", zap.Error(err))
			}
		}
	}
	return version, nil
}

// DeleteVersion removes a stored version and its slots. The active version is
// protected; deactivate by activating another version first.
func (s *TimetableService) DeleteVersion(ctx context.Context, versionID string) error {
	version, err := s.versions.FindByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable version not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load timetable version")
	}
	if version.Active {
		return appErrors.Clone(appErrors.ErrConflict, "cannot delete the active timetable version")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.slots.DeleteByVersion(ctx, tx, versionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete timetable slots")
	}
	if err := s.versions.Delete(ctx, tx, versionID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete timetable version")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "commit deletion")
	}
	return nil
}

// ExportClassPDF renders one class's weekly grid from a stored version.
func (s *TimetableService) ExportClassPDF(ctx context.Context, versionID, classID string) ([]byte, error) {
	version, slots, err := s.VersionSlots(ctx, versionID)
	if err != nil {
		return nil, err
	}
	engineCfg, err := s.engineConfig(ctx)
	if err != nil {
		return nil, err
	}
	periods, err := timetable.ComputePeriods(engineCfg.StartTime, engineCfg.PeriodMinutes, engineCfg.PeriodsPerDay)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "compute periods")
	}

	dayIndex := make(map[string]int, len(engineCfg.Days))
	for i, day := range engineCfg.Days {
		dayIndex[day] = i
	}

	grid := export.TimetableGrid{
		Title: fmt.Sprintf("%s v%d - %s", version.Name, version.Version, classID),
		Days:  engineCfg.Days,
	}
	for i, p := range periods {
		row := export.TimetableRow{
			Period: i + 1,
			Start:  p.Start,
			End:    p.End,
			Cells:  make([]export.TimetableCell, len(engineCfg.Days)),
		}
		grid.Rows = append(grid.Rows, row)
	}
	for _, slot := range slots {
		if slot.ClassID != classID {
			continue
		}
		day, ok := dayIndex[slot.Day]
		if !ok || slot.Period < 1 || slot.Period > len(grid.Rows) {
			continue
		}
		grid.Rows[slot.Period-1].Cells[day] = export.TimetableCell{
			Subject: slot.SubjectID,
			Teacher: slot.TeacherID,
		}
	}

	out, err := s.pdf.Render(grid)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render timetable pdf")
	}
	return out, nil
}

// ExportCSV renders a version's slots as a flat CSV document.
func (s *TimetableService) ExportCSV(ctx context.Context, versionID string) ([]byte, error) {
	_, slots, err := s.VersionSlots(ctx, versionID)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"day", "period", "start", "end", "class", "subject", "teacher"},
	}
	for _, slot := range slots {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"day":     slot.Day,
			"period":  fmt.Sprintf("%d", slot.Period),
			"start":   slot.StartTime,
			"end":     slot.EndTime,
			"class":   slot.ClassID,
			"subject": slot.SubjectID,
			"teacher": slot.TeacherID,
		})
	}
	out, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render timetable csv")
	}
	return out, nil
}

// GetConfig returns the stored generation configuration, or the environment
// defaults when nothing has been stored yet.
func (s *TimetableService) GetConfig(ctx context.Context) (*models.TimetableConfig, error) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaultConfigModel()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load timetable config")
	}
	return cfg, nil
}

// UpsertConfig replaces the generation configuration used by later runs.
// Stored versions are immutable and keep the parameters they were built with.
func (s *TimetableService) UpsertConfig(ctx context.Context, req dto.UpsertTimetableConfigRequest) (*models.TimetableConfig, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable config")
	}
	if _, err := timetable.ComputePeriods(req.StartTime, req.PeriodMinutes, req.PeriodsPerDay); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable config")
	}

	days, err := json.Marshal(req.Days)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode days")
	}
	breaks, err := json.Marshal(req.Breaks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode breaks")
	}
	counts, err := json.Marshal(req.WeeklyCounts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode weekly counts")
	}

	cfg := &models.TimetableConfig{
		PeriodsPerDay: req.PeriodsPerDay,
		StartTime:     req.StartTime,
		PeriodMinutes: req.PeriodMinutes,
		Days:          types.JSONText(days),
		Breaks:        types.JSONText(breaks),
		WeeklyCounts:  types.JSONText(counts),
	}
	if existing, err := s.configs.Get(ctx); err == nil {
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
	}
	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store timetable config")
	}
	return cfg, nil
}

func (s *TimetableService) defaultConfigModel() (*models.TimetableConfig, error) {
	days, err := json.Marshal(s.defaults.Days)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode default days")
	}
	return &models.TimetableConfig{
		PeriodsPerDay: s.defaults.PeriodsPerDay,
		StartTime:     s.defaults.StartTime,
		PeriodMinutes: s.defaults.PeriodMinutes,
		Days:          types.JSONText(days),
		Breaks:        types.JSONText(`[]`),
		WeeklyCounts:  types.JSONText(`{}`),
	}, nil
}

func (s *TimetableService) engineConfig(ctx context.Context) (timetable.Config, error) {
	stored, err := s.configs.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return timetable.Config{
				PeriodsPerDay: s.defaults.PeriodsPerDay,
				StartTime:     s.defaults.StartTime,
				PeriodMinutes: s.defaults.PeriodMinutes,
				Days:          s.defaults.Days,
			}, nil
		}
		return timetable.Config{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load timetable config")
	}

	cfg := timetable.Config{
		PeriodsPerDay: stored.PeriodsPerDay,
		StartTime:     stored.StartTime,
		PeriodMinutes: stored.PeriodMinutes,
	}
	if len(stored.Days) > 0 {
		if err := json.Unmarshal(stored.Days, &cfg.Days); err != nil {
			return timetable.Config{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode configured days")
		}
	}
	if len(stored.Breaks) > 0 {
		if err := json.Unmarshal(stored.Breaks, &cfg.Breaks); err != nil {
			return timetable.Config{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode configured breaks")
		}
	}
	if len(stored.WeeklyCounts) > 0 {
		if err := json.Unmarshal(stored.WeeklyCounts, &cfg.WeeklyCounts); err != nil {
			return timetable.Config{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode weekly counts")
		}
	}
	return cfg, nil
}

func (s *TimetableService) loadGraph(ctx context.Context) (timetable.Graph, error) {
	teachers, err := s.graph.ListActiveTeachers(ctx)
	if err != nil {
		return timetable.Graph{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load teachers")
	}
	classes, err := s.graph.ListActiveClasses(ctx)
	if err != nil {
		return timetable.Graph{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load classes")
	}
	subjects, err := s.graph.ListActiveSubjects(ctx)
	if err != nil {
		return timetable.Graph{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load subjects")
	}
	teacherSubjects, err := s.graph.ListTeacherSubjects(ctx)
	if err != nil {
		return timetable.Graph{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load teacher subjects")
	}
	teacherClasses, err := s.graph.ListTeacherClasses(ctx)
	if err != nil {
		return timetable.Graph{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load teacher classes")
	}
	classSubjects, err := s.graph.ListClassSubjects(ctx)
	if err != nil {
		return timetable.Graph{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load class subjects")
	}

	subjectsByTeacher := make(map[string][]string)
	for _, link := range teacherSubjects {
		subjectsByTeacher[link.TeacherID] = append(subjectsByTeacher[link.TeacherID], link.SubjectID)
	}
	classesByTeacher := make(map[string][]string)
	for _, link := range teacherClasses {
		classesByTeacher[link.TeacherID] = append(classesByTeacher[link.TeacherID], link.ClassID)
	}
	subjectsByClass := make(map[string][]string)
	for _, link := range classSubjects {
		subjectsByClass[link.ClassID] = append(subjectsByClass[link.ClassID], link.SubjectID)
	}

	graph := timetable.Graph{}
	for _, t := range teachers {
		graph.Teachers = append(graph.Teachers, timetable.TeacherNode{
			ID:       t.ID,
			Subjects: subjectsByTeacher[t.ID],
			Classes:  classesByTeacher[t.ID],
		})
	}
	for _, c := range classes {
		graph.Classes = append(graph.Classes, timetable.ClassNode{
			ID:       c.ID,
			Subjects: subjectsByClass[c.ID],
		})
	}
	for _, subj := range subjects {
		graph.Subjects = append(graph.Subjects, subj.ID)
	}
	return graph, nil
}
