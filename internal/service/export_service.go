package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openscholar/school-admin-api/internal/dto"
	appErrors "github.com/openscholar/school-admin-api/pkg/errors"
	"github.com/openscholar/school-admin-api/pkg/jobs"
	"github.com/openscholar/school-admin-api/pkg/storage"
)

type timetableExporter interface {
	ExportClassPDF(ctx context.Context, versionID, classID string) ([]byte, error)
	ExportCSV(ctx context.Context, versionID string) ([]byte, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Workers   int
}

// Export job lifecycle states.
const (
	ExportStatusPending    = "PENDING"
	ExportStatusProcessing = "PROCESSING"
	ExportStatusCompleted  = "COMPLETED"
	ExportStatusFailed     = "FAILED"
)

type exportJob struct {
	ID           string
	VersionID    string
	ClassID      string
	Format       string
	Status       string
	Error        string
	RelativePath string
	URL          string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// ExportService renders timetable exports in the background and serves them
// through signed download URLs. Job state lives in memory; exports are cheap
// to regenerate after a restart.
type ExportService struct {
	timetables timetableExporter
	storage    fileStorage
	signer     *storage.SignedURLSigner
	queue      *jobs.Queue
	logger     *zap.Logger
	validate   *validator.Validate
	cfg        ExportConfig

	mu       sync.RWMutex
	jobsByID map[string]*exportJob
}

// NewExportService constructs an ExportService with its worker queue.
func NewExportService(timetables timetableExporter, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		timetables: timetables,
		storage:    files,
		signer:     signer,
		logger:     logger,
		validate:   validator.New(),
		cfg:        cfg,
		jobsByID:   make(map[string]*exportJob),
	}
	s.queue = jobs.NewQueue("timetable-exports", s.process, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue queues a render of the given version and returns the tracking job.
func (s *ExportService) Enqueue(req dto.ExportTimetableRequest) (*dto.ExportJobResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	if req.Format == "pdf" && req.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required for pdf exports")
	}

	job := &exportJob{
		ID:        uuid.NewString(),
		VersionID: req.VersionID,
		ClassID:   req.ClassID,
		Format:    req.Format,
		Status:    ExportStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobsByID[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "timetable-export"}); err != nil {
		s.mu.Lock()
		delete(s.jobsByID, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "queue export job")
	}
	return s.snapshot(job.ID)
}

// Status returns the current state of a queued export.
func (s *ExportService) Status(jobID string) (*dto.ExportJobResponse, error) {
	return s.snapshot(jobID)
}

// OpenByToken validates a signed download token and opens the stored file.
func (s *ExportService) OpenByToken(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, contentTypeFor(relPath), nil
}

// Cleanup removes export files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) process(ctx context.Context, j jobs.Job) error {
	s.mu.Lock()
	job, ok := s.jobsByID[j.ID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	job.Status = ExportStatusProcessing
	s.mu.Unlock()

	if err := s.renderAndStore(ctx, job); err != nil {
		s.mu.Lock()
		job.Status = ExportStatusFailed
		job.Error = err.Error()
		s.mu.Unlock()
		s.logger.Warn("export job failed",
			zap.String("job_id", job.ID),
			zap.String("version_id", job.VersionID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *ExportService) renderAndStore(ctx context.Context, job *exportJob) error {
	payload, err := s.render(ctx, job)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("timetable_%s_%s.%s",
		sanitizeFilename(job.VersionID),
		time.Now().UTC().Format("20060102_150405"),
		job.Format,
	)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return err
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.mu.Lock()
	job.Status = ExportStatusCompleted
	job.RelativePath = relPath
	job.URL = fmt.Sprintf("%s/export/%s", prefix, token)
	job.ExpiresAt = expiresAt
	s.mu.Unlock()
	return nil
}

func (s *ExportService) render(ctx context.Context, job *exportJob) ([]byte, error) {
	switch job.Format {
	case "pdf":
		return s.timetables.ExportClassPDF(ctx, job.VersionID, job.ClassID)
	case "csv":
		return s.timetables.ExportCSV(ctx, job.VersionID)
	default:
		return nil, fmt.Errorf("unsupported format %s", job.Format)
	}
}

func (s *ExportService) snapshot(jobID string) (*dto.ExportJobResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobsByID[jobID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	resp := &dto.ExportJobResponse{
		JobID:  job.ID,
		Status: job.Status,
		Format: job.Format,
		URL:    job.URL,
		Error:  job.Error,
	}
	if !job.ExpiresAt.IsZero() {
		expires := job.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp, nil
}

func contentTypeFor(relPath string) string {
	if strings.HasSuffix(relPath, ".pdf") {
		return "application/pdf"
	}
	return "text/csv"
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
