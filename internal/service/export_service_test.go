package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openscholar/school-admin-api/internal/dto"
	appErrors "github.com/openscholar/school-admin-api/pkg/errors"
	"github.com/openscholar/school-admin-api/pkg/storage"
)

type stubExporter struct {
	pdf    []byte
	csv    []byte
	failed error
}

func (s *stubExporter) ExportClassPDF(context.Context, string, string) ([]byte, error) {
	if s.failed != nil {
		return nil, s.failed
	}
	return s.pdf, nil
}

func (s *stubExporter) ExportCSV(context.Context, string) ([]byte, error) {
	if s.failed != nil {
		return nil, s.failed
	}
	return s.csv, nil
}

func newExportFixture(t *testing.T, exporter *stubExporter) *ExportService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	svc := NewExportService(exporter, files, signer, ExportConfig{
		APIPrefix: "/api/v1",
		ResultTTL: time.Hour,
		Workers:   1,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		svc.Stop()
	})
	return svc
}

func waitForTerminalState(t *testing.T, svc *ExportService, jobID string) *dto.ExportJobResponse {
	t.Helper()
	var job *dto.ExportJobResponse
	require.Eventually(t, func() bool {
		var err error
		job, err = svc.Status(jobID)
		if err != nil {
			return false
		}
		return job.Status == ExportStatusCompleted || job.Status == ExportStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestExportCompletesAndServesDownload(t *testing.T) {
	svc := newExportFixture(t, &stubExporter{csv: []byte("day,period\nMonday,1\n")})

	job, err := svc.Enqueue(dto.ExportTimetableRequest{VersionID: "ver-1", Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, ExportStatusPending, job.Status)

	done := waitForTerminalState(t, svc, job.JobID)
	require.Equal(t, ExportStatusCompleted, done.Status)
	require.NotEmpty(t, done.URL)
	require.NotNil(t, done.ExpiresAt)

	token := done.URL[len("/api/v1/export/"):]
	file, contentType, err := svc.OpenByToken(token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, "text/csv", contentType)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "day,period\nMonday,1\n", string(content))
}

func TestExportPDFRequiresClass(t *testing.T) {
	svc := newExportFixture(t, &stubExporter{pdf: []byte("%PDF-1.3")})

	_, err := svc.Enqueue(dto.ExportTimetableRequest{VersionID: "ver-1", Format: "pdf"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := newExportFixture(t, &stubExporter{})

	_, err := svc.Enqueue(dto.ExportTimetableRequest{VersionID: "ver-1", Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportRecordsRenderFailure(t *testing.T) {
	svc := newExportFixture(t, &stubExporter{failed: errors.New("version not found")})

	job, err := svc.Enqueue(dto.ExportTimetableRequest{VersionID: "missing", Format: "csv"})
	require.NoError(t, err)

	done := waitForTerminalState(t, svc, job.JobID)
	assert.Equal(t, ExportStatusFailed, done.Status)
	assert.Contains(t, done.Error, "version not found")
	assert.Empty(t, done.URL)
}

func TestExportStatusUnknownJob(t *testing.T) {
	svc := newExportFixture(t, &stubExporter{})

	_, err := svc.Status("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOpenByTokenRejectsTampered(t *testing.T) {
	svc := newExportFixture(t, &stubExporter{})

	_, _, err := svc.OpenByToken("bad.token.here.sig")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
