package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/openscholar/school-admin-api/internal/dto"
	internalmiddleware "github.com/openscholar/school-admin-api/internal/middleware"
	"github.com/openscholar/school-admin-api/internal/models"
	"github.com/openscholar/school-admin-api/internal/timetable"
	appErrors "github.com/openscholar/school-admin-api/pkg/errors"
)

type timetableServiceMock struct {
	captured    dto.GenerateTimetableRequest
	diagnostics *timetable.Report
	activateErr error
	activatedID string
}

func (m *timetableServiceMock) Generate(_ context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.captured = req
	if m.diagnostics != nil {
		return &dto.GenerateTimetableResponse{Name: req.Name, Diagnostics: m.diagnostics}, nil
	}
	return &dto.GenerateTimetableResponse{
		VersionID: "ver-1",
		Name:      req.Name,
		Version:   1,
		Slots:     []timetable.PlacedSlot{{TeacherID: "t-1", ClassID: "c-1", SubjectID: "math", Day: "Monday", Period: 1}},
	}, nil
}

func (m *timetableServiceMock) ListVersions(context.Context) ([]dto.TimetableVersionResponse, error) {
	return []dto.TimetableVersionResponse{{ID: "ver-1", Name: "week 34", Version: 1}}, nil
}

func (m *timetableServiceMock) VersionSlots(context.Context, string) (*models.TimetableVersion, []models.TimetableSlot, error) {
	return &models.TimetableVersion{ID: "ver-1"}, nil, nil
}

func (m *timetableServiceMock) ActiveVersion(context.Context) (*models.TimetableVersion, error) {
	return &models.TimetableVersion{ID: "ver-1", Active: true}, nil
}

func (m *timetableServiceMock) Activate(_ context.Context, id string) error {
	if m.activateErr != nil {
		return m.activateErr
	}
	m.activatedID = id
	return nil
}

func (m *timetableServiceMock) DeleteVersion(context.Context, string) error { return nil }

func (m *timetableServiceMock) ExportClassPDF(context.Context, string, string) ([]byte, error) {
	return []byte("%PDF-1.3"), nil
}

func (m *timetableServiceMock) ExportCSV(context.Context, string) ([]byte, error) {
	return []byte("day,period\n"), nil
}

func (m *timetableServiceMock) GetConfig(context.Context) (*models.TimetableConfig, error) {
	return &models.TimetableConfig{PeriodsPerDay: 8}, nil
}

func (m *timetableServiceMock) UpsertConfig(_ context.Context, req dto.UpsertTimetableConfigRequest) (*models.TimetableConfig, error) {
	return &models.TimetableConfig{PeriodsPerDay: req.PeriodsPerDay}, nil
}

func TestGenerateCreatesVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{}
	handler := &TimetableHandler{service: mockSvc}

	req, _ := http.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader([]byte(`{"name":"september draft"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "september draft", mockSvc.captured.Name)
	require.Contains(t, w.Body.String(), `"versionId":"ver-1"`)
}

func TestGenerateReportsDiagnostics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{diagnostics: &timetable.Report{
		UnstaffedPairs: []timetable.UnstaffedPair{{ClassID: "c-1", SubjectID: "math"}},
	}}
	handler := &TimetableHandler{service: mockSvc}

	req, _ := http.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader([]byte(`{"name":"broken graph"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, appErrors.ErrNoEligiblePairs.Status, w.Code)
	require.Contains(t, w.Body.String(), "unstaffedPairs")
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &TimetableHandler{service: &timetableServiceMock{}}

	req, _ := http.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader([]byte(`{"name":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivateNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{activateErr: appErrors.Clone(appErrors.ErrNotFound, "timetable version not found")}
	handler := &TimetableHandler{service: mockSvc}
	router := gin.New()
	router.POST("/timetable/versions/:id/activate", handler.Activate)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetable/versions/missing/activate", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestActivateRequiresAdminRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &TimetableHandler{service: &timetableServiceMock{}}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
		c.Next()
	})
	router.POST("/timetable/versions/:id/activate",
		internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
		handler.Activate)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetable/versions/ver-1/activate", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportPDFRequiresClassID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &TimetableHandler{service: &timetableServiceMock{}}
	router := gin.New()
	router.GET("/timetable/versions/:id/pdf", handler.ExportPDF)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetable/versions/ver-1/pdf", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportPDFServesDocument(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &TimetableHandler{service: &timetableServiceMock{}}
	router := gin.New()
	router.GET("/timetable/versions/:id/pdf", handler.ExportPDF)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetable/versions/ver-1/pdf?classId=c-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestListVersionsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &TimetableHandler{service: &timetableServiceMock{}}
	router := gin.New()
	router.GET("/timetable/versions", handler.ListVersions)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetable/versions", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []dto.TimetableVersionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, "ver-1", envelope.Data[0].ID)
}
