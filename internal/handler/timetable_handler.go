package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openscholar/school-admin-api/internal/dto"
	"github.com/openscholar/school-admin-api/internal/models"
	"github.com/openscholar/school-admin-api/internal/service"
	appErrors "github.com/openscholar/school-admin-api/pkg/errors"
	"github.com/openscholar/school-admin-api/pkg/response"
)

type timetableOrchestrator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	ListVersions(ctx context.Context) ([]dto.TimetableVersionResponse, error)
	VersionSlots(ctx context.Context, versionID string) (*models.TimetableVersion, []models.TimetableSlot, error)
	ActiveVersion(ctx context.Context) (*models.TimetableVersion, error)
	Activate(ctx context.Context, versionID string) error
	DeleteVersion(ctx context.Context, versionID string) error
	ExportClassPDF(ctx context.Context, versionID, classID string) ([]byte, error)
	ExportCSV(ctx context.Context, versionID string) ([]byte, error)
	GetConfig(ctx context.Context) (*models.TimetableConfig, error)
	UpsertConfig(ctx context.Context, req dto.UpsertTimetableConfigRequest) (*models.TimetableConfig, error)
}

// TimetableHandler exposes generation, version lifecycle and export endpoints.
type TimetableHandler struct {
	service timetableOrchestrator
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Generate godoc
// @Summary Run timetable generation
// @Description Derives obligations from the current teacher/class/subject graph and places them into a new immutable version. When the graph has no eligible pairs the response carries diagnostics instead of a version.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generate payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Diagnostics != nil {
		response.JSON(c, appErrors.ErrNoEligiblePairs.Status, result, nil)
		return
	}
	response.Created(c, result)
}

// ListVersions godoc
// @Summary List stored timetable versions
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/versions [get]
func (h *TimetableHandler) ListVersions(c *gin.Context) {
	versions, err := h.service.ListVersions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Slots godoc
// @Summary Get placed slots for a version
// @Tags Timetable
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/versions/{id}/slots [get]
func (h *TimetableHandler) Slots(c *gin.Context) {
	version, slots, err := h.service.VersionSlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"version": version, "slots": slots}, nil)
}

// Active godoc
// @Summary Get the active timetable version
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/active [get]
func (h *TimetableHandler) Active(c *gin.Context) {
	version, err := h.service.ActiveVersion(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// Activate godoc
// @Summary Activate a timetable version
// @Description Makes the chosen version the single active one.
// @Tags Timetable
// @Param id path string true "Version ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /timetable/versions/{id}/activate [post]
func (h *TimetableHandler) Activate(c *gin.Context) {
	if err := h.service.Activate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a stored timetable version
// @Tags Timetable
// @Param id path string true "Version ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/versions/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteVersion(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportPDF godoc
// @Summary Export one class's weekly grid as PDF
// @Tags Timetable
// @Produce application/pdf
// @Param id path string true "Version ID"
// @Param classId query string true "Class ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /timetable/versions/{id}/pdf [get]
func (h *TimetableHandler) ExportPDF(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId query parameter is required"))
		return
	}
	out, err := h.service.ExportClassPDF(c.Request.Context(), c.Param("id"), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="timetable-%s.pdf"`, classID))
	c.Data(http.StatusOK, "application/pdf", out)
}

// ExportCSV godoc
// @Summary Export a version's slots as CSV
// @Tags Timetable
// @Produce text/csv
// @Param id path string true "Version ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /timetable/versions/{id}/csv [get]
func (h *TimetableHandler) ExportCSV(c *gin.Context) {
	out, err := h.service.ExportCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="timetable.csv"`)
	c.Data(http.StatusOK, "text/csv", out)
}

// GetConfig godoc
// @Summary Get the timetable generation configuration
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/config [get]
func (h *TimetableHandler) GetConfig(c *gin.Context) {
	cfg, err := h.service.GetConfig(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// UpsertConfig godoc
// @Summary Replace the timetable generation configuration
// @Description Applies to later generation runs only; stored versions are immutable.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.UpsertTimetableConfigRequest true "Config payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/config [put]
func (h *TimetableHandler) UpsertConfig(c *gin.Context) {
	var req dto.UpsertTimetableConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid config payload"))
		return
	}
	cfg, err := h.service.UpsertConfig(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}
