package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openscholar/school-admin-api/internal/dto"
	"github.com/openscholar/school-admin-api/internal/service"
	appErrors "github.com/openscholar/school-admin-api/pkg/errors"
	"github.com/openscholar/school-admin-api/pkg/response"
)

// ExportHandler exposes background export endpoints.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Enqueue godoc
// @Summary Queue a background export of a stored version
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Version ID"
// @Param payload body dto.ExportTimetableRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/versions/{id}/export [post]
func (h *ExportHandler) Enqueue(c *gin.Context) {
	var req dto.ExportTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	req.VersionID = c.Param("id")

	job, err := h.service.Enqueue(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get the state of a queued export
// @Tags Timetable
// @Produce json
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/exports/{jobId} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.service.Status(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export via its signed token
// @Tags Timetable
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, contentType, err := h.service.OpenByToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stat export file"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
