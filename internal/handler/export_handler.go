package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhelper/studyhelper-api/internal/service"
	"github.com/studyhelper/studyhelper-api/pkg/response"
)

// ExportHandler streams rendered request reports.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Export godoc
// @Summary Export all requests
// @Description Renders the full request collection as CSV or PDF. Fulfiller only.
// @Tags Requests
// @Produce octet-stream
// @Param format query string true "Export format (csv or pdf)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.DefaultQuery("format", "csv"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
