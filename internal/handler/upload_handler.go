package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyhelper/studyhelper-api/internal/dto"
	"github.com/studyhelper/studyhelper-api/internal/models"
	"github.com/studyhelper/studyhelper-api/internal/service"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
	"github.com/studyhelper/studyhelper-api/pkg/response"
)

// UploadHandler wires HTTP endpoints to the attachment pipeline.
type UploadHandler struct {
	service *service.UploadService
}

// NewUploadHandler creates a new handler.
func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// BeginSession godoc
// @Summary Open a staging session
// @Description Binds a new staging session to one target request, replacing any open session.
// @Tags Uploads
// @Accept json
// @Produce json
// @Param payload body dto.BeginSessionRequest true "Target request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /uploads/session [post]
func (h *UploadHandler) BeginSession(c *gin.Context) {
	var req dto.BeginSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	snap, err := h.service.BeginSession(c.Request.Context(), req.RequestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap)
}

// DiscardSession godoc
// @Summary Discard the open staging session
// @Tags Uploads
// @Produce json
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /uploads/session [delete]
func (h *UploadHandler) DiscardSession(c *gin.Context) {
	if err := h.service.DiscardSession(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stage godoc
// @Summary Stage files for upload
// @Description Validates each file independently and reports accepted and rejected entries.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files to stage"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /uploads/files [post]
func (h *UploadHandler) Stage(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "no files provided"))
		return
	}

	files := make([]models.RawFile, 0, len(headers))
	for _, header := range headers {
		src, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file in payload"))
			return
		}
		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file in payload"))
			return
		}
		files = append(files, models.RawFile{
			Name:      header.Filename,
			SizeBytes: header.Size,
			MimeType:  header.Header.Get("Content-Type"),
			Content:   content,
		})
	}

	result, err := h.service.Stage(c.Request.Context(), files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Unstage godoc
// @Summary Remove one staged file
// @Tags Uploads
// @Produce json
// @Param index path int true "Staged file index"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /uploads/files/{index} [delete]
func (h *UploadHandler) Unstage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid staged file index"))
		return
	}
	if err := h.service.Unstage(c.Request.Context(), index); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Commit godoc
// @Summary Commit the staged files
// @Description Schedules the commit; poll the progress endpoint for completion.
// @Tags Uploads
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /uploads/commit [post]
func (h *UploadHandler) Commit(c *gin.Context) {
	if err := h.service.CommitAsync(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"message": "commit started"})
}

// Progress godoc
// @Summary Inspect the open session
// @Tags Uploads
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /uploads/progress [get]
func (h *UploadHandler) Progress(c *gin.Context) {
	snap, err := h.service.Progress(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap)
}

// DownloadURL godoc
// @Summary Issue a signed download token for an attachment
// @Tags Uploads
// @Produce json
// @Param id path int true "Request ID"
// @Param index path int true "Attachment index"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/attachments/{index}/url [get]
func (h *UploadHandler) DownloadURL(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request id"))
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid attachment index"))
		return
	}

	signed, err := h.service.GetDownloadURL(c.Request.Context(), id, index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signed)
}

// Download godoc
// @Summary Download attachment content
// @Description Streams the content referenced by a signed token. No auth header required.
// @Tags Uploads
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /downloads [get]
func (h *UploadHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download token required"))
		return
	}

	download, err := h.service.OpenDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat attachment content"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+download.Name+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), download.MimeType, download.File, nil)
}
