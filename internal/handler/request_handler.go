package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyhelper/studyhelper-api/internal/dto"
	"github.com/studyhelper/studyhelper-api/internal/service"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
	"github.com/studyhelper/studyhelper-api/pkg/response"
)

// RequestHandler wires HTTP endpoints to the request service.
type RequestHandler struct {
	service *service.RequestService
}

// NewRequestHandler creates a new handler.
func NewRequestHandler(svc *service.RequestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// Create godoc
// @Summary Submit a material request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var req dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List visible requests
// @Description Requesters see their own requests; the fulfiller sees all. Optional status filter.
// @Tags Requests
// @Produce json
// @Param status query string false "Status filter (pending, in-progress, completed, all)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	requests, err := h.service.List(c.Request.Context(), c.Query("status"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, map[string]interface{}{"count": len(requests)})
}

// Get godoc
// @Summary Get one request
// @Tags Requests
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request id"))
		return
	}

	req, err := h.service.Get(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req)
}

// UpdateStatus godoc
// @Summary Move a request through its lifecycle
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param payload body dto.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/status [patch]
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request id"))
		return
	}

	var payload dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	updated, err := h.service.SetStatus(c.Request.Context(), id, payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated)
}

// Stats godoc
// @Summary Aggregate visible requests by status
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/stats [get]
func (h *RequestHandler) Stats(c *gin.Context) {
	counts, err := h.service.Stats(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts)
}
