package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhelper/studyhelper-api/internal/dto"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
	"github.com/studyhelper/studyhelper-api/pkg/response"
)

// BookingHandler points clients at the external scheduling page.
type BookingHandler struct {
	bookingURL string
}

// NewBookingHandler creates a new handler.
func NewBookingHandler(bookingURL string) *BookingHandler {
	return &BookingHandler{bookingURL: bookingURL}
}

// Info godoc
// @Summary Get scheduling link with actor prefill
// @Tags Booking
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /booking [get]
func (h *BookingHandler) Info(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, dto.BookingInfo{
		URL: h.bookingURL,
		Prefill: dto.BookingPrefill{
			Name:  claims.DisplayName,
			Email: claims.Email,
		},
	})
}
