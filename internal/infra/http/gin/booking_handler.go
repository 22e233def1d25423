package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentcancel/internal/app/commands"
	"rentcancel/internal/app/dto"
	bookinghandlers "rentcancel/internal/app/handlers/booking"
	"rentcancel/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	var req cancelBookingRequest
	// an empty body is a cancellation without a reason
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "bad_request"})
		return
	}
	cmd := bookinghandlers.CancelBookingCommand{
		BookingID:       c.Param("id"),
		ActorID:         user.ID,
		ActorRoles:      user.Roles,
		Reason:          req.Reason,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookinghandlers.CancelBookingCommand, *dto.CancellationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefundPreview accepts an optional RFC 3339 "at" parameter for what-if checks.
func (h BookingHandler) RefundPreview(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queries unavailable"})
		return
	}
	q := bookinghandlers.PreviewRefundQuery{
		BookingID:  c.Param("id"),
		ActorID:    user.ID,
		ActorRoles: user.Roles,
	}
	if raw := c.Query("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody{Error: "at must be an RFC 3339 timestamp", Code: "bad_request"})
			return
		}
		q.At = at
	}
	result, err := queries.Ask[bookinghandlers.PreviewRefundQuery, dto.RefundPreview](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
