package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookinghandlers "rentcancel/internal/app/handlers/booking"
	domainbooking "rentcancel/internal/domain/booking"
	"rentcancel/internal/domain/refund"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps application errors onto HTTP statuses. Integrity and
// provider failures are logged in full and answered with a generic message.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var providerErr *bookinghandlers.ProviderError
	switch {
	case errors.Is(err, domainbooking.ErrMissingReason):
		c.JSON(http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "missing_reason"})
	case errors.Is(err, bookinghandlers.ErrBookingIDRequired), errors.Is(err, bookinghandlers.ErrActorRequired):
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
	case errors.Is(err, domainbooking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, errorBody{Error: "booking not found", Code: "not_found"})
	case errors.Is(err, bookinghandlers.ErrNotParticipant):
		c.JSON(http.StatusForbidden, errorBody{Error: "not a participant of this booking", Code: "forbidden"})
	case errors.Is(err, domainbooking.ErrInvalidState):
		c.JSON(http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_state"})
	case errors.Is(err, domainbooking.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, errorBody{Error: "booking was modified concurrently, retry", Code: "concurrent_update"})
	case errors.As(err, &providerErr):
		logError(c.Request.Context(), logger, "refund provider failed", err)
		c.JSON(http.StatusBadGateway, errorBody{Error: "payment provider unavailable", Code: "provider_error"})
	case errors.Is(err, refund.ErrDataIntegrity):
		logError(c.Request.Context(), logger, "booking data integrity violation", err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error", Code: "data_integrity"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, errorBody{Error: "request timed out", Code: "timeout"})
	default:
		logError(c.Request.Context(), logger, "request failed", err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
	}
}

func logError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if logger != nil {
		logger.ErrorContext(ctx, msg, "error", err)
	}
}
