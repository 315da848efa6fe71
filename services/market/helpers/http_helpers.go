package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"spirit-market/internal/marketerrors"
	"spirit-market/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, marketerrors.ErrNotFound):
		return http.StatusNotFound, "listing not found"
	case errors.Is(err, marketerrors.ErrNoBids):
		return http.StatusNotFound, "no bids found for listing"
	case errors.Is(err, marketerrors.ErrValidation):
		return http.StatusBadRequest, "invalid request details"
	case errors.Is(err, marketerrors.ErrInvalidKind):
		return http.StatusBadRequest, "operation not applicable to listing kind"
	case errors.Is(err, marketerrors.ErrAuthorization):
		return http.StatusForbidden, "requester is not the seller"
	case errors.Is(err, marketerrors.ErrSelfBid):
		return http.StatusForbidden, "sellers cannot bid on their own listings"
	case errors.Is(err, marketerrors.ErrInvalidState):
		return http.StatusConflict, "operation not allowed for listing status"
	case errors.Is(err, marketerrors.ErrListingClosed):
		return http.StatusConflict, "listing is no longer active"
	case errors.Is(err, marketerrors.ErrAuctionEnded):
		return http.StatusConflict, "auction has ended"
	case errors.Is(err, marketerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, marketerrors.ErrConflict):
		return http.StatusConflict, "listing was updated concurrently, please try again"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
