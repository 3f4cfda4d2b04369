package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ledgermail/core/internal/api/middleware"
	"github.com/ledgermail/core/internal/apperrors"
)

// respondError writes the error envelope for err. Storage failures are
// logged and answered with fallback so backing-store details never reach
// the client.
func respondError(c *gin.Context, err error, fallback string) {
	appErr := apperrors.As(err)

	message := appErr.Message
	if appErr.Kind == apperrors.KindStorage {
		log.Printf("[API] %s %s: %v", c.Request.Method, c.FullPath(), err)
		message = fallback
	}

	body := gin.H{
		"code":    appErr.Code(),
		"message": message,
	}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}

	c.JSON(appErr.Status(), gin.H{
		"success": false,
		"error":   body,
	})
}

// respondValidation writes a 400 validation envelope
func respondValidation(c *gin.Context, message string, details interface{}) {
	respondError(c, apperrors.Validation(message, details), message)
}

// currentUserID returns the user of the request's session, or "" when the
// route is not gated
func currentUserID(c *gin.Context) string {
	userID, _ := middleware.GetUserIDFromContext(c)
	return userID
}

// parseLabelID reads a numeric label id from the named path parameter
func parseLabelID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		respondValidation(c, "Invalid label ID", nil)
		return 0, false
	}
	return uint(id), true
}

// noContent answers 204 without a body
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
