package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgermail/core/internal/services"
)

// ExportHandler serves bulk exports and the mailbox sync trigger
type ExportHandler struct {
	csvService  *services.CSVService
	syncService *services.SyncService
	logService  *services.LogService
}

// NewExportHandler creates a new ExportHandler instance
func NewExportHandler(csvService *services.CSVService, syncService *services.SyncService, logService *services.LogService) *ExportHandler {
	return &ExportHandler{
		csvService:  csvService,
		syncService: syncService,
		logService:  logService,
	}
}

// ExportCSV downloads the filtered listing as CSV
// GET /api/export/csv
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	filter, problems := parseEmailFilter(c)
	if problems != nil {
		respondValidation(c, "Invalid query parameters", problems)
		return
	}

	body, err := h.csvService.Export(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to export CSV")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+h.csvService.Filename()+`"`)
	c.Data(http.StatusOK, "text/csv", body)
}

// Sync asks the sync endpoint to ingest new mail for the current user
// POST /api/sync
func (h *ExportHandler) Sync(c *gin.Context) {
	userID := currentUserID(c)

	result, err := h.syncService.Trigger(c.Request.Context(), userID)
	if err != nil {
		h.logService.LogSync(userID, err)

		var syncErr *services.SyncError
		switch {
		case errors.Is(err, services.ErrSyncNotConfigured):
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "SYNC_NOT_CONFIGURED",
					"message": "Sync service is not configured.",
				},
			})
		case errors.As(err, &syncErr):
			log.Printf("[Sync] Sync failed for user %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "SYNC_FAILED",
					"message": syncErr.Message,
				},
			})
		default:
			respondError(c, err, "Sync failed")
		}
		return
	}

	h.logService.LogSync(userID, nil)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Email sync initiated successfully!",
		"details": result,
	})
}
