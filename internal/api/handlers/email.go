package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgermail/core/internal/database/models"
	"github.com/ledgermail/core/internal/services"
	"github.com/ledgermail/core/internal/storage"
)

// EmailHandler handles email related requests
type EmailHandler struct {
	store         storage.Storage
	exportService *services.ExportService
	logService    *services.LogService
}

// NewEmailHandler creates a new EmailHandler instance
func NewEmailHandler(store storage.Storage, exportService *services.ExportService, logService *services.LogService) *EmailHandler {
	return &EmailHandler{
		store:         store,
		exportService: exportService,
		logService:    logService,
	}
}

// CreateEmailRequest represents the request to create an email
type CreateEmailRequest struct {
	Subject      string     `json:"subject" binding:"required"`
	Snippet      *string    `json:"snippet"`
	SenderName   string     `json:"senderName" binding:"required"`
	SenderEmail  string     `json:"senderEmail" binding:"required,email"`
	Amount       *Amount    `json:"amount"`
	Category     string     `json:"category" binding:"max=100"`
	Status       string     `json:"status" binding:"omitempty,oneof=pending processed exported"`
	DriveFileID  *string    `json:"driveFileId"`
	DriveFileURL *string    `json:"driveFileUrl"`
	ReceivedAt   *time.Time `json:"receivedAt" binding:"required"`
}

// UpdateEmailRequest represents a partial email update; omitted fields are kept
type UpdateEmailRequest struct {
	Subject      *string    `json:"subject" binding:"omitempty,min=1"`
	Snippet      *string    `json:"snippet"`
	SenderName   *string    `json:"senderName" binding:"omitempty,min=1"`
	SenderEmail  *string    `json:"senderEmail" binding:"omitempty,email"`
	Amount       *Amount    `json:"amount"`
	Category     *string    `json:"category" binding:"omitempty,min=1,max=100"`
	Status       *string    `json:"status" binding:"omitempty,oneof=pending processed exported"`
	DriveFileID  *string    `json:"driveFileId"`
	DriveFileURL *string    `json:"driveFileUrl"`
	ReceivedAt   *time.Time `json:"receivedAt"`
}

// AttachLabelRequest represents the request to label an email
type AttachLabelRequest struct {
	LabelID uint `json:"labelId" binding:"required"`
}

// CreateAttachmentRequest represents the request to record an attachment
type CreateAttachmentRequest struct {
	Filename string  `json:"filename" binding:"required,max=255"`
	MimeType string  `json:"mimeType" binding:"required,max=100"`
	Size     int64   `json:"size" binding:"min=0"`
	Content  *string `json:"content"`
}

// sanitizeOptional strips markup from an optional text field
func sanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	clean := services.StripMarkup(*s)
	return &clean
}

// ListEmails returns the filtered, paginated email listing
// GET /api/emails
func (h *EmailHandler) ListEmails(c *gin.Context) {
	filter, problems := parseEmailFilter(c)
	if problems != nil {
		respondValidation(c, "Invalid query parameters", problems)
		return
	}

	emails, err := h.store.ListEmails(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to fetch emails")
		return
	}

	c.JSON(http.StatusOK, emails)
}

// GetEmail returns a single email with its labels and attachments
// GET /api/emails/:id
func (h *EmailHandler) GetEmail(c *gin.Context) {
	email, err := h.store.GetEmailByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to fetch email")
		return
	}
	if email == nil {
		respondError(c, storage.ErrEmailNotFound, "")
		return
	}

	c.JSON(http.StatusOK, email)
}

// CreateEmail stores a new email
// POST /api/emails
func (h *EmailHandler) CreateEmail(c *gin.Context) {
	var req CreateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid email data", err.Error())
		return
	}

	subject := services.StripMarkup(req.Subject)
	if subject == "" {
		respondValidation(c, "Invalid email data", map[string]string{"subject": "must not be empty"})
		return
	}
	if req.Amount != nil && *req.Amount < 0 {
		respondValidation(c, "Invalid email data", map[string]string{"amount": "must not be negative"})
		return
	}

	email, err := h.store.CreateEmail(c.Request.Context(), &models.Email{
		Subject:      subject,
		Snippet:      sanitizeOptional(req.Snippet),
		SenderName:   req.SenderName,
		SenderEmail:  req.SenderEmail,
		Amount:       req.Amount.Float(),
		Category:     req.Category,
		Status:       req.Status,
		DriveFileID:  req.DriveFileID,
		DriveFileURL: req.DriveFileURL,
		ReceivedAt:   *req.ReceivedAt,
	})
	if err != nil {
		respondError(c, err, "Failed to create email")
		return
	}

	h.logService.LogEmailChange(currentUserID(c), "create", email.ID, email.Subject)
	c.JSON(http.StatusCreated, email)
}

// UpdateEmail merges the supplied fields onto an email
// PUT /api/emails/:id
func (h *EmailHandler) UpdateEmail(c *gin.Context) {
	var req UpdateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid email data", err.Error())
		return
	}
	if req.Amount != nil && *req.Amount < 0 {
		respondValidation(c, "Invalid email data", map[string]string{"amount": "must not be negative"})
		return
	}

	patch := storage.EmailPatch{
		Subject:      sanitizeOptional(req.Subject),
		Snippet:      sanitizeOptional(req.Snippet),
		SenderName:   req.SenderName,
		SenderEmail:  req.SenderEmail,
		Amount:       req.Amount.Float(),
		Category:     req.Category,
		Status:       req.Status,
		DriveFileID:  req.DriveFileID,
		DriveFileURL: req.DriveFileURL,
		ReceivedAt:   req.ReceivedAt,
	}
	if patch.Subject != nil && *patch.Subject == "" {
		respondValidation(c, "Invalid email data", map[string]string{"subject": "must not be empty"})
		return
	}

	email, err := h.store.UpdateEmail(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err, "Failed to update email")
		return
	}

	h.logService.LogEmailChange(currentUserID(c), "update", email.ID, email.Subject)
	c.JSON(http.StatusOK, email)
}

// DeleteEmail removes an email; unknown ids succeed
// DELETE /api/emails/:id
func (h *EmailHandler) DeleteEmail(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteEmail(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete email")
		return
	}

	h.logService.LogEmailChange(currentUserID(c), "delete", id, "")
	noContent(c)
}

// ExportEmail exports an email to a document and records the file reference
// POST /api/emails/:id/export
func (h *EmailHandler) ExportEmail(c *gin.Context) {
	id := c.Param("id")

	file, err := h.exportService.ExportEmail(c.Request.Context(), id)
	h.logService.LogExport(currentUserID(c), id, fileID(file), err)
	if err != nil {
		respondError(c, err, "Failed to export email to PDF")
		return
	}

	c.JSON(http.StatusOK, file)
}

func fileID(file *services.ExportedFile) string {
	if file == nil {
		return ""
	}
	return file.FileID
}

// AttachLabel links a label to an email
// POST /api/emails/:id/labels
func (h *EmailHandler) AttachLabel(c *gin.Context) {
	var req AttachLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err.Error())
		return
	}

	link, err := h.store.AttachLabel(c.Request.Context(), c.Param("id"), req.LabelID)
	if err != nil {
		respondError(c, err, "Failed to attach label")
		return
	}

	h.logService.LogLabelChange(currentUserID(c), "attach", link.LabelID, link.EmailID)
	c.JSON(http.StatusCreated, gin.H{
		"emailId": link.EmailID,
		"labelId": link.LabelID,
	})
}

// DetachLabel unlinks a label from an email
// DELETE /api/emails/:id/labels/:labelId
func (h *EmailHandler) DetachLabel(c *gin.Context) {
	labelID, ok := parseLabelID(c, "labelId")
	if !ok {
		return
	}

	emailID := c.Param("id")
	if err := h.store.DetachLabel(c.Request.Context(), emailID, labelID); err != nil {
		respondError(c, err, "Failed to detach label")
		return
	}

	h.logService.LogLabelChange(currentUserID(c), "detach", labelID, emailID)
	noContent(c)
}

// ListAttachments returns the attachments of an email
// GET /api/emails/:id/attachments
func (h *EmailHandler) ListAttachments(c *gin.Context) {
	attachments, err := h.store.ListAttachments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to fetch attachments")
		return
	}

	c.JSON(http.StatusOK, attachments)
}

// CreateAttachment records an attachment on an email
// POST /api/emails/:id/attachments
func (h *EmailHandler) CreateAttachment(c *gin.Context) {
	var req CreateAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid attachment data", err.Error())
		return
	}

	attachment, err := h.store.CreateAttachment(c.Request.Context(), &models.Attachment{
		EmailID:  c.Param("id"),
		Filename: req.Filename,
		MimeType: req.MimeType,
		Size:     req.Size,
		Content:  req.Content,
	})
	if err != nil {
		respondError(c, err, "Failed to create attachment")
		return
	}

	c.JSON(http.StatusCreated, attachment)
}
