package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ledgermail/core/internal/database/models"
	"github.com/ledgermail/core/internal/services"
	"github.com/ledgermail/core/internal/storage"
)

// LabelHandler handles label related requests
type LabelHandler struct {
	store      storage.Storage
	logService *services.LogService
}

// NewLabelHandler creates a new LabelHandler instance
func NewLabelHandler(store storage.Storage, logService *services.LogService) *LabelHandler {
	return &LabelHandler{
		store:      store,
		logService: logService,
	}
}

// CreateLabelRequest represents the request to create a label
type CreateLabelRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Color       string  `json:"color" binding:"omitempty,len=7,hexcolor"`
	Description *string `json:"description"`
}

// UpdateLabelRequest represents a partial label update
type UpdateLabelRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Color       *string `json:"color" binding:"omitempty,len=7,hexcolor"`
	Description *string `json:"description"`
}

// ListLabels returns every label
// GET /api/labels
func (h *LabelHandler) ListLabels(c *gin.Context) {
	labels, err := h.store.ListLabels(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch labels")
		return
	}

	c.JSON(http.StatusOK, labels)
}

// CreateLabel stores a new label
// POST /api/labels
func (h *LabelHandler) CreateLabel(c *gin.Context) {
	var req CreateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid label data", err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondValidation(c, "Invalid label data", map[string]string{"name": "must not be empty"})
		return
	}

	label, err := h.store.CreateLabel(c.Request.Context(), &models.Label{
		Name:        name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err, "Failed to create label")
		return
	}

	h.logService.LogLabelChange(currentUserID(c), "create", label.ID, "")
	c.JSON(http.StatusCreated, label)
}

// UpdateLabel merges the supplied fields onto a label
// PUT /api/labels/:id
func (h *LabelHandler) UpdateLabel(c *gin.Context) {
	id, ok := parseLabelID(c, "id")
	if !ok {
		return
	}

	var req UpdateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid label data", err.Error())
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			respondValidation(c, "Invalid label data", map[string]string{"name": "must not be empty"})
			return
		}
		req.Name = &name
	}

	label, err := h.store.UpdateLabel(c.Request.Context(), id, storage.LabelPatch{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err, "Failed to update label")
		return
	}

	h.logService.LogLabelChange(currentUserID(c), "update", label.ID, "")
	c.JSON(http.StatusOK, label)
}

// DeleteLabel removes a label and unlinks it from every email
// DELETE /api/labels/:id
func (h *LabelHandler) DeleteLabel(c *gin.Context) {
	id, ok := parseLabelID(c, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteLabel(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete label")
		return
	}

	h.logService.LogLabelChange(currentUserID(c), "delete", id, "")
	noContent(c)
}
