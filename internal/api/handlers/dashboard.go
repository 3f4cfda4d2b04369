package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgermail/core/internal/storage"
	"golang.org/x/sync/errgroup"
)

// DashboardHandler serves the analytics endpoints
type DashboardHandler struct {
	store storage.Storage
}

// NewDashboardHandler creates a new DashboardHandler instance
func NewDashboardHandler(store storage.Storage) *DashboardHandler {
	return &DashboardHandler{store: store}
}

// GetMetrics returns the dashboard headline numbers
// GET /api/dashboard/metrics
func (h *DashboardHandler) GetMetrics(c *gin.Context) {
	metrics, err := h.store.GetDashboardMetrics(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch dashboard metrics")
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// GetCharts returns the category and monthly volume series
// GET /api/dashboard/charts
func (h *DashboardHandler) GetCharts(c *gin.Context) {
	var (
		expenses []storage.CategoryExpense
		volume   []storage.MonthVolume
	)

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		expenses, err = h.store.GetExpensesByCategory(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		volume, err = h.store.GetTransactionVolume(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		respondError(c, err, "Failed to fetch chart data")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"expensesByCategory": expenses,
		"transactionVolume":  volume,
	})
}

// GetContacts returns the per-sender rollup
// GET /api/contacts
func (h *DashboardHandler) GetContacts(c *gin.Context) {
	contacts, err := h.store.GetContacts(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch contacts")
		return
	}

	c.JSON(http.StatusOK, contacts)
}
