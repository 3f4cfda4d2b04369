package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ledgermail/core/internal/api/handlers"
	"github.com/ledgermail/core/internal/api/middleware"
	"github.com/ledgermail/core/internal/config"
	"github.com/ledgermail/core/internal/services"
	"github.com/ledgermail/core/internal/session"
	"github.com/ledgermail/core/internal/storage"
	"gorm.io/gorm"
)

// Services bundles everything the router wires into handlers
type Services struct {
	Store      storage.Storage
	Sessions   session.Store
	JWTManager *middleware.JWTManager

	UserService   *services.UserService
	LogService    *services.LogService
	ExportService *services.ExportService
	CSVService    *services.CSVService
	SyncService   *services.SyncService
}

// NewServices builds the service layer on top of an open database
func NewServices(db *gorm.DB, cfg *config.Config, sessions session.Store, exporter services.Exporter) *Services {
	store := storage.NewGormStorage(db)

	return &Services{
		Store:         store,
		Sessions:      sessions,
		JWTManager:    middleware.NewJWTManager(cfg.JWTSecret),
		UserService:   services.NewUserService(store),
		LogService:    services.NewLogServiceWithLevel(db, cfg.LogLevel),
		ExportService: services.NewExportService(store, exporter),
		CSVService:    services.NewCSVService(store),
		SyncService:   services.NewSyncService(cfg.SyncURL, cfg.SyncTimeout),
	}
}

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(cfg *config.Config, svc *Services) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOriginList(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.SessionMiddleware(svc.JWTManager, svc.Sessions))
	router.Use(middleware.RequestLogger(svc.LogService))

	authHandler := handlers.NewAuthHandler(svc.UserService, svc.JWTManager, svc.Sessions, svc.LogService)
	emailHandler := handlers.NewEmailHandler(svc.Store, svc.ExportService, svc.LogService)
	labelHandler := handlers.NewLabelHandler(svc.Store, svc.LogService)
	dashboardHandler := handlers.NewDashboardHandler(svc.Store)
	exportHandler := handlers.NewExportHandler(svc.CSVService, svc.SyncService, svc.LogService)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		loginLimiter := middleware.NewIPRateLimiter(cfg.LoginRatePerMinute, time.Minute)

		auth := api.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(loginLimiter), authHandler.Login)
			auth.POST("/register", middleware.RateLimit(loginLimiter), authHandler.Register)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authHandler.GetCurrentUser)
		}

		protected := api.Group("")
		protected.Use(middleware.RequireAuth())
		{
			protected.POST("/sync", exportHandler.Sync)

			emails := protected.Group("/emails")
			{
				emails.GET("", emailHandler.ListEmails)
				emails.POST("", emailHandler.CreateEmail)
				emails.GET("/:id", emailHandler.GetEmail)
				emails.PUT("/:id", emailHandler.UpdateEmail)
				emails.DELETE("/:id", emailHandler.DeleteEmail)
				emails.POST("/:id/export", emailHandler.ExportEmail)
				emails.POST("/:id/labels", emailHandler.AttachLabel)
				emails.DELETE("/:id/labels/:labelId", emailHandler.DetachLabel)
				emails.GET("/:id/attachments", emailHandler.ListAttachments)
				emails.POST("/:id/attachments", emailHandler.CreateAttachment)
			}

			labels := protected.Group("/labels")
			{
				labels.GET("", labelHandler.ListLabels)
				labels.POST("", labelHandler.CreateLabel)
				labels.PUT("/:id", labelHandler.UpdateLabel)
				labels.DELETE("/:id", labelHandler.DeleteLabel)
			}

			protected.GET("/dashboard/metrics", dashboardHandler.GetMetrics)
			protected.GET("/dashboard/charts", dashboardHandler.GetCharts)
			protected.GET("/contacts", dashboardHandler.GetContacts)
			protected.GET("/export/csv", exportHandler.ExportCSV)
		}
	}

	return router
}
