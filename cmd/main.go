package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ledgermail/core/internal/api"
	"github.com/ledgermail/core/internal/cli"
	"github.com/ledgermail/core/internal/config"
	"github.com/ledgermail/core/internal/database"
	"github.com/ledgermail/core/internal/services"
	"github.com/ledgermail/core/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close(db)

	// Check if running CLI command
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize exporter: %v", err)
	}

	svc := api.NewServices(db, cfg, sessions, exporter)
	router := api.SetupRouter(cfg, svc)

	if cfg.SyncInterval > 0 {
		scheduler := services.NewSyncScheduler(svc.Store, svc.SyncService, svc.LogService, cfg.SyncInterval)
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("Starting ledgermail server on port %s", cfg.APIPort)
		log.Printf("Database: %s", cfg.DatabaseDriver)
		log.Printf("Session backend: %s, export backend: %s", cfg.SessionBackend, cfg.ExportBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// newSessionStore builds the session backend named by the configuration
func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch strings.ToLower(cfg.SessionBackend) {
	case "", "memory":
		store := session.NewMemoryStore(cfg.SessionTTL)
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := store.Sweep(); n > 0 {
						log.Printf("[Session] Swept %d expired sessions", n)
					}
				}
			}
		}()
		return store, nil
	case "redis":
		client, err := session.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return session.NewRedisStore(client, cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.SessionBackend)
	}
}

// newExporter builds the document exporter named by the configuration
func newExporter(ctx context.Context, cfg *config.Config) (services.Exporter, error) {
	switch strings.ToLower(cfg.ExportBackend) {
	case "", "drive":
		return services.NewDriveExporter(), nil
	case "s3":
		exporter, err := services.NewS3Exporter(ctx, services.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported export backend %q", cfg.ExportBackend)
	}
}
