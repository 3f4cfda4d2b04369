package cli

import (
	"fmt"
	"os"

	"github.com/ledgermail/core/internal/config"
	"github.com/ledgermail/core/internal/services"
	"github.com/ledgermail/core/internal/storage"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db          *gorm.DB
	cfg         *config.Config
	store       storage.Storage
	userService *services.UserService
	csvService  *services.CSVService
	syncService *services.SyncService
	logService  *services.LogService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ledgermail",
	Short: "Financial email dashboard backend",
	Long: `ledgermail serves the financial email dashboard API. Run without
arguments to start the server.

The command line tool provides:
  - user management: create and list dashboard users
  - analytics: print the dashboard metrics
  - export: write the email listing as CSV
  - sync: trigger a mailbox sync for every user
  - logs: inspect the stored audit log

Examples:
  ledgermail user create
  ledgermail user list
  ledgermail metrics
  ledgermail export csv --category Invoice -o invoices.csv
  ledgermail sync
  ledgermail logs --level WARN --module auth`,
	SilenceUsage: true,
}

// setup wires the command globals to an open database
func setup(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config
	store = storage.NewGormStorage(db)
	userService = services.NewUserService(store)
	csvService = services.NewCSVService(store)
	syncService = services.NewSyncService(cfg.SyncURL, cfg.SyncTimeout)
	logService = services.NewLogServiceWithLevel(db, cfg.LogLevel)
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	setup(database, config)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(logsCmd)
}
