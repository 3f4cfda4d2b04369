package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/ledgermail/core/internal/services"
	"github.com/ledgermail/core/internal/storage"
	"github.com/spf13/cobra"
)

// metricsCmd prints the dashboard headline numbers
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the dashboard metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		metrics, err := store.GetDashboardMetrics(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to compute metrics: %w", err)
		}
		expenses, err := store.GetExpensesByCategory(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to compute category expenses: %w", err)
		}

		fmt.Fprintf(out, "Total emails:         %d\n", metrics.TotalEmails)
		fmt.Fprintf(out, "Uncategorized emails: %d\n", metrics.UncategorizedEmails)
		fmt.Fprintf(out, "Documents:            %d\n", metrics.TotalDocuments)
		fmt.Fprintf(out, "Expenses this month:  %.2f\n", metrics.MonthlyExpenses)

		if len(expenses) > 0 {
			fmt.Fprintln(out, "Top categories:")
			for _, e := range expenses {
				fmt.Fprintf(out, "  %-20s %10.2f\n", e.Name, e.Amount)
			}
		}
		return nil
	},
}

// exportCmd represents the export command group
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export emails",
}

// exportCSVCmd writes the filtered email listing as CSV
var exportCSVCmd = &cobra.Command{
	Use:   "csv",
	Short: "Export emails as CSV",
	Long: `Write at most 1000 emails matching the filters as CSV, to stdout or
the file given with --output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := storage.EmailFilter{}
		filter.Search, _ = cmd.Flags().GetString("search")
		filter.Category, _ = cmd.Flags().GetString("category")

		for _, f := range []struct {
			name string
			dst  **time.Time
		}{{"from", &filter.DateFrom}, {"to", &filter.DateTo}} {
			value, _ := cmd.Flags().GetString(f.name)
			if value == "" {
				continue
			}
			t, err := time.Parse("2006-01-02", value)
			if err != nil {
				return fmt.Errorf("invalid --%s date %q, expected YYYY-MM-DD", f.name, value)
			}
			if f.name == "to" {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			*f.dst = &t
		}

		data, err := csvService.Export(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to export emails: %w", err)
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			_, err := cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
		return nil
	},
}

// syncCmd runs one sync cycle for every user
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger a mailbox sync for every user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !syncService.Configured() {
			return services.ErrSyncNotConfigured
		}

		scheduler := services.NewSyncScheduler(store, syncService, logService, 0)
		synced := scheduler.RunOnce(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d user(s)\n", synced)
		return nil
	},
}

func init() {
	exportCSVCmd.Flags().String("search", "", "case-insensitive match on the subject")
	exportCSVCmd.Flags().String("category", "", "only emails of this category")
	exportCSVCmd.Flags().String("from", "", "received on or after this date (YYYY-MM-DD)")
	exportCSVCmd.Flags().String("to", "", "received on or before this date (YYYY-MM-DD)")
	exportCSVCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	exportCmd.AddCommand(exportCSVCmd)
}
