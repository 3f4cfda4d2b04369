package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ledgermail/core/internal/services"
	"github.com/spf13/cobra"
)

// logsCmd prints the most recent audit log entries
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent log entries",
	Long: `Print the stored log entries, newest first. Entries below the
configured log level are never recorded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		query := services.LogQuery{}
		query.UserID, _ = cmd.Flags().GetString("user")
		query.Module, _ = cmd.Flags().GetString("module")
		query.Action, _ = cmd.Flags().GetString("action")
		query.Page, _ = cmd.Flags().GetInt("page")
		query.Limit, _ = cmd.Flags().GetInt("limit")

		level, _ := cmd.Flags().GetString("level")
		query.Level = strings.ToUpper(level)

		if since, _ := cmd.Flags().GetString("since"); since != "" {
			t, err := time.ParseInLocation("2006-01-02", since, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --since date %q, expected YYYY-MM-DD", since)
			}
			query.StartTime = &t
		}

		result, err := logService.QueryLogs(query)
		if err != nil {
			return fmt.Errorf("failed to query logs: %w", err)
		}

		fmt.Fprintf(out, "Recording level: %s\n", logService.GetLogLevel())
		if len(result.Logs) == 0 {
			fmt.Fprintln(out, "No log entries.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tLEVEL\tMODULE\tACTION\tUSER\tMESSAGE")
		for _, entry := range result.Logs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				entry.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				entry.Level, entry.Module, entry.Action, entry.UserID, entry.Message)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(out, "%d of %d entries\n", len(result.Logs), result.Total)
		return nil
	},
}

func init() {
	logsCmd.Flags().String("user", "", "only entries for this user id")
	logsCmd.Flags().String("level", "", "only entries at this level (DEBUG, INFO, WARN, ERROR)")
	logsCmd.Flags().String("module", "", "only entries from this module (auth, email, label, sync, export, api)")
	logsCmd.Flags().String("action", "", "only entries with this action")
	logsCmd.Flags().String("since", "", "only entries on or after this date (YYYY-MM-DD)")
	logsCmd.Flags().Int("page", 1, "page of results")
	logsCmd.Flags().IntP("limit", "n", 20, "entries per page")
}
