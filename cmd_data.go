package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sercano/qahub/models"
)

var (
	flagReportFormat string
	flagReportPeriod int
	flagReportOut    string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the aggregate dashboard counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(cmd); err != nil {
			return err
		}
		stats, err := apiClient.DashboardStats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total tasks:     %d\n", stats.TotalTasks)
		fmt.Fprintf(out, "In progress:     %d\n", stats.InProgressTasks)
		fmt.Fprintf(out, "Completed:       %d\n", stats.CompletedTasks)
		fmt.Fprintf(out, "Completion rate: %.0f%%\n", stats.CompletionRate*100)
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List your tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(cmd); err != nil {
			return err
		}
		tasks, err := apiClient.Tasks(cmd.Context())
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
			return nil
		}

		sort.Slice(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STATUS\tDUE\tPRIORITY\tTITLE")
		for _, task := range tasks {
			due := ""
			if task.DueDate != nil {
				due = task.DueDate.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", task.Status, due, task.Priority, task.Title)
		}
		return w.Flush()
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a QA report document",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(cmd); err != nil {
			return err
		}

		data, err := apiClient.ExportReport(cmd.Context(), &models.ExportRequest{
			Format:       flagReportFormat,
			PeriodMonths: flagReportPeriod,
		})
		if err != nil {
			return err
		}

		path := flagReportOut
		if path == "" {
			path = "qa-report." + flagReportFormat
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(data))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&flagReportFormat, "format", "pdf", "report format (pdf, xlsx, docx)")
	reportCmd.Flags().IntVar(&flagReportPeriod, "period", 3, "report period in months")
	reportCmd.Flags().StringVar(&flagReportOut, "out", "", "output path (default qa-report.<format>)")

	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(reportCmd)
}
