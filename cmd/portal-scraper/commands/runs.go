package commands

import (
	"os"
	"time"

	"schoolportal-backend/lib/serviceutil"
	"schoolportal-backend/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsLimit *int64

func init() {
	runsLimit = runsCmd.Flags().Int64("limit", 20, "Max runs to show.")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs <student>",
	Short: "Prints the audit trail of scrape runs for a student.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := openService()
		defer cleanup()

		runs, err := service.RecentRuns(cmd.Context(), args[0], *runsLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "Started", "Status", "Pages OK", "Pages Failed", "Errors"})
		for _, run := range runs {
			started := time.Unix(run.StartedAt, 0).In(timezone.Location)
			t.AppendRow(table.Row{
				run.Id,
				started.Format("2006-01-02 15:04:05"),
				run.Status,
				run.PagesOk,
				run.PagesFailed,
				run.Errors,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
