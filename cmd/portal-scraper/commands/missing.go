package commands

import (
	"os"

	"schoolportal-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(missingCmd)
}

var missingCmd = &cobra.Command{
	Use:   "missing <student>",
	Short: "Prints the assignments currently flagged missing for a student.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := openService()
		defer cleanup()

		rows, err := service.MissingAssignments(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to load missing assignments", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Course", "Assignment", "Due", "Category"})
		for _, row := range rows {
			t.AppendRow(table.Row{row.Course, row.Assignment, row.DueDate, row.Category})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
