package commands

import (
	"fmt"
	"os"
	"time"

	"schoolportal-backend/lib/serviceutil"
	"schoolportal-backend/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyCourse *string

func init() {
	historyCourse = gradesCmd.Flags().String("history", "", "Show every recorded observation for this course instead of the current grades.")
	rootCmd.AddCommand(gradesCmd)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *v)
}

var gradesCmd = &cobra.Command{
	Use:   "grades <student> [--history <course>]",
	Short: "Prints a student's current grades, or the history of one course.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := openService()
		defer cleanup()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)

		if *historyCourse != "" {
			history, err := service.GradeHistory(cmd.Context(), args[0], *historyCourse)
			if err != nil {
				serviceutil.Fatal("failed to load grade history", err)
			}
			t.AppendHeader(table.Row{"Observed", "Course", "Term", "Letter", "Percent"})
			for _, g := range history {
				observed := time.Unix(g.ObservedAt, 0).In(timezone.Location)
				t.AppendRow(table.Row{
					observed.Format("2006-01-02 15:04"),
					g.Course, g.Term, g.Letter, fmtFloat(g.Percent),
				})
			}
		} else {
			grades, err := service.CurrentGrades(cmd.Context(), args[0])
			if err != nil {
				serviceutil.Fatal("failed to load grades", err)
			}
			t.AppendHeader(table.Row{"Course", "Term", "Letter", "Percent", "GPA"})
			for _, g := range grades {
				t.AppendRow(table.Row{
					g.Course, g.Term, g.Letter, fmtFloat(g.Percent), fmtFloat(g.GpaPoints),
				})
			}
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
