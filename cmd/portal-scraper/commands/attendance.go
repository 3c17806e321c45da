package commands

import (
	"fmt"
	"os"
	"time"

	"schoolportal-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(attendanceCmd)
}

var attendanceCmd = &cobra.Command{
	Use:   "attendance <student>",
	Short: "Prints attendance patterns derived from the raw attendance stream.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := openService()
		defer cleanup()

		patterns, err := service.AttendancePatterns(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to compute attendance patterns", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Weekday", "Absences", "Tardies"})
		for day := time.Monday; day <= time.Friday; day++ {
			t.AppendRow(table.Row{
				day.String(),
				patterns.AbsencesByWeekday[day],
				patterns.TardiesByWeekday[day],
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		fmt.Printf("total absences: %d, total tardies: %d, longest streak: %d days\n",
			patterns.TotalAbsences, patterns.TotalTardies, patterns.LongestAbsenceStreak)
	},
}
