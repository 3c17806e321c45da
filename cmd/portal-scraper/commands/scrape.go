package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"schoolportal-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes every student on the account and reconciles the database.",
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := openService()
		defer cleanup()

		t1 := time.Now()
		results, err := service.RunScrape(cmd.Context())
		if err != nil {
			serviceutil.Fatal("scrape failed", err)
		}
		t2 := time.Now()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Student", "Run", "Status", "Pages OK", "Pages Failed", "Writes"})
		for _, r := range results {
			ok, failed := 0, 0
			for _, p := range r.Pages {
				if p.Err == nil {
					ok++
				} else {
					failed++
				}
			}
			t.AppendRow(table.Row{
				r.Student.ExternalId,
				r.RunId,
				string(r.Status),
				ok,
				failed,
				fmt.Sprintf("+%d ~%d >%d", r.Stats.Inserted, r.Stats.Updated, r.Stats.Appended),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		slog.Info("scraping time", "seconds", t2.Sub(t1).Seconds())
	},
}
