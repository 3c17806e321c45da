package commands

import (
	"context"
	"fmt"
	"os"

	"schoolportal-backend/lib/configutil"
	"schoolportal-backend/lib/serviceutil"
	"schoolportal-backend/lib/sqliteutil"
	"schoolportal-backend/services/sis"
	"schoolportal-backend/services/sis/db"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "portal-scraper",
	Short: "portal-scraper scrapes the guardian portal into a local database.",
}

var configPath *string

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "Path to the config file.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() sis.Config {
	cfg, err := configutil.ReadConfig[sis.Config](*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.Db == "" {
		cfg.Db = "portal.db"
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 2
	}
	return cfg
}

func openService() (*sis.Service, func()) {
	cfg := loadConfig()

	database, err := sqliteutil.OpenDB(db.Schema, cfg.Db)
	if err != nil {
		serviceutil.Fatal("failed to open db", err)
	}

	service := sis.NewService(database, sis.NewPortalGatewayFactory(cfg), cfg.Concurrency)
	return service, func() { database.Close() }
}
