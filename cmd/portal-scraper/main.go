package main

import (
	"context"

	"schoolportal-backend/cmd/portal-scraper/commands"
	"schoolportal-backend/lib/serviceutil"
	"schoolportal-backend/lib/telemetry"
)

func main() {
	telemetry.InitSlog(false)

	ctx := serviceutil.SignalContext()
	// telemetry.json5 is optional for CLI usage
	if err := telemetry.SetupFromEnv(ctx, "portal-scraper"); err == nil {
		telemetry.InstrumentPerfStats(ctx)
		defer telemetry.Shutdown(context.Background())
	}

	commands.ExecuteContext(ctx)
}
