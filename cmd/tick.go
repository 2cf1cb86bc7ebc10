package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/kyleseneker/rankwatch/internal/clock"
	"github.com/kyleseneker/rankwatch/internal/provider"
	"github.com/kyleseneker/rankwatch/internal/tracking"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single tracking tick and exit",
	Long: `Checks every tracked item that is due right now, records the results,
and prints a summary. Items that are not due are left untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSingleTick(cmd.Context(), cfgFile)
	},
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runSingleTick(ctx context.Context, configPath string) {
	cfg, logger := loadConfig(configPath)
	st := mustOpenStore(cfg, logger)
	defer st.Close()

	rankProvider, err := provider.New(cfg)
	if err != nil {
		log.Fatalf("Error creating rank provider: %v", err)
	}

	scheduler := tracking.NewScheduler(st, rankProvider, clock.System{}, nil, logger, tracking.Options{
		MaxPages:      cfg.MaxPages,
		SnapshotItems: cfg.SnapshotItems,
		Concurrency:   cfg.Concurrency,
	})
	report, err := scheduler.Tick(ctx)
	if err != nil {
		log.Fatalf("Tick failed: %v", err)
	}

	fmt.Printf("Items: %d  Due: %d  Checked: %d  Not ranked: %d  Provider errors: %d  Store errors: %d  Panics: %d  Cancelled: %d  (%s)\n",
		report.Items, report.Due, report.Checked, report.NotFound,
		report.ProviderErrors, report.StoreErrors, report.Panics, report.Cancelled, report.Duration)
}
