package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/kyleseneker/rankwatch/internal/clock"
	"github.com/kyleseneker/rankwatch/internal/tracking"
)

var sweepHorizon time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete history older than the retention horizon and exit",
	Run: func(cmd *cobra.Command, args []string) {
		runSingleSweep(cmd.Context(), cfgFile, sweepHorizon)
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepHorizon, "horizon", 0, "retention horizon (default is retention_horizon from config)")
	rootCmd.AddCommand(sweepCmd)
}

func runSingleSweep(ctx context.Context, configPath string, horizon time.Duration) {
	cfg, logger := loadConfig(configPath)
	st := mustOpenStore(cfg, logger)
	defer st.Close()

	if horizon <= 0 {
		horizon = cfg.RetentionHorizon
	}
	deleted, err := tracking.NewSweeper(st, clock.System{}, nil, logger).Sweep(ctx, horizon)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	fmt.Printf("Deleted %d record(s) older than %s.\n", deleted, horizon)
}
