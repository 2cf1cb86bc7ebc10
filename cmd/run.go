package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kyleseneker/rankwatch/internal/api"
	"github.com/kyleseneker/rankwatch/internal/clock"
	"github.com/kyleseneker/rankwatch/internal/metrics"
	"github.com/kyleseneker/rankwatch/internal/provider"
	"github.com/kyleseneker/rankwatch/internal/runner"
	"github.com/kyleseneker/rankwatch/internal/tracking"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run rankwatch continuously",
	Long: `Starts the rankwatch runner, which checks due tracked items every
tick_interval and prunes expired history every sweep_interval. Unless
api_enabled is false, the HTTP API is served on api_addr alongside it.`,
	Run: func(cmd *cobra.Command, args []string) {
		runTracker(cfgFile)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runTracker(configPath string) {
	cfg, logger := loadConfig(configPath)
	logger.Info("Configuration loaded", "store_type", cfg.StoreType, "provider_type", cfg.ProviderType)

	st := mustOpenStore(cfg, logger)

	rankProvider, err := provider.New(cfg)
	if err != nil {
		logger.Error("Error creating rank provider", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	clk := clock.System{}
	scheduler := tracking.NewScheduler(st, rankProvider, clk, m, logger, tracking.Options{
		MaxPages:      cfg.MaxPages,
		SnapshotItems: cfg.SnapshotItems,
		Concurrency:   cfg.Concurrency,
	})
	sweeper := tracking.NewSweeper(st, clk, m, logger)

	var server *api.Server
	if cfg.APIEnabled {
		server = api.NewServer(st, m, logger)
		go func() {
			if err := server.ListenAndServe(cfg.APIAddr); err != nil {
				logger.Error("API server stopped", "error", err)
			}
		}()
	}

	trackingRunner := runner.NewRunner(*cfg, scheduler, sweeper, st, clk, m, logger)
	logger.Info("Runner initialized. Starting main loop...")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go trackingRunner.Run()

	sig := <-signalChan
	logger.Warn("Received signal, initiating shutdown...", "signal", sig)

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down API server", "error", err)
		}
		cancel()
	}
	trackingRunner.Shutdown()

	logger.Info("rankwatch shut down gracefully.")
}
