package runner

import (
	"context"
	"errors"
	"time"

	"github.com/kyleseneker/rankwatch/internal/clock"
	"github.com/kyleseneker/rankwatch/internal/config"
	"github.com/kyleseneker/rankwatch/internal/logging"
	"github.com/kyleseneker/rankwatch/internal/metrics"
	"github.com/kyleseneker/rankwatch/internal/outage"
	"github.com/kyleseneker/rankwatch/internal/tracking"
)

// Ticker runs one tracking pass.
type Ticker interface {
	Tick(ctx context.Context) (tracking.TickReport, error)
}

// Sweeper runs one retention pass.
type Sweeper interface {
	Sweep(ctx context.Context, horizon time.Duration) (int64, error)
}

// Store is the part of the store the runner owns: health probes and shutdown.
type Store interface {
	Ping(ctx context.Context) error
	Close() error
}

const outageProbeTimeout = 5 * time.Second

// Runner manages the main execution loop.
type Runner struct {
	cfg           config.Config
	ticker        Ticker
	sweeper       Sweeper
	store         Store
	outageChecker outage.OutageChecker
	clock         clock.Clock
	metrics       *metrics.Metrics
	logger        logging.Logger
	// Circuit Breaker State
	consecutiveFailures int
	breakerTripped      bool
	breakerTripTime     time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	done     chan struct{}
}

// NewRunner creates a new Runner. st is probed before each tracking cycle
// and closed on Shutdown; it may be nil.
func NewRunner(cfg config.Config, ticker Ticker, sweeper Sweeper, st Store, clk clock.Clock, m *metrics.Metrics, logger logging.Logger) *Runner {
	if clk == nil {
		clk = clock.System{}
	}
	var oc outage.OutageChecker
	switch {
	case !cfg.OutageCheckEnabled:
		logger.Info("Outage checking disabled via outage_check_enabled=false.")
		oc = outage.NewNoopOutageChecker()
	case st == nil:
		oc = outage.NewNoopOutageChecker()
	default:
		oc = outage.NewStoreOutageChecker(st, outageProbeTimeout, logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:           cfg,
		ticker:        ticker,
		sweeper:       sweeper,
		store:         st,
		outageChecker: oc,
		clock:         clk,
		metrics:       m,
		logger:        logger.Named("runner"),
		ctx:           ctx,
		cancel:        cancel,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Run starts the main execution loop and blocks until Shutdown is called.
func (r *Runner) Run() {
	defer close(r.done)
	r.logger.Info("Starting rank tracking runner", "tick_interval", r.cfg.TickInterval, "sweep_interval", r.cfg.SweepInterval, "retention_horizon", r.cfg.RetentionHorizon)
	tickTicker := time.NewTicker(r.cfg.TickInterval)
	defer tickTicker.Stop()
	sweepTicker := time.NewTicker(r.cfg.SweepInterval)
	defer sweepTicker.Stop()

	// Run once immediately at startup
	r.runTrackingCycle()
	r.runSweepCycle()

Loop:
	for {
		select {
		case <-tickTicker.C:
			r.runTrackingCycle()
		case <-sweepTicker.C:
			r.runSweepCycle()
		case <-r.stopChan:
			r.logger.Info("Shutdown signal received, stopping runner loop.")
			break Loop
		}
	}

	r.logger.Info("Runner loop stopped.")
}

// Shutdown stops the loop, waits for the current cycle, and closes the store.
func (r *Runner) Shutdown() {
	r.logger.Info("Initiating runner shutdown...")

	close(r.stopChan)
	r.cancel()
	<-r.done

	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("Error closing store", "error", err)
		}
	}

	r.logger.Info("Runner shutdown complete.")
}

// runTrackingCycle performs one tick unless the circuit breaker is open.
func (r *Runner) runTrackingCycle() {
	cycleLogger := r.logger.With("cycle_start_time", r.clock.Now().Format(time.RFC3339))

	if r.cfg.CircuitBreakerEnabled && r.breakerTripped {
		elapsedSinceTrip := r.clock.Now().Sub(r.breakerTripTime)
		if elapsedSinceTrip < r.cfg.CircuitBreakerResetInterval {
			cycleLogger.Warn("Circuit breaker is tripped. Skipping tracking cycle.", "tripped_since", elapsedSinceTrip.Round(time.Second), "reset_interval", r.cfg.CircuitBreakerResetInterval)
			r.metrics.TickSkipped()
			return
		}
		cycleLogger.Warn("Circuit breaker reset interval elapsed. Resetting breaker and proceeding.", "reset_interval", r.cfg.CircuitBreakerResetInterval)
		r.breakerTripped = false
		r.consecutiveFailures = 0
		r.metrics.SetBreakerTripped(false)
	}

	isOutage, err := r.outageChecker.IsOutage(r.ctx)
	if err != nil {
		cycleLogger.Error("Error checking for outage, skipping cycle", "error", err)
		isOutage = true
	}
	if isOutage {
		cycleLogger.Warn("Store outage detected (or check failed). Skipping tracking cycle.")
		r.metrics.TickSkipped()
		return
	}

	report, err := r.ticker.Tick(r.ctx)
	if errors.Is(err, tracking.ErrTickInProgress) {
		cycleLogger.Warn("Previous tracking tick still running, skipping.")
		return
	}
	failed := err != nil || report.Failed()
	if err != nil {
		cycleLogger.Error("Tracking tick failed", "error", err)
	}

	if !r.cfg.CircuitBreakerEnabled {
		return
	}
	if failed {
		r.consecutiveFailures++
		cycleLogger.Warn("Tracking tick had no successful checks", "consecutive_failures", r.consecutiveFailures, "threshold", r.cfg.CircuitBreakerThreshold)
		if r.consecutiveFailures >= r.cfg.CircuitBreakerThreshold && !r.breakerTripped {
			cycleLogger.Error("Circuit breaker threshold reached! Tripping breaker.", "threshold", r.cfg.CircuitBreakerThreshold, "reset_interval", r.cfg.CircuitBreakerResetInterval)
			r.breakerTripped = true
			r.breakerTripTime = r.clock.Now()
			r.metrics.SetBreakerTripped(true)
		}
		return
	}
	if r.consecutiveFailures > 0 {
		cycleLogger.Info("Tracking tick succeeded, resetting failure count.", "previous_failure_count", r.consecutiveFailures)
	}
	r.consecutiveFailures = 0
}

// runSweepCycle prunes history past the retention horizon. The circuit
// breaker does not gate sweeps.
func (r *Runner) runSweepCycle() {
	deleted, err := r.sweeper.Sweep(r.ctx, r.cfg.RetentionHorizon)
	switch {
	case errors.Is(err, tracking.ErrSweepInProgress):
		r.logger.Warn("Previous sweep still running, skipping.")
	case err != nil:
		r.logger.Error("Retention sweep failed", "error", err)
	default:
		r.logger.Debug("Retention sweep cycle finished", "deleted", deleted)
	}
}
