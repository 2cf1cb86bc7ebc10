package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kyleseneker/rankwatch/internal/clock"
	"github.com/kyleseneker/rankwatch/internal/logging"
	"github.com/kyleseneker/rankwatch/internal/metrics"
	"github.com/kyleseneker/rankwatch/internal/store"
)

// DefaultRetentionHorizon applies when Sweep is called without a horizon.
const DefaultRetentionHorizon = 7 * 24 * time.Hour

// ErrSweepInProgress is returned by Sweep while another sweep of the same
// sweeper is still running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Sweeper deletes history older than a retention horizon.
type Sweeper struct {
	history store.HistoryStore
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  logging.Logger

	running atomic.Bool
}

// NewSweeper creates a Sweeper.
func NewSweeper(history store.HistoryStore, clk clock.Clock, m *metrics.Metrics, logger logging.Logger) *Sweeper {
	if clk == nil {
		clk = clock.System{}
	}
	return &Sweeper{
		history: history,
		clock:   clk,
		metrics: m,
		logger:  logger.Named("sweeper"),
	}
}

// Sweep removes every record checked before now minus horizon and returns
// how many were deleted. A non-positive horizon means DefaultRetentionHorizon.
// No record is kept back for being an item's latest.
func (s *Sweeper) Sweep(ctx context.Context, horizon time.Duration) (int64, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer s.running.Store(false)

	if horizon <= 0 {
		horizon = DefaultRetentionHorizon
	}
	cutoff := s.clock.Now().Add(-horizon)

	deleted, err := s.history.DeleteOlderThan(ctx, cutoff)
	s.metrics.ObserveSweep(deleted, err)
	if err != nil {
		s.logger.Error("Retention sweep failed", "cutoff", cutoff.Format(time.RFC3339), "error", err)
		return 0, fmt.Errorf("failed to delete records older than %s: %w", cutoff.Format(time.RFC3339), err)
	}

	s.logger.Info("Retention sweep finished", "horizon", horizon, "cutoff", cutoff.Format(time.RFC3339), "deleted", deleted)
	return deleted, nil
}
