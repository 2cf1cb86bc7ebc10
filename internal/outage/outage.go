package outage

import (
	"context"
	"fmt"
	"time"

	"github.com/kyleseneker/rankwatch/internal/logging"
)

// OutageChecker defines the interface for checking system health.
type OutageChecker interface {
	// IsOutage returns true if the system is considered to be in an outage state.
	IsOutage(ctx context.Context) (bool, error)
}

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// --- Store Health Checker ---

// StoreOutageChecker treats an unreachable store as an outage, since no
// check result could be recorded.
type StoreOutageChecker struct {
	store   Pinger
	timeout time.Duration
	logger  logging.Logger
}

// NewStoreOutageChecker creates a new checker. Each probe is bounded by timeout.
func NewStoreOutageChecker(store Pinger, timeout time.Duration, logger logging.Logger) *StoreOutageChecker {
	return &StoreOutageChecker{
		store:   store,
		timeout: timeout,
		logger:  logger.Named("store_outage_checker"),
	}
}

// IsOutage pings the store.
func (c *StoreOutageChecker) IsOutage(ctx context.Context) (bool, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.store.Ping(ctx); err != nil {
		c.logger.Warn("Outage detected: store unreachable", "error", err)
		return true, fmt.Errorf("store unreachable: %w", err)
	}
	c.logger.Debug("Store health check passed.")
	return false, nil
}

// --- Noop Checker ---

// NoopOutageChecker always returns false (no outage).
type NoopOutageChecker struct{}

// NewNoopOutageChecker creates a checker that never detects an outage.
func NewNoopOutageChecker() *NoopOutageChecker {
	return &NoopOutageChecker{}
}

// IsOutage always returns false.
func (c *NoopOutageChecker) IsOutage(context.Context) (bool, error) {
	return false, nil
}
