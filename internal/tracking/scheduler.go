// Package tracking runs rank checks for due items and prunes old history.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/kyleseneker/rankwatch/internal/clock"
	"github.com/kyleseneker/rankwatch/internal/logging"
	"github.com/kyleseneker/rankwatch/internal/metrics"
	"github.com/kyleseneker/rankwatch/internal/rank"
	"github.com/kyleseneker/rankwatch/internal/store"
)

// ErrTickInProgress is returned by Tick while another tick of the same
// scheduler is still running.
var ErrTickInProgress = errors.New("tick already in progress")

const (
	DefaultMaxPages      = 3
	DefaultSnapshotItems = 10
)

// Store is the persistence a Scheduler needs.
type Store interface {
	store.TrackedItemStore
	store.HistoryStore
}

// Options tunes a Scheduler. Zero values fall back to the defaults.
type Options struct {
	MaxPages      int
	SnapshotItems int
	Concurrency   int
}

// TickReport summarizes one tick. It is informational; the outcome of each
// check lives in the history store.
type TickReport struct {
	Items          int
	Due            int
	Checked        int
	NotFound       int
	ProviderErrors int
	StoreErrors    int
	Panics         int
	Cancelled      int
	Duration       time.Duration
}

// Failed reports whether the tick had due work and none of it succeeded.
func (r TickReport) Failed() bool {
	return r.Due > 0 && r.Checked == 0
}

// Scheduler checks every due tracked item against a rank provider.
type Scheduler struct {
	store    Store
	provider rank.Provider
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   logging.Logger

	maxPages      int
	snapshotItems int
	concurrency   int

	running atomic.Bool
}

// NewScheduler creates a Scheduler. A nil clock uses the system clock and a
// nil metrics records nothing.
func NewScheduler(st Store, provider rank.Provider, clk clock.Clock, m *metrics.Metrics, logger logging.Logger, opts Options) *Scheduler {
	if clk == nil {
		clk = clock.System{}
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.SnapshotItems <= 0 {
		opts.SnapshotItems = DefaultSnapshotItems
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Scheduler{
		store:         st,
		provider:      provider,
		clock:         clk,
		metrics:       m,
		logger:        logger.Named("scheduler"),
		maxPages:      opts.MaxPages,
		snapshotItems: opts.SnapshotItems,
		concurrency:   opts.Concurrency,
	}
}

type outcome int

const (
	outcomeNotDue outcome = iota
	outcomeRanked
	outcomeNotFound
	outcomeProviderError
	outcomeStoreError
	outcomePanic
	outcomeCancelled
)

// Tick loads every tracked item once and checks the ones that are due.
// Failures are contained per item; the only error returned is
// ErrTickInProgress, or a failure to list items at all.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.TickSkipped()
		return TickReport{}, ErrTickInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	tickLogger := s.logger.With("tick_start", s.clock.Now().Format(time.RFC3339))
	tickLogger.Debug("Starting tracking tick...")

	items, err := s.store.ListItems(ctx)
	if err != nil {
		tickLogger.Error("Failed to list tracked items", "error", err)
		return TickReport{}, fmt.Errorf("failed to list tracked items: %w", err)
	}

	var (
		mu     sync.Mutex
		report = TickReport{}
		seen   = make(map[string]struct{}, len(items))
	)
	p := pool.New().WithMaxGoroutines(s.concurrency)
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		report.Items++
		if ctx.Err() != nil {
			mu.Lock()
			report.Cancelled++
			mu.Unlock()
			continue
		}

		item := item
		p.Go(func() {
			res := s.checkItem(ctx, item, tickLogger)
			mu.Lock()
			report.record(res)
			mu.Unlock()
		})
	}
	p.Wait()

	report.Duration = time.Since(start)
	s.metrics.ObserveTick(report.Items, report.Duration)
	tickLogger.Info("Tracking tick finished",
		"items", report.Items,
		"due", report.Due,
		"checked", report.Checked,
		"provider_errors", report.ProviderErrors,
		"store_errors", report.StoreErrors,
		"panics", report.Panics,
		"cancelled", report.Cancelled,
		"duration", report.Duration.Round(time.Millisecond))
	return report, nil
}

func (r *TickReport) record(o outcome) {
	if o != outcomeNotDue && o != outcomeCancelled {
		r.Due++
	}
	switch o {
	case outcomeRanked:
		r.Checked++
	case outcomeNotFound:
		r.Checked++
		r.NotFound++
	case outcomeProviderError:
		r.ProviderErrors++
	case outcomeStoreError:
		r.StoreErrors++
	case outcomePanic:
		r.Panics++
	case outcomeCancelled:
		r.Cancelled++
	}
}

// checkItem runs one item to completion, converting a panic into an outcome.
func (s *Scheduler) checkItem(ctx context.Context, item rank.TrackedItem, tickLogger logging.Logger) outcome {
	itemLogger := tickLogger.With("item_id", item.ID, "keyword", item.Keyword, "domain", item.Domain)

	result := outcomePanic
	var pc panics.Catcher
	pc.Try(func() {
		result = s.processItem(ctx, item, itemLogger)
	})
	if r := pc.Recovered(); r != nil {
		itemLogger.Error("Panic while checking item", "panic", r.Value, "stack", string(r.Stack))
		return outcomePanic
	}
	return result
}

func (s *Scheduler) processItem(ctx context.Context, item rank.TrackedItem, itemLogger logging.Logger) outcome {
	if ctx.Err() != nil {
		return outcomeCancelled
	}
	last, found, err := s.store.MostRecent(ctx, item.ID)
	if err != nil {
		itemLogger.Error("Failed to load last check", "error", err)
		s.metrics.ObserveCheck(metrics.OutcomeStoreError)
		return outcomeStoreError
	}

	if !rank.IsDue(item.Frequency, last.CheckedAt, found, s.clock.Now()) {
		itemLogger.Debug("Item not due", "frequency", item.Frequency, "last_checked", last.CheckedAt)
		return outcomeNotDue
	}

	res, checkErr := s.provider.Check(ctx, item.Keyword, item.Domain, s.maxPages)
	if ctx.Err() != nil {
		// Shutdown is not a provider failure; the item stays due.
		itemLogger.Debug("Tick cancelled, dropping check", "error", checkErr)
		return outcomeCancelled
	}
	if checkErr == nil && res.Position != nil && *res.Position < 1 {
		checkErr = rank.NewProviderError(rank.KindParse, fmt.Errorf("invalid position %d", *res.Position))
	}

	var (
		position *int
		snapshot rank.Snapshot
		result   outcome
	)
	if checkErr != nil {
		itemLogger.Warn("Rank check failed", "error", checkErr, "kind", rank.ErrorKindOf(checkErr))
		snapshot = rank.ErrorSnapshot(checkErr.Error())
		result = outcomeProviderError
	} else {
		position = res.Position
		snapshot = rank.ItemsSnapshot(s.truncate(res.Items))
		result = outcomeRanked
		if position == nil {
			result = outcomeNotFound
		}
	}

	if _, err := s.store.AppendRecord(ctx, item.ID, position, snapshot, s.clock.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			itemLogger.Warn("Item deleted during check, dropping result")
		} else {
			itemLogger.Error("Failed to record rank check", "error", err)
		}
		s.metrics.ObserveCheck(metrics.OutcomeStoreError)
		return outcomeStoreError
	}

	switch result {
	case outcomeRanked:
		itemLogger.Info("Recorded rank", "position", *position)
		s.metrics.ObserveCheck(metrics.OutcomeRanked)
	case outcomeNotFound:
		itemLogger.Info("Domain not ranked within scanned pages", "max_pages", s.maxPages)
		s.metrics.ObserveCheck(metrics.OutcomeNotFound)
	default:
		s.metrics.ObserveCheck(metrics.OutcomeProviderError)
	}
	return result
}

func (s *Scheduler) truncate(items []rank.ResultItem) []rank.ResultItem {
	if len(items) > s.snapshotItems {
		return items[:s.snapshotItems]
	}
	return items
}
