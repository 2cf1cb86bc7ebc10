// Package store persists tracked items and their rank-check history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kyleseneker/rankwatch/internal/rank"
)

// ErrNotFound is returned when a tracked item does not exist.
var ErrNotFound = errors.New("tracked item not found")

// DefaultListLimit caps ListRecords when the caller passes no limit.
const DefaultListLimit = 100

// TrackedItemStore manages tracked item registrations.
type TrackedItemStore interface {
	CreateItem(ctx context.Context, domain, keyword string, freq rank.Frequency) (rank.TrackedItem, error)
	GetItem(ctx context.Context, id string) (rank.TrackedItem, error)
	// ListItems returns every tracked item, oldest registration first.
	ListItems(ctx context.Context) ([]rank.TrackedItem, error)
	UpdateItem(ctx context.Context, id, domain, keyword string, freq rank.Frequency) (rank.TrackedItem, error)
	// DeleteItem removes the item together with all of its history.
	DeleteItem(ctx context.Context, id string) error
}

// HistoryStore manages rank-check records.
type HistoryStore interface {
	// AppendRecord stores a new record for an existing item.
	AppendRecord(ctx context.Context, itemID string, position *int, snapshot rank.Snapshot, checkedAt time.Time) (rank.Record, error)
	// MostRecent returns the latest record for an item. The bool is false
	// when the item has no history.
	MostRecent(ctx context.Context, itemID string) (rank.Record, bool, error)
	// ListRecords returns up to limit records, newest first.
	ListRecords(ctx context.Context, itemID string, limit int) ([]rank.Record, error)
	// DeleteOlderThan removes records checked strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store combines both contracts with lifecycle management.
type Store interface {
	TrackedItemStore
	HistoryStore
	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
