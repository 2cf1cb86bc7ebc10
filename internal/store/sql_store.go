package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/kyleseneker/rankwatch/internal/logging"
	"github.com/kyleseneker/rankwatch/internal/rank"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Ensure SQLStore implements Store.
var _ Store = (*SQLStore)(nil)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tracked_items (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		keyword TEXT NOT NULL,
		frequency VARCHAR(16) NOT NULL DEFAULT 'daily',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rank_history (
		id TEXT PRIMARY KEY,
		tracked_item_id TEXT NOT NULL REFERENCES tracked_items (id) ON DELETE CASCADE,
		position INTEGER,
		snapshot TEXT NOT NULL,
		checked_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rank_history_item_checked_at ON rank_history (tracked_item_id, checked_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_rank_history_checked_at ON rank_history (checked_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tracked_items (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		keyword TEXT NOT NULL,
		frequency TEXT NOT NULL DEFAULT 'daily',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rank_history (
		id TEXT PRIMARY KEY,
		tracked_item_id TEXT NOT NULL REFERENCES tracked_items (id) ON DELETE CASCADE,
		position INTEGER,
		snapshot TEXT NOT NULL,
		checked_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rank_history_item_checked_at ON rank_history (tracked_item_id, checked_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_rank_history_checked_at ON rank_history (checked_at)`,
}

type itemRow struct {
	ID        string    `db:"id"`
	Domain    string    `db:"domain"`
	Keyword   string    `db:"keyword"`
	Frequency string    `db:"frequency"`
	CreatedAt time.Time `db:"created_at"`
}

func (r itemRow) toItem() rank.TrackedItem {
	return rank.TrackedItem{
		ID:        r.ID,
		Domain:    r.Domain,
		Keyword:   r.Keyword,
		Frequency: rank.ParseFrequency(r.Frequency),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type recordRow struct {
	ID            string        `db:"id"`
	TrackedItemID string        `db:"tracked_item_id"`
	Position      sql.NullInt64 `db:"position"`
	Snapshot      string        `db:"snapshot"`
	CheckedAt     time.Time     `db:"checked_at"`
}

func (r recordRow) toRecord() (rank.Record, error) {
	rec := rank.Record{
		ID:            r.ID,
		TrackedItemID: r.TrackedItemID,
		CheckedAt:     r.CheckedAt.UTC(),
	}
	if r.Position.Valid {
		rec.Position = rank.IntPtr(int(r.Position.Int64))
	}
	if err := json.Unmarshal([]byte(r.Snapshot), &rec.Snapshot); err != nil {
		return rank.Record{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	return rec, nil
}

const (
	itemColumns   = `id, domain, keyword, frequency, created_at`
	recordColumns = `id, tracked_item_id, position, snapshot, checked_at`
)

// SQLStore persists items and history to PostgreSQL or SQLite.
type SQLStore struct {
	db     *sqlx.DB
	now    func() time.Time
	logger logging.Logger
}

// NewSQLStore opens a database using driver ("postgres" or "sqlite"), checks
// connectivity and creates the schema if needed.
func NewSQLStore(driver, dsn string, logger logging.Logger) (*SQLStore, error) {
	var schema []string
	switch driver {
	case "postgres":
		schema = postgresSchema
	case "sqlite":
		schema = sqliteSchema
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQL database: %w", err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to SQL database: %w", err)
	}

	s := newSQLStore(db, logger)
	if err := s.ensureSchema(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	s.logger.Info("SQL store initialized successfully.", "driver", driver)
	return s, nil
}

func newSQLStore(db *sqlx.DB, logger logging.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Named("sql_store"),
	}
}

func (s *SQLStore) ensureSchema(statements []string) error {
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// CreateItem inserts a new tracked item.
func (s *SQLStore) CreateItem(ctx context.Context, domain, keyword string, freq rank.Frequency) (rank.TrackedItem, error) {
	item := rank.TrackedItem{
		ID:        uuid.NewString(),
		Domain:    domain,
		Keyword:   keyword,
		Frequency: rank.ParseFrequency(string(freq)),
		CreatedAt: s.now(),
	}
	query := s.db.Rebind(`INSERT INTO tracked_items (` + itemColumns + `) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, item.ID, item.Domain, item.Keyword, string(item.Frequency), item.CreatedAt); err != nil {
		return rank.TrackedItem{}, fmt.Errorf("failed to insert tracked item: %w", err)
	}
	s.logger.Debug("Created tracked item", "item_id", item.ID, "domain", domain, "keyword", keyword)
	return item, nil
}

// GetItem loads a tracked item by ID.
func (s *SQLStore) GetItem(ctx context.Context, id string) (rank.TrackedItem, error) {
	var row itemRow
	query := s.db.Rebind(`SELECT ` + itemColumns + ` FROM tracked_items WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rank.TrackedItem{}, ErrNotFound
		}
		return rank.TrackedItem{}, fmt.Errorf("failed to get tracked item: %w", err)
	}
	return row.toItem(), nil
}

// ListItems returns every tracked item, oldest first.
func (s *SQLStore) ListItems(ctx context.Context) ([]rank.TrackedItem, error) {
	rows := []itemRow{}
	query := `SELECT ` + itemColumns + ` FROM tracked_items ORDER BY created_at, id`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list tracked items: %w", err)
	}
	items := make([]rank.TrackedItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toItem())
	}
	return items, nil
}

// UpdateItem changes an item's domain, keyword and frequency.
func (s *SQLStore) UpdateItem(ctx context.Context, id, domain, keyword string, freq rank.Frequency) (rank.TrackedItem, error) {
	query := s.db.Rebind(`UPDATE tracked_items SET domain = ?, keyword = ?, frequency = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, domain, keyword, string(rank.ParseFrequency(string(freq))), id)
	if err != nil {
		return rank.TrackedItem{}, fmt.Errorf("failed to update tracked item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return rank.TrackedItem{}, fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return rank.TrackedItem{}, ErrNotFound
	}
	return s.GetItem(ctx, id)
}

// DeleteItem removes an item and its history in one transaction.
func (s *SQLStore) DeleteItem(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM rank_history WHERE tracked_item_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete rank history: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tracked_items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete tracked item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	s.logger.Debug("Deleted tracked item", "item_id", id)
	return nil
}

// AppendRecord stores a record for an existing item.
func (s *SQLStore) AppendRecord(ctx context.Context, itemID string, position *int, snapshot rank.Snapshot, checkedAt time.Time) (rank.Record, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return rank.Record{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	rec := rank.Record{
		ID:            uuid.NewString(),
		TrackedItemID: itemID,
		Position:      copyPosition(position),
		Snapshot:      snapshot,
		CheckedAt:     checkedAt.UTC(),
	}
	var pos sql.NullInt64
	if position != nil {
		pos = sql.NullInt64{Int64: int64(*position), Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return rank.Record{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT 1 FROM tracked_items WHERE id = ?`), itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rank.Record{}, ErrNotFound
		}
		return rank.Record{}, fmt.Errorf("failed to look up tracked item: %w", err)
	}
	query := tx.Rebind(`INSERT INTO rank_history (` + recordColumns + `) VALUES (?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, rec.ID, itemID, pos, string(payload), rec.CheckedAt); err != nil {
		return rank.Record{}, fmt.Errorf("failed to insert rank record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return rank.Record{}, fmt.Errorf("failed to commit rank record: %w", err)
	}
	return rec, nil
}

// MostRecent returns the newest record for an item.
func (s *SQLStore) MostRecent(ctx context.Context, itemID string) (rank.Record, bool, error) {
	var row recordRow
	query := s.db.Rebind(`SELECT ` + recordColumns + ` FROM rank_history WHERE tracked_item_id = ? ORDER BY checked_at DESC LIMIT 1`)
	if err := s.db.GetContext(ctx, &row, query, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rank.Record{}, false, nil
		}
		return rank.Record{}, false, fmt.Errorf("failed to query most recent record: %w", err)
	}
	rec, err := row.toRecord()
	if err != nil {
		return rank.Record{}, false, err
	}
	return rec, true, nil
}

// ListRecords returns up to limit records for an item, newest first.
func (s *SQLStore) ListRecords(ctx context.Context, itemID string, limit int) ([]rank.Record, error) {
	rows := []recordRow{}
	query := s.db.Rebind(`SELECT ` + recordColumns + ` FROM rank_history WHERE tracked_item_id = ? ORDER BY checked_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, itemID, normalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list rank records: %w", err)
	}
	recs := make([]rank.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// DeleteOlderThan removes every record checked before cutoff.
func (s *SQLStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM rank_history WHERE checked_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old rank records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		s.logger.Info("Closing SQL store database connection...")
		return s.db.Close()
	}
	return nil
}
