package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleseneker/rankwatch/internal/logging"
	"github.com/kyleseneker/rankwatch/internal/rank"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { db.Close() })

	return newSQLStore(sqlx.NewDb(db, "postgres"), logging.NewNull()), mock
}

func TestSQLStorePostgres(t *testing.T) {
	ctx := context.Background()
	checkedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("CreateItem", func(t *testing.T) {
		s, mock := newMockStore(t)
		s.now = func() time.Time { return checkedAt }

		mock.ExpectExec(`INSERT INTO tracked_items \(id, domain, keyword, frequency, created_at\) VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
			WithArgs(sqlmock.AnyArg(), "example.com", "shoes", "daily", checkedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		item, err := s.CreateItem(ctx, "example.com", "shoes", rank.Frequency("nope"))
		require.NoError(t, err)
		assert.Equal(t, rank.Daily, item.Frequency)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetItem Not Found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM tracked_items WHERE id = \$1`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetItem(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UpdateItem Not Found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE tracked_items SET domain = \$1, keyword = \$2, frequency = \$3 WHERE id = \$4`).
			WithArgs("example.com", "shoes", "weekly", "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := s.UpdateItem(ctx, "missing", "example.com", "shoes", rank.Weekly)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteItem Cascades In Transaction", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM rank_history WHERE tracked_item_id = \$1`).
			WithArgs("item-1").
			WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectExec(`DELETE FROM tracked_items WHERE id = \$1`).
			WithArgs("item-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.DeleteItem(ctx, "item-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteItem Missing Rolls Back", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM rank_history`).WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM tracked_items`).WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		assert.ErrorIs(t, s.DeleteItem(ctx, "missing"), ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AppendRecord", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT 1 FROM tracked_items WHERE id = \$1`).
			WithArgs("item-1").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
		mock.ExpectExec(`INSERT INTO rank_history \(id, tracked_item_id, position, snapshot, checked_at\) VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
			WithArgs(sqlmock.AnyArg(), "item-1", sqlmock.AnyArg(), `{"error":"quota exceeded"}`, checkedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rec, err := s.AppendRecord(ctx, "item-1", nil, rank.ErrorSnapshot("quota exceeded"), checkedAt)
		require.NoError(t, err)
		assert.Equal(t, "item-1", rec.TrackedItemID)
		assert.Nil(t, rec.Position)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AppendRecord Unknown Item", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT 1 FROM tracked_items`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
		mock.ExpectRollback()

		_, err := s.AppendRecord(ctx, "missing", rank.IntPtr(1), rank.ItemsSnapshot(nil), checkedAt)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MostRecent", func(t *testing.T) {
		s, mock := newMockStore(t)
		rows := sqlmock.NewRows([]string{"id", "tracked_item_id", "position", "snapshot", "checked_at"}).
			AddRow("rec-1", "item-1", 7, `{"items":[{"position":7,"title":"Shoes","link":"https://example.com","snippet":""}]}`, checkedAt)
		mock.ExpectQuery(`SELECT (.+) FROM rank_history WHERE tracked_item_id = \$1 ORDER BY checked_at DESC LIMIT 1`).
			WithArgs("item-1").
			WillReturnRows(rows)

		rec, found, err := s.MostRecent(ctx, "item-1")
		require.NoError(t, err)
		require.True(t, found)
		require.NotNil(t, rec.Position)
		assert.Equal(t, 7, *rec.Position)
		assert.Len(t, rec.Snapshot.Items(), 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MostRecent No History", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM rank_history`).
			WithArgs("item-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "tracked_item_id", "position", "snapshot", "checked_at"}))

		_, found, err := s.MostRecent(ctx, "item-1")
		require.NoError(t, err)
		assert.False(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ListRecords Default Limit", func(t *testing.T) {
		s, mock := newMockStore(t)
		rows := sqlmock.NewRows([]string{"id", "tracked_item_id", "position", "snapshot", "checked_at"}).
			AddRow("rec-2", "item-1", nil, `{"error":"timeout"}`, checkedAt.Add(time.Hour)).
			AddRow("rec-1", "item-1", 3, `{"items":[]}`, checkedAt)
		mock.ExpectQuery(`SELECT (.+) FROM rank_history WHERE tracked_item_id = \$1 ORDER BY checked_at DESC LIMIT \$2`).
			WithArgs("item-1", DefaultListLimit).
			WillReturnRows(rows)

		recs, err := s.ListRecords(ctx, "item-1", 0)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Nil(t, recs[0].Position)
		assert.Equal(t, "timeout", recs[0].Snapshot.ErrorMessage())
		assert.Equal(t, 3, *recs[1].Position)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ListRecords Corrupt Snapshot", func(t *testing.T) {
		s, mock := newMockStore(t)
		rows := sqlmock.NewRows([]string{"id", "tracked_item_id", "position", "snapshot", "checked_at"}).
			AddRow("rec-1", "item-1", 3, `{"items":[],"error":"both"}`, checkedAt)
		mock.ExpectQuery(`SELECT (.+) FROM rank_history`).WillReturnRows(rows)

		_, err := s.ListRecords(ctx, "item-1", 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rec-1")
	})

	t.Run("DeleteOlderThan", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`DELETE FROM rank_history WHERE checked_at < \$1`).
			WithArgs(checkedAt).
			WillReturnResult(sqlmock.NewResult(0, 12))

		n, err := s.DeleteOlderThan(ctx, checkedAt)
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteOlderThan Error", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`DELETE FROM rank_history`).WillReturnError(assert.AnError)

		_, err := s.DeleteOlderThan(ctx, checkedAt)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestSQLStorePing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := newSQLStore(sqlx.NewDb(db, "postgres"), logging.NewNull())

	mock.ExpectPing().WillReturnError(assert.AnError)
	err = s.Ping(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewSQLStore("mysql", "dsn", logging.NewNull())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported SQL driver")
}
