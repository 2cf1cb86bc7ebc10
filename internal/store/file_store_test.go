package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleseneker/rankwatch/internal/logging"
	"github.com/kyleseneker/rankwatch/internal/rank"
)

func TestFileStorePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rankwatch.json")
	checkedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	s, err := NewFileStore(path, logging.NewNull())
	require.NoError(t, err)
	item, err := s.CreateItem(ctx, "example.com", "shoes", rank.Weekly)
	require.NoError(t, err)
	_, err = s.AppendRecord(ctx, item.ID, nil, rank.ErrorSnapshot("network down"), checkedAt)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	reloaded, err := NewFileStore(path, logging.NewNull())
	require.NoError(t, err)

	got, err := reloaded.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, rank.Weekly, got.Frequency)

	rec, found, err := reloaded.MostRecent(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, rec.Position)
	assert.Equal(t, "network down", rec.Snapshot.ErrorMessage())
	assert.True(t, rec.CheckedAt.Equal(checkedAt))
}

func TestFileStoreLoad(t *testing.T) {
	t.Run("Empty File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(path, nil, 0o600))
		s, err := NewFileStore(path, logging.NewNull())
		require.NoError(t, err)
		items, err := s.ListItems(context.Background())
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("Corrupt File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
		_, err := NewFileStore(path, logging.NewNull())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load store")
	})

	t.Run("Orphaned Records Are Dropped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "orphans.json")
		content := `{
			"items": [],
			"records": [{"id": "r1", "tracked_item_id": "gone", "position": 3, "snapshot": {"items": []}, "checked_at": "2026-05-01T10:00:00Z"}]
		}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		s, err := NewFileStore(path, logging.NewNull())
		require.NoError(t, err)
		_, found, err := s.MostRecent(context.Background(), "gone")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestFileStoreRejectsEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(logging.NewNull())
	item, err := s.CreateItem(ctx, "example.com", "shoes", rank.Daily)
	require.NoError(t, err)
	_, err = s.AppendRecord(ctx, item.ID, nil, rank.Snapshot{}, time.Now())
	assert.Error(t, err)
}
