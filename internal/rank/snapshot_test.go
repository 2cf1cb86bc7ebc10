package rank

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	t.Run("Items", func(t *testing.T) {
		items := []ResultItem{{Position: 1, Title: "Shoes", Link: "https://example.com/shoes", Snippet: "buy shoes"}}
		s := ItemsSnapshot(items)
		items[0].Title = "mutated"

		assert.True(t, s.Valid())
		assert.False(t, s.IsError())
		assert.Equal(t, "Shoes", s.Items()[0].Title, "snapshot keeps its own copy")
		assert.Empty(t, s.ErrorMessage())

		data, err := json.Marshal(s)
		require.NoError(t, err)
		assert.JSONEq(t, `{"items":[{"position":1,"title":"Shoes","link":"https://example.com/shoes","snippet":"buy shoes"}]}`, string(data))
	})

	t.Run("Empty Items Still Encode As Items", func(t *testing.T) {
		data, err := json.Marshal(ItemsSnapshot(nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"items":[]}`, string(data))
	})

	t.Run("Error", func(t *testing.T) {
		s := ErrorSnapshot("quota exceeded")
		assert.True(t, s.Valid())
		assert.True(t, s.IsError())
		assert.Nil(t, s.Items())
		assert.Equal(t, "quota exceeded", s.ErrorMessage())

		data, err := json.Marshal(s)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error":"quota exceeded"}`, string(data))
	})

	t.Run("Zero Value Is Invalid", func(t *testing.T) {
		var s Snapshot
		assert.False(t, s.Valid())
		_, err := json.Marshal(s)
		assert.Error(t, err)
	})

	t.Run("Decode Rejects Ambiguous Payloads", func(t *testing.T) {
		var s Snapshot
		err := json.Unmarshal([]byte(`{"items":[],"error":"boom"}`), &s)
		assert.ErrorContains(t, err, "both items and error")

		err = json.Unmarshal([]byte(`{}`), &s)
		assert.ErrorContains(t, err, "neither items nor error")
	})

	t.Run("Decode", func(t *testing.T) {
		var s Snapshot
		require.NoError(t, json.Unmarshal([]byte(`{"error":"timeout"}`), &s))
		assert.True(t, s.IsError())
		assert.Equal(t, "timeout", s.ErrorMessage())

		require.NoError(t, json.Unmarshal([]byte(`{"items":[{"position":3,"title":"t","link":"l","snippet":"s"}]}`), &s))
		assert.False(t, s.IsError())
		require.Len(t, s.Items(), 1)
		assert.Equal(t, 3, s.Items()[0].Position)
	})
}

func TestErrorKindOf(t *testing.T) {
	err := NewProviderError(KindQuota, assert.AnError)
	assert.Equal(t, KindQuota, ErrorKindOf(err))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "provider quota error")
	assert.Equal(t, KindUnknown, ErrorKindOf(assert.AnError))
}
