package rank

import (
	"encoding/json"
	"errors"
	"fmt"
)

type snapshotKind uint8

const (
	snapshotItems snapshotKind = iota + 1
	snapshotError
)

// Snapshot is the payload stored with a Record: either the observed result
// items or the provider error, never both. The zero value is invalid.
type Snapshot struct {
	kind  snapshotKind
	items []ResultItem
	err   string
}

// ItemsSnapshot returns a snapshot holding the observed result items.
func ItemsSnapshot(items []ResultItem) Snapshot {
	cp := make([]ResultItem, len(items))
	copy(cp, items)
	return Snapshot{kind: snapshotItems, items: cp}
}

// ErrorSnapshot returns a snapshot holding a provider failure message.
func ErrorSnapshot(msg string) Snapshot {
	return Snapshot{kind: snapshotError, err: msg}
}

// IsError reports whether the snapshot records a failed check.
func (s Snapshot) IsError() bool { return s.kind == snapshotError }

// Valid reports whether s was built by ItemsSnapshot or ErrorSnapshot.
func (s Snapshot) Valid() bool { return s.kind == snapshotItems || s.kind == snapshotError }

// Items returns the result items, or nil for an error snapshot.
func (s Snapshot) Items() []ResultItem {
	if s.kind != snapshotItems {
		return nil
	}
	return s.items
}

// ErrorMessage returns the recorded failure message, or "" for an items
// snapshot.
func (s Snapshot) ErrorMessage() string {
	if s.kind != snapshotError {
		return ""
	}
	return s.err
}

type snapshotJSON struct {
	Items *[]ResultItem `json:"items,omitempty"`
	Error *string       `json:"error,omitempty"`
}

// MarshalJSON encodes s as {"items":[...]} or {"error":"..."}.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case snapshotItems:
		items := s.items
		if items == nil {
			items = []ResultItem{}
		}
		return json.Marshal(snapshotJSON{Items: &items})
	case snapshotError:
		msg := s.err
		return json.Marshal(snapshotJSON{Error: &msg})
	default:
		return nil, errors.New("cannot marshal empty snapshot")
	}
}

// UnmarshalJSON decodes a snapshot, rejecting payloads that carry both items
// and an error, or neither.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	switch {
	case raw.Items != nil && raw.Error != nil:
		return errors.New("snapshot has both items and error")
	case raw.Items != nil:
		*s = ItemsSnapshot(*raw.Items)
	case raw.Error != nil:
		*s = ErrorSnapshot(*raw.Error)
	default:
		return errors.New("snapshot has neither items nor error")
	}
	return nil
}
