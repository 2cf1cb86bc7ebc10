package rank

import (
	"context"
	"time"
)

// TrackedItem is a (domain, keyword) pair under continuous rank monitoring.
type TrackedItem struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	Keyword   string    `json:"keyword"`
	Frequency Frequency `json:"frequency"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultItem is one observed search result.
type ResultItem struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

// Result is what a Provider observed for one keyword. Position is nil when the
// domain was not found among Items.
type Result struct {
	Position *int
	Items    []ResultItem
}

// Record is one persisted rank check for a tracked item.
type Record struct {
	ID            string    `json:"id"`
	TrackedItemID string    `json:"tracked_item_id"`
	Position      *int      `json:"position"`
	Snapshot      Snapshot  `json:"snapshot"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Provider looks up where domain ranks for keyword, scanning at most maxPages
// result pages. Not finding the domain is not an error. Failures to obtain
// results should be returned as *ProviderError.
type Provider interface {
	Check(ctx context.Context, keyword, domain string, maxPages int) (Result, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, keyword, domain string, maxPages int) (Result, error)

// Check calls f.
func (f ProviderFunc) Check(ctx context.Context, keyword, domain string, maxPages int) (Result, error) {
	return f(ctx, keyword, domain, maxPages)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
