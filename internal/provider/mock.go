package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/kyleseneker/rankwatch/internal/rank"
)

// resultsPerPage mirrors a search engine results page.
const resultsPerPage = 10

// Ensure Mock implements rank.Provider.
var _ rank.Provider = (*Mock)(nil)

// Mock is a deterministic provider. The same (keyword, domain) pair always
// produces the same position and result list, so runs are reproducible.
type Mock struct {
	mu        sync.Mutex
	failures  map[string]*rank.ProviderError
	unranked  map[string]bool
	calls     map[string]int
	callOrder []string
}

// NewMock returns an empty Mock.
func NewMock() *Mock {
	return &Mock{
		failures: make(map[string]*rank.ProviderError),
		unranked: make(map[string]bool),
		calls:    make(map[string]int),
	}
}

// FailKeyword makes every check for keyword fail with the given kind.
func (m *Mock) FailKeyword(keyword string, kind rank.ErrorKind, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[keyword] = rank.NewProviderError(kind, fmt.Errorf("%s", msg))
}

// NeverRank makes keyword return results that never include the domain.
func (m *Mock) NeverRank(keyword string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unranked[keyword] = true
}

// Calls returns how many times keyword has been checked.
func (m *Mock) Calls(keyword string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[keyword]
}

// TotalCalls returns the number of checks performed.
func (m *Mock) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callOrder)
}

// Check synthesizes a result page set for keyword. The domain ranks at a
// hash-derived position within maxPages pages unless configured otherwise.
func (m *Mock) Check(ctx context.Context, keyword, domain string, maxPages int) (rank.Result, error) {
	if err := ctx.Err(); err != nil {
		return rank.Result{}, rank.NewProviderError(rank.KindNetwork, err)
	}

	m.mu.Lock()
	m.calls[keyword]++
	m.callOrder = append(m.callOrder, keyword)
	failure := m.failures[keyword]
	unranked := m.unranked[keyword]
	m.mu.Unlock()

	if failure != nil {
		return rank.Result{}, failure
	}
	if maxPages < 1 {
		maxPages = 1
	}

	total := maxPages * resultsPerPage
	target := 0
	if !unranked {
		target = int(hashPair(keyword, domain)%uint32(total)) + 1
	}

	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(keyword)), " ", "-")
	var res rank.Result
	for pos := 1; pos <= total; pos++ {
		item := rank.ResultItem{
			Position: pos,
			Title:    fmt.Sprintf("%s result %d", keyword, pos),
			Link:     fmt.Sprintf("https://site%d.example.net/%s", pos, slug),
			Snippet:  fmt.Sprintf("Result %d for %s.", pos, keyword),
		}
		if pos == target {
			item.Title = fmt.Sprintf("%s | %s", keyword, domain)
			item.Link = fmt.Sprintf("https://%s/%s", domain, slug)
		}
		res.Items = append(res.Items, item)
		if pos == target {
			// The scan stops at the first match, like paging through results.
			res.Position = rank.IntPtr(pos)
			break
		}
	}
	return res, nil
}

func hashPair(keyword, domain string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(keyword)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.ToLower(domain)))
	return h.Sum32()
}
