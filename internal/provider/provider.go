// Package provider holds rank.Provider implementations and decorators.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kyleseneker/rankwatch/internal/config"
	"github.com/kyleseneker/rankwatch/internal/rank"
)

// New builds the provider selected by cfg.ProviderType and wraps it with the
// configured rate limit and timeout.
func New(cfg *config.Config) (rank.Provider, error) {
	var p rank.Provider
	switch cfg.ProviderType {
	case "mock":
		p = NewMock()
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.ProviderType)
	}
	if cfg.ProviderRate > 0 {
		p = WithRateLimit(p, cfg.ProviderRate, cfg.ProviderBurst)
	}
	return WithTimeout(p, cfg.ProviderTimeout), nil
}

type timeoutProvider struct {
	next    rank.Provider
	timeout time.Duration
}

// WithTimeout bounds every Check to d. A call that overruns is reported as a
// ProviderError of KindTimeout rather than as a context error. A
// non-positive d disables the bound.
func WithTimeout(p rank.Provider, d time.Duration) rank.Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: d}
}

func (t *timeoutProvider) Check(ctx context.Context, keyword, domain string, maxPages int) (rank.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		res rank.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := t.next.Check(ctx, keyword, domain, maxPages)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && rank.ErrorKindOf(out.err) == rank.KindUnknown {
			return rank.Result{}, rank.NewProviderError(rank.KindTimeout, out.err)
		}
		return out.res, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return rank.Result{}, rank.NewProviderError(rank.KindTimeout, fmt.Errorf("check for %q exceeded %s", keyword, t.timeout))
		}
		return rank.Result{}, ctx.Err()
	}
}

type rateLimitedProvider struct {
	next    rank.Provider
	limiter *rate.Limiter
}

// WithRateLimit paces calls to p at rps checks per second with the given
// burst. Waiting honours the caller's context.
func WithRateLimit(p rank.Provider, rps float64, burst int) rank.Provider {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedProvider{next: p, limiter: rate.NewLimiter(limit, burst)}
}

func (r *rateLimitedProvider) Check(ctx context.Context, keyword, domain string, maxPages int) (rank.Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return rank.Result{}, ctx.Err()
		}
		return rank.Result{}, rank.NewProviderError(rank.KindQuota, fmt.Errorf("rate limit wait: %w", err))
	}
	return r.next.Check(ctx, keyword, domain, maxPages)
}
