package tools

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/mikeboe/socrates/pkg/config"
	"github.com/mikeboe/socrates/pkg/research"
)

// New builds the search provider named by cfg.SearchProvider, rate limited
// when cfg.SearchRateLimit is positive.
func New(cfg *config.Config) (research.SearchProvider, error) {
	var p research.SearchProvider
	switch cfg.SearchProvider {
	case config.SearchSearXNG, "":
		p = NewSearXNG(cfg.SearXNGBaseURL, cfg.MaxSourcesPerQuestion)
	case config.SearchArxiv:
		p = NewArxiv(cfg.MaxSourcesPerQuestion)
	case config.SearchTavily:
		p = NewTavily(cfg.TavilyApiKey, "basic", cfg.MaxSourcesPerQuestion)
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.SearchProvider)
	}
	return WithRateLimit(p, cfg.SearchRateLimit), nil
}

type rateLimited struct {
	next    research.SearchProvider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so that at most perSecond searches start each second.
// A non-positive rate returns p unchanged.
func WithRateLimit(p research.SearchProvider, perSecond float64) research.SearchProvider {
	if perSecond <= 0 {
		return p
	}
	return &rateLimited{next: p, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

func (r *rateLimited) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}
	return r.next.Search(ctx, query)
}
