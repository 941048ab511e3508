// Package search implements the synchronous lead-search path: tenant rate
// limiting, a shared 24h result cache, the two-phase provider call, and
// pagination metadata.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/cache"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/ratelimit"
	"github.com/sells-group/prospect-cli/pkg/contactout"
)

const cacheResource = "search"

// Config bounds the search client.
type Config struct {
	// PageSizeCap is the server-side page size ceiling, applied regardless
	// of what the caller requests. Default 25.
	PageSizeCap int
	// MaxPages is the provider-imposed pagination ceiling. Default 500.
	MaxPages int
	// CacheTTL is how long assembled pages stay cached. Default 24h.
	CacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.PageSizeCap <= 0 {
		c.PageSizeCap = 25
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 500
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	return c
}

// Request is one lead-search page request.
type Request struct {
	TenantID string  `json:"tenant_id"`
	Filters  Filters `json:"filters"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// Response is one assembled page of results. Degraded means the bulk detail
// call failed and the results are obfuscated previews.
type Response struct {
	Results    []contactout.Person `json:"results"`
	Pagination model.Pagination    `json:"pagination"`
	Cached     bool                `json:"cached"`
	Degraded   bool                `json:"degraded,omitempty"`
}

// RateLimitError rejects a request that exceeded the tenant's budget.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("search: tenant rate limit exceeded, retry after %s", e.ResetAt.Format(time.RFC3339))
}

// RetryAfter returns the wait duration rounded up to a whole second, never
// less than one second.
func (e *RateLimitError) RetryAfter(now time.Time) time.Duration {
	d := e.ResetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d.Round(time.Second)
}

// Client executes lead searches against the provider.
type Client struct {
	provider contactout.Client
	limiter  *ratelimit.Limiter
	cache    cache.Cache
	cfg      Config
}

// NewClient assembles a search client.
func NewClient(provider contactout.Client, limiter *ratelimit.Limiter, c cache.Cache, cfg Config) *Client {
	return &Client{
		provider: provider,
		limiter:  limiter,
		cache:    c,
		cfg:      cfg.withDefaults(),
	}
}

// Search runs one page of lead search. Rate-limit rejections return a
// *RateLimitError; everything else is either a page or a provider error.
func (c *Client) Search(ctx context.Context, req Request) (*Response, error) {
	if req.TenantID == "" {
		return nil, eris.New("search: missing tenant id")
	}

	if ok, resetAt := c.limiter.Allow(req.TenantID); !ok {
		return nil, &RateLimitError{ResetAt: resetAt}
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > c.cfg.PageSizeCap {
		req.PageSize = c.cfg.PageSizeCap
	}

	key := req.Filters.fingerprint(req.Page, req.PageSize)
	if raw, ok := c.cache.Get(ctx, req.TenantID, cacheResource, key); ok {
		var resp Response
		if err := json.Unmarshal(raw, &resp); err == nil {
			resp.Cached = true
			return &resp, nil
		}
		zap.L().Warn("search: dropping unreadable cache entry", zap.String("tenant_id", req.TenantID))
	}

	preview, err := c.provider.Search(ctx, contactout.SearchRequest{
		Page:     req.Page,
		PageSize: req.PageSize,
		Params:   req.Filters.translate(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: provider search")
	}

	resp := &Response{
		Results:    preview.Profiles,
		Pagination: model.CalculatePagination(preview.TotalResults, req.Page, req.PageSize, c.cfg.MaxPages),
	}

	if len(preview.Profiles) > 0 {
		ids := make([]string, 0, len(preview.Profiles))
		for _, p := range preview.Profiles {
			ids = append(ids, p.ID)
		}
		details, err := c.provider.BulkDetails(ctx, ids)
		if err != nil {
			// Previews are still useful; serve them rather than failing.
			zap.L().Warn("search: bulk detail failed, degrading to previews",
				zap.String("tenant_id", req.TenantID),
				zap.Error(err),
			)
			resp.Degraded = true
		} else {
			resp.Results = mergeDetails(preview.Profiles, details)
		}
	}

	// Degraded pages are not cached: the next request should retry the
	// detail call instead of serving masked previews for the full TTL.
	if !resp.Degraded {
		if raw, err := json.Marshal(resp); err == nil {
			c.cache.Set(ctx, req.TenantID, cacheResource, key, raw, c.cfg.CacheTTL)
		}
	}
	return resp, nil
}

// mergeDetails replaces previews with their materialized details, keeping
// preview order. Ids the detail call did not return stay obfuscated.
func mergeDetails(previews []contactout.Person, details []contactout.Person) []contactout.Person {
	byID := make(map[string]contactout.Person, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}
	out := make([]contactout.Person, 0, len(previews))
	for _, p := range previews {
		if d, ok := byID[p.ID]; ok {
			out = append(out, d)
		} else {
			out = append(out, p)
		}
	}
	return out
}
