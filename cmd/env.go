package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/cache"
	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/ratelimit"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/search"
	"github.com/sells-group/prospect-cli/internal/source"
	"github.com/sells-group/prospect-cli/internal/store"
	anthropicpkg "github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/contactout"
	"github.com/sells-group/prospect-cli/pkg/edgar"
	"github.com/sells-group/prospect-cli/pkg/exa"
)

// appEnv holds the initialized store, clients, and engines shared by the
// serve/enrich/search commands.
type appEnv struct {
	Store    store.Store
	Registry *source.Registry
	Pool     *enrich.Pool
	Search   *search.Client
	Cache    cache.Cache
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Pool != nil {
		e.Pool.Wait()
	}
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initCache returns the Redis-backed result cache, falling back to the
// in-process backend when Redis is not configured or not reachable.
func initCache(ctx context.Context) cache.Cache {
	if cfg.Redis.Addr == "" {
		return cache.NewLocal()
	}
	c, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		zap.L().Warn("redis unavailable, using in-process cache", zap.Error(err))
		return cache.NewLocal()
	}
	return c
}

// initEnv sets up the store, all source clients, the enrichment pool, and
// the search client. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// A missing API key leaves its client nil; the adapter reports itself
	// unconfigured and the source records failed without tripping a breaker.
	var contactClient contactout.Client
	if cfg.ContactOut.Key != "" {
		contactClient = contactout.NewClient(cfg.ContactOut.Key, contactout.WithBaseURL(cfg.ContactOut.BaseURL))
	} else {
		zap.L().Warn("PROSPECT_CONTACTOUT_KEY not set, contact source disabled")
	}

	var exaClient exa.Client
	if cfg.Exa.Key != "" {
		exaClient = exa.NewClient(cfg.Exa.Key, exa.WithBaseURL(cfg.Exa.BaseURL))
	} else {
		zap.L().Warn("PROSPECT_EXA_KEY not set, web intelligence source disabled")
	}

	edgarClient := edgar.NewClient(
		edgar.WithBaseURL(cfg.Edgar.BaseURL),
		edgar.WithDataBaseURL(cfg.Edgar.DataBaseURL),
		edgar.WithUserAgent(cfg.Edgar.UserAgent),
		edgar.WithRequestsPerSec(cfg.Edgar.RequestsPerSec),
		edgar.WithMaxFilings(cfg.Edgar.MaxFilings),
	)

	var anthropicClient anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		anthropicClient = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("PROSPECT_ANTHROPIC_KEY not set, summary source disabled")
	}

	keywords, err := source.LoadVocabulary(cfg.Signals.VocabPath)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load signal vocabulary")
	}

	registry := source.NewRegistry(
		resilience.CircuitBreakerConfig{
			Window:       cfg.Breaker.WindowDuration(),
			MinVolume:    cfg.Breaker.MinVolume,
			FailureRatio: cfg.Breaker.FailureRatio,
			ResetTimeout: cfg.Breaker.ResetDuration(),
			CallTimeout:  cfg.Breaker.CallTimeout(),
		},
		resilience.RetryConfig{MaxAttempts: cfg.Enrich.StepRetries},
	)

	orch := enrich.NewOrchestrator(st, registry,
		source.NewContactOutSource(contactClient),
		source.NewWebIntelSource(exaClient,
			source.WithKeywords(keywords),
			source.WithMaxResults(cfg.Exa.MaxResults),
			source.WithSignalLimits(cfg.Signals.ContextChars, cfg.Signals.MaxPerProspect),
		),
		source.NewFilingsSource(edgarClient),
		source.NewSummarySource(anthropicClient, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens),
	)

	resultCache := initCache(ctx)
	searchClient := search.NewClient(
		contactClient,
		ratelimit.New(cfg.Search.RequestsPerMinute, cfg.Search.Burst),
		resultCache,
		search.Config{
			PageSizeCap: cfg.Search.PageSizeCap,
			MaxPages:    cfg.Search.MaxPages,
			CacheTTL:    cfg.Search.CacheTTL(),
		},
	)

	return &appEnv{
		Store:    st,
		Registry: registry,
		Pool:     enrich.NewPool(orch, cfg.Enrich.MaxConcurrentRuns),
		Search:   searchClient,
		Cache:    resultCache,
	}, nil
}
