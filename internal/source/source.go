// Package source adapts each external provider into a common enrichment
// interface. Every provider call runs through a named circuit breaker owned
// by the process-wide Registry, with transient errors retried per attempt.
package source

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// Result is the normalized outcome of one source fetch. Data carries the
// source's payload type and is non-nil only when Status is complete and
// Found is true.
type Result struct {
	Status model.SourceStatus
	Found  bool
	Data   any
	Err    error
}

// Client is one enrichment source adapter.
type Client interface {
	// Key returns the canonical source key.
	Key() model.SourceKey

	// Configured returns an error when the adapter lacks credentials or
	// required settings. An unconfigured source fails without a network call
	// and without touching the circuit breaker.
	Configured() error

	// Fetch runs the provider call. found=false with a nil error means the
	// provider answered cleanly but had no data for this prospect.
	Fetch(ctx context.Context, p *model.Prospect) (data any, found bool, err error)
}

// Registry owns one circuit breaker per source. Breakers are process-wide
// singletons shared by every enrichment run.
type Registry struct {
	breakerCfg resilience.CircuitBreakerConfig
	retryCfg   resilience.RetryConfig

	mu       sync.Mutex
	breakers map[model.SourceKey]*resilience.CircuitBreaker
}

// NewRegistry creates a breaker registry. State transitions are logged.
func NewRegistry(breakerCfg resilience.CircuitBreakerConfig, retryCfg resilience.RetryConfig) *Registry {
	userHook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
		zap.L().Warn("circuit state change",
			zap.String("source", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if userHook != nil {
			userHook(name, from, to)
		}
	}
	return &Registry{
		breakerCfg: breakerCfg,
		retryCfg:   retryCfg,
		breakers:   make(map[model.SourceKey]*resilience.CircuitBreaker),
	}
}

// Breaker returns the singleton breaker for a source, creating it on first use.
func (r *Registry) Breaker(key model.SourceKey) *resilience.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[key]
	if !ok {
		cb = resilience.NewCircuitBreaker(string(key), r.breakerCfg)
		r.breakers[key] = cb
	}
	return cb
}

// States reports each source breaker's current state, for the admin
// endpoint. Sources whose breaker has not been created yet report closed.
func (r *Registry) States() map[model.SourceKey]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.SourceKey]string, len(model.AllSources))
	for _, k := range model.AllSources {
		if cb, ok := r.breakers[k]; ok {
			out[k] = cb.State().String()
		} else {
			out[k] = resilience.CircuitClosed.String()
		}
	}
	return out
}

// Run executes one source fetch through its breaker and retry policy and
// normalizes the outcome. Unconfigured adapters fail immediately; an open
// circuit maps to the circuit_open status so a run records why the source
// was skipped over.
func (r *Registry) Run(ctx context.Context, c Client, p *model.Prospect) Result {
	if err := c.Configured(); err != nil {
		return Result{Status: model.SourceFailed, Err: err}
	}

	cb := r.Breaker(c.Key())
	retryCfg := r.retryCfg
	retryCfg.OnRetry = resilience.RetryLogger(string(c.Key()), "fetch")

	var (
		data  any
		found bool
	)
	err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return cb.Execute(ctx, func(ctx context.Context) error {
			var ferr error
			data, found, ferr = c.Fetch(ctx, p)
			return ferr
		})
	})

	switch {
	case resilience.IsCircuitOpen(err):
		return Result{Status: model.SourceCircuitOpen, Err: err}
	case err != nil:
		return Result{Status: model.SourceFailed, Err: err}
	case !found:
		// A clean no-data answer counts as success for the breaker but the
		// source still records failed: there is nothing to merge.
		zap.L().Debug("source returned no data", zap.String("source", string(c.Key())))
		return Result{Status: model.SourceFailed}
	default:
		return Result{Status: model.SourceComplete, Found: true, Data: data}
	}
}
