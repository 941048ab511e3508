package enrich

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-cli/internal/model"
)

// ErrAlreadyRunning rejects a trigger for a prospect whose run is still in
// flight. Triggers are at-least-once; the caller treats this as success.
var ErrAlreadyRunning = eris.New("enrichment already running for prospect")

// Pool bounds how many enrichment runs execute concurrently process-wide
// and de-duplicates concurrent triggers for the same prospect.
type Pool struct {
	orch  *Orchestrator
	group *errgroup.Group

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPool creates a worker pool with the given concurrency ceiling.
func NewPool(orch *Orchestrator, maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	g := &errgroup.Group{}
	g.SetLimit(maxConcurrent)
	return &Pool{
		orch:     orch,
		group:    g,
		inflight: make(map[string]struct{}),
	}
}

// Submit schedules one enrichment run. It blocks while the pool is at its
// ceiling, providing backpressure to the trigger layer, and returns
// ErrAlreadyRunning when the same prospect is already in flight.
func (p *Pool) Submit(ctx context.Context, req model.EnrichmentRequest) error {
	key := req.TenantID + "/" + req.ProspectID

	p.mu.Lock()
	if _, busy := p.inflight[key]; busy {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.inflight[key] = struct{}{}
	p.mu.Unlock()

	p.group.Go(func() error {
		defer func() {
			p.mu.Lock()
			delete(p.inflight, key)
			p.mu.Unlock()
		}()
		if _, err := p.orch.Enrich(ctx, req); err != nil {
			zap.L().Error("enrichment run aborted",
				zap.String("prospect_id", req.ProspectID),
				zap.String("tenant_id", req.TenantID),
				zap.Error(err),
			)
		}
		// Run outcomes live in the record; never cancel sibling runs.
		return nil
	})
	return nil
}

// Wait blocks until every submitted run has finished.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}
