// Package enrich runs the enrichment workflow: one prospect, four sources,
// sequential steps, per-step persistence, and partial-failure tolerance.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/source"
	"github.com/sells-group/prospect-cli/internal/store"
)

// Orchestrator drives one enrichment run at a time per prospect. Source
// failures are recorded and stepped over; only storage failures abort a run.
type Orchestrator struct {
	store    store.Store
	registry *source.Registry
	steps    []step
}

// step pairs a source adapter with its dispatch rule.
type step struct {
	key    model.SourceKey
	client source.Client
	// skip reports why the source should not be called this run; empty
	// string means dispatch.
	skip func(p *model.Prospect) string
}

// NewOrchestrator wires the four source adapters in step order.
func NewOrchestrator(st store.Store, reg *source.Registry, contact, webIntel, filings, summary source.Client) *Orchestrator {
	return &Orchestrator{
		store:    st,
		registry: reg,
		steps: []step{
			{key: model.SourceContactOut, client: contact},
			{key: model.SourceExa, client: webIntel},
			{
				key:    model.SourceSEC,
				client: filings,
				skip: func(p *model.Prospect) string {
					if !p.IsPublicCompany || p.RegistryID == "" {
						return "not a public company"
					}
					return ""
				},
			},
			{key: model.SourceClaude, client: summary},
		},
	}
}

// Enrich runs the full workflow for one prospect. The returned prospect is
// the finalized record. A returned error always means infrastructure
// failure; provider outcomes live in the record's source statuses.
func (o *Orchestrator) Enrich(ctx context.Context, req model.EnrichmentRequest) (*model.Prospect, error) {
	logger := zap.L().With(
		zap.String("prospect_id", req.ProspectID),
		zap.String("tenant_id", req.TenantID),
	)
	started := time.Now()

	p, err := o.loadOrCreate(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: load prospect")
	}

	cur := beginRun(*p)
	if err := o.store.SaveEnrichment(ctx, &cur); err != nil {
		return nil, eris.Wrap(err, "enrich: persist run start")
	}
	logger.Info("enrichment run started")

	for _, st := range o.steps {
		cur, err = o.runStep(ctx, logger, cur, st)
		if err != nil {
			// Storage broke mid-run. Best-effort mark the lifecycle failed,
			// keeping the statuses recorded so far.
			failed := failRun(cur)
			if saveErr := o.store.SaveEnrichment(ctx, &failed); saveErr != nil {
				logger.Error("could not record failed run", zap.Error(saveErr))
			}
			return nil, eris.Wrapf(err, "enrich: step %s", st.key)
		}
	}

	cur = finalizeRun(cur, time.Now())
	if err := o.store.SaveEnrichment(ctx, &cur); err != nil {
		return nil, eris.Wrap(err, "enrich: persist finalize")
	}

	o.recordActivity(ctx, logger, req, cur)
	logger.Info("enrichment run complete",
		zap.Duration("elapsed", time.Since(started)),
		zap.Any("sources", cur.Sources),
	)
	return &cur, nil
}

// runStep executes one source step: mark in progress, dispatch (or skip),
// apply the outcome, persist. The returned error is storage-only; source
// outcomes are folded into the record.
func (o *Orchestrator) runStep(ctx context.Context, logger *zap.Logger, cur model.Prospect, st step) (model.Prospect, error) {
	if st.skip != nil {
		if reason := st.skip(&cur); reason != "" {
			cur = markSourceSkipped(cur, st.key)
			logger.Info("source skipped",
				zap.String("source", string(st.key)),
				zap.String("reason", reason),
			)
			return cur, o.store.SaveEnrichment(ctx, &cur)
		}
	}

	cur = markSourceInProgress(cur, st.key)
	if err := o.store.SaveEnrichment(ctx, &cur); err != nil {
		return cur, err
	}

	res := o.registry.Run(ctx, st.client, &cur)
	if res.Err != nil {
		logger.Warn("source failed",
			zap.String("source", string(st.key)),
			zap.String("status", string(res.Status)),
			zap.Error(res.Err),
		)
	}

	cur = applySourceResult(cur, st.key, res)
	return cur, o.store.SaveEnrichment(ctx, &cur)
}

// loadOrCreate fetches the prospect, creating it from the request when the
// trigger arrives before the record exists.
func (o *Orchestrator) loadOrCreate(ctx context.Context, req model.EnrichmentRequest) (*model.Prospect, error) {
	p, err := o.store.GetProspect(ctx, req.TenantID, req.ProspectID)
	if err == nil {
		return p, nil
	}
	if !resilience.IsNotFound(err) {
		return nil, err
	}
	return o.store.CreateProspect(ctx, &model.Prospect{
		ID:              req.ProspectID,
		TenantID:        req.TenantID,
		Name:            req.Name,
		Title:           req.Title,
		Company:         req.Company,
		Email:           req.Email,
		LinkedInURL:     req.LinkedInURL,
		IsPublicCompany: req.IsPublicCompany,
		RegistryID:      req.RegistryID,
	})
}

// recordActivity appends the audit entry for a finalized run. Activity is
// observability, not state; a write failure is logged, not fatal.
func (o *Orchestrator) recordActivity(ctx context.Context, logger *zap.Logger, req model.EnrichmentRequest, p model.Prospect) {
	complete := 0
	for _, s := range p.Sources {
		if s == model.SourceComplete {
			complete++
		}
	}
	_, err := o.store.AppendActivity(ctx, &model.Activity{
		TenantID:   p.TenantID,
		UserID:     req.UserID,
		ActionType: model.ActionProfileEnriched,
		TargetID:   p.ID,
		Metadata: map[string]any{
			"sources_complete": complete,
			"sources":          p.Sources,
		},
	})
	if err != nil {
		logger.Warn("could not append activity", zap.Error(err))
	}
}
