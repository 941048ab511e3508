// Package store persists prospects, their enrichment slots, and the
// activity log. Two backends: SQLite for single-node CLI use and Postgres
// for shared deployments.
package store

import (
	"context"

	"github.com/sells-group/prospect-cli/internal/model"
)

// ProspectFilter specifies criteria for listing prospects.
type ProspectFilter struct {
	TenantID string                 `json:"tenant_id,omitempty"`
	Status   model.EnrichmentStatus `json:"status,omitempty"`
	Limit    int                    `json:"limit,omitempty"`
	Offset   int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the enrichment engine.
type Store interface {
	// Prospects
	CreateProspect(ctx context.Context, p *model.Prospect) (*model.Prospect, error)
	GetProspect(ctx context.Context, tenantID, id string) (*model.Prospect, error)
	ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error)

	// SaveEnrichment persists the enrichment-owned fields of a prospect:
	// lifecycle status, the per-source status map, the four payload slots,
	// and last_enriched_at. Identity fields are not touched.
	SaveEnrichment(ctx context.Context, p *model.Prospect) error

	// Activity log
	AppendActivity(ctx context.Context, a *model.Activity) (*model.Activity, error)
	ListActivities(ctx context.Context, tenantID, targetID string) ([]model.Activity, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
