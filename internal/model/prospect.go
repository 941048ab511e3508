package model

import "time"

// EnrichmentStatus represents the lifecycle of a prospect's enrichment.
type EnrichmentStatus string

const (
	EnrichmentNone       EnrichmentStatus = "none"
	EnrichmentPending    EnrichmentStatus = "pending"
	EnrichmentInProgress EnrichmentStatus = "in_progress"
	EnrichmentComplete   EnrichmentStatus = "complete"
	EnrichmentFailed     EnrichmentStatus = "failed"
)

// Prospect is a business contact record. The orchestrator owns the record
// exclusively during an enrichment run; each source writes only its own slot.
type Prospect struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company"`
	Email       string `json:"email,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`

	// IsPublicCompany and RegistryID gate the filings lookup. RegistryID is
	// the SEC CIK for public companies.
	IsPublicCompany bool   `json:"is_public_company"`
	RegistryID      string `json:"registry_id,omitempty"`

	EnrichmentStatus EnrichmentStatus `json:"enrichment_status"`
	Sources          SourceStatusMap  `json:"sources"`

	Contact  *ContactPayload  `json:"contact,omitempty"`
	WebIntel *WebIntelPayload `json:"web_intel,omitempty"`
	Filings  *FilingsPayload  `json:"filings,omitempty"`
	Summary  *SummaryPayload  `json:"summary,omitempty"`

	LastEnrichedAt *time.Time `json:"last_enriched_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EnrichmentRequest is the inbound trigger emitted by the CRUD layer.
// Delivery is at-least-once; a re-run re-fetches every source.
type EnrichmentRequest struct {
	ProspectID      string `json:"prospect_id"`
	TenantID        string `json:"tenant_id"`
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	Company         string `json:"company"`
	Title           string `json:"title,omitempty"`
	Email           string `json:"email,omitempty"`
	LinkedInURL     string `json:"linkedin_url,omitempty"`
	IsPublicCompany bool   `json:"is_public_company"`
	RegistryID      string `json:"registry_id,omitempty"`
}

// Activity is an append-only audit record emitted when a run finalizes.
type Activity struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	UserID     string         `json:"user_id"`
	ActionType string         `json:"action_type"`
	TargetID   string         `json:"target_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ActionProfileEnriched is the activity action type written on finalize.
const ActionProfileEnriched = "profile_enriched"
