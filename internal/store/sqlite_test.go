package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedProspect(t *testing.T, s *SQLiteStore) *model.Prospect {
	t.Helper()
	p, err := s.CreateProspect(context.Background(), &model.Prospect{
		TenantID:        "tenant-a",
		Name:            "Jane Doe",
		Title:           "CEO",
		Company:         "Acme",
		Email:           "jane@acme.com",
		IsPublicCompany: true,
		RegistryID:      "320193",
	})
	require.NoError(t, err)
	return p
}

func TestCreateAndGetProspect(t *testing.T) {
	s := newTestStore(t)
	created := seedProspect(t, s)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.EnrichmentNone, created.EnrichmentStatus)

	got, err := s.GetProspect(context.Background(), "tenant-a", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Equal(t, "CEO", got.Title)
	assert.True(t, got.IsPublicCompany)
	assert.Equal(t, "320193", got.RegistryID)
	assert.Nil(t, got.Contact)
	assert.Nil(t, got.LastEnrichedAt)
	assert.NotNil(t, got.Sources)
}

func TestGetProspect_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProspect(context.Background(), "tenant-a", "missing")
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
}

func TestGetProspect_TenantIsolation(t *testing.T) {
	s := newTestStore(t)
	p := seedProspect(t, s)

	_, err := s.GetProspect(context.Background(), "tenant-b", p.ID)
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
}

func TestSaveEnrichment_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	p := seedProspect(t, s)

	now := time.Now().UTC().Truncate(time.Second)
	p.EnrichmentStatus = model.EnrichmentComplete
	p.Sources = model.SourceStatusMap{
		model.SourceContactOut: model.SourceComplete,
		model.SourceExa:        model.SourceFailed,
		model.SourceSEC:        model.SourceSkipped,
		model.SourceClaude:     model.SourceComplete,
	}
	p.Contact = &model.ContactPayload{
		Version:   model.ContactPayloadVersion,
		Emails:    []string{"jane@acme.com"},
		Source:    "contactout",
		FetchedAt: now,
	}
	p.Summary = &model.SummaryPayload{
		Version:     model.SummaryPayloadVersion,
		Text:        "Jane Doe recently exited Acme.",
		Source:      "claude",
		GeneratedAt: now,
	}
	p.LastEnrichedAt = &now

	require.NoError(t, s.SaveEnrichment(context.Background(), p))

	got, err := s.GetProspect(context.Background(), "tenant-a", p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrichmentComplete, got.EnrichmentStatus)
	assert.Equal(t, model.SourceComplete, got.Sources[model.SourceContactOut])
	assert.Equal(t, model.SourceSkipped, got.Sources[model.SourceSEC])
	require.NotNil(t, got.Contact)
	assert.Equal(t, []string{"jane@acme.com"}, got.Contact.Emails)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "Jane Doe recently exited Acme.", got.Summary.Text)
	assert.Nil(t, got.WebIntel)
	assert.Nil(t, got.Filings)
	require.NotNil(t, got.LastEnrichedAt)
}

func TestSaveEnrichment_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveEnrichment(context.Background(), &model.Prospect{
		ID:       "missing",
		TenantID: "tenant-a",
		Sources:  model.SourceStatusMap{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prospect not found")
}

func TestGetProspect_LegacyStatusNormalized(t *testing.T) {
	s := newTestStore(t)
	p := seedProspect(t, s)

	// Simulate an old record written before statuses were typed.
	_, err := s.db.Exec(
		`UPDATE prospects SET sources = ? WHERE id = ?`,
		`{"contactout": "ok", "exa": "error", "sec": "open"}`,
		p.ID,
	)
	require.NoError(t, err)

	got, err := s.GetProspect(context.Background(), "tenant-a", p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SourceComplete, got.Sources[model.SourceContactOut])
	assert.Equal(t, model.SourceFailed, got.Sources[model.SourceExa])
	assert.Equal(t, model.SourceCircuitOpen, got.Sources[model.SourceSEC])
	assert.Equal(t, model.SourcePending, got.Sources[model.SourceClaude], "missing keys fill with pending")
}

func TestListProspects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.CreateProspect(ctx, &model.Prospect{TenantID: "tenant-a", Name: "P", Company: "Acme"})
		require.NoError(t, err)
	}
	other, err := s.CreateProspect(ctx, &model.Prospect{TenantID: "tenant-b", Name: "Q", Company: "Beta"})
	require.NoError(t, err)

	other.EnrichmentStatus = model.EnrichmentComplete
	other.Sources = model.SourceStatusMap{}
	require.NoError(t, s.SaveEnrichment(ctx, other))

	all, err := s.ListProspects(ctx, ProspectFilter{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	complete, err := s.ListProspects(ctx, ProspectFilter{Status: model.EnrichmentComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, "tenant-b", complete[0].TenantID)

	limited, err := s.ListProspects(ctx, ProspectFilter{TenantID: "tenant-a", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestActivities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.AppendActivity(ctx, &model.Activity{
		TenantID:   "tenant-a",
		UserID:     "user-1",
		ActionType: model.ActionProfileEnriched,
		TargetID:   "prospect-1",
		Metadata:   map[string]any{"sources_complete": float64(3)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)

	_, err = s.AppendActivity(ctx, &model.Activity{
		TenantID:   "tenant-b",
		ActionType: model.ActionProfileEnriched,
		TargetID:   "prospect-1",
	})
	require.NoError(t, err)

	got, err := s.ListActivities(ctx, "tenant-a", "prospect-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ActionProfileEnriched, got[0].ActionType)
	assert.Equal(t, "user-1", got[0].UserID)
	assert.Equal(t, float64(3), got[0].Metadata["sources_complete"])
}
