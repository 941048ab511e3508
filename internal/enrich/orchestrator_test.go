package enrich

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/source"
	"github.com/sells-group/prospect-cli/internal/store"
)

// scriptedSource is a scriptable source adapter.
type scriptedSource struct {
	key   model.SourceKey
	data  func() any
	err   error
	block chan struct{}

	mu       sync.Mutex
	calls    int
	sawSlots []bool
}

func (f *scriptedSource) Key() model.SourceKey { return f.key }
func (f *scriptedSource) Configured() error    { return nil }

func (f *scriptedSource) Fetch(_ context.Context, p *model.Prospect) (any, bool, error) {
	f.mu.Lock()
	f.calls++
	f.sawSlots = append(f.sawSlots, p.Contact != nil)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, false, f.err
	}
	if f.data == nil {
		return nil, false, nil
	}
	return f.data(), true, nil
}

func (f *scriptedSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func contactSource() *scriptedSource {
	return &scriptedSource{key: model.SourceContactOut, data: func() any {
		return &model.ContactPayload{Version: 1, Emails: []string{"jane@acme.com"}, Source: "contactout"}
	}}
}

func webIntelSource() *scriptedSource {
	return &scriptedSource{key: model.SourceExa, data: func() any {
		return &model.WebIntelPayload{Version: 1, TopURLs: []string{"https://news.example/a"}, Source: "exa"}
	}}
}

func filingsSource() *scriptedSource {
	return &scriptedSource{key: model.SourceSEC, data: func() any {
		return &model.FilingsPayload{Version: 1, CIK: "320193", Source: "sec"}
	}}
}

func summarySource() *scriptedSource {
	return &scriptedSource{key: model.SourceClaude, data: func() any {
		return &model.SummaryPayload{Version: 1, Text: "profile summary", Source: "claude"}
	}}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRegistry() *source.Registry {
	return source.NewRegistry(
		resilience.CircuitBreakerConfig{Window: time.Minute, MinVolume: 100, ResetTimeout: time.Hour},
		resilience.RetryConfig{MaxAttempts: 1},
	)
}

func seedProspect(t *testing.T, st store.Store, public bool) *model.Prospect {
	t.Helper()
	p, err := st.CreateProspect(context.Background(), &model.Prospect{
		TenantID:        "tenant-a",
		Name:            "Jane Doe",
		Company:         "Acme",
		IsPublicCompany: public,
		RegistryID: func() string {
			if public {
				return "320193"
			}
			return ""
		}(),
	})
	require.NoError(t, err)
	return p
}

func request(p *model.Prospect) model.EnrichmentRequest {
	return model.EnrichmentRequest{
		ProspectID: p.ID,
		TenantID:   p.TenantID,
		UserID:     "user-1",
		Name:       p.Name,
		Company:    p.Company,
	}
}

func TestEnrich_AllSourcesComplete(t *testing.T) {
	st := newTestStore(t)
	p := seedProspect(t, st, true)

	contact, web, filings, summary := contactSource(), webIntelSource(), filingsSource(), summarySource()
	orch := NewOrchestrator(st, newTestRegistry(), contact, web, filings, summary)

	got, err := orch.Enrich(context.Background(), request(p))
	require.NoError(t, err)

	assert.Equal(t, model.EnrichmentComplete, got.EnrichmentStatus)
	assert.True(t, got.Sources.AllTerminal())
	for _, k := range model.AllSources {
		assert.Equal(t, model.SourceComplete, got.Sources[k], string(k))
	}
	require.NotNil(t, got.Contact)
	require.NotNil(t, got.WebIntel)
	require.NotNil(t, got.Filings)
	require.NotNil(t, got.Summary)
	require.NotNil(t, got.LastEnrichedAt)

	// The summary step sees the payloads merged by the earlier steps.
	require.Len(t, summary.sawSlots, 1)
	assert.True(t, summary.sawSlots[0])

	// Finalize appended an activity.
	acts, err := st.ListActivities(context.Background(), "tenant-a", p.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, model.ActionProfileEnriched, acts[0].ActionType)

	// Persisted record matches the returned one.
	stored, err := st.GetProspect(context.Background(), "tenant-a", p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrichmentComplete, stored.EnrichmentStatus)
	require.NotNil(t, stored.Summary)
}

func TestEnrich_PartialFailureIndependence(t *testing.T) {
	st := newTestStore(t)
	p := seedProspect(t, st, true)

	contact := &scriptedSource{key: model.SourceContactOut, err: eris.New("contactout: boom")}
	web, filings, summary := webIntelSource(), filingsSource(), summarySource()
	orch := NewOrchestrator(st, newTestRegistry(), contact, web, filings, summary)

	got, err := orch.Enrich(context.Background(), request(p))
	require.NoError(t, err, "a source failure never aborts the run")

	assert.Equal(t, model.EnrichmentComplete, got.EnrichmentStatus)
	assert.Equal(t, model.SourceFailed, got.Sources[model.SourceContactOut])
	assert.Equal(t, model.SourceComplete, got.Sources[model.SourceExa])
	assert.Equal(t, model.SourceComplete, got.Sources[model.SourceSEC])
	assert.Equal(t, model.SourceComplete, got.Sources[model.SourceClaude])

	assert.Nil(t, got.Contact)
	assert.NotNil(t, got.WebIntel)
	assert.Equal(t, 1, web.callCount(), "later steps still execute")
	assert.Equal(t, 1, summary.callCount())
}

func TestEnrich_NonPublicCompanySkipsFilings(t *testing.T) {
	st := newTestStore(t)
	p := seedProspect(t, st, false)

	filings := filingsSource()
	orch := NewOrchestrator(st, newTestRegistry(), contactSource(), webIntelSource(), filings, summarySource())

	got, err := orch.Enrich(context.Background(), request(p))
	require.NoError(t, err)

	assert.Equal(t, model.SourceSkipped, got.Sources[model.SourceSEC])
	assert.Zero(t, filings.callCount(), "skipped source is never called")
	assert.Nil(t, got.Filings)
	assert.Equal(t, model.EnrichmentComplete, got.EnrichmentStatus)
}

func TestEnrich_RerunKeepsPayloadOnFailure(t *testing.T) {
	st := newTestStore(t)
	p := seedProspect(t, st, false)

	contact := contactSource()
	orch := NewOrchestrator(st, newTestRegistry(), contact, webIntelSource(), filingsSource(), summarySource())

	got, err := orch.Enrich(context.Background(), request(p))
	require.NoError(t, err)
	require.NotNil(t, got.Contact)

	// Re-run with the contact provider now broken.
	failing := &scriptedSource{key: model.SourceContactOut, err: eris.New("contactout: outage")}
	orch2 := NewOrchestrator(st, newTestRegistry(), failing, webIntelSource(), filingsSource(), summarySource())

	rerun, err := orch2.Enrich(context.Background(), request(p))
	require.NoError(t, err)
	assert.Equal(t, model.SourceFailed, rerun.Sources[model.SourceContactOut])
	require.NotNil(t, rerun.Contact, "a failed re-fetch must not discard prior data")
	assert.Equal(t, []string{"jane@acme.com"}, rerun.Contact.Emails)
}

func TestEnrich_CircuitOpenRecorded(t *testing.T) {
	st := newTestStore(t)
	p := seedProspect(t, st, false)

	reg := source.NewRegistry(
		resilience.CircuitBreakerConfig{Window: time.Minute, MinVolume: 1, ResetTimeout: time.Hour},
		resilience.RetryConfig{MaxAttempts: 1},
	)
	// Trip the exa breaker before the run.
	tripper := &scriptedSource{key: model.SourceExa, err: eris.New("exa: boom")}
	_ = reg.Run(context.Background(), tripper, &model.Prospect{})

	web := webIntelSource()
	orch := NewOrchestrator(st, reg, contactSource(), web, filingsSource(), summarySource())

	got, err := orch.Enrich(context.Background(), request(p))
	require.NoError(t, err)
	assert.Equal(t, model.SourceCircuitOpen, got.Sources[model.SourceExa])
	assert.Zero(t, web.callCount(), "open circuit rejects without dispatch")
	assert.Equal(t, model.EnrichmentComplete, got.EnrichmentStatus)
}

func TestEnrich_CreatesMissingProspect(t *testing.T) {
	st := newTestStore(t)
	orch := NewOrchestrator(st, newTestRegistry(), contactSource(), webIntelSource(), filingsSource(), summarySource())

	got, err := orch.Enrich(context.Background(), model.EnrichmentRequest{
		ProspectID: "p-new",
		TenantID:   "tenant-a",
		Name:       "John Roe",
		Company:    "Beta LLC",
	})
	require.NoError(t, err)
	assert.Equal(t, "p-new", got.ID)
	assert.Equal(t, model.EnrichmentComplete, got.EnrichmentStatus)

	stored, err := st.GetProspect(context.Background(), "tenant-a", "p-new")
	require.NoError(t, err)
	assert.Equal(t, "John Roe", stored.Name)
}

// failingStore breaks SaveEnrichment after a set number of successes.
type failingStore struct {
	store.Store
	mu        sync.Mutex
	remaining int
}

func (f *failingStore) SaveEnrichment(ctx context.Context, p *model.Prospect) error {
	f.mu.Lock()
	f.remaining--
	failNow := f.remaining < 0
	f.mu.Unlock()
	if failNow {
		return eris.New("sqlite: disk I/O error")
	}
	return f.Store.SaveEnrichment(ctx, p)
}

func TestEnrich_InfraFailureAbortsRun(t *testing.T) {
	st := newTestStore(t)
	p := seedProspect(t, st, false)

	// Allow the run-start write and the first step's in-progress write,
	// then fail. The orchestrator gets one more (failing) write for the
	// failed-lifecycle mark, which it tolerates.
	broken := &failingStore{Store: st, remaining: 2}

	contact := contactSource()
	summary := summarySource()
	orch := NewOrchestrator(broken, newTestRegistry(), contact, webIntelSource(), filingsSource(), summary)

	_, err := orch.Enrich(context.Background(), request(p))
	require.Error(t, err, "storage failure is fatal to the run")
	assert.Zero(t, summary.callCount(), "run aborts before later steps")
}
