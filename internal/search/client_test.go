package search

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/cache"
	"github.com/sells-group/prospect-cli/internal/ratelimit"
	"github.com/sells-group/prospect-cli/pkg/contactout"
)

// fakeProvider scripts the two-phase provider calls.
type fakeProvider struct {
	searchResp  *contactout.SearchResponse
	searchErr   error
	detailsErr  error
	details     []contactout.Person
	searchCalls int
	detailCalls int
	lastSearch  contactout.SearchRequest
	lastIDs     []string
}

func (f *fakeProvider) Enrich(context.Context, contactout.EnrichRequest) (*contactout.Person, error) {
	return nil, eris.New("unused")
}

func (f *fakeProvider) Search(_ context.Context, req contactout.SearchRequest) (*contactout.SearchResponse, error) {
	f.searchCalls++
	f.lastSearch = req
	return f.searchResp, f.searchErr
}

func (f *fakeProvider) BulkDetails(_ context.Context, ids []string) ([]contactout.Person, error) {
	f.detailCalls++
	f.lastIDs = ids
	return f.details, f.detailsErr
}

func newTestClient(p contactout.Client) *Client {
	return NewClient(p, ratelimit.New(1000, 1000), cache.NewLocal(), Config{
		PageSizeCap: 25,
		MaxPages:    500,
		CacheTTL:    time.Hour,
	})
}

func previews(ids ...string) []contactout.Person {
	out := make([]contactout.Person, 0, len(ids))
	for _, id := range ids {
		out = append(out, contactout.Person{ID: id, FullName: "J*** D**", Obfuscated: true})
	}
	return out
}

func TestSearch_MaterializesDetails(t *testing.T) {
	provider := &fakeProvider{
		searchResp: &contactout.SearchResponse{Profiles: previews("p-1", "p-2"), TotalResults: 120},
		details: []contactout.Person{
			{ID: "p-1", FullName: "Jane Doe", WorkEmails: []string{"jane@acme.com"}},
			{ID: "p-2", FullName: "John Roe", WorkEmails: []string{"john@acme.com"}},
		},
	}
	client := newTestClient(provider)

	resp, err := client.Search(context.Background(), Request{
		TenantID: "tenant-a",
		Filters:  Filters{Titles: []string{"CEO"}},
		Page:     1,
		PageSize: 25,
	})
	require.NoError(t, err)

	assert.False(t, resp.Cached)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Jane Doe", resp.Results[0].FullName)
	assert.False(t, resp.Results[0].Obfuscated)
	assert.Equal(t, []string{"p-1", "p-2"}, provider.lastIDs)

	assert.Equal(t, 120, resp.Pagination.TotalResults)
	assert.Equal(t, 5, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasMore)
}

func TestSearch_CacheHit(t *testing.T) {
	provider := &fakeProvider{
		searchResp: &contactout.SearchResponse{Profiles: previews("p-1"), TotalResults: 1},
		details:    []contactout.Person{{ID: "p-1", FullName: "Jane Doe"}},
	}
	client := newTestClient(provider)
	req := Request{TenantID: "tenant-a", Filters: Filters{Titles: []string{"CEO"}}, Page: 1, PageSize: 25}

	first, err := client.Search(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := client.Search(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 1, provider.searchCalls, "cache hit must not call the provider")
}

func TestSearch_CacheKeyVariesByPage(t *testing.T) {
	provider := &fakeProvider{
		searchResp: &contactout.SearchResponse{Profiles: previews("p-1"), TotalResults: 100},
		details:    []contactout.Person{{ID: "p-1", FullName: "Jane Doe"}},
	}
	client := newTestClient(provider)

	_, err := client.Search(context.Background(), Request{TenantID: "t", Page: 1, PageSize: 25})
	require.NoError(t, err)
	_, err = client.Search(context.Background(), Request{TenantID: "t", Page: 2, PageSize: 25})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.searchCalls, "different pages are distinct cache entries")
}

func TestSearch_DegradesToPreviews(t *testing.T) {
	provider := &fakeProvider{
		searchResp: &contactout.SearchResponse{Profiles: previews("p-1", "p-2"), TotalResults: 2},
		detailsErr: eris.New("contactout: status 502"),
	}
	client := newTestClient(provider)

	resp, err := client.Search(context.Background(), Request{TenantID: "tenant-a", Page: 1, PageSize: 25})
	require.NoError(t, err, "a failed detail call must not fail the request")
	assert.True(t, resp.Degraded)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].Obfuscated)
}

func TestSearch_DegradedPageNotCached(t *testing.T) {
	provider := &fakeProvider{
		searchResp: &contactout.SearchResponse{Profiles: previews("p-1"), TotalResults: 1},
		detailsErr: eris.New("contactout: status 502"),
	}
	client := newTestClient(provider)

	resp, err := client.Search(context.Background(), Request{TenantID: "tenant-a", Page: 1, PageSize: 25})
	require.NoError(t, err)
	require.True(t, resp.Degraded)

	// Once the detail call recovers, a repeat request must re-query the
	// provider and serve materialized results instead of a cached preview page.
	provider.detailsErr = nil
	provider.details = []contactout.Person{{ID: "p-1", FullName: "Jane Doe", WorkEmails: []string{"jane@acme.com"}}}

	resp, err = client.Search(context.Background(), Request{TenantID: "tenant-a", Page: 1, PageSize: 25})
	require.NoError(t, err)
	assert.False(t, resp.Cached, "degraded pages must not be served from cache")
	assert.False(t, resp.Degraded)
	assert.Equal(t, 2, provider.searchCalls)
	assert.Equal(t, "Jane Doe", resp.Results[0].FullName)
}

func TestSearch_RateLimited(t *testing.T) {
	provider := &fakeProvider{
		searchResp: &contactout.SearchResponse{TotalResults: 0},
	}
	client := NewClient(provider, ratelimit.New(30, 1), cache.NewLocal(), Config{})

	_, err := client.Search(context.Background(), Request{TenantID: "tenant-a"})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), Request{TenantID: "tenant-a"})
	require.Error(t, err)

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.GreaterOrEqual(t, rle.RetryAfter(time.Now()), time.Second)
}

func TestSearch_ZeroResults(t *testing.T) {
	provider := &fakeProvider{searchResp: &contactout.SearchResponse{TotalResults: 0}}
	client := newTestClient(provider)

	resp, err := client.Search(context.Background(), Request{TenantID: "tenant-a", Page: 1, PageSize: 25})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Pagination.TotalPages)
	assert.False(t, resp.Pagination.HasMore)
	assert.Zero(t, provider.detailCalls, "no previews means no detail call")
}

func TestSearch_PageSizeCapped(t *testing.T) {
	provider := &fakeProvider{searchResp: &contactout.SearchResponse{TotalResults: 0}}
	client := newTestClient(provider)

	_, err := client.Search(context.Background(), Request{TenantID: "tenant-a", Page: 1, PageSize: 9999})
	require.NoError(t, err)
	assert.Equal(t, 25, provider.lastSearch.PageSize)
}

func TestSearch_MissingTenant(t *testing.T) {
	client := newTestClient(&fakeProvider{})
	_, err := client.Search(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing tenant id")
}

func TestTranslate_DropsEmptyCriteria(t *testing.T) {
	f := Filters{
		Titles:     []string{"CEO", "  "},
		Seniority:  []string{},
		Industries: nil,
		Locations:  []string{""},
		Keywords:   "   ",
	}

	params := f.translate()
	assert.Equal(t, map[string]any{"job_title": []string{"CEO"}}, params)
}

func TestTranslate_AllEmpty(t *testing.T) {
	assert.Empty(t, Filters{}.translate())
}

func TestFingerprint(t *testing.T) {
	a := Filters{Titles: []string{"CEO"}}
	b := Filters{Titles: []string{"CEO"}}
	c := Filters{Titles: []string{"CTO"}}

	assert.Equal(t, a.fingerprint(1, 25), b.fingerprint(1, 25))
	assert.NotEqual(t, a.fingerprint(1, 25), c.fingerprint(1, 25))
	assert.NotEqual(t, a.fingerprint(1, 25), a.fingerprint(2, 25))
	assert.NotEqual(t, a.fingerprint(1, 25), a.fingerprint(1, 10))
}
