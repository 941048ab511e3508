// Package contactout wraps the ContactOut people API: single-person
// enrichment plus the two-phase lead search (obfuscated previews, then bulk
// detail materialization).
package contactout

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/resilience"
)

const defaultBaseURL = "https://api.contactout.com"

// Client performs people lookups against the ContactOut API.
type Client interface {
	// Enrich resolves one person's contact details. A provider 404 is
	// returned as a resilience.NotFoundError, not a plain error.
	Enrich(ctx context.Context, req EnrichRequest) (*Person, error)
	// Search returns one page of obfuscated previews with opaque profile ids.
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	// BulkDetails materializes full contact fields for previously returned ids.
	BulkDetails(ctx context.Context, ids []string) ([]Person, error)
}

// EnrichRequest identifies the person to look up. At least one of Email,
// LinkedInURL, or Name+Company must be set.
type EnrichRequest struct {
	Email       string `json:"email,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	Name        string `json:"name,omitempty"`
	Company     string `json:"company,omitempty"`
}

// Person is a contact profile. Obfuscated previews carry masked emails and
// no phone numbers.
type Person struct {
	ID             string   `json:"id"`
	FullName       string   `json:"full_name"`
	Title          string   `json:"title,omitempty"`
	Company        string   `json:"company,omitempty"`
	Location       string   `json:"location,omitempty"`
	Industry       string   `json:"industry,omitempty"`
	WorkEmails     []string `json:"work_emails,omitempty"`
	PersonalEmails []string `json:"personal_emails,omitempty"`
	Phones         []string `json:"phones,omitempty"`
	LinkedInURL    string   `json:"linkedin_url,omitempty"`
	Twitter        string   `json:"twitter,omitempty"`
	GitHub         string   `json:"github,omitempty"`
	Obfuscated     bool     `json:"obfuscated,omitempty"`
}

// SearchRequest is one page of a lead search. Params carries the translated
// persona filters; absent criteria must already be dropped by the caller.
type SearchRequest struct {
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Params   map[string]any `json:"-"`
}

// SearchResponse is one page of previews plus the provider-reported total.
type SearchResponse struct {
	Profiles     []Person `json:"profiles"`
	TotalResults int      `json:"total_results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a ContactOut API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Enrich(ctx context.Context, req EnrichRequest) (*Person, error) {
	if req.Email == "" && req.LinkedInURL == "" && (req.Name == "" || req.Company == "") {
		return nil, eris.New("contactout: enrich needs email, linkedin url, or name+company")
	}

	var resp struct {
		Profile Person `json:"profile"`
	}
	if err := c.post(ctx, "/v1/people/enrich", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Profile, nil
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	body := make(map[string]any, len(req.Params)+2)
	for k, v := range req.Params {
		body[k] = v
	}
	body["page"] = req.Page
	body["page_size"] = req.PageSize

	var resp struct {
		Profiles []Person `json:"profiles"`
		Metadata struct {
			TotalResults int `json:"total_results"`
		} `json:"metadata"`
	}
	if err := c.post(ctx, "/v1/people/search", body, &resp); err != nil {
		return nil, err
	}

	// Previews are always obfuscated until materialized.
	for i := range resp.Profiles {
		resp.Profiles[i].Obfuscated = true
	}
	return &SearchResponse{
		Profiles:     resp.Profiles,
		TotalResults: resp.Metadata.TotalResults,
	}, nil
}

func (c *httpClient) BulkDetails(ctx context.Context, ids []string) ([]Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resp struct {
		Profiles []Person `json:"profiles"`
	}
	if err := c.post(ctx, "/v1/people/search/details", map[string]any{"profile_ids": ids}, &resp); err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "contactout: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "contactout: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("token", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "contactout: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "contactout: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return eris.Wrap(&resilience.NotFoundError{Resource: "contactout profile"}, "contactout")
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(
			eris.Errorf("contactout: status %d: %s", resp.StatusCode, string(respBody)),
			resp.StatusCode,
		)
	default:
		return eris.Errorf("contactout: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "contactout: unmarshal response")
	}
	return nil
}
