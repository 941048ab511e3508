package exa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/resilience"
)

func TestSearch(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   string
		transient bool
		wantHits  int
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{"results": [
				{"title": "Acme CEO sells stake", "url": "https://news.example/a", "text": "Jane Doe sold her company for $50M"},
				{"title": "Funding round", "url": "https://news.example/b", "highlights": ["raised a $30M series B"]}
			]}`,
			wantHits: 2,
		},
		{
			name:      "rate_limited",
			status:    http.StatusTooManyRequests,
			body:      `{"error": "quota"}`,
			wantErr:   "unexpected status 429",
			transient: true,
		},
		{
			name:    "bad_request",
			status:  http.StatusBadRequest,
			body:    `{"error": "invalid query"}`,
			wantErr: "unexpected status 400",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{"results": [`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/search", r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

				var req SearchRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.NotEmpty(t, req.Query)

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))
			resp, err := client.Search(context.Background(), SearchRequest{
				Query:      `"Jane Doe" "Acme" net worth`,
				NumResults: 10,
				Contents:   &ContentsRequest{Text: true},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, tt.transient, resilience.IsTransient(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, resp.Results, tt.wantHits)
		})
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.Search(context.Background(), SearchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty query")
}
