package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/exa"
)

// WebIntelSource searches the web for a prospect and extracts wealth
// signals from the hits.
type WebIntelSource struct {
	client       exa.Client
	keywords     []string
	maxResults   int
	contextChars int
	maxSignals   int
}

// WebIntelOption tunes the web-intelligence scan.
type WebIntelOption func(*WebIntelSource)

// WithKeywords overrides the signal vocabulary.
func WithKeywords(kws []string) WebIntelOption {
	return func(s *WebIntelSource) {
		if len(kws) > 0 {
			s.keywords = kws
		}
	}
}

// WithMaxResults bounds the number of search hits requested.
func WithMaxResults(n int) WebIntelOption {
	return func(s *WebIntelSource) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithSignalLimits tunes the context window size and signal cap.
func WithSignalLimits(contextChars, maxSignals int) WebIntelOption {
	return func(s *WebIntelSource) {
		if contextChars > 0 {
			s.contextChars = contextChars
		}
		if maxSignals > 0 {
			s.maxSignals = maxSignals
		}
	}
}

// NewWebIntelSource wraps an Exa client. A nil client means unconfigured.
func NewWebIntelSource(client exa.Client, opts ...WebIntelOption) *WebIntelSource {
	s := &WebIntelSource{
		client:       client,
		keywords:     defaultKeywords,
		maxResults:   10,
		contextChars: 150,
		maxSignals:   20,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *WebIntelSource) Key() model.SourceKey { return model.SourceExa }

func (s *WebIntelSource) Configured() error {
	if s.client == nil {
		return eris.New("exa: not configured")
	}
	return nil
}

func (s *WebIntelSource) Fetch(ctx context.Context, p *model.Prospect) (any, bool, error) {
	query := fmt.Sprintf("%q %q wealth OR acquisition OR funding OR exit", p.Name, p.Company)

	resp, err := s.client.Search(ctx, exa.SearchRequest{
		Query:      query,
		NumResults: s.maxResults,
		Type:       "neural",
		Contents: &exa.ContentsRequest{
			Text:       true,
			Highlights: &exa.HighlightsConfig{NumSentences: 3, HighlightsPerURL: 3},
		},
	})
	if err != nil {
		return nil, false, err
	}
	if len(resp.Results) == 0 {
		return nil, false, nil
	}

	signals := scanSignals(resp.Results, s.keywords, s.contextChars, s.maxSignals)
	urls := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		urls = append(urls, r.URL)
	}

	payload := &model.WebIntelPayload{
		Version:   model.WebIntelPayloadVersion,
		Signals:   signals,
		TopURLs:   urls,
		Source:    string(model.SourceExa),
		FetchedAt: time.Now().UTC(),
	}
	return payload, true, nil
}
