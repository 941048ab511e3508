package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
)

const summarySystemPrompt = `You are a research analyst at a wealth advisory firm. Given raw
enrichment data about a business prospect, write a concise profile summary
(3-5 sentences) highlighting wealth indicators, liquidity events, and
anything an advisor should know before the first call. Use only the facts
provided. Do not speculate.`

// SummarySource generates an AI profile summary from whatever the other
// sources produced. It runs last; absent slots are simply omitted from the
// prompt rather than blocking the step.
type SummarySource struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewSummarySource wraps an Anthropic client. A nil client means unconfigured.
func NewSummarySource(client anthropic.Client, modelID string, maxTokens int64) *SummarySource {
	if modelID == "" {
		modelID = "claude-haiku-4-5-20251001"
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &SummarySource{client: client, model: modelID, maxTokens: maxTokens}
}

func (s *SummarySource) Key() model.SourceKey { return model.SourceClaude }

func (s *SummarySource) Configured() error {
	if s.client == nil {
		return eris.New("anthropic: not configured")
	}
	return nil
}

func (s *SummarySource) Fetch(ctx context.Context, p *model.Prospect) (any, bool, error) {
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(summarySystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildSummaryPrompt(p)},
		},
	})
	if err != nil {
		return nil, false, err
	}
	resp.Usage.LogCost(s.model, "summary")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, false, nil
	}

	payload := &model.SummaryPayload{
		Version:     model.SummaryPayloadVersion,
		Text:        text,
		Model:       s.model,
		Source:      string(model.SourceClaude),
		GeneratedAt: time.Now().UTC(),
	}
	return payload, true, nil
}

// buildSummaryPrompt renders the prospect's merged enrichment slots into a
// plain-text briefing. Slots the earlier steps did not fill are left out.
func buildSummaryPrompt(p *model.Prospect) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prospect: %s", p.Name)
	if p.Title != "" {
		fmt.Fprintf(&b, ", %s", p.Title)
	}
	if p.Company != "" {
		fmt.Fprintf(&b, " at %s", p.Company)
	}
	b.WriteString("\n")

	if c := p.Contact; c != nil {
		b.WriteString("\nContact details:\n")
		if len(c.Emails) > 0 {
			fmt.Fprintf(&b, "- emails: %s\n", strings.Join(c.Emails, ", "))
		}
		if len(c.Phones) > 0 {
			fmt.Fprintf(&b, "- phones: %s\n", strings.Join(c.Phones, ", "))
		}
		if c.LinkedIn != "" {
			fmt.Fprintf(&b, "- linkedin: %s\n", c.LinkedIn)
		}
	}

	if w := p.WebIntel; w != nil && len(w.Signals) > 0 {
		b.WriteString("\nWealth signals from the web:\n")
		for _, sig := range w.Signals {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", sig.Keyword, sig.Context, sig.URL)
		}
	}

	if f := p.Filings; f != nil && len(f.Transactions) > 0 {
		b.WriteString("\nRecent insider transactions:\n")
		for _, t := range f.Transactions {
			fmt.Fprintf(&b, "- %s: %s %.0f shares at $%.2f ($%.0f total) by %s\n",
				t.FiledAt.Format("2006-01-02"), t.Type, t.Shares, t.PriceUSD, t.TotalUSD, t.Insider)
		}
	}

	return b.String()
}
