package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/pkg/edgar"
)

// FilingsSource pulls recent insider transactions from SEC EDGAR. The
// orchestrator only dispatches it for public companies with a registry id.
type FilingsSource struct {
	client edgar.Client
}

// NewFilingsSource wraps an EDGAR client. A nil client means unconfigured.
func NewFilingsSource(client edgar.Client) *FilingsSource {
	return &FilingsSource{client: client}
}

func (s *FilingsSource) Key() model.SourceKey { return model.SourceSEC }

func (s *FilingsSource) Configured() error {
	if s.client == nil {
		return eris.New("edgar: not configured")
	}
	return nil
}

func (s *FilingsSource) Fetch(ctx context.Context, p *model.Prospect) (any, bool, error) {
	if p.RegistryID == "" {
		return nil, false, eris.New("edgar: prospect has no registry id")
	}

	txns, err := s.client.RecentInsiderTransactions(ctx, p.RegistryID)
	if err != nil {
		// A CIK unknown to EDGAR is a clean no-data answer.
		if resilience.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	out := make([]model.InsiderTransaction, 0, len(txns))
	for _, t := range txns {
		out = append(out, model.InsiderTransaction{
			FiledAt:     t.FiledAt,
			Insider:     t.Insider,
			Type:        t.Type,
			Shares:      t.Shares,
			PriceUSD:    t.PriceUSD,
			TotalUSD:    t.TotalUSD,
			AccessionNo: t.AccessionNo,
		})
	}

	payload := &model.FilingsPayload{
		Version:      model.FilingsPayloadVersion,
		CIK:          p.RegistryID,
		Transactions: out,
		Source:       string(model.SourceSEC),
		FetchedAt:    time.Now().UTC(),
	}
	return payload, len(out) > 0, nil
}
