package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/pkg/contactout"
)

// ContactOutSource resolves a prospect's contact details.
type ContactOutSource struct {
	client contactout.Client
}

// NewContactOutSource wraps a ContactOut client. A nil client means the
// source is unconfigured.
func NewContactOutSource(client contactout.Client) *ContactOutSource {
	return &ContactOutSource{client: client}
}

func (s *ContactOutSource) Key() model.SourceKey { return model.SourceContactOut }

func (s *ContactOutSource) Configured() error {
	if s.client == nil {
		return eris.New("contactout: not configured")
	}
	return nil
}

func (s *ContactOutSource) Fetch(ctx context.Context, p *model.Prospect) (any, bool, error) {
	person, err := s.client.Enrich(ctx, contactout.EnrichRequest{
		Email:       p.Email,
		LinkedInURL: p.LinkedInURL,
		Name:        p.Name,
		Company:     p.Company,
	})
	if err != nil {
		// No profile is a clean answer, not a provider failure.
		if resilience.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	emails := append([]string{}, person.WorkEmails...)
	emails = append(emails, person.PersonalEmails...)

	payload := &model.ContactPayload{
		Version:   model.ContactPayloadVersion,
		Emails:    emails,
		Phones:    person.Phones,
		LinkedIn:  person.LinkedInURL,
		Twitter:   person.Twitter,
		GitHub:    person.GitHub,
		Source:    string(model.SourceContactOut),
		FetchedAt: time.Now().UTC(),
	}
	return payload, len(emails) > 0 || len(person.Phones) > 0, nil
}
