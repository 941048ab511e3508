package model

import "time"

// Payload schema versions. Bumped when a slot's shape changes so the read
// boundary can migrate old records.
const (
	ContactPayloadVersion  = 1
	WebIntelPayloadVersion = 1
	FilingsPayloadVersion  = 1
	SummaryPayloadVersion  = 1
)

// ContactPayload is the contact slot filled by the ContactOut source.
type ContactPayload struct {
	Version   int       `json:"version"`
	Emails    []string  `json:"emails,omitempty"`
	Phones    []string  `json:"phones,omitempty"`
	LinkedIn  string    `json:"linkedin,omitempty"`
	Twitter   string    `json:"twitter,omitempty"`
	GitHub    string    `json:"github,omitempty"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// WealthSignal is a keyword-triggered snippet extracted from web results.
type WealthSignal struct {
	Keyword string `json:"keyword"`
	Context string `json:"context"`
	URL     string `json:"url,omitempty"`
}

// WebIntelPayload is the web-intelligence slot filled by the Exa source.
type WebIntelPayload struct {
	Version   int            `json:"version"`
	Signals   []WealthSignal `json:"signals,omitempty"`
	TopURLs   []string       `json:"top_urls,omitempty"`
	Source    string         `json:"source"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// InsiderTransaction is a single parsed filing transaction.
type InsiderTransaction struct {
	FiledAt     time.Time `json:"filed_at"`
	Insider     string    `json:"insider,omitempty"`
	Type        string    `json:"type"`
	Shares      float64   `json:"shares"`
	PriceUSD    float64   `json:"price_usd"`
	TotalUSD    float64   `json:"total_usd"`
	AccessionNo string    `json:"accession_no,omitempty"`
}

// FilingsPayload is the filings slot filled by the SEC source.
type FilingsPayload struct {
	Version      int                  `json:"version"`
	CIK          string               `json:"cik"`
	Transactions []InsiderTransaction `json:"transactions,omitempty"`
	Source       string               `json:"source"`
	FetchedAt    time.Time            `json:"fetched_at"`
}

// SummaryPayload is the AI-summary slot filled by the Claude source.
type SummaryPayload struct {
	Version     int       `json:"version"`
	Text        string    `json:"text"`
	Model       string    `json:"model,omitempty"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}
