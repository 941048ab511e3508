// Package edgar fetches and parses SEC EDGAR insider filings. The SEC asks
// automated clients for a descriptive User-Agent and no more than ~10
// requests per second; the client enforces its own limiter below that.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-cli/internal/resilience"
)

const (
	defaultBaseURL     = "https://www.sec.gov"
	defaultDataBaseURL = "https://data.sec.gov"
	defaultUserAgent   = "prospect-cli admin@example.com"

	// Etiquette limit: stay under the SEC's 10 req/s guidance.
	defaultRequestsPerSec = 6.7

	// form4 is the insider-transaction form type.
	form4 = "4"

	// maxTransactions caps the merged transaction list per company.
	maxTransactions = 30
)

// Transaction is one parsed insider transaction from a Form 4 filing.
type Transaction struct {
	FiledAt     time.Time
	Insider     string
	Type        string // "buy" or "sell"
	Shares      float64
	PriceUSD    float64
	TotalUSD    float64
	AccessionNo string
}

// Filing is one entry from a company's submissions index.
type Filing struct {
	AccessionNo     string
	Form            string
	FiledAt         time.Time
	PrimaryDocument string
}

// Client fetches insider filings for public companies.
type Client interface {
	// RecentInsiderTransactions fetches the filing index for a CIK, pulls up
	// to maxFilings recent Form 4 documents, and returns parsed transactions
	// sorted newest first, capped at 30. A CIK unknown to EDGAR yields a
	// resilience.NotFoundError.
	RecentInsiderTransactions(ctx context.Context, cik string) ([]Transaction, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the archive base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithDataBaseURL overrides the submissions-index base URL.
func WithDataBaseURL(url string) Option {
	return func(c *httpClient) {
		c.dataBaseURL = url
	}
}

// WithUserAgent sets the SEC-required identifying User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithRequestsPerSec tunes the etiquette limiter.
func WithRequestsPerSec(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithMaxFilings bounds how many filing documents are fetched per company.
func WithMaxFilings(n int) Option {
	return func(c *httpClient) {
		c.maxFilings = n
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL     string
	dataBaseURL string
	userAgent   string
	maxFilings  int
	limiter     *rate.Limiter
	http        *http.Client
}

// NewClient creates an EDGAR client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:     defaultBaseURL,
		dataBaseURL: defaultDataBaseURL,
		userAgent:   defaultUserAgent,
		maxFilings:  10,
		limiter:     rate.NewLimiter(rate.Limit(defaultRequestsPerSec), 1),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// submissionsEnvelope mirrors the relevant slice of the EDGAR submissions JSON.
type submissionsEnvelope struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

func (c *httpClient) RecentInsiderTransactions(ctx context.Context, cik string) ([]Transaction, error) {
	cik = strings.TrimSpace(cik)
	if cik == "" {
		return nil, eris.New("edgar: empty cik")
	}

	filings, err := c.recentFilings(ctx, cik)
	if err != nil {
		return nil, err
	}

	var txns []Transaction
	fetched := 0
	for _, f := range filings {
		if f.Form != form4 || f.PrimaryDocument == "" {
			continue
		}
		if fetched >= c.maxFilings {
			break
		}
		fetched++

		doc, err := c.filingDocument(ctx, cik, f.AccessionNo, f.PrimaryDocument)
		if err != nil {
			// One unreadable filing must not sink the rest.
			zap.L().Warn("edgar: skipping filing",
				zap.String("cik", cik),
				zap.String("accession_no", f.AccessionNo),
				zap.Error(err),
			)
			continue
		}

		parsed, err := ParseForm4(doc)
		if err != nil {
			zap.L().Warn("edgar: unparseable form 4",
				zap.String("accession_no", f.AccessionNo),
				zap.Error(err),
			)
			continue
		}
		for i := range parsed {
			parsed[i].AccessionNo = f.AccessionNo
			if parsed[i].FiledAt.IsZero() {
				parsed[i].FiledAt = f.FiledAt
			}
		}
		txns = append(txns, parsed...)
	}

	sort.Slice(txns, func(i, j int) bool { return txns[i].FiledAt.After(txns[j].FiledAt) })
	if len(txns) > maxTransactions {
		txns = txns[:maxTransactions]
	}
	return txns, nil
}

func (c *httpClient) recentFilings(ctx context.Context, cik string) ([]Filing, error) {
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataBaseURL, padCIK(cik))
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var env submissionsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "edgar: unmarshal submissions index")
	}

	recent := env.Filings.Recent
	filings := make([]Filing, 0, len(recent.AccessionNumber))
	for i := range recent.AccessionNumber {
		f := Filing{AccessionNo: recent.AccessionNumber[i]}
		if i < len(recent.Form) {
			f.Form = recent.Form[i]
		}
		if i < len(recent.PrimaryDocument) {
			f.PrimaryDocument = recent.PrimaryDocument[i]
		}
		if i < len(recent.FilingDate) {
			if ts, err := time.Parse("2006-01-02", recent.FilingDate[i]); err == nil {
				f.FiledAt = ts
			}
		}
		filings = append(filings, f)
	}
	return filings, nil
}

func (c *httpClient) filingDocument(ctx context.Context, cik, accessionNo, primaryDoc string) ([]byte, error) {
	url := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		c.baseURL,
		strings.TrimLeft(cik, "0"),
		strings.ReplaceAll(accessionNo, "-", ""),
		primaryDoc,
	)
	return c.get(ctx, url)
}

func (c *httpClient) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "edgar: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrap(&resilience.NotFoundError{Resource: "edgar filing"}, "edgar")
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("edgar: status %d from %s", resp.StatusCode, url), resp.StatusCode)
	default:
		return nil, eris.Errorf("edgar: unexpected status %d from %s", resp.StatusCode, url)
	}
}

// padCIK left-pads a CIK to the 10 digits the submissions endpoint expects.
func padCIK(cik string) string {
	cik = strings.TrimLeft(cik, "0")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
