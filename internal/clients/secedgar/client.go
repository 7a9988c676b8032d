// Package secedgar fetches company filing indexes from SEC EDGAR. EDGAR is
// free but requires a descriptive User-Agent on every request; responses are
// cached since filing lists change at most a few times per day.
package secedgar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/clientdata"
)

const userAgent = "VeraScore contact@example.com"

// Filing is one SEC filing document reference.
type Filing struct {
	FormType        string `json:"form_type"`
	FilingDate      string `json:"filing_date"`
	AccessionNumber string `json:"accession_number"`
	PrimaryDocURL   string `json:"primary_doc_url"`
	FilingURL       string `json:"filing_url"`
	Description     string `json:"description,omitempty"`
}

// DefaultFormTypes are the filings relevant to earnings research.
var DefaultFormTypes = []string{"10-Q", "10-K", "8-K"}

// Client for data.sec.gov.
type Client struct {
	submissionsURL string
	tickersURL     string
	archivesURL    string
	client         *http.Client
	log            zerolog.Logger
	cacheRepo      *clientdata.Repository
}

// NewClient creates a new SEC EDGAR client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		submissionsURL: "https://data.sec.gov/submissions",
		tickersURL:     "https://www.sec.gov/files/company_tickers.json",
		archivesURL:    "https://www.sec.gov/Archives/edgar/data",
		client:         &http.Client{Timeout: 15 * time.Second},
		log:            log.With().Str("client", "secedgar").Logger(),
		cacheRepo:      cacheRepo,
	}
}

type submissionsResponse struct {
	CIK     json.Number `json:"cik"`
	Filings struct {
		Recent struct {
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			AccessionNumber []string `json:"accessionNumber"`
			PrimaryDocument []string `json:"primaryDocument"`
			PrimaryDocDesc  []string `json:"primaryDocDescription"`
		} `json:"recent"`
	} `json:"filings"`
}

// RecentFilings fetches the most recent filings of the given form types for
// a ticker. A nil formTypes uses DefaultFormTypes.
func (c *Client) RecentFilings(ctx context.Context, ticker string, formTypes []string, limit int) ([]Filing, error) {
	if formTypes == nil {
		formTypes = DefaultFormTypes
	}
	if limit <= 0 {
		limit = 10
	}

	cacheKey := fmt.Sprintf("filings:%s:%s:%d", strings.ToUpper(ticker), strings.Join(formTypes, ","), limit)
	if c.cacheRepo != nil {
		if data, err := c.cacheRepo.GetIfFresh("sec_filings", cacheKey); err == nil && data != nil {
			var cached []Filing
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("ticker", ticker).Msg("Cache hit")
				return cached, nil
			}
		}
	}

	cik, err := c.lookupCIK(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if cik == "" {
		c.log.Warn().Str("ticker", ticker).Msg("Could not find CIK")
		return []Filing{}, nil
	}

	var subs submissionsResponse
	url := fmt.Sprintf("%s/CIK%s.json", c.submissionsURL, cik)
	if err := c.getJSON(ctx, url, &subs); err != nil {
		return nil, fmt.Errorf("failed to fetch filings for %s: %w", ticker, err)
	}

	wanted := make(map[string]bool, len(formTypes))
	for _, ft := range formTypes {
		wanted[ft] = true
	}

	recent := subs.Filings.Recent
	filings := make([]Filing, 0, limit)
	for i, form := range recent.Form {
		if !wanted[form] || len(filings) >= limit {
			continue
		}

		accession := at(recent.AccessionNumber, i)
		filingURL := fmt.Sprintf("%s/%s/%s", c.archivesURL, strings.TrimLeft(cik, "0"), strings.ReplaceAll(accession, "-", ""))

		docURL := ""
		if doc := at(recent.PrimaryDocument, i); doc != "" {
			docURL = filingURL + "/" + doc
		}

		filings = append(filings, Filing{
			FormType:        form,
			FilingDate:      at(recent.FilingDate, i),
			AccessionNumber: accession,
			PrimaryDocURL:   docURL,
			FilingURL:       filingURL,
			Description:     at(recent.PrimaryDocDesc, i),
		})
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("sec_filings", cacheKey, filings, clientdata.TTLSECFilings); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache filings")
		}
	}
	return filings, nil
}

// lookupCIK resolves a ticker to a zero-padded 10-digit CIK via the SEC's
// company tickers index. Returns "" when the ticker is unknown.
func (c *Client) lookupCIK(ctx context.Context, ticker string) (string, error) {
	var index map[string]struct {
		CIKStr json.Number `json:"cik_str"`
		Ticker string      `json:"ticker"`
	}
	if err := c.getJSON(ctx, c.tickersURL, &index); err != nil {
		return "", fmt.Errorf("failed to fetch ticker index: %w", err)
	}

	upper := strings.ToUpper(ticker)
	for _, entry := range index {
		if strings.ToUpper(entry.Ticker) == upper {
			return padCIK(entry.CIKStr.String()), nil
		}
	}
	return "", nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func padCIK(cik string) string {
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
