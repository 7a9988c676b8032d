// Package fmp provides a client for the Financial Modeling Prep API, used
// for ticker search and multi-year historical growth figures that the quote
// feed does not carry.
package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/clientdata"
)

// SearchResult is one ticker match from symbol search.
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
}

// FinancialGrowth carries FMP's per-share growth rates as decimal fractions.
type FinancialGrowth struct {
	ThreeYRevenueGrowthPerShare   *float64 `json:"threeYRevenueGrowthPerShare"`
	ThreeYNetIncomeGrowthPerShare *float64 `json:"threeYNetIncomeGrowthPerShare"`
	FiveYRevenueGrowthPerShare    *float64 `json:"fiveYRevenueGrowthPerShare"`
	TenYRevenueGrowthPerShare     *float64 `json:"tenYRevenueGrowthPerShare"`
}

// Client for financialmodelingprep.com.
type Client struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new FMP client. An empty API key disables the client:
// calls return empty results with a warning instead of failing requests.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://financialmodelingprep.com/stable",
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "fmp").Logger(),
		cacheRepo: cacheRepo,
	}
}

// Search finds tickers matching a query string.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if c.apiKey == "" {
		c.log.Warn().Msg("FMP_API_KEY not set, search disabled")
		return []SearchResult{}, nil
	}

	cacheKey := fmt.Sprintf("search:%s:%d", query, limit)
	if c.cacheRepo != nil {
		if data, err := c.cacheRepo.GetIfFresh("search_results", cacheKey); err == nil && data != nil {
			var cached []SearchResult
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("query", query).Msg("Cache hit")
				return cached, nil
			}
		}
	}

	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(limit)},
		"apikey": {c.apiKey},
	}

	var results []SearchResult
	if err := c.getJSON(ctx, "/search-symbol", params, &results); err != nil {
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("search_results", cacheKey, results, clientdata.TTLSearch); err != nil {
			c.log.Warn().Err(err).Str("query", query).Msg("Failed to cache search results")
		}
	}
	return results, nil
}

// GetFinancialGrowth fetches the latest annual growth record for a ticker.
// Returns nil without error when the API key is unset or FMP has no data.
func (c *Client) GetFinancialGrowth(ctx context.Context, ticker string) (*FinancialGrowth, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	params := url.Values{
		"symbol": {ticker},
		"limit":  {"1"},
		"apikey": {c.apiKey},
	}

	var records []FinancialGrowth
	if err := c.getJSON(ctx, "/financial-growth", params, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
