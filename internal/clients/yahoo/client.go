// Package yahoo fetches quotes, company profiles and price history from the
// Yahoo Finance JSON endpoints. Responses are cached through clientdata with
// short TTLs; when the API fails, stale cache entries are served as fallback.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/clientdata"
)

const (
	// Trading-day offsets for momentum windows.
	days1M = 21
	days3M = 63
	days6M = 126
	days1Y = 252
)

// Client for the Yahoo Finance API.
type Client struct {
	quoteURL  string
	chartURL  string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Yahoo Finance client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		quoteURL:  "https://query2.finance.yahoo.com/v10/finance/quoteSummary",
		chartURL:  "https://query2.finance.yahoo.com/v8/finance/chart",
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "yahoo").Logger(),
		cacheRepo: cacheRepo,
	}
}

// GetStockInfo fetches the full quote and metrics snapshot for a ticker as a
// flat key map. Missing fields are simply absent; callers treat absence as
// null. Returns an empty map when Yahoo has nothing for the symbol.
func (c *Client) GetStockInfo(ctx context.Context, ticker string) (map[string]interface{}, error) {
	cacheKey := "info:" + ticker

	if cached, ok := c.fromCache(cacheKey); ok {
		return cached, nil
	}

	raw, err := c.fetchQuoteSummary(ctx, ticker)
	if err != nil {
		if stale, ok := c.fromCacheStale(cacheKey); ok {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("API failed, using stale cached quote")
			return stale, nil
		}
		return nil, err
	}

	info := flattenQuoteSummary(raw)
	if len(info) > 0 && c.cacheRepo != nil {
		if err := c.cacheRepo.Store("stock_info", cacheKey, info, clientdata.TTLStockInfo); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache stock info")
		}
	}
	return info, nil
}

// GetMomentum computes trailing price-change percentages and a 14-day RSI
// from one year of daily closes. Windows without enough history are omitted.
func (c *Client) GetMomentum(ctx context.Context, ticker string) (map[string]interface{}, error) {
	cacheKey := "momentum:" + ticker

	if cached, ok := c.fromCache(cacheKey); ok {
		return cached, nil
	}

	closes, err := c.fetchDailyCloses(ctx, ticker)
	if err != nil {
		if stale, ok := c.fromCacheStale(cacheKey); ok {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("API failed, using stale cached momentum")
			return stale, nil
		}
		return nil, err
	}
	if len(closes) == 0 {
		return map[string]interface{}{}, nil
	}

	momentum := computeMomentum(closes)
	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("stock_info", cacheKey, momentum, clientdata.TTLStockInfo); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache momentum")
		}
	}
	return momentum, nil
}

func computeMomentum(closes []float64) map[string]interface{} {
	current := closes[len(closes)-1]
	result := make(map[string]interface{})

	windows := []struct {
		label string
		days  int
	}{
		{"1m", days1M},
		{"3m", days3M},
		{"6m", days6M},
		{"1y", days1Y},
	}
	for _, w := range windows {
		if len(closes) >= w.days {
			past := closes[len(closes)-w.days]
			if past != 0 {
				result["price_change_"+w.label] = round2((current/past - 1) * 100)
			}
		}
	}

	// talib needs at least period+1 samples to produce a value.
	if len(closes) > 14 {
		rsi := talib.Rsi(closes, 14)
		last := rsi[len(rsi)-1]
		if !math.IsNaN(last) {
			result["rsi_14"] = round2(last)
		}
	}
	return result
}

func (c *Client) fetchQuoteSummary(ctx context.Context, ticker string) (*quoteSummaryResponse, error) {
	url := fmt.Sprintf(
		"%s/%s?modules=price,summaryProfile,summaryDetail,financialData,defaultKeyStatistics",
		c.quoteURL, ticker,
	)

	var parsed quoteSummaryResponse
	if err := c.getJSON(ctx, url, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *Client) fetchDailyCloses(ctx context.Context, ticker string) ([]float64, error) {
	url := fmt.Sprintf("%s/%s?range=1y&interval=1d", c.chartURL, ticker)

	var parsed chartResponse
	if err := c.getJSON(ctx, url, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	raw := parsed.Chart.Result[0].Indicators.Quote[0].Close
	closes := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v != nil {
			closes = append(closes, *v)
		}
	}
	return closes, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; VeraScore/1.0)")

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

func (c *Client) fromCache(key string) (map[string]interface{}, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	data, err := c.cacheRepo.GetIfFresh("stock_info", key)
	if err != nil || data == nil {
		return nil, false
	}
	var cached map[string]interface{}
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	c.log.Debug().Str("key", key).Msg("Cache hit")
	return cached, true
}

func (c *Client) fromCacheStale(key string) (map[string]interface{}, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	data, err := c.cacheRepo.Get("stock_info", key)
	if err != nil || data == nil {
		return nil, false
	}
	var cached map[string]interface{}
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	return cached, true
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
