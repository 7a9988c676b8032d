// Package stocks assembles stock search, detail and fundamentals data from
// the market data providers, with cache-first fetching.
package stocks

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/clientdata"
	"github.com/cbottock-ai/VeraScore/internal/clients/fmp"
)

// QuoteProvider supplies quote snapshots and price momentum.
type QuoteProvider interface {
	GetStockInfo(ctx context.Context, ticker string) (map[string]interface{}, error)
	GetMomentum(ctx context.Context, ticker string) (map[string]interface{}, error)
}

// SearchProvider supplies ticker search and historical growth rates.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]fmp.SearchResult, error)
	GetFinancialGrowth(ctx context.Context, ticker string) (*fmp.FinancialGrowth, error)
}

// SearchResult is one ticker match.
type SearchResult struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
}

// SearchResponse wraps search results with the originating query.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// StockDetail is the profile and quote snapshot for one company.
type StockDetail struct {
	Ticker        string   `json:"ticker"`
	Name          string   `json:"name"`
	Sector        *string  `json:"sector"`
	Industry      *string  `json:"industry"`
	MarketCap     *float64 `json:"market_cap"`
	Exchange      *string  `json:"exchange"`
	Price         *float64 `json:"price"`
	ChangePercent *float64 `json:"change_percent"`
	Beta          *float64 `json:"beta"`
	Week52High    *float64 `json:"week_52_high"`
	Week52Low     *float64 `json:"week_52_low"`
	AvgVolume     *float64 `json:"avg_volume"`
	DividendYield *float64 `json:"dividend_yield"`
}

// Service provides stock data operations.
type Service struct {
	quotes QuoteProvider
	growth SearchProvider
	cache  *clientdata.Repository
	repo   *Repository
	log    zerolog.Logger
}

// NewService creates a stocks service. repo and cache are optional; nil
// disables the stocks table upsert and fundamentals caching respectively.
func NewService(quotes QuoteProvider, growth SearchProvider, cache *clientdata.Repository, repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		quotes: quotes,
		growth: growth,
		cache:  cache,
		repo:   repo,
		log:    log.With().Str("service", "stocks").Logger(),
	}
}

// Search finds tickers matching a query.
func (s *Service) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	matches, err := s.growth.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			Ticker:   m.Symbol,
			Name:     m.Name,
			Exchange: m.Exchange,
		})
	}
	return &SearchResponse{Query: query, Results: results}, nil
}

// GetStock fetches the profile and quote for a ticker and records the
// company in the stocks table. Returns nil when the ticker is unknown.
func (s *Service) GetStock(ctx context.Context, ticker string) (*StockDetail, error) {
	ticker = strings.ToUpper(ticker)

	info, err := s.quotes.GetStockInfo(ctx, ticker)
	if err != nil {
		return nil, err
	}
	name, _ := info["name"].(string)
	if name == "" {
		return nil, nil
	}

	detail := &StockDetail{
		Ticker:        ticker,
		Name:          name,
		Sector:        optString(info, "sector"),
		Industry:      optString(info, "industry"),
		MarketCap:     optFloat(info, "market_cap"),
		Exchange:      optString(info, "exchange"),
		Price:         optFloat(info, "price"),
		ChangePercent: optFloat(info, "change_percent"),
		Beta:          optFloat(info, "beta"),
		Week52High:    optFloat(info, "week_52_high"),
		Week52Low:     optFloat(info, "week_52_low"),
		AvgVolume:     optFloat(info, "avg_volume"),
		DividendYield: optFloat(info, "dividend_yield"),
	}

	if s.repo != nil {
		if err := s.repo.Upsert(detail); err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to upsert stock record")
		}
	}
	return detail, nil
}

// GetStockInfo returns the raw flat quote map, used by scoring for analyst
// fallbacks. Caching happens inside the quote provider.
func (s *Service) GetStockInfo(ctx context.Context, ticker string) (map[string]interface{}, error) {
	return s.quotes.GetStockInfo(ctx, strings.ToUpper(ticker))
}

// GetFundamentals assembles the categorized fundamentals record for a
// ticker: quote-derived metrics, FMP multi-year growth, and price momentum.
// The assembled record is cached for a day.
func (s *Service) GetFundamentals(ctx context.Context, ticker string) (map[string]interface{}, error) {
	ticker = strings.ToUpper(ticker)

	if s.cache != nil {
		if data, err := s.cache.GetIfFresh("fundamentals", ticker); err == nil && data != nil {
			var cached map[string]interface{}
			if err := json.Unmarshal(data, &cached); err == nil {
				s.log.Debug().Str("ticker", ticker).Msg("Fundamentals cache hit")
				return cached, nil
			}
		}
	}

	info, err := s.quotes.GetStockInfo(ctx, ticker)
	if err != nil {
		return nil, err
	}

	growth, err := s.growth.GetFinancialGrowth(ctx, ticker)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Historical growth fetch failed")
		growth = nil
	}

	momentum, err := s.quotes.GetMomentum(ctx, ticker)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Momentum fetch failed")
		momentum = map[string]interface{}{}
	}

	record := assembleFundamentals(info, growth, momentum)

	if s.cache != nil {
		if err := s.cache.Store("fundamentals", ticker, record, clientdata.TTLFundamentals); err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache fundamentals")
		}
	}
	return record, nil
}

// assembleFundamentals shapes the flat quote map and auxiliary data into the
// categorized record the scoring configs address by dotted paths.
func assembleFundamentals(info map[string]interface{}, growth *fmp.FinancialGrowth, momentum map[string]interface{}) map[string]interface{} {
	if momentum == nil {
		momentum = map[string]interface{}{}
	}

	var rev3y, earn3y, rev5y, rev10y interface{}
	if growth != nil {
		rev3y = growthPct(growth.ThreeYRevenueGrowthPerShare)
		earn3y = growthPct(growth.ThreeYNetIncomeGrowthPerShare)
		rev5y = growthPct(growth.FiveYRevenueGrowthPerShare)
		rev10y = growthPct(growth.TenYRevenueGrowthPerShare)
	}

	return map[string]interface{}{
		"valuation": map[string]interface{}{
			"pe_ttm":        rounded(info, "pe_ttm"),
			"pe_ntm":        rounded(info, "pe_ntm"),
			"ps_ttm":        rounded(info, "ps_ttm"),
			"pb_ratio":      rounded(info, "pb_ratio"),
			"ev_to_ebitda":  rounded(info, "ev_to_ebitda"),
			"ev_to_revenue": rounded(info, "ev_to_revenue"),
			"peg_ratio":     rounded(info, "peg_ratio"),
			"eps_ttm":       rounded(info, "eps_ttm"),
			"eps_ntm":       rounded(info, "eps_ntm"),
		},
		"growth": map[string]interface{}{
			"revenue_growth_yoy":        info["revenue_growth_yoy"],
			"earnings_growth_yoy":       info["earnings_growth_yoy"],
			"earnings_growth_quarterly": info["earnings_growth_quarterly"],
			"revenue_growth_3y":         rev3y,
			"earnings_growth_3y":        earn3y,
			"revenue_growth_5y":         rev5y,
			"revenue_growth_10y":        rev10y,
		},
		"profitability": map[string]interface{}{
			"gross_margin":     info["gross_margin"],
			"ebitda_margin":    info["ebitda_margin"],
			"operating_margin": info["operating_margin"],
			"net_margin":       info["net_margin"],
			"roe":              info["roe"],
			"roa":              info["roa"],
		},
		"quality": map[string]interface{}{
			"current_ratio":       rounded(info, "current_ratio"),
			"quick_ratio":         rounded(info, "quick_ratio"),
			"debt_to_equity":      info["debt_to_equity"],
			"total_debt":          info["total_debt"],
			"total_cash":          info["total_cash"],
			"free_cash_flow":      info["free_cash_flow"],
			"operating_cash_flow": info["operating_cash_flow"],
			"fcf_yield":           info["fcf_yield"],
		},
		"momentum": momentum,
		"dividend": map[string]interface{}{
			"dividend_yield": info["dividend_yield"],
			"payout_ratio":   info["payout_ratio"],
		},
		"analyst": map[string]interface{}{
			"target_mean":   info["target_mean"],
			"target_median": info["target_median"],
			"target_high":   info["target_high"],
			"target_low":    info["target_low"],
			"rating":        info["rating"],
			"num_analysts":  info["num_analysts"],
		},
	}
}

func optFloat(info map[string]interface{}, key string) *float64 {
	if v, ok := info[key].(float64); ok {
		return &v
	}
	return nil
}

func optString(info map[string]interface{}, key string) *string {
	if v, ok := info[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

// rounded returns the value rounded to two decimals, or nil when absent.
func rounded(info map[string]interface{}, key string) interface{} {
	v, ok := info[key].(float64)
	if !ok {
		return nil
	}
	return math.Round(v*100) / 100
}

// growthPct converts FMP decimal fractions to percentages.
func growthPct(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return math.Round(*v*100*100) / 100
}
