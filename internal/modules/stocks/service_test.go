package stocks

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbottock-ai/VeraScore/internal/clients/fmp"
)

type stubQuotes struct {
	info     map[string]interface{}
	momentum map[string]interface{}
	infoErr  error
}

func (s *stubQuotes) GetStockInfo(_ context.Context, _ string) (map[string]interface{}, error) {
	return s.info, s.infoErr
}

func (s *stubQuotes) GetMomentum(_ context.Context, _ string) (map[string]interface{}, error) {
	return s.momentum, nil
}

type stubGrowth struct {
	results []fmp.SearchResult
	growth  *fmp.FinancialGrowth
}

func (s *stubGrowth) Search(_ context.Context, _ string, _ int) ([]fmp.SearchResult, error) {
	return s.results, nil
}

func (s *stubGrowth) GetFinancialGrowth(_ context.Context, _ string) (*fmp.FinancialGrowth, error) {
	return s.growth, nil
}

func f(v float64) *float64 { return &v }

func TestSearch(t *testing.T) {
	growth := &stubGrowth{results: []fmp.SearchResult{
		{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ"},
	}}
	svc := NewService(&stubQuotes{}, growth, nil, nil, zerolog.Nop())

	resp, err := svc.Search(context.Background(), "apple", 10)
	require.NoError(t, err)
	assert.Equal(t, "apple", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "AAPL", resp.Results[0].Ticker)
	assert.Equal(t, "Apple Inc.", resp.Results[0].Name)
}

func TestGetStock(t *testing.T) {
	t.Run("maps quote fields", func(t *testing.T) {
		quotes := &stubQuotes{info: map[string]interface{}{
			"name":           "Apple Inc.",
			"sector":         "Technology",
			"price":          182.5,
			"change_percent": 1.23,
			"market_cap":     2.8e12,
		}}
		svc := NewService(quotes, &stubGrowth{}, nil, nil, zerolog.Nop())

		detail, err := svc.GetStock(context.Background(), "aapl")
		require.NoError(t, err)
		require.NotNil(t, detail)
		assert.Equal(t, "AAPL", detail.Ticker)
		assert.Equal(t, "Apple Inc.", detail.Name)
		require.NotNil(t, detail.Sector)
		assert.Equal(t, "Technology", *detail.Sector)
		require.NotNil(t, detail.Price)
		assert.Equal(t, 182.5, *detail.Price)
		assert.Nil(t, detail.Beta)
	})

	t.Run("unknown ticker returns nil", func(t *testing.T) {
		svc := NewService(&stubQuotes{info: map[string]interface{}{}}, &stubGrowth{}, nil, nil, zerolog.Nop())

		detail, err := svc.GetStock(context.Background(), "ZZZZ")
		require.NoError(t, err)
		assert.Nil(t, detail)
	})

	t.Run("provider error propagates", func(t *testing.T) {
		svc := NewService(&stubQuotes{infoErr: errors.New("rate limited")}, &stubGrowth{}, nil, nil, zerolog.Nop())

		_, err := svc.GetStock(context.Background(), "AAPL")
		assert.Error(t, err)
	})
}

func TestGetFundamentals(t *testing.T) {
	quotes := &stubQuotes{
		info: map[string]interface{}{
			"pe_ttm":             29.456,
			"revenue_growth_yoy": 8.1,
			"gross_margin":       44.1,
			"current_ratio":      1.037,
			"fcf_yield":          3.56,
			"dividend_yield":     0.55,
			"target_mean":        200.5,
			"rating":             "2.0 - Buy",
			"num_analysts":       40.0,
		},
		momentum: map[string]interface{}{
			"price_change_3m": 12.4,
			"rsi_14":          61.2,
		},
	}
	growth := &stubGrowth{growth: &fmp.FinancialGrowth{
		ThreeYRevenueGrowthPerShare: f(0.233),
		FiveYRevenueGrowthPerShare:  f(0.52),
	}}
	svc := NewService(quotes, growth, nil, nil, zerolog.Nop())

	record, err := svc.GetFundamentals(context.Background(), "AAPL")
	require.NoError(t, err)

	valuation := record["valuation"].(map[string]interface{})
	assert.Equal(t, 29.46, valuation["pe_ttm"], "valuation ratios round to 2dp")
	assert.Nil(t, valuation["pb_ratio"], "absent metrics are explicit nulls")

	g := record["growth"].(map[string]interface{})
	assert.Equal(t, 8.1, g["revenue_growth_yoy"])
	assert.Equal(t, 23.3, g["revenue_growth_3y"], "FMP decimals become percentages")
	assert.Equal(t, 52.0, g["revenue_growth_5y"])
	assert.Nil(t, g["revenue_growth_10y"])

	quality := record["quality"].(map[string]interface{})
	assert.Equal(t, 1.04, quality["current_ratio"])
	assert.Equal(t, 3.56, quality["fcf_yield"])

	momentum := record["momentum"].(map[string]interface{})
	assert.Equal(t, 12.4, momentum["price_change_3m"])
	assert.Equal(t, 61.2, momentum["rsi_14"])

	analyst := record["analyst"].(map[string]interface{})
	assert.Equal(t, "2.0 - Buy", analyst["rating"])
	assert.Equal(t, 40.0, analyst["num_analysts"])
}

func TestGetFundamentalsWithoutGrowthProvider(t *testing.T) {
	quotes := &stubQuotes{info: map[string]interface{}{"pe_ttm": 20.0}}
	svc := NewService(quotes, &stubGrowth{}, nil, nil, zerolog.Nop())

	record, err := svc.GetFundamentals(context.Background(), "AAPL")
	require.NoError(t, err)

	g := record["growth"].(map[string]interface{})
	assert.Nil(t, g["revenue_growth_3y"])
}
