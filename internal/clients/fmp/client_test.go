package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	c := NewClient("test-key", nil, zerolog.Nop())
	c.baseURL = serverURL
	return c
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search-symbol", r.URL.Path)
		assert.Equal(t, "apple", r.URL.Query().Get("query"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`[
			{"symbol": "AAPL", "name": "Apple Inc.", "exchange": "NASDAQ"},
			{"symbol": "APLE", "name": "Apple Hospitality REIT", "exchange": "NYSE"}
		]`))
	}))
	defer server.Close()

	results, err := newTestClient(server.URL).Search(context.Background(), "apple", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, "Apple Inc.", results[0].Name)
	assert.Equal(t, "NASDAQ", results[0].Exchange)
}

func TestSearchWithoutAPIKey(t *testing.T) {
	client := NewClient("", nil, zerolog.Nop())

	results, err := client.Search(context.Background(), "apple", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetFinancialGrowth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/financial-growth", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		w.Write([]byte(`[{
			"threeYRevenueGrowthPerShare": 0.233,
			"threeYNetIncomeGrowthPerShare": 0.31,
			"fiveYRevenueGrowthPerShare": 0.52
		}]`))
	}))
	defer server.Close()

	growth, err := newTestClient(server.URL).GetFinancialGrowth(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, growth)
	require.NotNil(t, growth.ThreeYRevenueGrowthPerShare)
	assert.Equal(t, 0.233, *growth.ThreeYRevenueGrowthPerShare)
	assert.Nil(t, growth.TenYRevenueGrowthPerShare)
}

func TestGetFinancialGrowthEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	growth, err := newTestClient(server.URL).GetFinancialGrowth(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Nil(t, growth)
}

func TestAPIErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Search(context.Background(), "x", 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
