package secedgar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tickersFixture = `{
  "0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
  "1": {"cik_str": 789019, "ticker": "MSFT", "title": "Microsoft Corp"}
}`

const submissionsFixture = `{
  "cik": 320193,
  "filings": {
    "recent": {
      "form": ["8-K", "4", "10-Q", "10-K"],
      "filingDate": ["2026-08-01", "2026-07-20", "2026-07-01", "2026-01-15"],
      "accessionNumber": ["0000320193-26-000081", "0000320193-26-000070", "0000320193-26-000055", "0000320193-26-000010"],
      "primaryDocument": ["earnings8k.htm", "form4.xml", "q3-10q.htm", "fy25-10k.htm"],
      "primaryDocDescription": ["8-K", "", "10-Q", "10-K"]
    }
  }
}`

func newTestClient(t *testing.T) *Client {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(tickersFixture))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(submissionsFixture))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c := NewClient(nil, zerolog.Nop())
	c.submissionsURL = server.URL + "/submissions"
	c.tickersURL = server.URL + "/files/company_tickers.json"
	return c
}

func TestRecentFilings(t *testing.T) {
	client := newTestClient(t)

	filings, err := client.RecentFilings(context.Background(), "aapl", nil, 10)
	require.NoError(t, err)
	require.Len(t, filings, 3, "form 4 is filtered out")

	first := filings[0]
	assert.Equal(t, "8-K", first.FormType)
	assert.Equal(t, "2026-08-01", first.FilingDate)
	assert.Equal(t, "0000320193-26-000081", first.AccessionNumber)
	assert.Contains(t, first.FilingURL, "/320193/000032019326000081")
	assert.Equal(t, first.FilingURL+"/earnings8k.htm", first.PrimaryDocURL)

	assert.Equal(t, "10-Q", filings[1].FormType)
	assert.Equal(t, "10-K", filings[2].FormType)
}

func TestRecentFilingsFormFilter(t *testing.T) {
	client := newTestClient(t)

	filings, err := client.RecentFilings(context.Background(), "AAPL", []string{"10-K"}, 10)
	require.NoError(t, err)
	require.Len(t, filings, 1)
	assert.Equal(t, "10-K", filings[0].FormType)
}

func TestRecentFilingsLimit(t *testing.T) {
	client := newTestClient(t)

	filings, err := client.RecentFilings(context.Background(), "AAPL", nil, 1)
	require.NoError(t, err)
	assert.Len(t, filings, 1)
}

func TestRecentFilingsUnknownTicker(t *testing.T) {
	client := newTestClient(t)

	filings, err := client.RecentFilings(context.Background(), "ZZZZ", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, filings)
}

func TestPadCIK(t *testing.T) {
	assert.Equal(t, "0000320193", padCIK("320193"))
	assert.Equal(t, "0000000001", padCIK("1"))
	assert.Equal(t, "1234567890", padCIK("1234567890"))
}
