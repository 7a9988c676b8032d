package portfolios

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbottock-ai/VeraScore/internal/database"
)

// setupRepo opens an app database with the shipped schema so the tests run
// against the exact tables production migrates.
func setupRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='holdings'").Scan(&name)
	require.NoError(t, err, "shipped app schema must create the portfolio tables")

	return NewRepository(db.Conn())
}

type stubQuotes struct {
	infos map[string]map[string]interface{}
}

func (s *stubQuotes) GetStockInfo(ctx context.Context, ticker string) (map[string]interface{}, error) {
	return s.infos[ticker], nil
}

type stubScores struct {
	scores map[string]float64
}

func (s *stubScores) CompositeScore(ctx context.Context, ticker string) (*float64, error) {
	if score, ok := s.scores[ticker]; ok {
		return &score, nil
	}
	return nil, nil
}

func setupService(t *testing.T, quotes *stubQuotes, scores *stubScores) *Service {
	t.Helper()
	if quotes == nil {
		quotes = &stubQuotes{}
	}
	if scores == nil {
		scores = &stubScores{}
	}
	return NewService(setupRepo(t), quotes, scores, zerolog.Nop())
}

func TestRepositoryPortfolioCRUD(t *testing.T) {
	repo := setupRepo(t)

	desc := "long-term positions"
	created, err := repo.Create("Core", &desc)
	require.NoError(t, err)
	assert.Equal(t, "Core", created.Name)

	got, err := repo.Get(created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "long-term positions", *got.Description)

	newName := "Core Equities"
	updated, err := repo.Update(created.ID, &newName, nil)
	require.NoError(t, err)
	assert.Equal(t, "Core Equities", updated.Name)
	assert.Equal(t, "long-term positions", *updated.Description)

	deleted, err := repo.Delete(created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = repo.Get(created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositoryMissingRows(t *testing.T) {
	repo := setupRepo(t)

	got, err := repo.Get(999)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := repo.Delete(999)
	require.NoError(t, err)
	assert.False(t, deleted)

	holding, err := repo.GetHolding(999)
	require.NoError(t, err)
	assert.Nil(t, holding)
}

func TestRepositoryHoldingCRUD(t *testing.T) {
	repo := setupRepo(t)
	portfolio, err := repo.Create("Test", nil)
	require.NoError(t, err)

	added, err := repo.AddHolding(Holding{
		PortfolioID: portfolio.ID,
		Ticker:      "AAPL",
		Shares:      10,
		CostBasis:   1500,
	})
	require.NoError(t, err)
	assert.NotZero(t, added.ID)

	newShares := 20.0
	updated, err := repo.UpdateHolding(added.ID, HoldingUpdate{Shares: &newShares})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Shares)
	assert.Equal(t, 1500.0, updated.CostBasis)

	holdings, err := repo.Holdings(portfolio.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Ticker)

	deleted, err := repo.DeleteHolding(added.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestServiceEnrichment(t *testing.T) {
	quotes := &stubQuotes{infos: map[string]map[string]interface{}{
		"AAPL": {"price": 200.0, "sector": "Technology"},
		"XOM":  {"price": 100.0, "sector": "Energy"},
	}}
	scores := &stubScores{scores: map[string]float64{"AAPL": 80.0, "XOM": 60.0}}
	svc := setupService(t, quotes, scores)

	portfolio, err := svc.Create("Mixed", nil)
	require.NoError(t, err)
	_, err = svc.AddHolding(portfolio.ID, Holding{Ticker: "aapl", Shares: 10, CostBasis: 1500})
	require.NoError(t, err)
	_, err = svc.AddHolding(portfolio.ID, Holding{Ticker: "XOM", Shares: 10, CostBasis: 1200})
	require.NoError(t, err)

	detail, err := svc.Get(context.Background(), portfolio.ID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.Len(t, detail.Holdings, 2)

	aapl := detail.Holdings[0]
	assert.Equal(t, "AAPL", aapl.Ticker)
	assert.Equal(t, 200.0, *aapl.CurrentPrice)
	assert.Equal(t, 2000.0, *aapl.CurrentValue)
	assert.Equal(t, 500.0, *aapl.GainLoss)
	assert.InDelta(t, 33.33, *aapl.GainLossPct, 0.001)
	assert.Equal(t, 150.0, *aapl.CostPerShare)
	assert.Equal(t, "Technology", *aapl.Sector)
	assert.Equal(t, 80.0, *aapl.Score)

	m := detail.Metrics
	assert.Equal(t, 3000.0, m.TotalValue)
	assert.Equal(t, 2700.0, m.TotalCostBasis)
	assert.Equal(t, 300.0, m.TotalGainLoss)
	assert.InDelta(t, 11.11, m.TotalGainLossPct, 0.001)
	assert.Equal(t, 2, m.HoldingsCount)

	require.Len(t, m.SectorAllocation, 2)
	assert.Equal(t, "Technology", m.SectorAllocation[0].Sector)
	assert.Equal(t, 66.7, m.SectorAllocation[0].Pct)

	require.Len(t, m.TopHoldings, 2)
	assert.Equal(t, "AAPL", m.TopHoldings[0].Ticker)

	// 80*2000 + 60*1000 over 3000
	require.NotNil(t, m.WeightedScore)
	assert.InDelta(t, 73.3, *m.WeightedScore, 0.001)
}

func TestServiceEnrichmentMissingQuote(t *testing.T) {
	svc := setupService(t, &stubQuotes{}, nil)

	portfolio, err := svc.Create("Sparse", nil)
	require.NoError(t, err)
	_, err = svc.AddHolding(portfolio.ID, Holding{Ticker: "ZZZZ", Shares: 5, CostBasis: 500})
	require.NoError(t, err)

	detail, err := svc.Get(context.Background(), portfolio.ID)
	require.NoError(t, err)

	h := detail.Holdings[0]
	assert.Nil(t, h.CurrentPrice)
	assert.Nil(t, h.CurrentValue)
	assert.Nil(t, h.Sector)
	assert.Equal(t, 100.0, *h.CostPerShare)

	m := detail.Metrics
	assert.Equal(t, 0.0, m.TotalValue)
	assert.Equal(t, 500.0, m.TotalCostBasis)
	assert.Nil(t, m.WeightedScore)
	assert.Empty(t, m.TopHoldings)
}

func TestServiceZeroCostBasis(t *testing.T) {
	quotes := &stubQuotes{infos: map[string]map[string]interface{}{
		"FREE": {"price": 10.0},
	}}
	svc := setupService(t, quotes, nil)

	portfolio, err := svc.Create("Gifted", nil)
	require.NoError(t, err)
	_, err = svc.AddHolding(portfolio.ID, Holding{Ticker: "FREE", Shares: 1, CostBasis: 0})
	require.NoError(t, err)

	detail, err := svc.Get(context.Background(), portfolio.ID)
	require.NoError(t, err)

	assert.Nil(t, detail.Holdings[0].GainLossPct)
	assert.Equal(t, 0.0, detail.Metrics.TotalGainLossPct)
}

func TestImportCSV(t *testing.T) {
	svc := setupService(t, nil, nil)
	portfolio, err := svc.Create("Imported", nil)
	require.NoError(t, err)

	content := strings.Join([]string{
		"ticker,shares,cost_basis,purchase_date,notes",
		"AAPL,10,1500,2024-01-15,core position",
		",5,100,,",
		"MSFT,abc,900,,",
		"XOM,8,800,,",
	}, "\n")

	result, err := svc.ImportCSV(portfolio.ID, content)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Row 3: missing ticker", result.Errors[0])
	assert.Equal(t, "Row 4: invalid shares", result.Errors[1])

	holdings, err := svc.repo.Holdings(portfolio.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", holdings[0].Ticker)
	assert.Equal(t, "2024-01-15", *holdings[0].PurchaseDate)
	assert.Equal(t, "core position", *holdings[0].Notes)
}

func TestImportCSVPortfolioNotFound(t *testing.T) {
	svc := setupService(t, nil, nil)
	result, err := svc.ImportCSV(999, "ticker,shares,cost_basis\nAAPL,1,1")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestExportCSV(t *testing.T) {
	svc := setupService(t, nil, nil)
	portfolio, err := svc.Create("Exported", nil)
	require.NoError(t, err)

	date := "2024-01-15"
	_, err = svc.AddHolding(portfolio.ID, Holding{Ticker: "AAPL", Shares: 10.5, CostBasis: 1500, PurchaseDate: &date})
	require.NoError(t, err)
	_, err = svc.AddHolding(portfolio.ID, Holding{Ticker: "XOM", Shares: 8, CostBasis: 800})
	require.NoError(t, err)

	content, found, err := svc.ExportCSV(portfolio.ID)
	require.NoError(t, err)
	assert.True(t, found)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ticker,shares,cost_basis,purchase_date,notes", lines[0])
	assert.Equal(t, "AAPL,10.5,1500,2024-01-15,", lines[1])
	assert.Equal(t, "XOM,8,800,,", lines[2])

	_, found, err = svc.ExportCSV(999)
	require.NoError(t, err)
	assert.False(t, found)
}
