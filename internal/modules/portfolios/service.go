package portfolios

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// csvHeader is the column order for CSV import and export.
var csvHeader = []string{"ticker", "shares", "cost_basis", "purchase_date", "notes"}

// QuoteProvider supplies live stock info for holding enrichment.
type QuoteProvider interface {
	GetStockInfo(ctx context.Context, ticker string) (map[string]interface{}, error)
}

// ScoreProvider supplies composite scores for holding enrichment.
type ScoreProvider interface {
	CompositeScore(ctx context.Context, ticker string) (*float64, error)
}

// HoldingDetail is a holding enriched with live market data.
type HoldingDetail struct {
	Holding
	CurrentPrice *float64 `json:"current_price"`
	CurrentValue *float64 `json:"current_value"`
	GainLoss     *float64 `json:"gain_loss"`
	GainLossPct  *float64 `json:"gain_loss_pct"`
	CostPerShare *float64 `json:"cost_per_share"`
	Sector       *string  `json:"sector"`
	Score        *float64 `json:"score"`
}

// SectorAllocation is one slice of the portfolio by sector.
type SectorAllocation struct {
	Sector string  `json:"sector"`
	Value  float64 `json:"value"`
	Pct    float64 `json:"pct"`
}

// TopHolding is one of the largest positions by market value.
type TopHolding struct {
	Ticker string  `json:"ticker"`
	Value  float64 `json:"value"`
	Pct    float64 `json:"pct"`
}

// Metrics aggregates a portfolio's enriched holdings.
type Metrics struct {
	TotalValue       float64            `json:"total_value"`
	TotalCostBasis   float64            `json:"total_cost_basis"`
	TotalGainLoss    float64            `json:"total_gain_loss"`
	TotalGainLossPct float64            `json:"total_gain_loss_pct"`
	HoldingsCount    int                `json:"holdings_count"`
	SectorAllocation []SectorAllocation `json:"sector_allocation"`
	TopHoldings      []TopHolding       `json:"top_holdings"`
	WeightedScore    *float64           `json:"weighted_score"`
}

// Detail is a portfolio with enriched holdings and aggregate metrics.
type Detail struct {
	Portfolio
	Holdings []HoldingDetail `json:"holdings"`
	Metrics  Metrics         `json:"metrics"`
}

// ImportResult reports the outcome of a CSV import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// Service coordinates portfolio persistence with market data enrichment.
type Service struct {
	repo   *Repository
	quotes QuoteProvider
	scores ScoreProvider
	log    zerolog.Logger
}

// NewService creates a new portfolios service.
func NewService(repo *Repository, quotes QuoteProvider, scores ScoreProvider, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		quotes: quotes,
		scores: scores,
		log:    log.With().Str("service", "portfolios").Logger(),
	}
}

// List returns all portfolios with their holdings counts.
func (s *Service) List() ([]Summary, error) {
	return s.repo.List()
}

// Create inserts a new portfolio.
func (s *Service) Create(name string, description *string) (*Portfolio, error) {
	return s.repo.Create(name, description)
}

// Get returns a portfolio with enriched holdings and metrics, or nil when
// the portfolio does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	portfolio, err := s.repo.Get(id)
	if err != nil || portfolio == nil {
		return nil, err
	}

	holdings, err := s.repo.Holdings(id)
	if err != nil {
		return nil, err
	}

	enriched := s.enrichHoldings(ctx, holdings)
	return &Detail{
		Portfolio: *portfolio,
		Holdings:  enriched,
		Metrics:   computeMetrics(enriched),
	}, nil
}

// Update applies non-nil fields to a portfolio.
func (s *Service) Update(id int64, name, description *string) (*Portfolio, error) {
	return s.repo.Update(id, name, description)
}

// Delete removes a portfolio and its holdings.
func (s *Service) Delete(id int64) (bool, error) {
	return s.repo.Delete(id)
}

// AddHolding inserts a holding, verifying the portfolio exists first.
func (s *Service) AddHolding(portfolioID int64, h Holding) (*Holding, error) {
	portfolio, err := s.repo.Get(portfolioID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, nil
	}
	h.PortfolioID = portfolioID
	h.Ticker = strings.ToUpper(strings.TrimSpace(h.Ticker))
	return s.repo.AddHolding(h)
}

// UpdateHolding applies non-nil fields to a holding.
func (s *Service) UpdateHolding(id int64, update HoldingUpdate) (*Holding, error) {
	return s.repo.UpdateHolding(id, update)
}

// DeleteHolding removes a holding.
func (s *Service) DeleteHolding(id int64) (bool, error) {
	return s.repo.DeleteHolding(id)
}

// Holdings returns a portfolio's holdings enriched with live data, or nil
// when the portfolio does not exist.
func (s *Service) Holdings(ctx context.Context, portfolioID int64) ([]HoldingDetail, error) {
	portfolio, err := s.repo.Get(portfolioID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, nil
	}
	holdings, err := s.repo.Holdings(portfolioID)
	if err != nil {
		return nil, err
	}
	return s.enrichHoldings(ctx, holdings), nil
}

// enrichHoldings attaches current price, value, gain/loss, sector and score
// to each holding. Enrichment failures degrade to nil fields so a flaky
// upstream never hides the stored positions.
func (s *Service) enrichHoldings(ctx context.Context, holdings []Holding) []HoldingDetail {
	enriched := make([]HoldingDetail, 0, len(holdings))
	for _, h := range holdings {
		detail := HoldingDetail{Holding: h}

		info, err := s.quotes.GetStockInfo(ctx, h.Ticker)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("Failed to fetch stock info for holding")
		}
		if info != nil {
			if price, ok := info["price"].(float64); ok {
				detail.CurrentPrice = round2p(price)
				detail.CurrentValue = round2p(price * h.Shares)
				gainLoss := price*h.Shares - h.CostBasis
				detail.GainLoss = round2p(gainLoss)
				if h.CostBasis > 0 {
					detail.GainLossPct = round2p(gainLoss / h.CostBasis * 100)
				}
			}
			if sector, ok := info["sector"].(string); ok && sector != "" {
				detail.Sector = &sector
			}
		}
		if h.Shares > 0 {
			detail.CostPerShare = round2p(h.CostBasis / h.Shares)
		}

		if score, err := s.scores.CompositeScore(ctx, h.Ticker); err != nil {
			s.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("Failed to score holding")
		} else {
			detail.Score = score
		}

		enriched = append(enriched, detail)
	}
	return enriched
}

// computeMetrics aggregates enriched holdings into portfolio-level totals,
// sector allocation, top holdings and a value-weighted composite score.
func computeMetrics(holdings []HoldingDetail) Metrics {
	m := Metrics{
		HoldingsCount:    len(holdings),
		SectorAllocation: []SectorAllocation{},
		TopHoldings:      []TopHolding{},
	}

	sectorValues := map[string]float64{}
	var scoreWeighted, scoredValue float64

	for _, h := range holdings {
		m.TotalCostBasis += h.CostBasis
		if h.CurrentValue == nil {
			continue
		}
		value := *h.CurrentValue
		m.TotalValue += value

		sector := "Unknown"
		if h.Sector != nil {
			sector = *h.Sector
		}
		sectorValues[sector] += value

		if h.Score != nil {
			scoreWeighted += *h.Score * value
			scoredValue += value
		}
	}

	m.TotalGainLoss = round2(m.TotalValue - m.TotalCostBasis)
	if m.TotalCostBasis > 0 {
		m.TotalGainLossPct = round2(m.TotalGainLoss / m.TotalCostBasis * 100)
	}
	m.TotalValue = round2(m.TotalValue)
	m.TotalCostBasis = round2(m.TotalCostBasis)

	for sector, value := range sectorValues {
		pct := 0.0
		if m.TotalValue > 0 {
			pct = round1(value / m.TotalValue * 100)
		}
		m.SectorAllocation = append(m.SectorAllocation, SectorAllocation{
			Sector: sector,
			Value:  round2(value),
			Pct:    pct,
		})
	}
	sort.SliceStable(m.SectorAllocation, func(i, j int) bool {
		return m.SectorAllocation[i].Value > m.SectorAllocation[j].Value
	})

	byValue := make([]HoldingDetail, 0, len(holdings))
	for _, h := range holdings {
		if h.CurrentValue != nil {
			byValue = append(byValue, h)
		}
	}
	sort.SliceStable(byValue, func(i, j int) bool {
		return *byValue[i].CurrentValue > *byValue[j].CurrentValue
	})
	for i, h := range byValue {
		if i >= 5 {
			break
		}
		pct := 0.0
		if m.TotalValue > 0 {
			pct = round1(*h.CurrentValue / m.TotalValue * 100)
		}
		m.TopHoldings = append(m.TopHoldings, TopHolding{
			Ticker: h.Ticker,
			Value:  round2(*h.CurrentValue),
			Pct:    pct,
		})
	}

	if scoredValue > 0 {
		weighted := round1(scoreWeighted / scoredValue)
		m.WeightedScore = &weighted
	}
	return m
}

// ImportCSV parses holdings from CSV content and inserts the valid rows.
// Invalid rows are reported per row number without aborting the import.
// Returns nil when the portfolio does not exist.
func (s *Service) ImportCSV(portfolioID int64, content string) (*ImportResult, error) {
	portfolio, err := s.repo.Get(portfolioID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := map[string]int{}
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	result := &ImportResult{Errors: []string{}}
	rowNum := 1
	for {
		rowNum++
		record, err := reader.Read()
		if err != nil {
			break
		}

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		ticker := strings.ToUpper(field("ticker"))
		if ticker == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: missing ticker", rowNum))
			continue
		}

		shares, err := strconv.ParseFloat(field("shares"), 64)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: invalid shares", rowNum))
			continue
		}
		costBasis, err := strconv.ParseFloat(field("cost_basis"), 64)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: invalid cost_basis", rowNum))
			continue
		}

		h := Holding{
			PortfolioID: portfolioID,
			Ticker:      ticker,
			Shares:      shares,
			CostBasis:   costBasis,
		}
		if v := field("purchase_date"); v != "" {
			h.PurchaseDate = &v
		}
		if v := field("notes"); v != "" {
			h.Notes = &v
		}

		if _, err := s.repo.AddHolding(h); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

// ExportCSV renders a portfolio's holdings as CSV. Returns empty content
// and false when the portfolio does not exist.
func (s *Service) ExportCSV(portfolioID int64) (string, bool, error) {
	portfolio, err := s.repo.Get(portfolioID)
	if err != nil {
		return "", false, err
	}
	if portfolio == nil {
		return "", false, nil
	}

	holdings, err := s.repo.Holdings(portfolioID)
	if err != nil {
		return "", false, err
	}

	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return "", false, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, h := range holdings {
		record := []string{
			h.Ticker,
			strconv.FormatFloat(h.Shares, 'f', -1, 64),
			strconv.FormatFloat(h.CostBasis, 'f', -1, 64),
			strVal(h.PurchaseDate),
			strVal(h.Notes),
		}
		if err := writer.Write(record); err != nil {
			return "", false, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", false, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.String(), true, nil
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func round1(val float64) float64 {
	return math.Round(val*10) / 10
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}

func round2p(val float64) *float64 {
	rounded := round2(val)
	return &rounded
}
