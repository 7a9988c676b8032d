package stocks

import (
	"database/sql"
	"fmt"
	"time"
)

// Repository persists the companies seen through the detail endpoint so the
// rest of the system can join names and sectors without refetching.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new stocks repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts or refreshes a stock row.
func (r *Repository) Upsert(detail *StockDetail) error {
	_, err := r.db.Exec(`
		INSERT INTO stocks (ticker, name, sector, industry, market_cap, exchange, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			name = excluded.name,
			sector = excluded.sector,
			industry = excluded.industry,
			market_cap = excluded.market_cap,
			exchange = excluded.exchange,
			last_updated = excluded.last_updated`,
		detail.Ticker, detail.Name, detail.Sector, detail.Industry,
		detail.MarketCap, detail.Exchange, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stock %s: %w", detail.Ticker, err)
	}
	return nil
}

// Get returns a stored stock row, or nil when the ticker is unknown.
func (r *Repository) Get(ticker string) (*StockDetail, error) {
	var detail StockDetail
	err := r.db.QueryRow(`
		SELECT ticker, name, sector, industry, market_cap, exchange
		FROM stocks WHERE ticker = ?`, ticker,
	).Scan(&detail.Ticker, &detail.Name, &detail.Sector, &detail.Industry,
		&detail.MarketCap, &detail.Exchange)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock %s: %w", ticker, err)
	}
	return &detail, nil
}
