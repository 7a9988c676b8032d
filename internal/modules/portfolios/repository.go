// Package portfolios manages user portfolios and their holdings: CRUD, CSV
// import/export, live enrichment and aggregate metrics.
package portfolios

import (
	"database/sql"
	"fmt"
	"time"
)

// Portfolio is a stored portfolio row.
type Portfolio struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// Summary is a portfolio with its holdings count, for list views.
type Summary struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	HoldingsCount int     `json:"holdings_count"`
}

// Holding is a stored position row.
type Holding struct {
	ID           int64   `json:"id"`
	PortfolioID  int64   `json:"portfolio_id"`
	Ticker       string  `json:"ticker"`
	Shares       float64 `json:"shares"`
	CostBasis    float64 `json:"cost_basis"`
	PurchaseDate *string `json:"purchase_date"`
	Notes        *string `json:"notes"`
}

// HoldingUpdate carries the mutable holding fields; nil fields are kept.
type HoldingUpdate struct {
	Shares       *float64 `json:"shares"`
	CostBasis    *float64 `json:"cost_basis"`
	PurchaseDate *string  `json:"purchase_date"`
	Notes        *string  `json:"notes"`
}

// Repository provides portfolio persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new portfolios repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns all portfolios with their holdings counts.
func (r *Repository) List() ([]Summary, error) {
	rows, err := r.db.Query(`
		SELECT p.id, p.name, p.description, COUNT(h.id)
		FROM portfolios p
		LEFT JOIN holdings h ON h.portfolio_id = p.id
		GROUP BY p.id
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.HoldingsCount); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Create inserts a new portfolio and returns it.
func (r *Repository) Create(name string, description *string) (*Portfolio, error) {
	now := time.Now().Unix()
	result, err := r.db.Exec(
		"INSERT INTO portfolios (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)",
		name, description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio id: %w", err)
	}
	return &Portfolio{ID: id, Name: name, Description: description}, nil
}

// Get returns a portfolio by id, or nil when it does not exist.
func (r *Repository) Get(id int64) (*Portfolio, error) {
	var p Portfolio
	err := r.db.QueryRow(
		"SELECT id, name, description FROM portfolios WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio %d: %w", id, err)
	}
	return &p, nil
}

// Update applies non-nil fields to a portfolio. Returns the updated row, or
// nil when the portfolio does not exist.
func (r *Repository) Update(id int64, name, description *string) (*Portfolio, error) {
	existing, err := r.Get(id)
	if err != nil || existing == nil {
		return nil, err
	}

	if name != nil {
		existing.Name = *name
	}
	if description != nil {
		existing.Description = description
	}

	_, err = r.db.Exec(
		"UPDATE portfolios SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		existing.Name, existing.Description, time.Now().Unix(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update portfolio %d: %w", id, err)
	}
	return existing, nil
}

// Delete removes a portfolio and, via FK cascade, its holdings. Returns
// false when the portfolio does not exist.
func (r *Repository) Delete(id int64) (bool, error) {
	result, err := r.db.Exec("DELETE FROM portfolios WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete portfolio %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Holdings returns all holdings of a portfolio.
func (r *Repository) Holdings(portfolioID int64) ([]Holding, error) {
	rows, err := r.db.Query(`
		SELECT id, portfolio_id, ticker, shares, cost_basis, purchase_date, notes
		FROM holdings WHERE portfolio_id = ? ORDER BY id`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	holdings := []Holding{}
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.ID, &h.PortfolioID, &h.Ticker, &h.Shares, &h.CostBasis, &h.PurchaseDate, &h.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// AddHolding inserts a holding into a portfolio.
func (r *Repository) AddHolding(h Holding) (*Holding, error) {
	result, err := r.db.Exec(`
		INSERT INTO holdings (portfolio_id, ticker, shares, cost_basis, purchase_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.PortfolioID, h.Ticker, h.Shares, h.CostBasis, h.PurchaseDate, h.Notes, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add holding: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get holding id: %w", err)
	}
	h.ID = id
	return &h, nil
}

// GetHolding returns a holding by id, or nil when it does not exist.
func (r *Repository) GetHolding(id int64) (*Holding, error) {
	var h Holding
	err := r.db.QueryRow(`
		SELECT id, portfolio_id, ticker, shares, cost_basis, purchase_date, notes
		FROM holdings WHERE id = ?`, id,
	).Scan(&h.ID, &h.PortfolioID, &h.Ticker, &h.Shares, &h.CostBasis, &h.PurchaseDate, &h.Notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding %d: %w", id, err)
	}
	return &h, nil
}

// UpdateHolding applies non-nil fields to a holding. Returns the updated
// row, or nil when the holding does not exist.
func (r *Repository) UpdateHolding(id int64, update HoldingUpdate) (*Holding, error) {
	existing, err := r.GetHolding(id)
	if err != nil || existing == nil {
		return nil, err
	}

	if update.Shares != nil {
		existing.Shares = *update.Shares
	}
	if update.CostBasis != nil {
		existing.CostBasis = *update.CostBasis
	}
	if update.PurchaseDate != nil {
		existing.PurchaseDate = update.PurchaseDate
	}
	if update.Notes != nil {
		existing.Notes = update.Notes
	}

	_, err = r.db.Exec(`
		UPDATE holdings SET shares = ?, cost_basis = ?, purchase_date = ?, notes = ?
		WHERE id = ?`,
		existing.Shares, existing.CostBasis, existing.PurchaseDate, existing.Notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update holding %d: %w", id, err)
	}
	return existing, nil
}

// DeleteHolding removes a holding. Returns false when it does not exist.
func (r *Repository) DeleteHolding(id int64) (bool, error) {
	result, err := r.db.Exec("DELETE FROM holdings WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete holding %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}
