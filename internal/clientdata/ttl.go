package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Fundamentals update with quarterly filings; a daily refresh is plenty.
	TTLFundamentals = 24 * time.Hour

	// Quotes and derived momentum move intraday.
	TTLStockInfo = 15 * time.Minute

	// Ticker search results are stable within a session.
	TTLSearch = time.Hour

	// EDGAR filing lists update a few times per day at most.
	TTLSECFilings = 6 * time.Hour
)
