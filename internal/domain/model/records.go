package model

import "time"

// AnalyticsDoc is the per-event document shape for the dashboard index.
// TxnCount is always 1 and AvgAmount equals the event's own total: this
// layer never aggregates across events, the analytics store does.
type AnalyticsDoc struct {
	Brand       string    `json:"brand"`
	Category    string    `json:"category"`
	Currency    string    `json:"currency"`
	TotalAmount float64   `json:"total_amount"`
	TxnCount    int64     `json:"txn_count"`
	AvgAmount   float64   `json:"avg_amount"`
	TxnHour     time.Time `json:"txn_hour"`
}

// LedgerRow is the system-of-record row shape, keyed by TransactionID.
// The key is declared but not enforced by the destination; the postgres
// adapter carries the idempotence guarantee via upsert.
type LedgerRow struct {
	TransactionID   string
	ProductID       string
	ProductName     string
	ProductCategory string
	ProductPrice    float64
	ProductQuantity int
	ProductBrand    string
	Currency        string
	CustomerID      string
	TransactionDate time.Time
	PaymentMethod   string
	TotalAmount     float64
}
