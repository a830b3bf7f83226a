package service

import (
	"fmt"
	"time"

	"github.com/finflow/payment-stream-engine/internal/domain/model"
)

// Projector reshapes an enriched event into one destination's native
// record. Destinations are plug-in targets: adding or removing one means
// adding or removing a Projector binding, nothing upstream changes.
type Projector interface {
	Name() string
	Project(ev model.EnrichedEvent) (any, error)
}

// AnalyticsProjector emits one model.AnalyticsDoc per event.
type AnalyticsProjector struct {
	now func() time.Time
}

func NewAnalyticsProjector() *AnalyticsProjector {
	return &AnalyticsProjector{now: time.Now}
}

func (p *AnalyticsProjector) Name() string { return "analytics" }

// Project never fails: every field is a straight copy or a constant.
// TxnHour is the processing-time instant at projection, not the event's
// own transaction timestamp.
func (p *AnalyticsProjector) Project(ev model.EnrichedEvent) (any, error) {
	return model.AnalyticsDoc{
		Brand:       ev.NormalizedBrand,
		Category:    ev.ProductCategory,
		Currency:    ev.Currency,
		TotalAmount: ev.TotalAmount,
		TxnCount:    1,
		AvgAmount:   ev.TotalAmount,
		TxnHour:     p.now().UTC(),
	}, nil
}

// LedgerProjector emits one model.LedgerRow per event, parsing the string
// transaction timestamp into a structured one.
type LedgerProjector struct{}

func NewLedgerProjector() *LedgerProjector {
	return &LedgerProjector{}
}

func (p *LedgerProjector) Name() string { return "ledger" }

// transactionDateLayouts covers the ISO-like shapes the producer emits,
// with and without zone designator.
var transactionDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (p *LedgerProjector) Project(ev model.EnrichedEvent) (any, error) {
	ts, err := parseTransactionDate(ev.TransactionDate)
	if err != nil {
		// A row with a defaulted or missing timestamp must never reach
		// the ledger; surface the failure instead.
		return nil, fmt.Errorf("ledger projection of %s: %w", ev.TransactionID, err)
	}

	brand := ""
	if ev.ProductBrand != nil {
		brand = *ev.ProductBrand
	}

	return model.LedgerRow{
		TransactionID:   ev.TransactionID,
		ProductID:       ev.ProductID,
		ProductName:     ev.ProductName,
		ProductCategory: ev.ProductCategory,
		ProductPrice:    ev.ProductPrice,
		ProductQuantity: ev.ProductQuantity,
		ProductBrand:    brand,
		Currency:        ev.Currency,
		CustomerID:      ev.CustomerID,
		TransactionDate: ts,
		PaymentMethod:   ev.PaymentMethod,
		TotalAmount:     ev.TotalAmount,
	}, nil
}

func parseTransactionDate(raw string) (time.Time, error) {
	for _, layout := range transactionDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable transaction date %q", raw)
}
