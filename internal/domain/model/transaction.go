package model

// RawEvent is a payment transaction exactly as produced onto the source
// topic. Instances are immutable once decoded; a payload that fails to
// decode or lacks a transaction id never becomes a RawEvent.
type RawEvent struct {
	TransactionID   string  `json:"transactionId"`
	ProductID       string  `json:"productId"`
	ProductName     string  `json:"productName"`
	ProductCategory string  `json:"productCategory"`
	ProductPrice    float64 `json:"productPrice"`
	ProductQuantity int     `json:"productQuantity"`
	// ProductBrand is nil when the producer omitted the field. The
	// distinction between absent and empty matters to normalization.
	ProductBrand    *string `json:"productBrand"`
	Currency        string  `json:"currency"`
	CustomerID      string  `json:"customerId"`
	TransactionDate string  `json:"transactionDate"`
	PaymentMethod   string  `json:"paymentMethod"`
	TotalAmount     float64 `json:"totalAmount"`
}

// EnrichedEvent is a RawEvent plus derived fields. The original brand is
// retained for audit; downstream projections pick whichever they need.
type EnrichedEvent struct {
	RawEvent
	NormalizedBrand string
}
