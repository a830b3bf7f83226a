package service

import (
	"github.com/finflow/payment-stream-engine/internal/domain/model"
)

// Enricher defines the contract for turning raw transactions into
// enriched ones before fanout.
type Enricher interface {
	Enrich(ev model.RawEvent) model.EnrichedEvent
}

// BrandEnricher applies the brand normalization table. It is a pure
// transformation: one EnrichedEvent per RawEvent, no I/O, no state.
type BrandEnricher struct{}

func NewBrandEnricher() *BrandEnricher {
	return &BrandEnricher{}
}

func (e *BrandEnricher) Enrich(ev model.RawEvent) model.EnrichedEvent {
	return model.EnrichedEvent{
		RawEvent:        ev,
		NormalizedBrand: NormalizeBrand(ev.ProductBrand),
	}
}
