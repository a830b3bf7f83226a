package service

import (
	"log/slog"

	"github.com/finflow/payment-stream-engine/infra/metrics"
	"github.com/finflow/payment-stream-engine/internal/domain/model"
)

// EnricherMiddleware implements [DECORATOR_PATTERN] to add observability
// to the enrichment step without touching the normalization logic.
type EnricherMiddleware struct {
	Next   Enricher
	Logger *slog.Logger
}

func (m *EnricherMiddleware) Enrich(ev model.RawEvent) model.EnrichedEvent {
	enriched := m.Next.Enrich(ev)

	// Track how the normalization table resolved the brand. A rising
	// passthrough count usually means the table is missing a new code.
	switch {
	case ev.ProductBrand == nil:
		metrics.BrandResolutions.WithLabelValues("fallback").Inc()
	case KnownBrand(*ev.ProductBrand):
		metrics.BrandResolutions.WithLabelValues("canonical").Inc()
	default:
		metrics.BrandResolutions.WithLabelValues("passthrough").Inc()
		m.Logger.Debug("BRAND_PASSTHROUGH",
			"brand", *ev.ProductBrand,
			"transaction_id", ev.TransactionID,
		)
	}

	return enriched
}
