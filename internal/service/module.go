package service

import (
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			NewBrandEnricher,
			fx.As(new(Enricher)),
		),

		NewAnalyticsProjector,
		NewLedgerProjector,

		// Registry of projections a sink config section can bind to.
		func(a *AnalyticsProjector, l *LedgerProjector) map[string]Projector {
			return map[string]Projector{
				a.Name(): a,
				l.Name(): l,
			}
		},
	),

	// [DECORATION_LAYER] Intercept Enricher to add cross-cutting concerns
	fx.Decorate(func(orig Enricher, logger *slog.Logger) Enricher {
		return &EnricherMiddleware{
			Next:   orig,
			Logger: logger,
		}
	}),
)
