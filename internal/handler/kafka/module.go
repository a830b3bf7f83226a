package kafka

import (
	"go.uber.org/fx"

	"github.com/finflow/payment-stream-engine/internal/pipeline"
)

var Module = fx.Module("kafka-handler",
	fx.Provide(
		NewClient,
		NewReader,
		fx.Annotate(
			NewGroupStore,
			fx.As(new(pipeline.Store)),
		),
	),
)
